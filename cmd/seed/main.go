package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/minhacidade/backend/internal/categoria"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/departamento"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cmd := os.Args[1]
	flags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	dsn := flags.String("dsn", firstEnv("DATABASE_URL", "DB_DSN"), "URL postgres:// do banco")
	sslMode := flags.String("sslmode", os.Getenv("DB_SSLMODE"), "sslmode aplicado ao DSN")
	file := flags.StringP("file", "f", "seed.yaml", "arquivo YAML com cidades, departamentos, categorias e administrador")
	if err := flags.Parse(os.Args[2:]); err != nil {
		usage()
		os.Exit(1)
	}
	if strings.TrimSpace(*dsn) == "" {
		log.Fatal().Msg("defina DATABASE_URL ou --dsn")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, *dsn, *sslMode)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	switch cmd {
	case "migrate":
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("falha ao aplicar migrações")
		}
		log.Info().Msg("migrações aplicadas")
	case "seed":
		raw, err := os.Open(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("falha ao abrir arquivo de carga")
		}
		defer raw.Close()
		data, err := parseSeed(raw)
		if err != nil {
			log.Fatal().Err(err).Str("arquivo", *file).Msg("arquivo de carga inválido")
		}

		cidades := cidade.NewService(cidade.NewRepository(pool))
		s := &seeder{
			cidades:       cidades,
			departamentos: departamento.NewService(departamento.NewRepository(pool), cidades),
			categorias:    categoria.NewService(categoria.NewRepository(pool)),
			admins:        service.NewAdministradorService(repo.New(pool), cidades),
		}
		if err := s.apply(ctx, data); err != nil {
			log.Fatal().Err(err).Msg("falha ao aplicar carga inicial")
		}
		log.Info().Msg("carga inicial concluída")
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "seed CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  seed migrate [--dsn postgres://...]")
	fmt.Fprintln(os.Stderr, "  seed seed --file seed.yaml [--dsn postgres://...]")
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
