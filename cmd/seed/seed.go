package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/categoria"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/departamento"
	"github.com/minhacidade/backend/internal/service"
)

// seedFile é o formato do arquivo YAML de carga inicial.
type seedFile struct {
	Cidades       []seedCidade       `yaml:"cidades"`
	Categorias    []seedCategoria    `yaml:"categorias"`
	Administrador *seedAdministrador `yaml:"administrador"`
}

type seedCidade struct {
	Nome          string             `yaml:"nome"`
	Estado        string             `yaml:"estado"`
	Padrao        bool               `yaml:"padrao"`
	Departamentos []seedDepartamento `yaml:"departamentos"`
	Categorias    []seedCategoria    `yaml:"categorias"`
}

type seedDepartamento struct {
	Nome             string   `yaml:"nome"`
	Descricao        string   `yaml:"descricao"`
	PrioridadePadrao string   `yaml:"prioridade_padrao"`
	Motivos          []string `yaml:"motivos"`
}

type seedCategoria struct {
	Nome      string `yaml:"nome"`
	Descricao string `yaml:"descricao"`
}

type seedAdministrador struct {
	Nome  string `yaml:"nome"`
	Email string `yaml:"email"`
	Senha string `yaml:"senha"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	padrao := 0
	for i, c := range f.Cidades {
		if strings.TrimSpace(c.Nome) == "" || strings.TrimSpace(c.Estado) == "" {
			return nil, fmt.Errorf("cidades[%d]: nome e estado são obrigatórios", i)
		}
		if c.Padrao {
			padrao++
		}
	}
	if padrao > 1 {
		return nil, errors.New("apenas uma cidade pode ser padrão")
	}
	if a := f.Administrador; a != nil && (a.Email == "" || a.Senha == "") {
		return nil, errors.New("administrador: email e senha são obrigatórios")
	}
	return &f, nil
}

type seeder struct {
	cidades       *cidade.Service
	departamentos *departamento.Service
	categorias    *categoria.Service
	admins        *service.AdministradorService
}

// apply grava o conteúdo do arquivo. Registros com o mesmo nome já existentes são mantidos.
func (s *seeder) apply(ctx context.Context, f *seedFile) error {
	existentes, err := s.cidades.List(ctx, true)
	if err != nil {
		return err
	}
	porNome := map[string]int64{}
	for _, c := range existentes {
		porNome[nomeChave(c.Nome)] = c.ID
	}

	for _, sc := range f.Cidades {
		id, ok := porNome[nomeChave(sc.Nome)]
		if !ok {
			c, err := s.cidades.Create(ctx, cidade.CreateInput{Nome: sc.Nome, Estado: sc.Estado, Padrao: sc.Padrao})
			if err != nil {
				return fmt.Errorf("cidade %q: %w", sc.Nome, err)
			}
			id = c.ID
			log.Info().Int64("id", id).Str("nome", c.Nome).Msg("cidade criada")
		}
		if err := s.applyDepartamentos(ctx, id, sc.Departamentos); err != nil {
			return err
		}
		cid := id
		if err := s.applyCategorias(ctx, &cid, sc.Categorias); err != nil {
			return err
		}
	}

	if err := s.applyCategorias(ctx, nil, f.Categorias); err != nil {
		return err
	}

	if a := f.Administrador; a != nil {
		root := auth.Principal{Kind: auth.KindAdministrador, Role: auth.RoleAdminGlobal}
		created, err := s.admins.Create(ctx, root, service.AdministradorInput{Nome: a.Nome, Email: a.Email, Senha: a.Senha})
		switch {
		case errors.Is(err, service.ErrConflict):
			log.Info().Str("email", a.Email).Msg("administrador já existe")
		case err != nil:
			return fmt.Errorf("administrador: %w", err)
		default:
			log.Info().Int64("id", created.ID).Str("email", created.Email).Msg("administrador global criado")
		}
	}
	return nil
}

func (s *seeder) applyDepartamentos(ctx context.Context, cidadeID int64, items []seedDepartamento) error {
	if len(items) == 0 {
		return nil
	}
	existentes, err := s.departamentos.List(ctx, departamento.Filter{CidadeID: &cidadeID, Limit: 200})
	if err != nil {
		return err
	}
	vistos := map[string]bool{}
	for _, d := range existentes {
		vistos[nomeChave(d.Nome)] = true
	}
	for _, sd := range items {
		if vistos[nomeChave(sd.Nome)] {
			continue
		}
		d, err := s.departamentos.Create(ctx, departamento.CreateInput{
			Nome:             sd.Nome,
			Descricao:        sd.Descricao,
			PrioridadePadrao: sd.PrioridadePadrao,
			Motivos:          sd.Motivos,
			CidadeID:         cidadeID,
		})
		if err != nil {
			return fmt.Errorf("departamento %q: %w", sd.Nome, err)
		}
		log.Info().Int64("id", d.ID).Int64("cidade_id", cidadeID).Str("nome", d.Nome).Msg("departamento criado")
	}
	return nil
}

// applyCategorias grava categorias da cidade ou, com cidadeID nulo, as globais.
func (s *seeder) applyCategorias(ctx context.Context, cidadeID *int64, items []seedCategoria) error {
	if len(items) == 0 {
		return nil
	}
	existentes, err := s.categorias.List(ctx, cidadeID)
	if err != nil {
		return err
	}
	vistos := map[string]bool{}
	for _, c := range existentes {
		if sameCidade(c.CidadeID, cidadeID) {
			vistos[nomeChave(c.Nome)] = true
		}
	}
	for _, sc := range items {
		if vistos[nomeChave(sc.Nome)] {
			continue
		}
		c, err := s.categorias.Create(ctx, categoria.CreateInput{Nome: sc.Nome, Descricao: sc.Descricao, CidadeID: cidadeID})
		if err != nil {
			return fmt.Errorf("categoria %q: %w", sc.Nome, err)
		}
		log.Info().Int64("id", c.ID).Str("nome", c.Nome).Msg("categoria criada")
	}
	return nil
}

func sameCidade(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nomeChave(nome string) string {
	return strings.ToLower(strings.TrimSpace(nome))
}
