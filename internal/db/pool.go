package db

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const rdsHostSuffix = "rds.amazonaws.com"

// NewPool abre o pool de conexões com o Postgres aplicando a heurística de SSL.
func NewPool(ctx context.Context, dsn string, sslMode string) (*pgxpool.Pool, error) {
	resolved, err := ResolveDSN(dsn, sslMode)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(resolved)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ResolveDSN define sslmode: valor explícito vence; hosts RDS sem sslmode exigem SSL.
// Aceita DSN em URL (postgres://) ou no formato chave=valor.
func ResolveDSN(dsn string, sslMode string) (string, error) {
	sslMode = strings.TrimSpace(sslMode)
	if !isURLDSN(dsn) {
		return resolveKeywordDSN(dsn, sslMode)
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}

	q := u.Query()
	switch {
	case sslMode != "":
		q.Set("sslmode", sslMode)
	case q.Get("sslmode") != "":
		return dsn, nil
	case isRDSHost(u.Hostname()):
		q.Set("sslmode", "require")
	default:
		return dsn, nil
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

var sslModeKeyword = regexp.MustCompile(`(^|\s)sslmode\s*=`)

// resolveKeywordDSN acrescenta sslmode ao final; no formato chave=valor a última ocorrência vence.
func resolveKeywordDSN(dsn string, sslMode string) (string, error) {
	cfg, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "", err
	}
	switch {
	case sslMode != "":
	case sslModeKeyword.MatchString(dsn):
		return dsn, nil
	case isRDSHost(cfg.Host):
		sslMode = "require"
	default:
		return dsn, nil
	}
	return strings.TrimSpace(dsn) + " sslmode=" + sslMode, nil
}

func isURLDSN(dsn string) bool {
	dsn = strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func isRDSHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), rdsHostSuffix)
}
