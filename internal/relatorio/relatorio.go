package relatorio

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

// ErrForbidden indica principal sem acesso aos relatórios pedidos.
var ErrForbidden = errors.New("relatório não permitido")

const topBairros = 10

// Filter delimita o relatório. Datas se aplicam à abertura do chamado.
type Filter struct {
	CidadeID   *int64
	DataInicio *time.Time
	DataFim    *time.Time
}

// Contagem é uma linha agrupada do relatório.
type Contagem struct {
	ID    *int64 `json:"id,omitempty"`
	Nome  string `json:"nome"`
	Total int64  `json:"total"`
}

// Geral é o relatório consolidado de chamados.
type Geral struct {
	CidadeID                 *int64           `json:"cidade_id"`
	DataInicio               *time.Time       `json:"data_inicio"`
	DataFim                  *time.Time       `json:"data_fim"`
	Total                    int64            `json:"total"`
	PorStatus                map[string]int64 `json:"por_status"`
	PorDepartamento          []Contagem       `json:"por_departamento"`
	PorCategoria             []Contagem       `json:"por_categoria"`
	TempoMedioResolucaoHoras *float64         `json:"tempo_medio_resolucao_horas"`
	Bairros                  []Contagem       `json:"bairros"`
}

// Store executa as consultas agregadas.
type Store interface {
	Totais(ctx context.Context, f Filter) (int64, *float64, error)
	PorStatus(ctx context.Context, f Filter) (map[string]int64, error)
	PorDepartamento(ctx context.Context, f Filter) ([]Contagem, error)
	PorCategoria(ctx context.Context, f Filter) ([]Contagem, error)
	TopBairros(ctx context.Context, f Filter, limit int) ([]Contagem, error)
}

// Service monta relatórios.
type Service struct {
	repo Store
}

// NewService cria serviço.
func NewService(store Store) *Service {
	return &Service{repo: store}
}

// Geral consolida os agregados; as consultas correm em paralelo.
func (s *Service) Geral(ctx context.Context, p auth.Principal, f Filter) (*Geral, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if !p.IsGlobalAdmin() {
		if p.CidadeID == nil || (f.CidadeID != nil && *f.CidadeID != *p.CidadeID) {
			return nil, ErrForbidden
		}
		cid := *p.CidadeID
		f.CidadeID = &cid
	}
	if f.DataInicio != nil && f.DataFim != nil && f.DataFim.Before(*f.DataInicio) {
		return nil, util.Invalid("data_fim", "deve ser posterior a data_inicio")
	}

	out := &Geral{CidadeID: f.CidadeID, DataInicio: f.DataInicio, DataFim: f.DataFim}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Total, out.TempoMedioResolucaoHoras, err = s.repo.Totais(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		out.PorStatus, err = s.repo.PorStatus(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		out.PorDepartamento, err = s.repo.PorDepartamento(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		out.PorCategoria, err = s.repo.PorCategoria(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		out.Bairros, err = s.repo.TopBairros(gctx, f, topBairros)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Repository executa as agregações no Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const fromChamado = ` FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id`

func where(f Filter) *repo.Where {
	var w repo.Where
	if f.CidadeID != nil {
		w.Add("d.cid_id = ?", *f.CidadeID)
	}
	if f.DataInicio != nil {
		w.Add("c.cha_data_abertura >= ?", *f.DataInicio)
	}
	if f.DataFim != nil {
		w.Add("c.cha_data_abertura < ?", *f.DataFim)
	}
	return &w
}

// Totais devolve total de chamados e média de horas até o fechamento dos resolvidos.
func (r *Repository) Totais(ctx context.Context, f Filter) (int64, *float64, error) {
	w := where(f)
	var (
		total int64
		media *float64
	)
	err := r.pool.QueryRow(ctx, `
        SELECT count(*),
            (avg(EXTRACT(EPOCH FROM (c.cha_data_fechamento - c.cha_data_abertura)) / 3600)
                FILTER (WHERE c.cha_status IN ('Resolvido', 'Finalizado')))::float8`+
		fromChamado+w.SQL(), w.Args()...).Scan(&total, &media)
	return total, media, err
}

// PorStatus conta chamados por status.
func (r *Repository) PorStatus(ctx context.Context, f Filter) (map[string]int64, error) {
	w := where(f)
	rows, err := r.pool.Query(ctx, `SELECT c.cha_status, count(*)`+fromChamado+w.SQL()+` GROUP BY c.cha_status`, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var status string
		var total int64
		if err := rows.Scan(&status, &total); err != nil {
			return nil, err
		}
		out[status] = total
	}
	return out, rows.Err()
}

// PorDepartamento conta chamados por departamento.
func (r *Repository) PorDepartamento(ctx context.Context, f Filter) ([]Contagem, error) {
	w := where(f)
	return r.contagens(ctx, `SELECT d.dep_id, d.dep_nome, count(*)`+fromChamado+w.SQL()+`
        GROUP BY d.dep_id, d.dep_nome ORDER BY count(*) DESC, d.dep_nome`, w.Args())
}

// PorCategoria conta chamados por categoria; sem categoria aparece como "Sem categoria".
func (r *Repository) PorCategoria(ctx context.Context, f Filter) ([]Contagem, error) {
	w := where(f)
	return r.contagens(ctx, `SELECT cat.cat_id, COALESCE(cat.cat_nome, 'Sem categoria'), count(*)`+fromChamado+`
        LEFT JOIN categoria cat ON cat.cat_id = c.cat_id`+w.SQL()+`
        GROUP BY cat.cat_id, cat.cat_nome ORDER BY count(*) DESC, 2`, w.Args())
}

// TopBairros lista os bairros com mais chamados.
func (r *Repository) TopBairros(ctx context.Context, f Filter, limit int) ([]Contagem, error) {
	w := where(f)
	w.AddRaw("COALESCE(c.cha_bairro, '') <> ''")
	args := append(append([]any(nil), w.Args()...), limit)
	return r.contagens(ctx, `SELECT NULL::bigint, c.cha_bairro, count(*)`+fromChamado+w.SQL()+`
        GROUP BY c.cha_bairro ORDER BY count(*) DESC, c.cha_bairro
        LIMIT $`+strconv.Itoa(len(args)), args)
}

func (r *Repository) contagens(ctx context.Context, query string, args []any) ([]Contagem, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contagem{}
	for rows.Next() {
		var c Contagem
		if err := rows.Scan(&c.ID, &c.Nome, &c.Total); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
