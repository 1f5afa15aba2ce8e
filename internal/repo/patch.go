package repo

import (
	"fmt"
	"strings"
)

// Patch acumula colunas de um UPDATE parcial: somente campos informados entram no SET.
type Patch struct {
	sets []string
	args []any
}

// Set inclui a coluna com o valor informado.
func (p *Patch) Set(column string, value any) {
	p.args = append(p.args, value)
	p.sets = append(p.sets, fmt.Sprintf("%s = $%d", column, len(p.args)))
}

// Merge funde o objeto JSONB informado ao valor atual da coluna; chaves ausentes são mantidas.
func (p *Patch) Merge(column string, value any) {
	p.args = append(p.args, value)
	p.sets = append(p.sets, fmt.Sprintf("%s = COALESCE(%s, '{}'::jsonb) || $%d::jsonb", column, column, len(p.args)))
}

// SetRaw inclui expressão SQL sem argumento (ex.: "cha_responsavel = NULL").
func (p *Patch) SetRaw(expr string) {
	p.sets = append(p.sets, expr)
}

// Empty indica que nenhum campo foi informado.
func (p *Patch) Empty() bool {
	return len(p.sets) == 0
}

// Columns devolve as expressões do SET na ordem em que foram adicionadas.
func (p *Patch) Columns() []string {
	return append([]string(nil), p.sets...)
}

// Build monta o UPDATE ... WHERE idColumn = $n RETURNING ...
func (p *Patch) Build(table, idColumn string, id any, returning string) (string, []any) {
	args := append(append([]any(nil), p.args...), id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(p.sets, ", "), idColumn, len(args))
	if returning != "" {
		query += " RETURNING " + returning
	}
	return query, args
}

// Where acumula filtros numerados para listagens.
type Where struct {
	clauses []string
	args    []any
}

// Add inclui cláusula cujos placeholders "?" recebem o mesmo argumento.
func (w *Where) Add(clause string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

// AddRaw inclui cláusula sem argumento.
func (w *Where) AddRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// SQL devolve " WHERE ..." (ou vazio) e os argumentos acumulados.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Expr devolve as cláusulas unidas por AND, ou TRUE quando vazio (para subconsultas).
func (w *Where) Expr() string {
	if len(w.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(w.clauses, " AND ")
}

// Args devolve os argumentos acumulados.
func (w *Where) Args() []any {
	return w.args
}

// Page devolve sufixo LIMIT/OFFSET numerado após os argumentos atuais.
func (w *Where) Page(limit, offset int) (string, []any) {
	limit, offset = NormalizePage(limit, offset)
	n := len(w.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), append(append([]any(nil), w.args...), limit, offset)
}

// NormalizePage aplica limites padrão de paginação.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SetIf inclui a coluna apenas quando o ponteiro foi informado.
func SetIf[T any](p *Patch, column string, value *T) {
	if value != nil {
		p.Set(column, *value)
	}
}
