package repo

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrConflict indica violação de unicidade (e-mail, CPF, matrícula...).
	ErrConflict = errors.New("registro duplicado")
	// ErrHasReferences indica que o registro ainda é referenciado por outras tabelas.
	ErrHasReferences = errors.New("registro possui referências")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify traduz erros do Postgres para os erros do pacote.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &ConstraintError{Err: ErrConflict, Constraint: pgErr.ConstraintName}
		case pgForeignKeyViolation:
			return &ConstraintError{Err: ErrHasReferences, Constraint: pgErr.ConstraintName}
		}
	}
	return err
}

// ConstraintError preserva o nome da constraint violada.
type ConstraintError struct {
	Err        error
	Constraint string
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + e.Constraint + ")"
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}
