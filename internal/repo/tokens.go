package repo

import (
	"context"
	"time"
)

// InsertResetToken grava o hash de um token de redefinição.
func (q *Queries) InsertResetToken(ctx context.Context, hash, email string, expiraEm time.Time) error {
	_, err := q.db.Exec(ctx, `
        INSERT INTO token_recuperacao (tok_hash, tok_email, tok_expira_em)
        VALUES ($1, lower($2), $3)`, hash, email, expiraEm)
	return Classify(err)
}

// GetResetTokenForUpdate trava o token para consumo dentro de transação.
func (q *Queries) GetResetTokenForUpdate(ctx context.Context, hash string) (TokenRecuperacao, error) {
	var t TokenRecuperacao
	err := q.db.QueryRow(ctx, `
        SELECT tok_id, tok_hash, tok_email, tok_criado_em, tok_expira_em, tok_usado_em
        FROM token_recuperacao
        WHERE tok_hash = $1
        FOR UPDATE`, hash).Scan(&t.ID, &t.Hash, &t.Email, &t.CriadoEm, &t.ExpiraEm, &t.UsadoEm)
	if err != nil {
		return TokenRecuperacao{}, Classify(err)
	}
	return t, nil
}

// MarkResetTokenUsed marca o token como consumido.
func (q *Queries) MarkResetTokenUsed(ctx context.Context, id int64, at time.Time) error {
	cmd, err := q.db.Exec(ctx, `UPDATE token_recuperacao SET tok_usado_em = $2 WHERE tok_id = $1 AND tok_usado_em IS NULL`, id, at)
	if err != nil {
		return Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeResetTokens apaga tokens usados ou expirados.
func (q *Queries) PurgeResetTokens(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := q.db.Exec(ctx, `DELETE FROM token_recuperacao WHERE tok_usado_em IS NOT NULL OR tok_expira_em < $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
