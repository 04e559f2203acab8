package db

import (
	"context"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

func (db *Postgres) EnsureAnalysisSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS analyses (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject TEXT NOT NULL,
			mail_from TEXT NOT NULL,
			mail_to TEXT NOT NULL,
			probability DOUBLE PRECISION NOT NULL,
			reasons TEXT NOT NULL,
			red_flags TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS analyses_user_id_idx ON analyses(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) InsertAnalysis(ctx context.Context, a *model.Analysis) error {
	query := `
		INSERT INTO analyses (id, user_id, subject, mail_from, mail_to, probability, reasons, red_flags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`
	return db.Pool.QueryRow(ctx, query,
		a.ID,
		a.UserID,
		a.Subject,
		a.From,
		a.To,
		a.Probability,
		a.Reasons,
		a.RedFlags,
	).Scan(&a.CreatedAt)
}

func (db *Postgres) GetAnalysis(ctx context.Context, id string, userID int64) (*model.Analysis, error) {
	query := `
		SELECT id, user_id, subject, mail_from, mail_to, probability, reasons, red_flags, created_at
		FROM analyses
		WHERE id = $1 AND user_id = $2
	`
	var a model.Analysis
	err := db.Pool.QueryRow(ctx, query, id, userID).Scan(
		&a.ID,
		&a.UserID,
		&a.Subject,
		&a.From,
		&a.To,
		&a.Probability,
		&a.Reasons,
		&a.RedFlags,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *Postgres) ListAnalyses(ctx context.Context, userID int64) ([]model.AnalysisListItem, error) {
	query := `
		SELECT id, subject, mail_from, probability, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.AnalysisListItem{}
	for rows.Next() {
		var item model.AnalysisListItem
		if err := rows.Scan(&item.ID, &item.Subject, &item.From, &item.Probability, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (db *Postgres) DeleteAnalysis(ctx context.Context, id string, userID int64) (bool, error) {
	query := `
		DELETE FROM analyses
		WHERE id = $1 AND user_id = $2
	`
	tag, err := db.Pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
