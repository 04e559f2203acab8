package db

import (
	"context"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
	"github.com/pgvector/pgvector-go"
)

func (db *Postgres) EnsureEmbeddingSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`
		CREATE TABLE IF NOT EXISTS mail_embeddings (
			id BIGSERIAL PRIMARY KEY,
			analysis_id UUID NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			embedding vector(768) NOT NULL,
			model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) InsertMailEmbedding(ctx context.Context, analysisID, modelName string, vector []float32) (int64, error) {
	query := `
		INSERT INTO mail_embeddings (analysis_id, embedding, model)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id int64
	err := db.Pool.QueryRow(ctx, query, analysisID, pgvector.NewVector(vector), modelName).Scan(&id)
	return id, err
}

func (db *Postgres) GetMailEmbedding(ctx context.Context, analysisID string) ([]float32, error) {
	query := `
		SELECT embedding
		FROM mail_embeddings
		WHERE analysis_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var vec pgvector.Vector
	if err := db.Pool.QueryRow(ctx, query, analysisID).Scan(&vec); err != nil {
		return nil, err
	}
	return vec.Slice(), nil
}

// SearchSimilarMails returns the closest previously analyzed mails for the
// same user by cosine distance, excluding the analysis being compared.
func (db *Postgres) SearchSimilarMails(ctx context.Context, userID int64, analysisID string, vector []float32, limit int) ([]model.SimilarMail, error) {
	query := `
		SELECT a.id, a.subject, a.probability, e.embedding <=> $3 AS distance
		FROM mail_embeddings e
		JOIN analyses a ON a.id = e.analysis_id
		WHERE a.user_id = $1 AND a.id <> $2
		ORDER BY distance
		LIMIT $4
	`
	rows, err := db.Pool.Query(ctx, query, userID, analysisID, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.SimilarMail{}
	for rows.Next() {
		var m model.SimilarMail
		if err := rows.Scan(&m.AnalysisID, &m.Subject, &m.Probability, &m.Distance); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
