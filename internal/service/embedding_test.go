package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

type fakeEmbeddingRepo struct {
	vectors map[string][]float32
}

func (f *fakeEmbeddingRepo) InsertMailEmbedding(_ context.Context, analysisID, _ string, vector []float32) (int64, error) {
	f.vectors[analysisID] = vector
	return 1, nil
}

func (f *fakeEmbeddingRepo) GetMailEmbedding(_ context.Context, analysisID string) ([]float32, error) {
	if vec, ok := f.vectors[analysisID]; ok {
		return vec, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeEmbeddingRepo) SearchSimilarMails(_ context.Context, _ int64, _ string, _ []float32, _ int) ([]model.SimilarMail, error) {
	return []model.SimilarMail{{AnalysisID: "other", Subject: "Reset your password", Distance: 0.12}}, nil
}

type fakeEmbeddingClient struct{}

func (f *fakeEmbeddingClient) EmbedText(_ context.Context, _ string) ([]float32, string, error) {
	return []float32{0.1, 0.2}, "text-embedding-004", nil
}

func TestIndexMailAndSimilarLookup(t *testing.T) {
	repo := &fakeEmbeddingRepo{vectors: map[string][]float32{}}
	svc := NewEmbeddingService(repo, &fakeEmbeddingClient{})
	ctx := context.Background()

	if err := svc.IndexMail(ctx, "an-1", "subject and body"); err != nil {
		t.Fatalf("IndexMail: %v", err)
	}

	results, err := svc.SimilarMails(ctx, 1, "an-1")
	if err != nil {
		t.Fatalf("SimilarMails: %v", err)
	}
	if len(results) != 1 || results[0].AnalysisID != "other" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSimilarMailsUnindexedIsNotFound(t *testing.T) {
	svc := NewEmbeddingService(&fakeEmbeddingRepo{vectors: map[string][]float32{}}, &fakeEmbeddingClient{})

	if _, err := svc.SimilarMails(context.Background(), 1, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexMailValidatesInput(t *testing.T) {
	svc := NewEmbeddingService(&fakeEmbeddingRepo{vectors: map[string][]float32{}}, &fakeEmbeddingClient{})

	if err := svc.IndexMail(context.Background(), "", ""); err == nil {
		t.Fatalf("expected validation error")
	}
}
