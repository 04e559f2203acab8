package service

import (
	"context"
	"fmt"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/db"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

const similarMailLimit = 5

type MailEmbeddingRepo interface {
	InsertMailEmbedding(ctx context.Context, analysisID, modelName string, vector []float32) (int64, error)
	GetMailEmbedding(ctx context.Context, analysisID string) ([]float32, error)
	SearchSimilarMails(ctx context.Context, userID int64, analysisID string, vector []float32, limit int) ([]model.SimilarMail, error)
}

type EmbeddingClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

// EmbeddingService maintains the similar-mail index over analyzed messages.
type EmbeddingService struct {
	repo   MailEmbeddingRepo
	client EmbeddingClient
}

func NewEmbeddingService(repo MailEmbeddingRepo, client EmbeddingClient) *EmbeddingService {
	return &EmbeddingService{repo: repo, client: client}
}

func (s *EmbeddingService) IndexMail(ctx context.Context, analysisID, text string) error {
	if analysisID == "" || text == "" {
		return fmt.Errorf("analysis id and text are required")
	}
	vector, modelName, err := s.client.EmbedText(ctx, text)
	if err != nil {
		return err
	}
	_, err = s.repo.InsertMailEmbedding(ctx, analysisID, modelName, vector)
	return err
}

// SimilarMails looks up the stored vector for an analysis and returns the
// closest other mails the same user has analyzed.
func (s *EmbeddingService) SimilarMails(ctx context.Context, userID int64, analysisID string) ([]model.SimilarMail, error) {
	vector, err := s.repo.GetMailEmbedding(ctx, analysisID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.repo.SearchSimilarMails(ctx, userID, analysisID, vector, similarMailLimit)
}
