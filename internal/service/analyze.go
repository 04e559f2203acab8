package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/cryptox"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/db"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

const maxBodyChars = 16000

var (
	ErrNotFound       = errors.New("not found")
	ErrTrialExhausted = errors.New("free trial exhausted")
)

type AnalysisRepo interface {
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	SetUserAPIKey(ctx context.Context, userID int64, keyEnc, keyNonce []byte) error
	IncrementTrialCount(ctx context.Context, userID int64) error
	InsertAnalysis(ctx context.Context, a *model.Analysis) error
	GetAnalysis(ctx context.Context, id string, userID int64) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, userID int64) ([]model.AnalysisListItem, error)
	DeleteAnalysis(ctx context.Context, id string, userID int64) (bool, error)
}

type Classifier interface {
	Classify(ctx context.Context, apiKey string, m model.ParsedMail) (*model.Verdict, error)
}

// MailIndexer feeds the similar-mail index. Indexing is best effort and runs
// after the verdict is stored.
type MailIndexer interface {
	IndexMail(ctx context.Context, analysisID, text string) error
}

type AnalyzeService struct {
	repo       AnalysisRepo
	classifier Classifier
	vault      *cryptox.Vault
	indexer    MailIndexer
	serviceKey string
	trialLimit int
}

func NewAnalyzeService(repo AnalysisRepo, classifier Classifier, vault *cryptox.Vault, indexer MailIndexer, serviceKey string, trialLimit int) *AnalyzeService {
	return &AnalyzeService{
		repo:       repo,
		classifier: classifier,
		vault:      vault,
		indexer:    indexer,
		serviceKey: serviceKey,
		trialLimit: trialLimit,
	}
}

// Analyze parses an uploaded .eml file, picks the caller's key (their own
// stored key, or the service key while the free trial lasts), asks the model
// for a verdict, and persists the result.
func (s *AnalyzeService) Analyze(ctx context.Context, user *model.AuthUser, raw []byte) (*model.Analysis, error) {
	parsed, err := parseEML(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	record, err := s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("analyze: user lookup: %w", err)
	}

	apiKey, onTrial, err := s.resolveKey(record)
	if err != nil {
		return nil, err
	}

	verdict, err := s.classifier.Classify(ctx, apiKey, *parsed)
	if err != nil {
		return nil, fmt.Errorf("analyze: classify: %w", err)
	}

	analysis := &model.Analysis{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Subject:     parsed.Subject,
		From:        parsed.From,
		To:          parsed.To,
		Probability: verdict.Probability,
		Reasons:     verdict.Reasons,
		RedFlags:    verdict.RedFlags,
	}
	if analysis.RedFlags == nil {
		analysis.RedFlags = []string{}
	}
	if err := s.repo.InsertAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("analyze: persist: %w", err)
	}

	if onTrial {
		if err := s.repo.IncrementTrialCount(ctx, user.ID); err != nil {
			log.Printf("[Analyze] Failed to bump trial count for user %d: %v", user.ID, err)
		}
	}

	if s.indexer != nil {
		// Index off the request path; a missed index entry never fails the
		// analysis itself.
		go func(id, text string) {
			if err := s.indexer.IndexMail(context.Background(), id, text); err != nil {
				log.Printf("[Analyze] Failed to index mail %s: %v", id, err)
			}
		}(analysis.ID, parsed.Subject+"\n"+parsed.Body)
	}

	return analysis, nil
}

func (s *AnalyzeService) resolveKey(user *model.User) (string, bool, error) {
	if len(user.APIKeyEnc) > 0 && s.vault != nil {
		key, err := s.vault.Open(user.APIKeyEnc, user.APIKeyNonce)
		if err != nil {
			return "", false, fmt.Errorf("analyze: unseal key: %w", err)
		}
		return key, false, nil
	}
	if s.serviceKey == "" {
		return "", false, ErrTrialExhausted
	}
	if user.TrialCount >= s.trialLimit {
		return "", false, ErrTrialExhausted
	}
	return s.serviceKey, true, nil
}

func (s *AnalyzeService) List(ctx context.Context, userID int64) ([]model.AnalysisListItem, error) {
	return s.repo.ListAnalyses(ctx, userID)
}

func (s *AnalyzeService) Get(ctx context.Context, id string, userID int64) (*model.Analysis, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	analysis, err := s.repo.GetAnalysis(ctx, id, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return analysis, nil
}

func (s *AnalyzeService) Delete(ctx context.Context, id string, userID int64) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	deleted, err := s.repo.DeleteAnalysis(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// SetAPIKey seals and stores the user's own model key. Future analyses run on
// it instead of the trial quota.
func (s *AnalyzeService) SetAPIKey(ctx context.Context, userID int64, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrInvalidInput
	}
	if s.vault == nil {
		return ErrMisconfigured
	}
	sealed, nonce, err := s.vault.Seal(apiKey)
	if err != nil {
		return err
	}
	return s.repo.SetUserAPIKey(ctx, userID, sealed, nonce)
}

func (s *AnalyzeService) DeleteAPIKey(ctx context.Context, userID int64) error {
	return s.repo.SetUserAPIKey(ctx, userID, nil, nil)
}

// ReadUpload drains one multipart file while keeping a hard cap on size.
func ReadUpload(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: file too large", ErrInvalidInput)
	}
	return data, nil
}

func parseEML(raw []byte) (*model.ParsedMail, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("not a valid .eml file: %v", err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	from := decodeHeader(msg.Header.Get("From"))
	to := decodeHeader(msg.Header.Get("To"))
	if from == "" {
		return nil, fmt.Errorf("missing From header")
	}

	body, err := readMailBody(msg)
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyChars {
		cut := maxBodyChars
		// Back off to a rune boundary so the cut never leaves a partial
		// UTF-8 sequence at the end.
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}

	return &model.ParsedMail{
		Subject: subject,
		From:    from,
		To:      to,
		Body:    body,
	}, nil
}

func decodeHeader(value string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func readMailBody(msg *mail.Message) (string, error) {
	var reader io.Reader = msg.Body
	switch strings.ToLower(strings.TrimSpace(msg.Header.Get("Content-Transfer-Encoding"))) {
	case "quoted-printable":
		reader = quotedprintable.NewReader(reader)
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, reader)
	}

	body, err := io.ReadAll(io.LimitReader(reader, 1<<20))
	if err != nil {
		return "", fmt.Errorf("unreadable mail body: %v", err)
	}
	return string(body), nil
}
