package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/cryptox"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

const sampleEML = "From: attacker@evil.test\r\nTo: victim@x.com\r\nSubject: Urgent account verification\r\nContent-Type: text/plain\r\n\r\nClick here to verify your password immediately.\r\n"

type fakeAnalysisRepo struct {
	user       *model.User
	analyses   map[string]*model.Analysis
	trialBumps int
}

func newFakeAnalysisRepo(user *model.User) *fakeAnalysisRepo {
	return &fakeAnalysisRepo{user: user, analyses: map[string]*model.Analysis{}}
}

func (f *fakeAnalysisRepo) GetUserByID(_ context.Context, userID int64) (*model.User, error) {
	if f.user == nil || f.user.ID != userID {
		return nil, pgx.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeAnalysisRepo) SetUserAPIKey(_ context.Context, _ int64, keyEnc, keyNonce []byte) error {
	f.user.APIKeyEnc = keyEnc
	f.user.APIKeyNonce = keyNonce
	return nil
}

func (f *fakeAnalysisRepo) IncrementTrialCount(_ context.Context, _ int64) error {
	f.trialBumps++
	f.user.TrialCount++
	return nil
}

func (f *fakeAnalysisRepo) InsertAnalysis(_ context.Context, a *model.Analysis) error {
	f.analyses[a.ID] = a
	return nil
}

func (f *fakeAnalysisRepo) GetAnalysis(_ context.Context, id string, userID int64) (*model.Analysis, error) {
	if a, ok := f.analyses[id]; ok && a.UserID == userID {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAnalysisRepo) ListAnalyses(_ context.Context, userID int64) ([]model.AnalysisListItem, error) {
	items := []model.AnalysisListItem{}
	for _, a := range f.analyses {
		if a.UserID == userID {
			items = append(items, model.AnalysisListItem{ID: a.ID, Subject: a.Subject})
		}
	}
	return items, nil
}

func (f *fakeAnalysisRepo) DeleteAnalysis(_ context.Context, id string, userID int64) (bool, error) {
	if a, ok := f.analyses[id]; ok && a.UserID == userID {
		delete(f.analyses, id)
		return true, nil
	}
	return false, nil
}

type fakeClassifier struct {
	lastKey string
}

func (f *fakeClassifier) Classify(_ context.Context, apiKey string, _ model.ParsedMail) (*model.Verdict, error) {
	f.lastKey = apiKey
	return &model.Verdict{Probability: 0.93, Reasons: "credential harvesting", RedFlags: []string{"urgency"}}, nil
}

func TestAnalyzeOnTrialKey(t *testing.T) {
	repo := newFakeAnalysisRepo(&model.User{ID: 1, Email: "a@x.com"})
	classifier := &fakeClassifier{}
	svc := NewAnalyzeService(repo, classifier, nil, nil, "service-key", 3)

	analysis, err := svc.Analyze(context.Background(), &model.AuthUser{ID: 1, Email: "a@x.com"}, []byte(sampleEML))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if classifier.lastKey != "service-key" {
		t.Fatalf("expected service key on trial path, got %q", classifier.lastKey)
	}
	if analysis.Probability != 0.93 || analysis.Subject != "Urgent account verification" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if repo.trialBumps != 1 {
		t.Fatalf("expected 1 trial bump, got %d", repo.trialBumps)
	}
	if len(repo.analyses) != 1 {
		t.Fatalf("analysis not persisted")
	}
}

func TestAnalyzeTrialExhausted(t *testing.T) {
	repo := newFakeAnalysisRepo(&model.User{ID: 1, Email: "a@x.com", TrialCount: 3})
	svc := NewAnalyzeService(repo, &fakeClassifier{}, nil, nil, "service-key", 3)

	_, err := svc.Analyze(context.Background(), &model.AuthUser{ID: 1}, []byte(sampleEML))
	if !errors.Is(err, ErrTrialExhausted) {
		t.Fatalf("expected ErrTrialExhausted, got %v", err)
	}
}

func TestAnalyzeUsesStoredUserKey(t *testing.T) {
	vault, err := cryptox.NewVault("vault-secret", "test-salt")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	repo := newFakeAnalysisRepo(&model.User{ID: 1, Email: "a@x.com", TrialCount: 99})
	classifier := &fakeClassifier{}
	svc := NewAnalyzeService(repo, classifier, vault, nil, "service-key", 3)

	if err := svc.SetAPIKey(context.Background(), 1, "user-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	if _, err := svc.Analyze(context.Background(), &model.AuthUser{ID: 1}, []byte(sampleEML)); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if classifier.lastKey != "user-key" {
		t.Fatalf("expected stored user key, got %q", classifier.lastKey)
	}
	if repo.trialBumps != 0 {
		t.Fatalf("own-key analyses must not consume the trial")
	}
}

func TestAnalyzeRejectsMalformedMail(t *testing.T) {
	repo := newFakeAnalysisRepo(&model.User{ID: 1})
	svc := NewAnalyzeService(repo, &fakeClassifier{}, nil, nil, "service-key", 3)

	_, err := svc.Analyze(context.Background(), &model.AuthUser{ID: 1}, []byte("this is not an email"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetUnknownAnalysisIsNotFound(t *testing.T) {
	repo := newFakeAnalysisRepo(&model.User{ID: 1})
	svc := NewAnalyzeService(repo, &fakeClassifier{}, nil, nil, "service-key", 3)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "not-a-uuid", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
	if _, err := svc.Get(ctx, "8a9bcd10-9a63-4d14-a37d-55483cf68c31", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
	if err := svc.Delete(ctx, "8a9bcd10-9a63-4d14-a37d-55483cf68c31", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestParseEMLDecodesQuotedPrintable(t *testing.T) {
	eml := "From: a@x.com\r\nSubject: =?utf-8?q?Hola_se=C3=B1or?=\r\nContent-Transfer-Encoding: quoted-printable\r\n\r\nCuenta bloqueada: verif=C3=ADcala ya.\r\n"
	parsed, err := parseEML([]byte(eml))
	if err != nil {
		t.Fatalf("parseEML: %v", err)
	}
	if parsed.Subject != "Hola señor" {
		t.Fatalf("subject not decoded: %q", parsed.Subject)
	}
	if parsed.Body != "Cuenta bloqueada: verifícala ya.\r\n" {
		t.Fatalf("body not decoded: %q", parsed.Body)
	}
}

func TestParseEMLTrimsBodyAtRuneBoundary(t *testing.T) {
	// A one-byte prefix shifts every two-byte rune off the cap offset, so a
	// naive byte cut would split a rune.
	body := "a" + strings.Repeat("ñ", maxBodyChars)
	eml := "From: a@x.com\r\nSubject: oversized\r\nContent-Type: text/plain\r\n\r\n" + body

	parsed, err := parseEML([]byte(eml))
	if err != nil {
		t.Fatalf("parseEML: %v", err)
	}
	if len(parsed.Body) > maxBodyChars {
		t.Fatalf("body not capped: %d bytes", len(parsed.Body))
	}
	if !utf8.ValidString(parsed.Body) {
		t.Fatalf("truncated body is not valid UTF-8")
	}
	if len(parsed.Body) != maxBodyChars-1 {
		t.Fatalf("expected cut at the last rune boundary, got %d bytes", len(parsed.Body))
	}
}
