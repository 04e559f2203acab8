package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
	"google.golang.org/genai"
)

const classifierPrompt = `You are a phishing-email analyst. Given the raw email below, respond with JSON only:
{"probability": <0..1 likelihood this is phishing>, "reasons": "<short explanation>", "red_flags": ["<specific indicator>", ...]}

Subject: %s
From: %s
To: %s

%s`

// ClassifierClient calls the model that produces phishing verdicts. A fresh
// genai client is built for every call from the key passed in, so one user's
// key never leaks into another request.
type ClassifierClient struct {
	model string
}

func NewClassifierClient(modelName string) *ClassifierClient {
	return &ClassifierClient{model: modelName}
}

func (c *ClassifierClient) Classify(ctx context.Context, apiKey string, mail model.ParsedMail) (*model.Verdict, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing model API key")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(classifierPrompt, mail.Subject, mail.From, mail.To, mail.Body)
	res, err := cli.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return nil, fmt.Errorf("empty classifier result")
	}

	var verdict model.Verdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, fmt.Errorf("malformed classifier result: %w", err)
	}
	if verdict.Probability < 0 || verdict.Probability > 1 {
		return nil, fmt.Errorf("classifier probability out of range: %f", verdict.Probability)
	}
	return &verdict, nil
}
