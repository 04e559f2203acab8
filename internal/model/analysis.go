package model

import "time"

// Analysis is one stored verdict for an uploaded .eml file.
type Analysis struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"-"`
	Subject     string    `json:"subject"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Probability float64   `json:"probability"`
	Reasons     string    `json:"reasons"`
	RedFlags    []string  `json:"redFlags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Verdict is the structured output requested from the model.
type Verdict struct {
	Probability float64  `json:"probability"`
	Reasons     string   `json:"reasons"`
	RedFlags    []string `json:"red_flags"`
}

// ParsedMail is the subset of an .eml file sent to the classifier.
type ParsedMail struct {
	Subject string
	From    string
	To      string
	Body    string
}

type AnalysisListItem struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	From        string    `json:"from"`
	Probability float64   `json:"probability"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SimilarMail struct {
	AnalysisID  string  `json:"analysisId"`
	Subject     string  `json:"subject"`
	Probability float64 `json:"probability"`
	Distance    float64 `json:"distance"`
}
