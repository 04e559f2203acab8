package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

type MagicLinkSentResponse struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

type AnalysisListResponse struct {
	Status string             `json:"status"`
	Data   []AnalysisListItem `json:"data"`
}

type AnalysisEnvelope struct {
	Status string    `json:"status"`
	Data   *Analysis `json:"data"`
}

type SimilarMailsResponse struct {
	Status string        `json:"status"`
	Data   []SimilarMail `json:"data"`
}
