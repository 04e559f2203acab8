package handler

import (
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/service"
)

const maxUploadBytes = 5 << 20

type AnalyzeHandler struct {
	svc        *service.AnalyzeService
	embeddings *service.EmbeddingService
}

func NewAnalyzeHandler(svc *service.AnalyzeService, embeddings *service.EmbeddingService) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc, embeddings: embeddings}
}

// Analyze godoc
// @Summary Analyze an uploaded .eml file
// @Tags analyze
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true ".eml file"
// @Success 200 {object} model.AnalysisEnvelope
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 402 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/analyze [post]
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".eml") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .eml files are accepted"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	raw, err := service.ReadUpload(file, maxUploadBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	analysis, err := h.svc.Analyze(c.Request.Context(), user, raw)
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.AnalysisEnvelope{Status: "success", Data: analysis})
}

// List godoc
// @Summary List past analyses
// @Tags analyze
// @Produce json
// @Success 200 {object} model.AnalysisListResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/analyze [get]
func (h *AnalyzeHandler) List(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.svc.List(c.Request.Context(), user.ID)
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AnalysisListResponse{Status: "success", Data: items})
}

// Get godoc
// @Summary Get one analysis
// @Tags analyze
// @Produce json
// @Param id path string true "Analysis ID"
// @Success 200 {object} model.AnalysisEnvelope
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/analyze/{id} [get]
func (h *AnalyzeHandler) Get(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	analysis, err := h.svc.Get(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AnalysisEnvelope{Status: "success", Data: analysis})
}

// Delete godoc
// @Summary Delete one analysis
// @Tags analyze
// @Produce json
// @Param id path string true "Analysis ID"
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/analyze/{id} [delete]
func (h *AnalyzeHandler) Delete(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "deleted"})
}

// Similar godoc
// @Summary Find similar previously analyzed mails
// @Tags analyze
// @Produce json
// @Param id path string true "Analysis ID"
// @Success 200 {object} model.SimilarMailsResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/analyze/{id}/similar [get]
func (h *AnalyzeHandler) Similar(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.embeddings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "similar-mail index disabled"})
		return
	}

	// Owner check first so foreign analysis ids read as absent.
	if _, err := h.svc.Get(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		writeAnalyzeError(c, err)
		return
	}

	results, err := h.embeddings.SimilarMails(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SimilarMailsResponse{Status: "success", Data: results})
}

// SetAPIKey godoc
// @Summary Store the caller's own model API key
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.APIKeyRequest true "Model API key"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/api-key [post]
func (h *AnalyzeHandler) SetAPIKey(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req model.APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.SetAPIKey(c.Request.Context(), user.ID, req.APIKey); err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "api_key_saved"})
}

// DeleteAPIKey godoc
// @Summary Remove the caller's stored model API key
// @Tags auth
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/api-key [delete]
func (h *AnalyzeHandler) DeleteAPIKey(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.svc.DeleteAPIKey(c.Request.Context(), user.ID); err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "api_key_removed"})
}

func writeAnalyzeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrTrialExhausted):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "free trial exhausted, add your own API key"})
	default:
		log.Printf("[Analyze] Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
