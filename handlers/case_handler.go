package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"casebrief-backend/models"
	"casebrief-backend/repository"
	"casebrief-backend/service"

	"github.com/gin-gonic/gin"
)

// Analyzer runs and stores case analyses
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*models.AnalysisResult, error)
	GetStored(ctx context.Context, caseID string) ([]byte, error)
}

// Drafter generates a submission from a stored analysis
type Drafter interface {
	Generate(ctx context.Context, caseID string) (*models.Draft, error)
}

// CaseHandler handles HTTP requests for case analyses and drafts
type CaseHandler struct {
	analyzer Analyzer
	drafter  Drafter
	logger   *slog.Logger
}

// CaseHandlerOption is a functional option for CaseHandler
type CaseHandlerOption func(*CaseHandler)

// CaseHandlerWithLogger sets the logger for failed requests
func CaseHandlerWithLogger(l *slog.Logger) CaseHandlerOption {
	return func(h *CaseHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(analyzer Analyzer, drafter Drafter, opts ...CaseHandlerOption) *CaseHandler {
	h := &CaseHandler{
		analyzer: analyzer,
		drafter:  drafter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the case routes on r
func (h *CaseHandler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/add_case", h.AddCase)
		api.GET("/cases/:id", h.GetCase)
		api.POST("/generate_draft", h.GenerateDraft)
	}
}

// AddCaseRequest represents the request body for analyzing a case
type AddCaseRequest struct {
	UserPrompt string `json:"user_prompt" binding:"required,max=1000"`
	Claimant   string `json:"claimant"`
	Respondent string `json:"respondent"`
	CaseYear   string `json:"case_year" binding:"omitempty,numeric,len=4"`
}

// GenerateDraftRequest represents the request body for drafting a submission
type GenerateDraftRequest struct {
	CaseID string `json:"case_id" binding:"required"`
}

// Health handles GET /health
func (h *CaseHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// AddCase handles POST /api/v1/add_case
func (h *CaseHandler) AddCase(c *gin.Context) {
	var req AddCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), service.AnalyzeRequest{
		UserPrompt: req.UserPrompt,
		Claimant:   req.Claimant,
		Respondent: req.Respondent,
		CaseYear:   req.CaseYear,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidPrompt) {
			abortWithError(c, http.StatusBadRequest, "INVALID_PROMPT", err.Error())
			return
		}
		h.logger.Error("case analysis failed", "error", err)
		abortWithError(c, http.StatusInternalServerError, "ANALYSIS_FAILED", "Failed to analyze case")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCase handles GET /api/v1/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	caseID := c.Param("id")

	data, err := h.analyzer.GetStored(c.Request.Context(), caseID)
	if err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			abortWithError(c, http.StatusNotFound, "NOT_FOUND", "Case not found")
			return
		}
		h.logger.Error("failed to load case", "case_id", caseID, "error", err)
		abortWithError(c, http.StatusInternalServerError, "LOAD_FAILED", "Failed to load case")
		return
	}

	// Stored bytes are returned as written
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// GenerateDraft handles POST /api/v1/generate_draft
func (h *CaseHandler) GenerateDraft(c *gin.Context) {
	var req GenerateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	draft, err := h.drafter.Generate(c.Request.Context(), req.CaseID)
	if err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			abortWithError(c, http.StatusNotFound, "NOT_FOUND", "Case not found")
			return
		}
		h.logger.Error("draft request failed", "case_id", req.CaseID, "error", err)
		abortWithError(c, http.StatusInternalServerError, "DRAFT_FAILED", "Failed to generate draft")
		return
	}

	c.JSON(http.StatusOK, draft)
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
