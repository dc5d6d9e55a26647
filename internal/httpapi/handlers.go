package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salescomposer/internal/compose"
	"salescomposer/internal/domain"
	"salescomposer/internal/feedback"
	"salescomposer/internal/ratelimit"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 500
)

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type feedbackRequest struct {
	Input    domain.ComposeInput  `json:"input"`
	Output   domain.ComposeOutput `json:"output"`
	Feedback string               `json:"feedback"`
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

type overrideRequest struct {
	Rule     string `json:"rule"`
	Priority string `json:"priority"`
}

func writeError(c *gin.Context, status int, kind, msg string) {
	var body errorBody
	body.Error.Type = kind
	body.Error.Message = msg
	c.AbortWithStatusJSON(status, body)
}

// fail maps pipeline errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, compose.ErrInvalidInput), errors.Is(err, feedback.ErrEmptyFeedback),
		errors.Is(err, feedback.ErrEmptyRule):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ratelimit.ErrRateLimited):
		writeError(c, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, feedback.ErrFeedbackNotFound), errors.Is(err, feedback.ErrOverrideNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "request failed")
	}
}

func (s *Server) compose(c *gin.Context) {
	var in domain.ComposeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return
	}
	out, err := s.composer.Compose(c.Request.Context(), callerID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return
	}
	entry, err := s.composer.SubmitFeedback(c.Request.Context(), req.Input, req.Output, req.Feedback)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) listFeedback(c *gin.Context) {
	if err := s.feedback.Load(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	all := c.Query("all") == "true"
	c.JSON(http.StatusOK, gin.H{
		"feedback_entries": s.feedback.List(all),
		"global_overrides": s.feedback.ListOverrides(all),
	})
}

func (s *Server) toggleFeedback(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		writeError(c, http.StatusBadRequest, "invalid_request", `body must be {"active": true|false}`)
		return
	}
	if err := s.feedback.Toggle(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active})
}

func (s *Server) addOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return
	}
	priority := domain.PriorityHigh
	if req.Priority != "" {
		p, err := domain.ParsePriority(req.Priority)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		priority = p
	}
	ov, err := s.feedback.AddOverride(c.Request.Context(), req.Rule, priority)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ov)
}

func (s *Server) toggleOverride(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		writeError(c, http.StatusBadRequest, "invalid_request", `body must be {"active": true|false}`)
		return
	}
	if err := s.feedback.ToggleOverride(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active})
}

func (s *Server) recentLog(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}
	entries, err := s.composer.RecentLog(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
