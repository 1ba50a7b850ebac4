package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/middleware"
)

// SubmissionService is the workflow surface the handlers depend on
type SubmissionService interface {
	Evaluate(ctx context.Context, snapshot *domain.QuestionnaireSnapshot) (*domain.EvaluationResult, error)
	Submit(ctx context.Context, userID string, snapshot *domain.QuestionnaireSnapshot) (*domain.Submission, error)
	GetForUser(ctx context.Context, userID string) (*domain.Submission, error)
	Get(ctx context.Context, principal domain.Principal, id uuid.UUID) (*domain.Submission, error)
	ListPending(ctx context.Context, limit, offset int) ([]*domain.Submission, error)
	ListAll(ctx context.Context, limit, offset int) ([]*domain.Submission, error)
	Review(ctx context.Context, reviewer string, id uuid.UUID, status domain.SubmissionStatus, feedback string) (*domain.Submission, error)
	Regenerate(ctx context.Context, actor string, id uuid.UUID) (*domain.Submission, error)
	ReviewHistory(ctx context.Context, id uuid.UUID) ([]*domain.ReviewEntry, error)
	Rules() []domain.RuleInfo
}

// ReviewRequest is the body of the review endpoint
type ReviewRequest struct {
	Status        domain.SubmissionStatus `json:"status"`
	AdminFeedback string                  `json:"admin_feedback"`
}

// ListResponse wraps a page of submissions
type ListResponse struct {
	Submissions []*domain.Submission `json:"submissions"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

func (s *Server) handleListRules(c *gin.Context) {
	rules := s.service.Rules()
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var snapshot domain.QuestionnaireSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		s.respondBadRequest(c, "invalid request body", err)
		return
	}

	result, err := s.service.Evaluate(c.Request.Context(), &snapshot)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSubmit(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var snapshot domain.QuestionnaireSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		s.respondBadRequest(c, "invalid request body", err)
		return
	}

	submission, err := s.service.Submit(c.Request.Context(), principal.UserID, &snapshot)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

func (s *Server) handleGetOwn(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	submission, err := s.service.GetForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (s *Server) handleGetSubmission(c *gin.Context) {
	id, ok := s.submissionID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	submission, err := s.service.Get(c.Request.Context(), principal, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (s *Server) handleListPending(c *gin.Context) {
	limit, offset, ok := s.pagination(c)
	if !ok {
		return
	}

	submissions, err := s.service.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Submissions: submissions, Limit: limit, Offset: offset})
}

func (s *Server) handleListAll(c *gin.Context) {
	limit, offset, ok := s.pagination(c)
	if !ok {
		return
	}

	submissions, err := s.service.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Submissions: submissions, Limit: limit, Offset: offset})
}

func (s *Server) handleReview(c *gin.Context) {
	id, ok := s.submissionID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var req ReviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondBadRequest(c, "invalid request body", err)
			return
		}
	}

	submission, err := s.service.Review(c.Request.Context(), principal.UserID, id, req.Status, req.AdminFeedback)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (s *Server) handleRegenerate(c *gin.Context) {
	id, ok := s.submissionID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	submission, err := s.service.Regenerate(c.Request.Context(), principal.UserID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (s *Server) handleReviewHistory(c *gin.Context) {
	id, ok := s.submissionID(c)
	if !ok {
		return
	}

	entries, err := s.service.ReviewHistory(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission_id": id, "entries": entries})
}

func (s *Server) submissionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondBadRequest(c, "invalid submission id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) pagination(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			s.respondBadRequest(c, "invalid limit", err)
			return 0, 0, false
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			s.respondBadRequest(c, "invalid offset", err)
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func (s *Server) respondBadRequest(c *gin.Context, message string, err error) {
	middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, message, err.Error())
}

// respondError maps domain errors onto HTTP status codes and APIError bodies
func (s *Server) respondError(c *gin.Context, err error) {
	var validationErrs domain.ValidationErrors
	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrIncompleteSnapshot):
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrCodeIncompleteSnapshot, "questionnaire is incomplete", err.Error())
	case errors.As(err, &validationErrs), errors.As(err, &validationErr):
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "validation failed", err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid review status", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		middleware.AbortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "submission not found", "")
	case errors.Is(err, domain.ErrForbidden):
		middleware.AbortWithError(c, http.StatusForbidden, domain.ErrCodeForbidden, "access denied", "")
	case errors.Is(err, domain.ErrLockUnavailable):
		middleware.AbortWithError(c, http.StatusConflict, domain.ErrCodeConflict, "submission is being updated, retry later", "")
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"path":           c.FullPath(),
		}).Error("Request failed")
		middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "internal server error", "")
	}
}
