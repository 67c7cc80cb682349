package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	"github.com/slack-go/slack"

	"github.com/3eLLenKa/review-rotation/internal/domain"
	"github.com/3eLLenKa/review-rotation/internal/notifier"
	"github.com/3eLLenKa/review-rotation/internal/service"
)

type Service interface {
	AcceptRequest(ctx context.Context, threadID, userID string) error
	DeclineRequest(ctx context.Context, threadID, userID string) error
	ListReviews(ctx context.Context) ([]domain.Review, error)
	GetReview(ctx context.Context, threadID string) (*domain.Review, error)
	CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error)
}

// DirectMessenger tells a user that their button click failed.
type DirectMessenger interface {
	SendDirect(ctx context.Context, userID string, msg domain.Message) (string, error)
}

type ErrorCode string

const (
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"
	ErrorCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrorCodeNotPending ErrorCode = "NOT_PENDING"
	ErrorCodeExists     ErrorCode = "REVIEW_EXISTS"
	ErrorCodeInternal   ErrorCode = "INTERNAL"
)

type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}

type Handlers struct {
	log           *slog.Logger
	svc           Service
	messenger     DirectMessenger
	signingSecret string

	// interactions are acknowledged right away and handled in the background.
	inflight sync.WaitGroup
}

func NewHandlers(log *slog.Logger, svc Service, messenger DirectMessenger, signingSecret string) *Handlers {
	return &Handlers{
		log:           log,
		svc:           svc,
		messenger:     messenger,
		signingSecret: signingSecret,
	}
}

func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/api/health", h.GetHealth)
	router.POST("/slack/interactions", h.PostSlackInteractions)

	reviews := router.Group("/reviews")
	reviews.GET("", h.GetReviews)
	reviews.POST("", h.PostReview)
	reviews.GET("/:threadId", h.GetReview)
	reviews.POST("/:threadId/accept", h.PostAccept)
	reviews.POST("/:threadId/decline", h.PostDecline)
}

// Wait blocks until every acknowledged interaction has been processed.
func (h *Handlers) Wait() {
	h.inflight.Wait()
}

func (h *Handlers) GetHealth(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *Handlers) GetReviews(c *gin.Context) {
	reviews, err := h.svc.ListReviews(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		resp = append(resp, toReviewResponse(&reviews[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reviews": resp})
}

func (h *Handlers) PostReview(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, err.Error()))
		return
	}

	review, err := h.svc.CreateReview(c.Request.Context(), req.toDomain())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReviewResponse(review))
}

func (h *Handlers) GetReview(c *gin.Context) {
	threadID, ok := bindThreadID(c)
	if !ok {
		return
	}

	review, err := h.svc.GetReview(c.Request.Context(), threadID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReviewResponse(review))
}

func (h *Handlers) PostAccept(c *gin.Context) {
	h.transition(c, h.svc.AcceptRequest)
}

func (h *Handlers) PostDecline(c *gin.Context) {
	h.transition(c, h.svc.DeclineRequest)
}

func (h *Handlers) transition(c *gin.Context, apply func(ctx context.Context, threadID, userID string) error) {
	threadID, ok := bindThreadID(c)
	if !ok {
		return
	}

	var userID string
	if err := runtime.BindQueryParameter("form", true, true, "user_id", c.Request.URL.Query(), &userID); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, err.Error()))
		return
	}

	if err := apply(c.Request.Context(), threadID, userID); err != nil {
		h.writeServiceError(c, err)
		return
	}

	review, err := h.svc.GetReview(c.Request.Context(), threadID)
	if errors.Is(err, domain.ErrReviewNotFound) {
		// the transition completed the review and it was closed
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReviewResponse(review))
}

// PostSlackInteractions handles the Accept and Decline buttons of a review
// request. Slack expects an answer within three seconds, so the request is
// acknowledged first and the transition runs afterwards.
func (h *Handlers) PostSlackInteractions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, "cannot read request body"))
		return
	}

	if h.signingSecret != "" {
		if err := verifySignature(c.Request.Header, body, h.signingSecret); err != nil {
			h.log.Warn("handlers.PostSlackInteractions: rejected unsigned request", slog.Any("error", err))
			c.JSON(http.StatusUnauthorized, errorResponse(ErrorCodeBadRequest, "invalid request signature"))
			return
		}
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, "malformed form body"))
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &callback); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, "malformed interaction payload"))
		return
	}

	c.Status(http.StatusOK)

	if callback.Type != slack.InteractionTypeBlockActions {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	userID := callback.User.ID
	for _, action := range callback.ActionCallback.BlockActions {
		var apply func(ctx context.Context, threadID, userID string) error
		switch action.ActionID {
		case notifier.ActionAccept:
			apply = h.svc.AcceptRequest
		case notifier.ActionDecline:
			apply = h.svc.DeclineRequest
		default:
			continue
		}

		threadID := action.Value
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			h.handleAction(ctx, action.ActionID, threadID, userID, apply)
		}()
	}
}

func (h *Handlers) handleAction(ctx context.Context, actionID, threadID, userID string, apply func(ctx context.Context, threadID, userID string) error) {
	err := apply(ctx, threadID, userID)
	if err == nil {
		return
	}

	h.log.Error("handlers.handleAction: review action failed",
		slog.String("action", actionID), slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))

	if _, err := h.messenger.SendDirect(ctx, userID, domain.Message{Text: service.FailureText(err)}); err != nil {
		h.log.Error("handlers.handleAction: failed to tell user about the failure",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

func verifySignature(header http.Header, body []byte, secret string) error {
	verifier, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write(body); err != nil {
		return err
	}
	return verifier.Ensure()
}

func (h *Handlers) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, errorResponse(ErrorCodeNotFound, "review not found"))
	case errors.Is(err, domain.ErrReviewExists):
		c.JSON(http.StatusConflict, errorResponse(ErrorCodeExists, "review already exists"))
	case errors.Is(err, domain.ErrInvalidReview):
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, err.Error()))
	case errors.Is(err, domain.ErrNotPending):
		c.JSON(http.StatusConflict, errorResponse(ErrorCodeNotPending, "user is not a pending reviewer"))
	default:
		h.log.Error("handlers: request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorCodeInternal, "internal error"))
	}
}

func bindThreadID(c *gin.Context) (string, bool) {
	var threadID string
	err := runtime.BindStyledParameterWithLocation("simple", false, "threadId", runtime.ParamLocationPath, c.Param("threadId"), &threadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(ErrorCodeBadRequest, err.Error()))
		return "", false
	}
	return threadID, true
}

// вспомогательные функции:

type PendingReviewerRequest struct {
	UserID           string    `json:"userId" binding:"required"`
	ExpiresAt        time.Time `json:"expiresAt" binding:"required"`
	MessageTimestamp string    `json:"messageTimestamp"`
}

type CreateReviewRequest struct {
	ThreadID             string                   `json:"threadId" binding:"required"`
	RequestorID          string                   `json:"requestorId" binding:"required"`
	Languages            []string                 `json:"languages" binding:"required"`
	RequestedAt          time.Time                `json:"requestedAt"`
	DueBy                domain.Deadline          `json:"dueBy"`
	ReviewersNeededCount int                      `json:"reviewersNeededCount" binding:"required"`
	PendingReviewers     []PendingReviewerRequest `json:"pendingReviewers"`
}

func (r CreateReviewRequest) toDomain() *domain.Review {
	review := &domain.Review{
		ThreadID:             r.ThreadID,
		RequestorID:          r.RequestorID,
		Languages:            r.Languages,
		RequestedAt:          r.RequestedAt,
		DueBy:                r.DueBy,
		ReviewersNeededCount: r.ReviewersNeededCount,
	}
	if review.RequestedAt.IsZero() {
		review.RequestedAt = time.Now()
	}
	if review.DueBy == "" {
		review.DueBy = domain.DeadlineNone
	}
	for _, p := range r.PendingReviewers {
		review.PendingReviewers = append(review.PendingReviewers, domain.PendingReviewer{
			UserID:           p.UserID,
			ExpiresAt:        p.ExpiresAt,
			MessageTimestamp: p.MessageTimestamp,
		})
	}
	return review
}

type PendingReviewerResponse struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ReviewResponse struct {
	ThreadID             string                    `json:"threadId"`
	RequestorID          string                    `json:"requestorId"`
	Languages            []string                  `json:"languages"`
	RequestedAt          time.Time                 `json:"requestedAt"`
	DueBy                domain.Deadline           `json:"dueBy"`
	ReviewersNeededCount int                       `json:"reviewersNeededCount"`
	PendingReviewers     []PendingReviewerResponse `json:"pendingReviewers"`
	AcceptedReviewers    []string                  `json:"acceptedReviewers"`
	DeclinedReviewers    []string                  `json:"declinedReviewers"`
}

func toReviewResponse(r *domain.Review) ReviewResponse {
	pending := make([]PendingReviewerResponse, 0, len(r.PendingReviewers))
	for _, p := range r.PendingReviewers {
		pending = append(pending, PendingReviewerResponse{UserID: p.UserID, ExpiresAt: p.ExpiresAt})
	}

	return ReviewResponse{
		ThreadID:             r.ThreadID,
		RequestorID:          r.RequestorID,
		Languages:            nonNil(r.Languages),
		RequestedAt:          r.RequestedAt,
		DueBy:                r.DueBy,
		ReviewersNeededCount: r.ReviewersNeededCount,
		PendingReviewers:     pending,
		AcceptedReviewers:    nonNil(r.AcceptedReviewers),
		DeclinedReviewers:    nonNil(r.DeclinedReviewers),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func errorResponse(code ErrorCode, message string) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	return resp
}
