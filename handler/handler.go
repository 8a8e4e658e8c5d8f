package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"jobboard-messaging/internal/auth"
	"jobboard-messaging/internal/domain"
	"jobboard-messaging/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Messaging is the stateless API the handler exposes. *usecase.Service
// implements it.
type Messaging interface {
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	StartConversation(ctx context.Context, userID, otherUserID string, job domain.JobRef) (string, error)
	ListMessages(ctx context.Context, userID, conversationID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, in usecase.SendInput) (domain.Message, error)
	MarkAsRead(ctx context.Context, userID, conversationID string) error
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	SetPinned(ctx context.Context, userID, conversationID string, pinned bool) error
	SetArchived(ctx context.Context, userID, conversationID string, archived bool) error
}

type Handler struct {
	svc      Messaging
	verifier auth.Verifier
	validate *validator.Validate
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(svc Messaging, verifier auth.Verifier, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: messaging service must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("handler: verifier must not be nil")
	}
	h := &Handler{
		svc:      svc,
		verifier: verifier,
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type startRequest struct {
	OtherUserID string `json:"otherUserId" validate:"required,max=128"`
	JobID       string `json:"jobId" validate:"max=128"`
	JobTitle    string `json:"jobTitle" validate:"max=256"`
}

type sendRequest struct {
	Content  string             `json:"content"`
	Type     domain.MessageType `json:"type" validate:"omitempty,oneof=text image file"`
	MediaURL string             `json:"mediaUrl" validate:"omitempty,url"`
	ReplyTo  *domain.ReplyTo    `json:"replyTo"`
}

type flagsRequest struct {
	IsPinned   *bool `json:"isPinned" validate:"required_without=IsArchived"`
	IsArchived *bool `json:"isArchived"`
}

type conversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	TotalUnread   int                   `json:"totalUnread"`
}

type startResponse struct {
	ConversationID string `json:"conversationId"`
}

type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type messageResponse struct {
	Message domain.Message `json:"message"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// route is a parsed request path: /conversations[/{id}[/{sub}]].
type route struct {
	conversationID string
	sub            string
}

func parseRoute(path string) (route, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] != "conversations" || len(parts) > 3 {
		return route{}, false
	}
	var r route
	if len(parts) > 1 {
		r.conversationID = parts[1]
		if r.conversationID == "" {
			return route{}, false
		}
	}
	if len(parts) > 2 {
		r.sub = parts[2]
		if r.sub != "messages" && r.sub != "read" {
			return route{}, false
		}
	}
	return r, true
}

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	status, body := h.serve(ctx, logger, req)
	resp := events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			logger.Error("encode response failed", "err", err)
			return h.failure(resp, http.StatusInternalServerError, usecase.ErrorInternal, "encode_error"), nil
		}
		resp.Body = string(raw)
	}
	logger.Info("request served", "status", status)
	return resp, nil
}

func (h *Handler) serve(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) (int, any) {
	token, err := auth.BearerToken(headerValue(req.Headers, "Authorization"))
	if err != nil {
		return errorStatus(&usecase.Error{Code: usecase.ErrorNotAuthenticated, Reason: "missing_token"})
	}
	userID, err := h.verifier.Verify(ctx, token)
	if err != nil {
		logger.Info("token rejected", "err", err)
		return errorStatus(&usecase.Error{Code: usecase.ErrorNotAuthenticated, Reason: "invalid_token"})
	}
	logger = logger.With("user_id", userID)

	r, ok := parseRoute(req.Path)
	if !ok {
		return errorStatus(&usecase.Error{Code: usecase.ErrorNotFound, Reason: "route_not_found"})
	}

	status, body, err := h.dispatch(ctx, req, r, userID)
	if err != nil {
		if usecase.CodeOf(err) == usecase.ErrorInternal {
			logger.Error("request failed", "err", err)
		} else {
			logger.Info("request rejected", "err", err)
		}
		return errorStatus(err)
	}
	return status, body
}

func (h *Handler) dispatch(ctx context.Context, req events.APIGatewayProxyRequest, r route, userID string) (int, any, error) {
	method := req.HTTPMethod
	switch {
	case r.conversationID == "" && method == http.MethodGet:
		convs, err := h.svc.ListConversations(ctx, userID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, conversationsResponse{Conversations: convs, TotalUnread: domain.TotalUnread(convs, userID)}, nil

	case r.conversationID == "" && method == http.MethodPost:
		var in startRequest
		if err := h.decode(req, &in); err != nil {
			return 0, nil, err
		}
		id, err := h.svc.StartConversation(ctx, userID, in.OtherUserID, domain.JobRef{ID: in.JobID, Title: in.JobTitle})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, startResponse{ConversationID: id}, nil

	case r.conversationID != "" && r.sub == "" && method == http.MethodPatch:
		var in flagsRequest
		if err := h.decode(req, &in); err != nil {
			return 0, nil, err
		}
		if in.IsPinned != nil {
			if err := h.svc.SetPinned(ctx, userID, r.conversationID, *in.IsPinned); err != nil {
				return 0, nil, err
			}
		}
		if in.IsArchived != nil {
			if err := h.svc.SetArchived(ctx, userID, r.conversationID, *in.IsArchived); err != nil {
				return 0, nil, err
			}
		}
		return http.StatusNoContent, nil, nil

	case r.conversationID != "" && r.sub == "" && method == http.MethodDelete:
		if err := h.svc.DeleteConversation(ctx, userID, r.conversationID); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil

	case r.sub == "messages" && method == http.MethodGet:
		msgs, err := h.svc.ListMessages(ctx, userID, r.conversationID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, messagesResponse{Messages: msgs}, nil

	case r.sub == "messages" && method == http.MethodPost:
		var in sendRequest
		if err := h.decode(req, &in); err != nil {
			return 0, nil, err
		}
		msg, err := h.svc.SendMessage(ctx, usecase.SendInput{
			ConversationID: r.conversationID,
			SenderID:       userID,
			Content:        in.Content,
			Type:           in.Type,
			MediaURL:       in.MediaURL,
			ReplyTo:        in.ReplyTo,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, messageResponse{Message: msg}, nil

	case r.sub == "read" && method == http.MethodPost:
		if err := h.svc.MarkAsRead(ctx, userID, r.conversationID); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	}
	return http.StatusMethodNotAllowed, errorResponse{
		Error:   string(usecase.ErrorInvalidInput),
		Reason:  "method_not_allowed",
		Message: "Method not allowed.",
	}, nil
}

func (h *Handler) decode(req events.APIGatewayProxyRequest, dst any) error {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
		}
		body = decoded
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_fields", Err: err}
	}
	return nil
}

func (h *Handler) failure(resp events.APIGatewayProxyResponse, status int, code usecase.ErrorCode, reason string) events.APIGatewayProxyResponse {
	raw, _ := json.Marshal(errorResponse{Error: string(code), Reason: reason, Message: (&usecase.Error{Code: code}).Message()})
	resp.StatusCode = status
	resp.Body = string(raw)
	return resp
}

func errorStatus(err error) (int, any) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		ue = &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected_error"}
	}
	return statusFor(ue.Code), errorResponse{
		Error:     string(ue.Code),
		Reason:    ue.Reason,
		Message:   ue.Message(),
		Retryable: ue.Retryable(),
	}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorNoConversationSelected:
		return http.StatusBadRequest
	case usecase.ErrorNotAuthenticated:
		return http.StatusUnauthorized
	case usecase.ErrorForbidden:
		return http.StatusForbidden
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
