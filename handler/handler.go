package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"message-relay/internal/integrations/channel"
	"message-relay/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type eventResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handler receives channel events through API Gateway and runs each one
// through the pipeline before responding. Pipeline failures are reported in
// the body with a 200 so the gateway does not redeliver the event.
type Handler struct {
	pipeline usecase.Handler
	log      *slog.Logger
	now      func() time.Time
}

func NewHandler(pipeline usecase.Handler, logger *slog.Logger) (*Handler, error) {
	if pipeline == nil {
		return nil, errors.New("handler: pipeline must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, log: logger, now: time.Now}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	log := h.log.With("correlation_id", corrID)

	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "method_not_allowed"}), nil
	}

	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return respond(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_base64"}), nil
		}
		body = string(decoded)
	}

	msg, err := channel.DecodeEvent([]byte(body), h.now())
	if err != nil {
		log.Warn("rejected inbound event", "err", err)
		return respond(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: err.Error()}), nil
	}

	res := h.pipeline.Handle(ctx, msg)
	log.Info("inbound event handled", "whatsapp_id", msg.ChannelMessageID, "status", string(res.Status))
	return respond(http.StatusOK, corrID, eventResponse{Status: string(res.Status), MessageID: res.MessageID}), nil
}

func respond(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
