package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
)

type ServerResponse struct {
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	StatusCode int         `json:"-"`
}

func success(message string, data interface{}) *ServerResponse {
	return &ServerResponse{
		Message:    message,
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       data,
	}
}

func created(message string, data interface{}) *ServerResponse {
	return &ServerResponse{
		Message:    message,
		Status:     values.Created,
		StatusCode: util.StatusCode(values.Created),
		Data:       data,
	}
}

// respondWithError logs err against the request and builds the failure
// envelope for status.
func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	level := slog.LevelWarn
	if util.StatusCode(status) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{"status", status, "error", err}
	if tc != nil {
		attrs = append(attrs, "request_id", tc.RequestID, "source", tc.RequestSource)
	}
	slog.Log(context.Background(), level, message, attrs...)

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

// fromError answers a failed service call. Domain errors carry their own
// message; anything else is reported with fallback.
func fromError(err error, fallback string, tc *tracing.Context) *ServerResponse {
	status := statusOf(apperr.KindOf(err))
	message := fallback
	if status != values.Error {
		message = apperr.MessageOf(err)
	}
	return respondWithError(err, message, status, tc)
}

func statusOf(kind apperr.Kind) string {
	switch kind {
	case apperr.InvalidInput, apperr.InvalidCoordinate:
		return values.BadRequestBody
	case apperr.NotAuthorized:
		return values.NotAllowed
	case apperr.NotAMember, apperr.NotAParticipant:
		return values.NotAMember
	case apperr.NotFound:
		return values.NotFound
	case apperr.EventFull, apperr.AlreadyExists, apperr.Conflict:
		return values.Conflict
	case apperr.InvalidCredential:
		return values.NotAuthorised
	case apperr.ExpiredCredential:
		return values.TokenExpired
	default:
		return values.Error
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	resp := respondWithError(err, message, status, nil)
	body, _ := json.Marshal(resp)
	writeJSONResponse(w, body, resp.StatusCode)
}

func writeJSONResponse(w http.ResponseWriter, body []byte, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
