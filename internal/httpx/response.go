package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
	Count   *int          `json:"count,omitempty"`
	Details []fieldDetail `json:"details,omitempty"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any, message string) {
	writeJSON(w, code, envelope{Success: true, Data: data, Message: message})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	n := len(items)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items, Count: &n})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInsufficientPoints,
		apperr.KindInvalidTransition, apperr.KindConflict:
		return http.StatusConflict
	}
	if apperr.IsPromotionRule(kind) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type responder struct {
	log *zap.Logger
}

// fail writes err as an error envelope. Internal causes are logged, never returned.
func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		rs.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, code, envelope{Success: false, Error: apperr.PublicMessage(err)})
}
