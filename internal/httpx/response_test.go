package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation:         http.StatusBadRequest,
		apperr.KindNotFound:           http.StatusNotFound,
		apperr.KindInsufficientStock:  http.StatusConflict,
		apperr.KindInsufficientPoints: http.StatusConflict,
		apperr.KindInvalidTransition:  http.StatusConflict,
		apperr.KindConflict:           http.StatusConflict,
		apperr.KindLimitReached:       http.StatusUnprocessableEntity,
		apperr.KindExpired:            http.StatusUnprocessableEntity,
		apperr.KindInactive:           http.StatusUnprocessableEntity,
		apperr.KindBelowMinimum:       http.StatusUnprocessableEntity,
		apperr.KindLocationIneligible: http.StatusUnprocessableEntity,
		apperr.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), kind)
	}
}

func TestFailHidesInternalCause(t *testing.T) {
	rs := responder{log: zaptest.NewLogger(t)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/x", nil)

	rs.fail(rec, req, apperr.Internal(errors.New("dial tcp 10.0.0.5:5432: refused"), "load order"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal error"}`, rec.Body.String())
}
