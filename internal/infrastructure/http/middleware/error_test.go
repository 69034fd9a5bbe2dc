package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oocana-go/oocana/internal/pkg/errors"
)

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_DomainErrorMapsCodeToStatus(t *testing.T) {
	e := echo.New()
	handler := ErrorHandler()

	cases := []struct {
		err        error
		wantStatus int
	}{
		{apperrors.NotFound("node", "n1"), http.StatusNotFound},
		{apperrors.AlreadyExists("session", "s1"), http.StatusConflict},
		{apperrors.InvalidInput("field", "bad"), http.StatusBadRequest},
		{apperrors.ComposeError("bad manifest", nil), http.StatusBadRequest},
		{apperrors.InvalidState("running", "cancel"), http.StatusConflict},
		{apperrors.TimeoutError("n1", 30), http.StatusGatewayTimeout},
		{apperrors.CancellationError("aborted"), http.StatusConflict},
		{apperrors.Internal("boom", nil), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler(tc.err, c)
		assert.Equal(t, tc.wantStatus, rec.Code)
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	e := echo.New()
	handler := ErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(echo.NewHTTPError(http.StatusBadRequest, "bad request"), c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeErrorResponse(t, rec)
	assert.Equal(t, "bad request", body.Message)
}

func TestErrorHandler_GenericErrorDefaultsTo500(t *testing.T) {
	e := echo.New()
	handler := ErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(assert.AnError, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeErrorResponse(t, rec)
	assert.Equal(t, "internal_error", body.Error)
}

func TestErrorHandler_AlreadyCommittedResponseIsNoOp(t *testing.T) {
	e := echo.New()
	handler := ErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, c.String(http.StatusOK, "already written"))

	handler(assert.AnError, c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
