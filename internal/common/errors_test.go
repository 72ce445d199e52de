package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func TestWriteErrorAppError(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("wrap: %w", NewAppError("UNKNOWN_ITEM", "unknown item", http.StatusUnprocessableEntity, base).WithDetails(map[string]any{"item": "Tea"}))

	rr := httptest.NewRecorder()
	WriteError(rr, err)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "UNKNOWN_ITEM", body.Error.Code)
	require.Equal(t, "unknown item", body.Error.Message)
	require.Equal(t, map[string]any{"item": "Tea"}, body.Error.Details)
	require.True(t, errors.Is(err, base))
	require.True(t, IsAppError(err))
}

func TestWriteErrorPlainError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("secret detail"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "secret detail")
}

func TestWriteErrorDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, &AppError{})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL", body.Error.Code)
}

func TestClientIPIgnoresForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "10.0.0.1", ClientIP(req))

	req.RemoteAddr = "198.51.100.4"
	require.Equal(t, "198.51.100.4", ClientIP(req))
}
