package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusConflict, "req-1", "SCHED_OVERLAP", "time window overlap"))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "SCHED_OVERLAP", env.Code)
	require.Equal(t, "req-1", env.Meta["request_id"])
}

func TestWriteError_NoRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusBadRequest, "", "SCHED_INVALID_BODY", "bad"))
	require.NotContains(t, rec.Body.String(), "meta")
}
