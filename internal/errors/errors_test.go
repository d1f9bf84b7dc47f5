package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
)

func TestKindMapping(t *testing.T) {
	argErr := &optimization.ErrInvalidArgument{Name: "x0", Message: "must not be empty"}

	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
		code   int
	}{
		{"not found", New(NotFound, "run not found"), NotFound, http.StatusNotFound, CodeServerError},
		{"conflict", New(Conflict, "run finished"), Conflict, http.StatusConflict, CodeServerError},
		{"invalid", Newf(InvalidArgument, "bad %s", "x0"), InvalidArgument, http.StatusBadRequest, CodeInvalidParams},
		{"engine argument", optimization.WrapError(argErr, "invalid arguments"), InvalidArgument, http.StatusBadRequest, CodeInvalidParams},
		{"wrapped kind", fmt.Errorf("outer: %w", New(NotFound, "gone")), NotFound, http.StatusNotFound, CodeServerError},
		{"plain", stderrors.New("boom"), Internal, http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, RPCCode(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, Internal, "nothing"))

	cause := stderrors.New("disk full")
	err := Wrap(cause, Internal, "write trajectory").WithOperation("Server.trajectory")
	assert.Equal(t, "Server.trajectory: write trajectory: disk full", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "internal", KindOf(err).String())
}

func TestFormatIncludesStack(t *testing.T) {
	err := New(InvalidArgument, "bad input")
	assert.Equal(t, "bad input", fmt.Sprintf("%v", err))
	assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("strategy exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.Contains(t, buf.String(), "strategy exploded")
	assert.Contains(t, buf.String(), "/api/v1/status/x")
}

func TestRecoveryMiddlewarePassThrough(t *testing.T) {
	logger := logging.New(logging.InfoLevel, &bytes.Buffer{})
	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
