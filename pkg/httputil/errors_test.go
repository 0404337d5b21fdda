package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/observability"
)

func TestWriteErrorOperationalError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/usuarios/99", nil)

	WriteError(rec, req, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound))

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if resp.Success {
		t.Error("success = true, want false")
	}
	if resp.Error.Code != apierr.CodeUserNotFound {
		t.Errorf("code = %q, want %q", resp.Error.Code, apierr.CodeUserNotFound)
	}
}

func TestWriteErrorSanitizesUnexpectedError(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.ErrorLevel, &buf)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/productos", nil)
	req = req.WithContext(observability.WithLogger(req.Context(), logger))

	WriteError(rec, req, errors.New("pq: connection refused"))

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if resp.Error.Message != "internal server error" {
		t.Errorf("message = %q, internals leaked to the client", resp.Error.Message)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("cause leaked in envelope: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("cause missing from log output: %s", buf.String())
	}
}

func TestWriteErrorLogsWrappedInternalCause(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.ErrorLevel, &buf)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/usuarios", nil)
	req = req.WithContext(observability.WithLogger(req.Context(), logger))

	cause := errors.New("insert usuarios: deadlock detected")
	WriteError(rec, req, apierr.Internal(cause))

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "deadlock detected") {
		t.Errorf("wrapped cause missing from log output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "/api/usuarios") {
		t.Errorf("request path missing from log output: %s", buf.String())
	}
	if strings.Contains(rec.Body.String(), "deadlock") {
		t.Errorf("cause leaked in envelope: %s", rec.Body.String())
	}
}

func TestInternalErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	apiErr := apierr.Internal(cause)

	if !errors.Is(apiErr, cause) {
		t.Error("Internal should keep the original cause reachable via errors.Is")
	}
}

func TestWriteErrorSkipsLoggingClientErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req = req.WithContext(observability.WithLogger(req.Context(), logger))

	WriteError(rec, req, apierr.Unauthorized("Credenciales inválidas", apierr.CodeInvalidCredentials))

	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("4xx responses should not log a cause, got: %s", buf.String())
	}
}
