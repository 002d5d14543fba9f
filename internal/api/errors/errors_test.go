package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, CodeConflict, "slug занят")

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, ожидается 409", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if body.Error.Code != CodeConflict || body.Error.Message != "slug занят" {
		t.Errorf("body = %+v", body)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string)
		status int
		code   string
	}{
		{"validation", ValidationError, http.StatusBadRequest, CodeValidationError},
		{"not found", NotFound, http.StatusNotFound, CodeNotFound},
		{"unauthorized", Unauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", Forbidden, http.StatusForbidden, CodeForbidden},
		{"conflict", Conflict, http.StatusConflict, CodeConflict},
		{"too large", PayloadTooLarge, http.StatusRequestEntityTooLarge, CodePayloadTooLarge},
		{"internal", InternalError, http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, "msg")

			if rec.Code != tt.status {
				t.Errorf("status = %d, ожидается %d", rec.Code, tt.status)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("некорректный JSON: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, ожидается %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestWrite_UnknownCode(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, "TEAPOT", "msg")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, ожидается 500", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if body.Error.Code != CodeInternalError {
		t.Errorf("code = %q, ожидается %q", body.Error.Code, CodeInternalError)
	}
}

func TestWrite_UnauthorizedChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, CodeUnauthorized, "нет токена")
	if got := rec.Header().Get("WWW-Authenticate"); got != authChallenge {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	rec = httptest.NewRecorder()
	Forbidden(rec, "чужой гайд")
	if got := rec.Header().Get("WWW-Authenticate"); got != "" {
		t.Errorf("403 не должен содержать WWW-Authenticate, получили %q", got)
	}
}
