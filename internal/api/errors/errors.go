// Пакет errors — ответы Blockhood API с ошибками.
// Тело: {"error": {"code": "...", "message": "..."}}; HTTP-статус
// однозначно следует из кода (statusByCode), поэтому пишется через Write.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок (enum Error.code в openapi.yaml).
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// statusByCode — HTTP-статус для каждого кода.
var statusByCode = map[string]int{
	CodeValidationError: http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeUnauthorized:    http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeConflict:        http.StatusConflict, // дубль slug, повторная запись, нет мест
	CodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	CodeInternalError:   http.StatusInternalServerError,
}

// authChallenge — заголовок WWW-Authenticate для 401.
const authChallenge = `Bearer realm="blockhood"`

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status возвращает HTTP-статус кода; неизвестный код — 500.
func Status(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Write записывает ответ с ошибкой code. Неизвестный код
// отдаётся клиенту как INTERNAL_ERROR.
func Write(w http.ResponseWriter, code, message string) {
	if _, ok := statusByCode[code]; !ok {
		code = CodeInternalError
	}
	if code == CodeUnauthorized {
		w.Header().Set("WWW-Authenticate", authChallenge)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(code))
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// Сокращения для обработчиков.

func ValidationError(w http.ResponseWriter, message string) { Write(w, CodeValidationError, message) }
func NotFound(w http.ResponseWriter, message string)        { Write(w, CodeNotFound, message) }
func Unauthorized(w http.ResponseWriter, message string)    { Write(w, CodeUnauthorized, message) }
func Forbidden(w http.ResponseWriter, message string)       { Write(w, CodeForbidden, message) }
func Conflict(w http.ResponseWriter, message string)        { Write(w, CodeConflict, message) }
func PayloadTooLarge(w http.ResponseWriter, message string) { Write(w, CodePayloadTooLarge, message) }
func InternalError(w http.ResponseWriter, message string)   { Write(w, CodeInternalError, message) }
