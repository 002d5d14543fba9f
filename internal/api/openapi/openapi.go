// Package openapi содержит контракт Blockhood API (OpenAPI 3.0).
// Документ встроен в бинарник, валидируется при старте и отдаётся
// клиентам в JSON по /api/v1/openapi.json.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var documentYAML []byte

// Load разбирает встроенный документ и проверяет его корректность.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(documentYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор openapi.yaml: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("валидация openapi.yaml: %w", err)
	}
	return doc, nil
}

// HasOperation сообщает, описан ли метод для шаблона пути в документе.
// Шаблон пути — в нотации chi ("/api/v1/guides/{ref}", "/uploads/*").
func HasOperation(doc *openapi3.T, method, pattern string) bool {
	item := doc.Paths.Value(toOpenAPIPath(pattern))
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}

// toOpenAPIPath переводит wildcard chi в параметр пути OpenAPI.
func toOpenAPIPath(pattern string) string {
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		return pattern[:n-1] + "{path}"
	}
	return pattern
}

// Handler отдаёт документ в JSON. Сериализация выполняется один раз.
func Handler(doc *openapi3.T) (http.Handler, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("сериализация openapi: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}), nil
}
