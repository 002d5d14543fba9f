package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key"

const testUserID = "5f0c3e7f-0d4c-4439-a574-a1b1f0c3e7f6"

var testAuthConfig = AuthConfig{
	Issuer:         "https://auth.blockhood.test/auth/v1",
	Audience:       "authenticated",
	ModeratorRoles: []string{"moderator", "admin"},
	Leeway:         5 * time.Second,
}

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// generateTestToken подписывает claims ключом key.
func generateTestToken(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// newTestJWTAuth создаёт JWTAuth с RSA ключом для тестов.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc из JWKS JSON: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, testAuthConfig, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// validClaims — claims токена, который должен пройти проверку.
func validClaims() map[string]any {
	now := time.Now()
	return map[string]any{
		"sub":   testUserID,
		"iss":   testAuthConfig.Issuer,
		"aud":   "authenticated",
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
		"email": "ada@blockhood.test",
		"user_metadata": map[string]any{
			"full_name": "Ada Lovelace",
		},
		"app_metadata": map[string]any{
			"provider": "email",
		},
	}
}

// serve прогоняет запрос с токеном через middleware.
func serve(t *testing.T, auth *JWTAuth, header string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	handler := auth.Middleware()(next)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func mustNotCall(t *testing.T) http.HandlerFunc {
	return func(http.ResponseWriter, *http.Request) {
		t.Error("handler не должен быть вызван")
	}
}

// TestJWTAuth_ValidToken проверяет валидный JWT и построение Actor.
func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	token := generateTestToken(t, key, jwt.MapClaims(validClaims()))

	called := false
	rec := serve(t, auth, "Bearer "+token, func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatal("Actor отсутствует в контексте")
		}
		if actor.UserID != testUserID {
			t.Errorf("UserID = %q", actor.UserID)
		}
		if actor.Email != "ada@blockhood.test" {
			t.Errorf("Email = %q", actor.Email)
		}
		if actor.FullName != "Ada Lovelace" {
			t.Errorf("FullName = %q", actor.FullName)
		}
		if actor.Moderator {
			t.Error("обычный пользователь не должен быть модератором")
		}
		w.WriteHeader(http.StatusOK)
	})

	if rec.Code != http.StatusOK || !called {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_ModeratorRole проверяет маппинг app_metadata.role.
func TestJWTAuth_ModeratorRole(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	tests := []struct {
		name string
		meta map[string]any
		want bool
	}{
		{"role moderator", map[string]any{"role": "moderator"}, true},
		{"roles содержит admin", map[string]any{"roles": []string{"editor", "admin"}}, true},
		{"чужая роль", map[string]any{"role": "editor"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			claims["app_metadata"] = tt.meta
			token := generateTestToken(t, key, jwt.MapClaims(claims))

			rec := serve(t, auth, "Bearer "+token, func(w http.ResponseWriter, r *http.Request) {
				actor, _ := ActorFromContext(r.Context())
				if actor.Moderator != tt.want {
					t.Errorf("Moderator = %v, ожидается %v", actor.Moderator, tt.want)
				}
			})
			if rec.Code != http.StatusOK {
				t.Errorf("ожидался статус 200, получен %d", rec.Code)
			}
		})
	}
}

// TestJWTAuth_NameFallback проверяет user_metadata.name при пустом full_name.
func TestJWTAuth_NameFallback(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	claims := validClaims()
	claims["user_metadata"] = map[string]any{"name": "Ada"}
	token := generateTestToken(t, key, jwt.MapClaims(claims))

	serve(t, auth, "Bearer "+token, func(_ http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		if actor.FullName != "Ada" {
			t.Errorf("FullName = %q, ожидается Ada", actor.FullName)
		}
	})
}

// TestJWTAuth_RejectedTokens проверяет отклонение невалидных токенов.
func TestJWTAuth_RejectedTokens(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	mutate := func(f func(c map[string]any)) string {
		c := validClaims()
		f(c)
		return generateTestToken(t, key, jwt.MapClaims(c))
	}

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"без префикса Bearer", "token123"},
		{"пустой токен", "Bearer "},
		{"мусор вместо JWT", "Bearer not.a.jwt"},
		{"просрочен", "Bearer " + mutate(func(c map[string]any) { c["exp"] = time.Now().Add(-time.Hour).Unix() })},
		{"без exp", "Bearer " + mutate(func(c map[string]any) { delete(c, "exp") })},
		{"чужой issuer", "Bearer " + mutate(func(c map[string]any) { c["iss"] = "https://evil.test" })},
		{"чужая audience", "Bearer " + mutate(func(c map[string]any) { c["aud"] = "anon" })},
		{"без sub", "Bearer " + mutate(func(c map[string]any) { delete(c, "sub") })},
		{"подпись другим ключом", "Bearer " + generateTestToken(t, otherKey, jwt.MapClaims(validClaims()))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, auth, tt.header, mustNotCall(t))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("ожидался заголовок WWW-Authenticate")
			}
		})
	}
}

// TestJWTAuth_HS256Rejected проверяет, что симметричные алгоритмы не принимаются.
func TestJWTAuth_HS256Rejected(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(validClaims()))
	token.Header["kid"] = testKeyID
	s, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(t, auth, "Bearer "+s, mustNotCall(t))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestActorFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := ActorFromContext(req.Context()); ok {
		t.Error("ожидалось отсутствие Actor")
	}
}

func TestJWKSReadinessChecker(t *testing.T) {
	key := generateTestKey(t)
	jwks := buildJWKSetJSON(&key.PublicKey, testKeyID)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jwks":
			_, _ = w.Write(jwks)
		case "/empty":
			_, _ = w.Write([]byte(`{"keys":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		path   string
		status string
	}{
		{"/jwks", "ok"},
		{"/empty", statusDegraded},
		{"/missing", statusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			checker, err := NewJWKSReadinessChecker(srv.URL+tt.path, "", time.Second)
			if err != nil {
				t.Fatal(err)
			}
			status, msg := checker.CheckReady()
			if status != tt.status {
				t.Errorf("status = %q (%s), ожидается %q", status, msg, tt.status)
			}
		})
	}
}
