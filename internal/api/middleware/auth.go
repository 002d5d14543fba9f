// auth.go — JWT middleware аутентификации Blockhood.
// Токены выпускает внешний сервис аутентификации; подпись проверяется
// по его JWKS. Из claims строится service.Actor: sub, email,
// user_metadata.full_name и роль модератора из app_metadata.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/blockhood/internal/api/errors"
	"github.com/bigkaa/blockhood/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyActor — аутентифицированный пользователь в контексте запроса.
const ContextKeyActor contextKey = "actor"

// AuthConfig — параметры проверки токенов.
type AuthConfig struct {
	// JWKSURL — URL JWKS endpoint сервиса аутентификации.
	JWKSURL string
	// CACertPath — опциональный CA-сертификат для TLS к JWKS.
	CACertPath string
	// Issuer — ожидаемый iss (пусто — не проверяется).
	Issuer string
	// Audience — ожидаемый aud (пусто — не проверяется).
	Audience string
	// ModeratorRoles — значения app_metadata.role с правами модератора.
	ModeratorRoles []string
	// ClientTimeout — таймаут HTTP-клиента JWKS.
	ClientTimeout time.Duration
	// RefreshInterval — интервал обновления ключей.
	RefreshInterval time.Duration
	// Leeway — допустимое отклонение часов.
	Leeway time.Duration
}

// tokenClaims — raw claims токена сервиса аутентификации.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	AppMetadata  appMetadata  `json:"app_metadata"`
}

// userMetadata — данные, заполняемые пользователем при регистрации.
type userMetadata struct {
	FullName string `json:"full_name"`
	Name     string `json:"name"`
}

// appMetadata — данные, управляемые только сервером аутентификации.
type appMetadata struct {
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks           keyfunc.Keyfunc
	issuer         string
	audience       string
	leeway         time.Duration
	moderatorRoles []string
	logger         *slog.Logger
}

// NewJWTAuth создаёт JWT middleware с JWKS, обновляемым в фоне.
func NewJWTAuth(cfg AuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: cfg.ClientTimeout}
	if cfg.CACertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(cfg.CACertPath, cfg.ClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", cfg.CACertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", cfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем, даже если сервис аутентификации ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, cfg, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWTAuth с готовым keyfunc (для тестов).
// JWKSURL, CACertPath, ClientTimeout и RefreshInterval не используются.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, cfg AuthConfig, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:           kf,
		issuer:         cfg.Issuer,
		audience:       cfg.Audience,
		leeway:         cfg.Leeway,
		moderatorRoles: cfg.ModeratorRoles,
		logger:         logger.With(slog.String("component", "jwt_auth")),
	}
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в файле нет PEM-сертификатов")
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// Middleware возвращает HTTP middleware, требующий валидный Bearer token.
// Извлекает claims, строит service.Actor и помещает его в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			actor, err := j.authenticate(r.Context(), tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate проверяет подпись и claims токена и строит Actor.
func (j *JWTAuth) authenticate(ctx context.Context, tokenString string) (service.Actor, error) {
	raw := &tokenClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(j.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return service.Actor{}, err
	}
	if !token.Valid {
		return service.Actor{}, fmt.Errorf("невалидный токен")
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return service.Actor{}, fmt.Errorf("отсутствует sub в токене")
	}

	return j.buildActor(raw), nil
}

// buildActor формирует Actor из claims.
func (j *JWTAuth) buildActor(raw *tokenClaims) service.Actor {
	fullName := raw.UserMetadata.FullName
	if fullName == "" {
		fullName = raw.UserMetadata.Name
	}

	roles := raw.AppMetadata.Roles
	if raw.AppMetadata.Role != "" {
		roles = append([]string{raw.AppMetadata.Role}, roles...)
	}

	return service.Actor{
		UserID:    raw.Subject,
		Email:     raw.Email,
		FullName:  strings.TrimSpace(fullName),
		Moderator: hasAnyRole(roles, j.moderatorRoles),
	}
}

// hasAnyRole проверяет пересечение ролей пользователя с ролями модератора.
func hasAnyRole(roles, allowed []string) bool {
	for _, r := range roles {
		if slices.Contains(allowed, r) {
			return true
		}
	}
	return false
}

// --- Context helpers ---

// ActorFromContext извлекает Actor из контекста запроса.
// ok = false, если запрос не прошёл через Middleware.
func ActorFromContext(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(service.Actor)
	return actor, ok
}

// --- ReadinessChecker для JWKS ---

// JWKSReadinessChecker — проверка доступности JWKS сервиса аутентификации.
// Недоступность JWKS не мешает публичному чтению, поэтому статус — degraded.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*JWKSReadinessChecker, error) {
	client := &http.Client{Timeout: timeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, timeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusDegraded = "degraded"

// CheckReady проверяет, что JWKS отвечает и содержит ключи.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusDegraded, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return statusDegraded, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusDegraded, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return statusDegraded, fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return statusDegraded, "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
