package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/researcher/config"
)

func protected(secret []byte, scopes ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("", EchoAuthMiddleware(secret), RequireScopes(scopes...))
	g.GET("/whoami", func(c echo.Context) error {
		sub, _ := SubjectFromContext(c.Request().Context())
		return c.String(http.StatusOK, sub)
	})
	return e
}

func call(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("s3cret")
	e := protected(secret, ScopeRunsWrite)

	good, err := SignJWT("ops", secret, time.Minute, ScopeRunsWrite)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if rec := call(e, good); rec.Code != http.StatusOK || rec.Body.String() != "ops" {
		t.Fatalf("expected 200 ops, got %d %q", rec.Code, rec.Body.String())
	}

	noScope, _ := SignJWT("ops", secret, time.Minute)
	if rec := call(e, noScope); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without scope, got %d", rec.Code)
	}

	expired, _ := SignJWT("ops", secret, -time.Minute, ScopeRunsWrite)
	if rec := call(e, expired); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}

	forged, _ := SignJWT("ops", []byte("other"), time.Minute, ScopeRunsWrite)
	if rec := call(e, forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", rec.Code)
	}

	if rec := call(e, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "scopes": []string{ScopeRunsWrite}})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if rec := call(protected([]byte("k"), ScopeRunsWrite), signed); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for alg=none, got %d", rec.Code)
	}
}

func TestScopesAcceptStringOrList(t *testing.T) {
	var c Claims
	if err := json.Unmarshal([]byte(`{"sub":"x","scopes":"runs:write  runs:read"}`), &c); err != nil {
		t.Fatalf("unmarshal string scopes: %v", err)
	}
	if len(c.Scopes) != 2 || c.Scopes[1] != "runs:read" {
		t.Fatalf("unexpected scopes %v", c.Scopes)
	}
	c = Claims{}
	if err := json.Unmarshal([]byte(`{"sub":"x","scopes":["a"," ", " b "]}`), &c); err != nil {
		t.Fatalf("unmarshal list scopes: %v", err)
	}
	if len(c.Scopes) != 2 || c.Scopes[1] != "b" || !c.HasScope("a") {
		t.Fatalf("unexpected scopes %v", c.Scopes)
	}
	if err := json.Unmarshal([]byte(`{"scopes":3}`), &c); err == nil {
		t.Fatalf("expected error for numeric scopes")
	}
}

func TestParseJWTRequiresExpiry(t *testing.T) {
	secret := []byte("k")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(signed, secret); err == nil {
		t.Fatalf("expected error for token without exp")
	}
	good, _ := SignJWT("ops", secret, time.Minute, ScopeRunsWrite)
	claims, err := ParseJWT(good, secret)
	if err != nil || claims.Subject != "ops" || !claims.HasScope(ScopeRunsWrite) {
		t.Fatalf("ParseJWT = %+v, %v", claims, err)
	}
}

func TestLoadJWTSecret(t *testing.T) {
	if _, err := LoadJWTSecret(&config.Config{}); err == nil {
		t.Fatalf("expected error without secret")
	}
	cfg := &config.Config{Server: config.ServerConfig{JWTSecret: " abc "}}
	secret, err := LoadJWTSecret(cfg)
	if err != nil || string(secret) != "abc" {
		t.Fatalf("LoadJWTSecret = %q, %v", secret, err)
	}
}

func TestSetupTelemetryDisabled(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{}, TelemetryOptions{})
	if err != nil {
		t.Fatalf("SetupTelemetry: %v", err)
	}
	if tel.MetricsHandler() == nil {
		t.Fatalf("expected a metrics handler")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
