package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/builders-garden/swifty/internal/interfaces/http/handlers"
)

func testRouteDeps(auth gin.HandlerFunc) routeDeps {
	return routeDeps{
		paymentLinkHandler:    &handlers.PaymentLinkHandler{},
		attemptHandler:        &handlers.AttemptHandler{},
		settlementHandler:     &handlers.SettlementHandler{},
		authMiddleware:        auth,
		idempotencyMiddleware: func(c *gin.Context) { c.Next() },
	}
}

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerAPIV1Routes(r, testRouteDeps(func(c *gin.Context) { c.Next() }))

	expects := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/tokens"},
		{"GET", "/api/v1/pay/:slug"},
		{"POST", "/api/v1/pay/:slug/attempts"},
		{"DELETE", "/api/v1/attempts/:id"},
		{"POST", "/api/v1/attempts/:id/settle"},
		{"GET", "/api/v1/transactions"},
		{"GET", "/api/v1/subscriptions"},
		{"POST", "/api/public/transactions"},
		{"POST", "/api/public/subscriptions"},
	}

	routes := r.Routes()
	if len(routes) != len(expects) {
		t.Fatalf("expected %d routes, got %d", len(expects), len(routes))
	}

	seen := make(map[string]bool, len(routes))
	for _, rt := range routes {
		seen[rt.Method+" "+rt.Path] = true
	}
	for _, e := range expects {
		if !seen[e.method+" "+e.path] {
			t.Fatalf("expected route %s %s to be registered", e.method, e.path)
		}
	}
}

func TestRegisterAPIV1Routes_ProtectedRoutesRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	deps := testRouteDeps(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	})
	idempotencyHit := false
	deps.idempotencyMiddleware = func(c *gin.Context) {
		idempotencyHit = true
		c.Next()
	}
	registerAPIV1Routes(r, deps)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/transactions"},
		{http.MethodGet, "/api/v1/subscriptions"},
		{http.MethodPost, "/api/v1/pay/coffee/attempts"},
		{http.MethodDelete, "/api/v1/attempts/0192f5e4-7c2a-7000-8000-000000000001"},
		{http.MethodPost, "/api/v1/attempts/0192f5e4-7c2a-7000-8000-000000000001/settle"},
	}
	for _, p := range protected {
		req := httptest.NewRequest(p.method, p.path, strings.NewReader(`{"selectionKey":"k"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
	if idempotencyHit {
		t.Fatal("idempotency keys must not be reserved for unauthenticated requests")
	}
}
