package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func performHealthCheck(t *testing.T, h *HealthHandler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()

	router := gin.New()
	router.GET("/health", h.Check)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	var body healthBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return w, body
}

func TestHealthCheck_Healthy(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"database": func(context.Context) error { return nil },
		"nats":     func(context.Context) error { return nil },
	}, time.Second)

	w, body := performHealthCheck(t, h)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if body.Checks["database"] != "ok" || body.Checks["nats"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, time.Second)

	w, body := performHealthCheck(t, h)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if body.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", body.Status)
	}
	if body.Checks["redis"] != "connection refused" {
		t.Errorf("redis check = %q", body.Checks["redis"])
	}
	if body.Checks["database"] != "ok" {
		t.Errorf("database check = %q", body.Checks["database"])
	}
}

func TestHealthCheck_Timeout(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"slow": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, 20*time.Millisecond)

	w, _ := performHealthCheck(t, h)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthCheck_NoChecks(t *testing.T) {
	w, body := performHealthCheck(t, NewHealthHandler(nil, 0))

	if w.Code != http.StatusOK || body.Status != "healthy" {
		t.Errorf("status = %d/%q, want 200/healthy", w.Code, body.Status)
	}
}
