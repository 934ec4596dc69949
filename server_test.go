package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/sirupsen/logrus"
)

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example ")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitAndTrim = %v, want %v", got, want)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("blank input should give nil")
	}
}

func TestCorsConfigProductionWithoutOrigins(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := corsConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("production cors config should validate: %v", err)
	}
	if cfg.AllowOriginFunc("https://evil.example") {
		t.Fatalf("no origin should be allowed without an allowlist")
	}
	_ = cors.New(cfg)
}

func TestPubSubHandlerAcksMalformedMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/pubsub", occurrencePubSubHandler())

	data, _ := json.Marshal(config.PubSubMessage{EventType: "OCCURRENCE_PAID"})
	envelope, _ := json.Marshal(map[string]any{"message": map[string]any{"data": data, "id": "m-1"}})

	cases := map[string]string{
		"not json":        "{",
		"data not json":   `{"message":{"data":"bm90IGpzb24=","id":"m-2"}}`,
		"missing tenancy": string(envelope),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/pubsub", strings.NewReader(body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusNoContent {
				t.Fatalf("expected 204 ack, got %d", w.Code)
			}
		})
	}
}

func TestReadinessGate(t *testing.T) {
	if config.GetDB() != nil {
		t.Skip("database already connected")
	}
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := newRouter(logger, newEngine(logger))

	for path, want := range map[string]int{
		"/healthz":                          http.StatusNoContent,
		"/api/subscriptions?business_id=b1": http.StatusServiceUnavailable,
		"/metrics":                          http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, w.Code)
		}
	}
}
