package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"options-core/internal/bot"
	"options-core/pkg/broker"
	"options-core/pkg/broker/sim"
	"options-core/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BrokerMode:            "sim",
		AccountType:           "PRACTICE",
		APITimeoutSec:         2,
		ProfileMode:           "BALANCED",
		MinPositionSize:       1,
		MaxSimultaneousTrades: 1,
		MaxDailyConsecutive:   2,
		MinSignalGapMinutes:   60,
		AbsoluteStopPercent:   0.75,
		MonthlyStopPercent:    0.40,
		DataDir:               t.TempDir(),
		SnapshotEvery:         30,
		ListingsEvery:         100,
	}
}

func simFactory(ctx context.Context, cfg *config.Config, accountType string) (broker.Client, error) {
	client := sim.New(1, 10000, nil)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func newTestServer(t *testing.T, jwtSecret string) (*Server, *bot.Manager) {
	t.Helper()
	bots := bot.NewManager(testConfig(t), nil, simFactory)
	t.Cleanup(bots.StopAll)
	return NewServer(bots, nil, jwtSecret), bots
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", w.Code)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	s, _ := newTestServer(t, "test-secret")

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bots/u1/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, expected 401 without token", w.Code)
	}

	token, err := GenerateToken("u1", "test-secret", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/bots/u1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200 with token", w.Code)
	}
}

func TestAuthDisabledWithEmptySecret(t *testing.T) {
	s, _ := newTestServer(t, "")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bots/u1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200 with auth disabled", w.Code)
	}
}

func TestBotLifecycle(t *testing.T) {
	s, _ := newTestServer(t, "")

	body := strings.NewReader(`{"instruments": ["BTCUSD"], "aggressiveness": "AGGRESSIVE"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/bots/u1/start", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d body=%s, expected 200", w.Code, w.Body.String())
	}

	// A second start on the same id must conflict.
	body = strings.NewReader(`{}`)
	req = httptest.NewRequest(http.MethodPost, "/api/bots/u1/start", body)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("second start status=%d, expected 409", w.Code)
	}

	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bots/u1/status", nil))
	var info bot.Info
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !info.Running {
		t.Fatal("status reports not running after start")
	}

	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bots/u1/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stop status=%d, expected 200", w.Code)
	}

	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bots/u1/stop", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("second stop status=%d, expected 404", w.Code)
	}
}

func TestStopUnknownBot(t *testing.T) {
	s, _ := newTestServer(t, "")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bots/ghost/stop", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, expected 404", w.Code)
	}
}

func TestResetRequiresStoppedBot(t *testing.T) {
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/bots/u2/start", strings.NewReader(`{"instruments":["ETHUSD"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d, expected 200", w.Code)
	}

	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bots/u2/reset", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("reset status=%d, expected 409 while running", w.Code)
	}

	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bots/u2/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stop status=%d, expected 200", w.Code)
	}

	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bots/u2/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reset status=%d, expected 200 once stopped", w.Code)
	}
}
