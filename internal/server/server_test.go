package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lightsats/internal/domain"
	"lightsats/internal/infra"
	"lightsats/internal/infra/storage"
	"lightsats/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func testConfig() *infra.Config {
	cfg := &infra.Config{}
	cfg.Server.Addr = ":0"
	cfg.Server.JWTSecret = "test-secret"
	cfg.Server.CORSEnabled = true
	cfg.Tips.MinTipSats = 10
	cfg.Tips.MaxTipSats = 100000
	cfg.Tips.FeePercent = decimal.NewFromInt(1)
	cfg.Tips.MinFeeSats = 10
	cfg.Tips.DefaultCurrency = "USD"
	cfg.Tips.DefaultLocale = "en"
	cfg.Tips.SupportedLocales = []string{"en", "es"}
	return cfg
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}

	rates := service.NewRateService()
	rates.Replace(infra.RateTable{"USD": decimal.RequireFromString("0.0005")})

	tips := service.NewTipService(store, rates, testConfig())
	srv := New(testConfig(), store, tips, rates, nil)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func login(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email": %q, "name": "Test User"}`, email)
	resp, err := http.Post(ts.URL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out.Token
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func createTip(t *testing.T, ts *httptest.Server, token string, amount int64) *domain.Tip {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/tipper/tips", token, service.CreateTipRequest{
		AmountSats:   amount,
		Currency:     "USD",
		Note:         "for you",
		TippeeLocale: "en",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create tip status %d", resp.StatusCode)
	}

	var tip domain.Tip
	if err := json.NewDecoder(resp.Body).Decode(&tip); err != nil {
		t.Fatalf("decode tip: %v", err)
	}
	return &tip
}

func TestLogin(t *testing.T) {
	ts := setupServer(t)

	token := login(t, ts, "alice@example.com")
	if token == "" {
		t.Fatal("empty token")
	}

	t.Run("token grants access", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/me", token, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("missing token rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/me", "", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/me", "not-a-jwt", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})
}

func TestCreateTipEndpoint(t *testing.T) {
	ts := setupServer(t)
	token := login(t, ts, "alice@example.com")

	t.Run("valid tip created", func(t *testing.T) {
		tip := createTip(t, ts, token, 1000)
		if tip.ID == "" {
			t.Error("tip has no ID")
		}
		if tip.FeeSats != 10 {
			t.Errorf("expected fee 10, got %d", tip.FeeSats)
		}
	})

	t.Run("amount below minimum rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/tipper/tips", token, service.CreateTipRequest{
			AmountSats: 9, Currency: "USD", ExpiresAt: time.Now().Add(time.Hour),
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("amount above maximum references limit", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/tipper/tips", token, service.CreateTipRequest{
			AmountSats: 100001, Currency: "USD", ExpiresAt: time.Now().Add(time.Hour),
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		var out struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		if !strings.Contains(out.Error, "100000") {
			t.Errorf("error should reference the maximum: %q", out.Error)
		}
	})
}

func TestPublicTipEndpoint(t *testing.T) {
	ts := setupServer(t)
	token := login(t, ts, "alice@example.com")
	tip := createTip(t, ts, token, 1000)

	t.Run("projection is public", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/tippee/tips/" + tip.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var public domain.PublicTip
		json.NewDecoder(resp.Body).Decode(&public)
		if public.HasClaimed {
			t.Error("fresh tip should not be claimed")
		}
		if public.Tipper.Name != "Test User" {
			t.Errorf("tipper profile missing: %+v", public.Tipper)
		}
	})

	t.Run("missing tip is 404", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/tippee/tips/missing")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestClaimEndpoint(t *testing.T) {
	ts := setupServer(t)
	aliceToken := login(t, ts, "alice@example.com")
	bobToken := login(t, ts, "bob@example.com")
	carolToken := login(t, ts, "carol@example.com")
	tip := createTip(t, ts, aliceToken, 1000)

	t.Run("creator cannot claim", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/tippee/tips/"+tip.ID+"/claim", aliceToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("recipient claims", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/tippee/tips/"+tip.ID+"/claim", bobToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var public domain.PublicTip
		json.NewDecoder(resp.Body).Decode(&public)
		if !public.HasClaimed {
			t.Error("claim response should reflect claimed state")
		}
	})

	t.Run("second claim conflicts", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/tippee/tips/"+tip.ID+"/claim", carolToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})
}

func TestWithdrawEndpoint(t *testing.T) {
	ts := setupServer(t)
	aliceToken := login(t, ts, "alice@example.com")
	bobToken := login(t, ts, "bob@example.com")
	tip := createTip(t, ts, aliceToken, 1000)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/tippee/tips/"+tip.ID+"/claim", bobToken, nil)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/tippee/tips/"+tip.ID+"/withdraw", bobToken,
		map[string]string{"invoice": "lnbc10u1p..."})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var w domain.Withdrawal
	json.NewDecoder(resp.Body).Decode(&w)
	if w.Status != domain.WithdrawalStatusPending {
		t.Errorf("expected PENDING, got %s", w.Status)
	}
}

func TestRatesEndpoint(t *testing.T) {
	ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/exchange/rates")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var table map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if _, ok := table["USD"]; !ok {
		t.Error("USD missing from rate table")
	}
}

func TestCurrenciesEndpoint(t *testing.T) {
	ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/exchange/currencies")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var codes []string
	if err := json.NewDecoder(resp.Body).Decode(&codes); err != nil {
		t.Fatalf("decode currencies: %v", err)
	}
	if len(codes) != 1 || codes[0] != "USD" {
		t.Errorf("expected [USD], got %v", codes)
	}
}

func TestAvatarEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	downloader, err := infra.NewAvatarDownloaderAt(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create downloader: %v", err)
	}
	cached := downloader.GetAvatarPath("user-1")
	if err := os.WriteFile(cached, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("seed cached avatar: %v", err)
	}

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	rates := service.NewRateService()
	tips := service.NewTipService(store, rates, testConfig())
	srv := New(testConfig(), store, tips, rates, downloader)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	t.Run("cached avatar served", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/users/user-1/avatar")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "png-bytes" {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("uncached avatar is 404", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/users/user-2/avatar")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestLogin_AvatarURL(t *testing.T) {
	ts := setupServer(t)

	me := func(token string) *domain.User {
		t.Helper()
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/me", token, nil)
		defer resp.Body.Close()
		var user domain.User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			t.Fatalf("decode user: %v", err)
		}
		return &user
	}

	loginWith := func(avatarURL string) string {
		t.Helper()
		body := fmt.Sprintf(`{"email": "dana@example.com", "name": "Dana", "avatar_url": %q}`, avatarURL)
		resp, err := http.Post(ts.URL+"/auth/login", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login status %d", resp.StatusCode)
		}
		var out struct {
			Token string `json:"token"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		return out.Token
	}

	token := loginWith("https://cdn.example.com/dana.png")
	if got := me(token).AvatarURL; got != "https://cdn.example.com/dana.png" {
		t.Errorf("avatar url not stored on signup: %q", got)
	}

	token = loginWith("https://cdn.example.com/dana-new.png")
	if got := me(token).AvatarURL; got != "https://cdn.example.com/dana-new.png" {
		t.Errorf("avatar url not updated on sign-in: %q", got)
	}
}

func TestRatesEndpoint_NotLoaded(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	rates := service.NewRateService()
	tips := service.NewTipService(store, rates, testConfig())
	srv := New(testConfig(), store, tips, rates, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/exchange/rates")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}
