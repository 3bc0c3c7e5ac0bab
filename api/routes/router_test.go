package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santinopnp/PNPtvLive-bot/api/middleware"
	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/internal/dispatcher"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/performers"
	"github.com/santinopnp/PNPtvLive-bot/internal/processors"
	"github.com/santinopnp/PNPtvLive-bot/internal/replay"
	"github.com/santinopnp/PNPtvLive-bot/internal/settlement"
	"github.com/santinopnp/PNPtvLive-bot/internal/tips"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/metrics"
)

const testBoldSecret = "router-test-secret"

type routerFixture struct {
	server    *httptest.Server
	directory *performers.Directory
	repo      ledger.Repository
}

func newRouterFixture(t *testing.T, admission config.AdmissionConfig) *routerFixture {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		Bold: config.BoldConfig{
			Enabled:         true,
			SecretKey:       testBoldSecret,
			PercentFee:      0.0349,
			FixedFee:        900,
			Currencies:      "COP,USD",
			CheckoutBaseURL: "https://checkout.bold.co/payment",
		},
		Admission: admission,
	}

	repo := ledger.NewMemoryRepository()
	directory := performers.NewDirectory()
	registry := processors.NewRegistry(processors.NewBold(cfg.Bold))
	guard := replay.NewMemoryStore(20 * time.Minute)

	engine, err := settlement.NewEngine(settlement.EngineParams{
		Repo:     repo,
		Consumer: directory,
		Sink:     alerting.NopSink{},
	})
	require.NoError(t, err)

	d, err := dispatcher.New(dispatcher.Params{
		Registry: registry,
		Guard:    guard,
		Engine:   engine,
		Sink:     alerting.NopSink{},
		Metrics:  metrics.NewWebhookMetrics(nil),
	})
	require.NoError(t, err)

	svc, err := tips.NewService(tips.ServiceParams{
		Repo:      repo,
		Directory: directory,
		Registry:  registry,
	})
	require.NoError(t, err)

	registryProm := prometheus.NewRegistry()
	router := NewRouter(RouterParams{
		Config:     cfg,
		Dispatcher: d,
		Guard:      guard,
		Repo:       repo,
		Tips:       svc,
		Performers: directory,
		Counters:   middleware.NewMemoryCounter(),
		Sink:       alerting.NopSink{},
		Gatherer:   registryProm,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &routerFixture{server: server, directory: directory, repo: repo}
}

func (f *routerFixture) seedPerformer(t *testing.T) *performers.Performer {
	t.Helper()
	performer, err := f.directory.Create(context.Background(), performers.CreateInput{
		Name:        "Luna",
		Email:       "luna@example.com",
		Credentials: map[string]string{"bold": "merchant-42"},
		Settings:    performers.Settings{MinTipAmount: 1000, Currency: "COP"},
	})
	require.NoError(t, err)
	return performer
}

func (f *routerFixture) postJSON(t *testing.T, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (f *routerFixture) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (f *routerFixture) deliverBold(t *testing.T, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(testBoldSecret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/webhooks/bold", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bold-Signature", sig)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}

func TestRouterTipLifecycle(t *testing.T) {
	fixture := newRouterFixture(t, config.AdmissionConfig{})
	performer := fixture.seedPerformer(t)

	resp, body := fixture.postJSON(t, "/api/v1/tips", map[string]any{
		"amount":       5000,
		"user_email":   "fan@example.com",
		"performer_id": performer.ID,
		"message":      "great show",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]any)
	tipID := data["id"].(string)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "bold", data["processor"])
	assert.Equal(t, "COP", data["currency"])
	assert.NotEmpty(t, data["payment_url"])

	fees := data["fees"].(map[string]any)
	assert.Equal(t, float64(5000), fees["gross"])
	assert.Equal(t, float64(1075), fees["fee"])
	assert.Equal(t, float64(3925), fees["net"])

	resp, body = fixture.deliverBold(t, map[string]any{
		"reference":      tipID,
		"status":         "APPROVED",
		"amount":         5000,
		"currency":       "COP",
		"transaction_id": "txn-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	summary := body["data"].(map[string]any)
	assert.Equal(t, "settled", summary["outcome"])
	assert.Equal(t, tipID, summary["tip_id"])

	resp, body = fixture.getJSON(t, "/api/v1/tips/"+tipID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "txn-1", data["transaction_id"])

	// Same delivery again: the ledger must not move twice.
	resp, body = fixture.deliverBold(t, map[string]any{
		"reference":      tipID,
		"status":         "APPROVED",
		"amount":         5000,
		"currency":       "COP",
		"transaction_id": "txn-1",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(pkgerrors.CodeReplay), errBody["code"])

	updated, err := fixture.directory.Get(context.Background(), performer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Stats.TipCount)
	assert.Equal(t, int64(3925), updated.Stats.TotalAmount)
}

func TestRouterRejectsForgedSignature(t *testing.T) {
	fixture := newRouterFixture(t, config.AdmissionConfig{})
	performer := fixture.seedPerformer(t)

	resp, body := fixture.postJSON(t, "/api/v1/tips", map[string]any{
		"amount":       5000,
		"user_email":   "fan@example.com",
		"performer_id": performer.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tipID := body["data"].(map[string]any)["id"].(string)

	payload, err := json.Marshal(map[string]any{
		"reference": tipID,
		"status":    "APPROVED",
		"amount":    5000,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, fixture.server.URL+"/webhooks/bold", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("X-Bold-Signature", hex.EncodeToString(bytes.Repeat([]byte{0xab}, 32)))

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body = decodeBody(t, resp)

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(pkgerrors.CodeSignature), errBody["code"])
	assert.NotContains(t, errBody, "details")

	getResp, getBody := fixture.getJSON(t, "/api/v1/tips/"+tipID)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, "pending", getBody["data"].(map[string]any)["status"])
}

func TestRouterUnknownProcessor(t *testing.T) {
	fixture := newRouterFixture(t, config.AdmissionConfig{})

	resp, body := fixture.postJSON(t, "/webhooks/stripe", map[string]any{"id": "evt_1"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(pkgerrors.CodeUnsupported), body["error"].(map[string]any)["code"])
}

func TestRouterAdmissionLimit(t *testing.T) {
	fixture := newRouterFixture(t, config.AdmissionConfig{
		Window:       time.Minute,
		Limit:        2,
		TrustedLimit: 10,
	})

	var lastStatus int
	for i := 0; i < 3; i++ {
		resp, _ := fixture.postJSON(t, "/webhooks/bold", map[string]any{"n": i})
		lastStatus = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, lastStatus)

	// Tip reads stay outside the webhook admission scope.
	resp, _ := fixture.getJSON(t, "/api/v1/tips")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	fixture := newRouterFixture(t, config.AdmissionConfig{})

	resp, body := fixture.getJSON(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "live", data["status"])
	procs := data["processors"].(map[string]any)
	assert.Equal(t, true, procs["bold"])
	assert.Equal(t, false, procs["paypal"])

	metricsResp, err := http.Get(fixture.server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestRouterPerformerEndpoints(t *testing.T) {
	fixture := newRouterFixture(t, config.AdmissionConfig{})

	resp, body := fixture.postJSON(t, "/api/v1/performers", map[string]any{
		"name":        "Nova",
		"email":       "nova@example.com",
		"credentials": map[string]string{"bold": "merchant-7"},
		"currency":    "COP",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, true, created["active"])

	resp, body = fixture.postJSON(t, fmt.Sprintf("/api/v1/performers/%s/active", id), map[string]any{"active": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["data"].(map[string]any)["active"])

	resp, body = fixture.getJSON(t, "/api/v1/performers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["data"].([]any)
	assert.Len(t, list, 1)
}
