package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spriteops/key-server/internal/api/http/dto"
	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/metrics"
	"github.com/spriteops/key-server/internal/ratelimit"
)

const testSecret = "test-admin-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, rateMax int) (*gin.Engine, *Services) {
	t.Helper()
	dir := t.TempDir()
	store, err := batch.NewStore(filepath.Join(dir, "data.json"), filepath.Join(dir, "credentials"))
	require.NoError(t, err)

	srvs := &Services{
		Store:       store,
		Limiter:     ratelimit.NewLimiter(rateMax, 60*time.Second),
		Metrics:     metrics.NewCollector(),
		AdminSecret: testSecret,
		BaseURL:     "http://keys.example.com",
		LinkTTL:     time.Hour,
	}

	engine := gin.New()
	SetupRoute(engine, srvs)
	return engine, srvs
}

func doJSON(r *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	req.RemoteAddr = "203.0.113.7:40000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createBatchViaAPI(t *testing.T, r *gin.Engine) dto.CreateBatchResponse {
	t.Helper()
	w := doJSON(r, "POST", "/admin/request", "Bearer "+testSecret, dto.CreateBatchRequest{
		Providers: []dto.ProviderSpec{{
			Provider:     "openrouter",
			ProviderName: "OpenRouter",
			EnvVars:      []string{"OPENROUTER_API_KEY"},
			HelpURL:      "https://openrouter.ai/keys",
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.CreateBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// linkPath strips the base URL off the returned link.
func linkPath(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Path + "?" + u.RawQuery
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, 100)

	w := doJSON(r, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(t, 100)

	w := doJSON(r, "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}

func TestAdminRequestRequiresBearer(t *testing.T) {
	r, _ := newTestServer(t, 100)
	body := dto.CreateBatchRequest{Providers: []dto.ProviderSpec{{
		Provider: "aws", EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
	}}}

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, "POST", "/admin/request", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, "POST", "/admin/request", "Bearer wrong", body).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, "POST", "/admin/request", "Basic "+testSecret, body).Code)
	assert.Equal(t, http.StatusCreated, doJSON(r, "POST", "/admin/request", "Bearer "+testSecret, body).Code)
}

func TestAdminRequestWithoutSecretConfigured(t *testing.T) {
	_, srvs := newTestServer(t, 100)
	srvs.AdminSecret = ""

	engine := gin.New()
	SetupRoute(engine, srvs)
	w := doJSON(engine, "POST", "/admin/request", "Bearer x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminRequestRejectsBadProvider(t *testing.T) {
	r, _ := newTestServer(t, 100)

	w := doJSON(r, "POST", "/admin/request", "Bearer "+testSecret, dto.CreateBatchRequest{
		Providers: []dto.ProviderSpec{{Provider: "../etc", EnvVars: []string{"X"}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRequestReturnsSignedLink(t *testing.T) {
	r, _ := newTestServer(t, 100)

	resp := createBatchViaAPI(t, r)
	assert.Len(t, resp.Signature, 64)
	assert.Greater(t, resp.Exp, time.Now().UnixMilli())
	assert.Contains(t, resp.URL, "http://keys.example.com/key/"+resp.BatchID)
	assert.False(t, resp.Emailed)
}

func TestEndToEndCollection(t *testing.T) {
	r, srvs := newTestServer(t, 100)
	resp := createBatchViaAPI(t, r)
	path := linkPath(t, resp.URL)

	// The emailed link renders the form.
	w := doJSON(r, "GET", path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "OpenRouter")

	// Submitting a clean value fulfills the provider and writes the file.
	form := url.Values{"openrouter__OPENROUTER_API_KEY": {"sk-or-v1-abc123"}}
	req, _ := http.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.7:40000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "All set")

	got, err := srvs.Store.ResolveID(resp.BatchID)
	require.NoError(t, err)
	assert.True(t, got.AllFulfilled())
}

func TestPublicRoutesRateLimited(t *testing.T) {
	r, _ := newTestServer(t, 5)

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = doJSON(r, "GET", "/key/550e8400-e29b-41d4-a716-446655440000", "", nil)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	retry, err := strconv.Atoi(last.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.LessOrEqual(t, retry, 60)
}

func TestRateLimitDoesNotAffectAdmin(t *testing.T) {
	r, _ := newTestServer(t, 1)

	doJSON(r, "GET", "/key/550e8400-e29b-41d4-a716-446655440000", "", nil)
	doJSON(r, "GET", "/key/550e8400-e29b-41d4-a716-446655440000", "", nil)

	resp := createBatchViaAPI(t, r)
	assert.NotEmpty(t, resp.BatchID)
}

func TestSecurityHeadersOnKeyRoutes(t *testing.T) {
	r, _ := newTestServer(t, 100)

	w := doJSON(r, "GET", "/key/550e8400-e29b-41d4-a716-446655440000", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'",
		w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
}
