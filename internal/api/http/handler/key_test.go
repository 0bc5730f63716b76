package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/token"
)

const testSecret = "test-admin-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newKeyRouter(t *testing.T) (*gin.Engine, *batch.Store, string) {
	t.Helper()
	dir := t.TempDir()
	credDir := filepath.Join(dir, "credentials")
	store, err := batch.NewStore(filepath.Join(dir, "data.json"), credDir)
	require.NoError(t, err)

	h := NewKeyHandler(store, nil, testSecret)
	r := gin.New()
	r.GET("/key/:id", h.ShowForm)
	r.POST("/key/:id", h.Submit)
	return r, store, credDir
}

func signedLink(id string, exp int64) string {
	return fmt.Sprintf("/key/%s?exp=%d&sig=%s", id, exp, token.Sign(id, exp, testSecret))
}

func createBatch(t *testing.T, store *batch.Store, name string) *batch.KeyBatch {
	t.Helper()
	b, err := store.Create([]batch.ProviderRequest{{
		Provider:     "openrouter",
		ProviderName: name,
		EnvVars:      []batch.EnvVar{{Name: "OPENROUTER_API_KEY"}},
	}}, time.Hour)
	require.NoError(t, err)
	return b
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestShowFormRendersProviderName(t *testing.T) {
	r, store, _ := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")

	w := get(r, signedLink(b.BatchID, b.ExpiresAt))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "OpenRouter")
	assert.Contains(t, w.Body.String(), `name="openrouter__OPENROUTER_API_KEY"`)
}

func TestShowFormEscapesProviderName(t *testing.T) {
	r, store, _ := newKeyRouter(t)
	b := createBatch(t, store, `<b>Evil & Co"`)

	w := get(r, signedLink(b.BatchID, b.ExpiresAt))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<b>Evil")
	assert.Contains(t, w.Body.String(), "&lt;b&gt;Evil &amp; Co&quot;")
}

func TestShowFormUnknownAndMalformedIDsAreIndistinguishable(t *testing.T) {
	r, _, _ := newKeyRouter(t)

	unknown := get(r, signedLink("550e8400-e29b-41d4-a716-446655440000", time.Now().Add(time.Hour).UnixMilli()))
	malformed := get(r, "/key/NOT_A_VALID_ID")

	assert.Equal(t, http.StatusNotFound, unknown.Code)
	assert.Equal(t, http.StatusNotFound, malformed.Code)
	assert.Equal(t, unknown.Body.String(), malformed.Body.String())
}

func TestShowFormExpiredLink(t *testing.T) {
	r, store, _ := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")

	// Correctly signed but already expired; the batch itself has not been
	// swept yet, the link alone is dead.
	w := get(r, signedLink(b.BatchID, time.Now().UnixMilli()-1000))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestShowFormBadSignatureMatchesExpiredResponse(t *testing.T) {
	r, store, _ := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")

	exp := time.Now().Add(time.Hour).UnixMilli()
	forged := fmt.Sprintf("/key/%s?exp=%d&sig=%s", b.BatchID, exp, strings.Repeat("ab", 32))
	badSig := get(r, forged)
	expired := get(r, signedLink(b.BatchID, time.Now().UnixMilli()-1000))

	assert.Equal(t, http.StatusUnauthorized, badSig.Code)
	assert.Equal(t, badSig.Body.String(), expired.Body.String())
}

func TestSubmitCleanValueFulfills(t *testing.T) {
	r, store, credDir := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")
	link := signedLink(b.BatchID, b.ExpiresAt)

	w := postForm(r, link, url.Values{
		"openrouter__OPENROUTER_API_KEY": {"sk-or-v1-abc123"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "All set")

	values, err := batch.LoadCredentials(credDir, "openrouter")
	require.NoError(t, err)
	assert.Equal(t, "sk-or-v1-abc123", values["OPENROUTER_API_KEY"])
	assert.Equal(t, "sk-or-v1-abc123", values["api_key"])
	assert.Equal(t, "sk-or-v1-abc123", values["token"])
}

func TestSubmitInjectionRejected(t *testing.T) {
	r, store, credDir := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")
	link := signedLink(b.BatchID, b.ExpiresAt)

	w := postForm(r, link, url.Values{
		"openrouter__OPENROUTER_API_KEY": {"token;rm -rf /"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported characters")

	got, err := store.ResolveID(b.BatchID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusPending, got.Providers[0].Status)

	_, err = os.Stat(filepath.Join(credDir, "openrouter.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSubmitExpiredLinkRejected(t *testing.T) {
	r, store, credDir := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")

	w := postForm(r, signedLink(b.BatchID, time.Now().UnixMilli()-1000), url.Values{
		"openrouter__OPENROUTER_API_KEY": {"sk-or-v1-abc123"},
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	_, err := os.Stat(filepath.Join(credDir, "openrouter.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFormActionCarriesLinkParams(t *testing.T) {
	r, store, _ := newKeyRouter(t)
	b := createBatch(t, store, "OpenRouter")

	w := get(r, signedLink(b.BatchID, b.ExpiresAt))

	// The POST must pass the same signature check as the GET.
	assert.Contains(t, w.Body.String(), fmt.Sprintf("exp=%d", b.ExpiresAt))
	assert.Contains(t, w.Body.String(), "sig=")
}
