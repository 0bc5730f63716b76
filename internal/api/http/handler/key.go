package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/metrics"
	"github.com/spriteops/key-server/internal/token"
)

// KeyHandler serves the public credential-collection pages. The only
// authentication is the capability link itself: batch resolution failures and
// signature failures each get one uniform response, so a caller cannot
// distinguish never-issued, expired, and already-swept links.
type KeyHandler struct {
	store   *batch.Store
	metrics *metrics.Collector
	secret  string
}

func NewKeyHandler(store *batch.Store, m *metrics.Collector, secret string) *KeyHandler {
	return &KeyHandler{
		store:   store,
		metrics: m,
		secret:  secret,
	}
}

// ShowForm renders the collection form for GET /key/:id.
func (h *KeyHandler) ShowForm(ctx *gin.Context) {
	id := ctx.Param("id")

	b, err := h.store.ResolveID(id)
	if err != nil {
		renderHTML(ctx, http.StatusNotFound, notFoundPage())
		return
	}

	if !token.Verify(id, ctx.Query("sig"), ctx.Query("exp"), h.secret) {
		slog.Warn("Rejected collection link", "client_ip", ctx.ClientIP())
		renderHTML(ctx, http.StatusUnauthorized, linkRejectedPage())
		return
	}

	ref := linkRef{ID: id, Exp: ctx.Query("exp"), Sig: ctx.Query("sig")}
	renderHTML(ctx, http.StatusOK, formPage(b, ref, nil))
}

// Submit processes POST /key/:id. Invalid values re-render the form with
// inline errors and persist nothing for the offending provider.
func (h *KeyHandler) Submit(ctx *gin.Context) {
	id := ctx.Param("id")

	b, err := h.store.ResolveID(id)
	if err != nil {
		renderHTML(ctx, http.StatusNotFound, notFoundPage())
		return
	}

	if !token.Verify(id, ctx.Query("sig"), ctx.Query("exp"), h.secret) {
		slog.Warn("Rejected collection submission", "client_ip", ctx.ClientIP())
		renderHTML(ctx, http.StatusUnauthorized, linkRejectedPage())
		return
	}

	ref := linkRef{ID: id, Exp: ctx.Query("exp"), Sig: ctx.Query("sig")}
	if err := ctx.Request.ParseForm(); err != nil {
		renderHTML(ctx, http.StatusBadRequest, formPage(b, ref, nil))
		return
	}

	res, err := h.store.Submit(id, ctx.Request.PostForm)
	if err != nil {
		renderHTML(ctx, http.StatusNotFound, notFoundPage())
		return
	}

	if h.metrics != nil {
		h.metrics.ProvidersFulfilledTotal.Add(float64(len(res.Fulfilled)))
		if len(res.Invalid) > 0 {
			h.metrics.SubmissionsRejectedTotal.Inc()
		}
		h.metrics.BatchesActive.Set(float64(h.store.Count()))
	}

	switch {
	case len(res.Invalid) > 0:
		renderHTML(ctx, http.StatusBadRequest, formPage(res.Batch, ref, res.Invalid))
	case res.Batch.AllFulfilled():
		renderHTML(ctx, http.StatusOK, successPage())
	default:
		renderHTML(ctx, http.StatusOK, formPage(res.Batch, ref, nil))
	}
}
