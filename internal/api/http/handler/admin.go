package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spriteops/key-server/internal/api/http/dto"
	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/mail"
	"github.com/spriteops/key-server/internal/metrics"
	"github.com/spriteops/key-server/internal/token"
)

type AdminConfig struct {
	Secret  string
	BaseURL string
	LinkTTL time.Duration
}

type AdminHandler struct {
	store   *batch.Store
	mailer  *mail.Sender
	metrics *metrics.Collector
	config  AdminConfig
}

func NewAdminHandler(store *batch.Store, mailer *mail.Sender, m *metrics.Collector, cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		store:   store,
		mailer:  mailer,
		metrics: m,
		config:  cfg,
	}
}

// CreateBatch registers a credential-request batch and returns the signed
// collection link. If a recipient address was given and SMTP is configured,
// the link is also emailed; otherwise it is logged for the operator to relay.
func (h *AdminHandler) CreateBatch(ctx *gin.Context) {
	var req dto.CreateBatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reqs := make([]batch.ProviderRequest, 0, len(req.Providers))
	for _, p := range req.Providers {
		pr := batch.ProviderRequest{
			Provider:     p.Provider,
			ProviderName: p.ProviderName,
			HelpURL:      p.HelpURL,
		}
		for _, name := range p.EnvVars {
			pr.EnvVars = append(pr.EnvVars, batch.EnvVar{Name: name})
		}
		reqs = append(reqs, pr)
	}

	b, err := h.store.Create(reqs, h.config.LinkTTL)
	if err != nil {
		slog.Warn("Rejected batch creation", "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig := token.Sign(b.BatchID, b.ExpiresAt, h.config.Secret)
	link := fmt.Sprintf("%s/key/%s?exp=%d&sig=%s", h.config.BaseURL, b.BatchID, b.ExpiresAt, sig)

	emailed := false
	if req.Email != "" && h.mailer != nil && h.mailer.Enabled() {
		names := make([]string, len(b.Providers))
		for i, p := range b.Providers {
			names[i] = p.ProviderName
		}
		if err := h.mailer.SendLink(req.Email, names, link); err != nil {
			slog.Error("Failed to email collection link", "batch_id", b.BatchID, "error", err)
		} else {
			emailed = true
		}
	}
	if !emailed {
		slog.Info("Collection link issued", "batch_id", b.BatchID, "url", link)
	}

	if h.metrics != nil {
		h.metrics.BatchesCreatedTotal.Inc()
		h.metrics.BatchesActive.Set(float64(h.store.Count()))
	}

	ctx.JSON(http.StatusCreated, dto.CreateBatchResponse{
		BatchID:   b.BatchID,
		Exp:       b.ExpiresAt,
		Signature: sig,
		URL:       link,
		Emailed:   emailed,
	})
}
