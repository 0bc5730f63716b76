package handler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/validate"
)

// linkRef carries the raw link parts as presented by the client, needed to
// rebuild the form action so the POST passes the same signature check.
type linkRef struct {
	ID  string
	Exp string
	Sig string
}

func (r linkRef) action() string {
	raw := fmt.Sprintf("/key/%s?exp=%s&sig=%s",
		url.PathEscape(r.ID), url.QueryEscape(r.Exp), url.QueryEscape(r.Sig))
	return validate.Esc(raw)
}

func renderHTML(ctx *gin.Context, status int, body string) {
	ctx.Data(status, "text/html; charset=utf-8", []byte(body))
}

const pageStyle = `
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 3rem auto; padding: 0 1rem; color: #222; }
h1 { font-size: 1.3rem; }
fieldset { border: 1px solid #ccc; border-radius: 4px; margin-bottom: 1.5rem; padding: 1rem; }
legend { font-weight: 600; }
label { display: block; margin: 0.6rem 0 0.2rem; font-size: 0.9rem; }
input[type=text] { width: 100%; box-sizing: border-box; padding: 0.4rem; font-family: monospace; }
button { padding: 0.5rem 1.5rem; }
.error { color: #b00020; font-size: 0.9rem; margin: 0.4rem 0; }
.done { color: #2e7d32; }
.help { font-size: 0.85rem; }
`

func pageShell(title, inner string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + validate.Esc(title) + "</title>\n")
	b.WriteString("<style>" + pageStyle + "</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(inner)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// formPage renders the collection form. Every interpolated value passes
// through validate.Esc, including values the server generated itself.
func formPage(kb *batch.KeyBatch, ref linkRef, invalid map[string]string) string {
	var b strings.Builder
	b.WriteString("<h1>API credentials needed</h1>\n")
	b.WriteString("<p>Enter the requested API credentials. Leave a provider blank to skip it for now.</p>\n")
	b.WriteString("<form method=\"post\" action=\"" + ref.action() + "\">\n")

	for _, p := range kb.Providers {
		b.WriteString("<fieldset>\n<legend>" + validate.Esc(p.ProviderName) + "</legend>\n")

		if p.Status == batch.StatusFulfilled {
			b.WriteString("<p class=\"done\">Collected.</p>\n</fieldset>\n")
			continue
		}

		if msg, ok := invalid[p.Provider]; ok {
			b.WriteString("<p class=\"error\">" + validate.Esc(msg) + "</p>\n")
		}
		if p.HelpURL != "" {
			b.WriteString("<p class=\"help\"><a href=\"" + validate.Esc(p.HelpURL) + "\">Where do I find this?</a></p>\n")
		}

		for _, v := range p.EnvVars {
			field := validate.Esc(p.Provider + "__" + v.Name)
			b.WriteString("<label for=\"" + field + "\">" + validate.Esc(v.Name) + "</label>\n")
			b.WriteString("<input type=\"text\" id=\"" + field + "\" name=\"" + field +
				"\" autocomplete=\"off\" spellcheck=\"false\">\n")
		}
		b.WriteString("</fieldset>\n")
	}

	b.WriteString("<button type=\"submit\">Save credentials</button>\n</form>\n")
	return pageShell("API credentials needed", b.String())
}

func successPage() string {
	return pageShell("Credentials saved",
		"<h1>All set</h1>\n<p class=\"done\">Every requested credential has been collected. You can close this page.</p>\n")
}

// notFoundPage is served for malformed, never-issued, and already-swept ids
// alike, so link validity cannot be probed.
func notFoundPage() string {
	return pageShell("Not found",
		"<h1>Not found</h1>\n<p>This page does not exist.</p>\n")
}

// linkRejectedPage is served for both bad signatures and expired links.
func linkRejectedPage() string {
	return pageShell("Link invalid",
		"<h1>Link invalid or expired</h1>\n<p>Ask your operator for a fresh link.</p>\n")
}
