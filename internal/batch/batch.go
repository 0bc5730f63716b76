// Package batch holds the credential-request batches the key server collects
// values for, their retention lifecycle, and the per-provider credential
// files written on fulfillment.
package batch

import "errors"

var (
	ErrNotFound        = errors.New("batch not found")
	ErrNoProviders     = errors.New("batch must request at least one provider")
	ErrInvalidProvider = errors.New("invalid provider slug")
	ErrInvalidEnvVar   = errors.New("invalid environment variable name")
)

const (
	StatusPending   = "pending"
	StatusFulfilled = "fulfilled"
)

// EnvVar is one credential value a provider needs, named after the
// environment variable the provisioning scripts export it as.
type EnvVar struct {
	Name string `json:"name"`
}

// ProviderRequest asks the user for every env var of one provider.
type ProviderRequest struct {
	Provider     string   `json:"provider"`
	ProviderName string   `json:"providerName"`
	EnvVars      []EnvVar `json:"envVars"`
	HelpURL      string   `json:"helpUrl,omitempty"`
	Status       string   `json:"status"`
}

// KeyBatch is one outstanding credential-collection request, addressed by a
// single capability link. Timestamps are epoch milliseconds.
type KeyBatch struct {
	BatchID   string            `json:"batchId"`
	Providers []ProviderRequest `json:"providers"`
	EmailedAt int64             `json:"emailedAt"`
	ExpiresAt int64             `json:"expiresAt"`
}

func (b *KeyBatch) AllFulfilled() bool {
	for _, p := range b.Providers {
		if p.Status != StatusFulfilled {
			return false
		}
	}
	return true
}

func (b *KeyBatch) AllPending() bool {
	for _, p := range b.Providers {
		if p.Status != StatusPending {
			return false
		}
	}
	return true
}

func (b *KeyBatch) clone() *KeyBatch {
	out := *b
	out.Providers = make([]ProviderRequest, len(b.Providers))
	for i, p := range b.Providers {
		out.Providers[i] = p
		out.Providers[i].EnvVars = append([]EnvVar(nil), p.EnvVars...)
	}
	return &out
}

// SubmitResult reports what one form submission changed.
type SubmitResult struct {
	// Fulfilled lists provider slugs completed by this submission.
	Fulfilled []string
	// Invalid maps provider slugs to a message when a submitted value failed
	// validation or could not be persisted. Nothing is stored for them.
	Invalid map[string]string
	// Batch is the post-submission state, for re-rendering.
	Batch *KeyBatch
}
