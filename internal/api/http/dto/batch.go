package dto

// ProviderSpec is one provider whose credentials are missing locally.
type ProviderSpec struct {
	Provider     string   `json:"provider" binding:"required"`
	ProviderName string   `json:"provider_name"`
	EnvVars      []string `json:"env_vars" binding:"required"`
	HelpURL      string   `json:"help_url"`
}

// CreateBatchRequest is the body of POST /admin/request, issued by a
// provisioning script that found credentials missing.
type CreateBatchRequest struct {
	Providers []ProviderSpec `json:"providers" binding:"required"`
	// Email optionally addresses the generated link; without it the link is
	// only returned and logged.
	Email string `json:"email"`
}

// CreateBatchResponse returns the signed capability link and its parts.
type CreateBatchResponse struct {
	BatchID   string `json:"batch_id"`
	Exp       int64  `json:"exp"`
	Signature string `json:"signature"`
	URL       string `json:"url"`
	Emailed   bool   `json:"emailed"`
}
