package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spriteops/key-server/internal/validate"
)

// retentionPeriod keeps a fully-fulfilled batch around after it was emailed,
// so the operator can still inspect what was collected. Exactly the period is
// retained; one millisecond past it is swept.
const retentionPeriod = 7 * 24 * time.Hour

// Store holds every outstanding KeyBatch. One mutex serializes all reads and
// writes: two concurrent submissions to the same batch cannot both observe a
// pending provider and double-fulfill it. Every entry point sweeps first, so
// state never grows unbounded.
type Store struct {
	mu       sync.Mutex
	batches  []*KeyBatch
	dataFile string
	credDir  string
	now      func() time.Time
}

type snapshot struct {
	Batches []*KeyBatch `json:"batches"`
}

// NewStore loads the batch snapshot from dataFile (starting empty if the file
// is missing or unreadable) and ensures credDir exists for credential files.
func NewStore(dataFile, credDir string) (*Store, error) {
	if err := os.MkdirAll(credDir, 0o700); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
	}
	if dir := filepath.Dir(dataFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	s := &Store{
		dataFile: dataFile,
		credDir:  credDir,
		now:      time.Now,
	}

	raw, err := os.ReadFile(dataFile)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		slog.Error("Failed to read batch snapshot, starting empty", "file", dataFile, "error", err)
	default:
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			slog.Error("Corrupt batch snapshot, starting empty", "file", dataFile, "error", err)
		} else {
			s.batches = snap.Batches
		}
	}

	return s, nil
}

// Create registers a new batch for the given provider requests and returns
// it with a fresh batch id and expiry.
func (s *Store) Create(reqs []ProviderRequest, ttl time.Duration) (*KeyBatch, error) {
	if len(reqs) == 0 {
		return nil, ErrNoProviders
	}
	for _, r := range reqs {
		if !validate.ValidProvider(r.Provider) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, r.Provider)
		}
		if len(r.EnvVars) == 0 {
			return nil, fmt.Errorf("provider %q requests no env vars", r.Provider)
		}
		for _, v := range r.EnvVars {
			if !validate.ValidEnvVar(v.Name) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidEnvVar, v.Name)
			}
		}
	}

	nowMs := s.now().UnixMilli()
	b := &KeyBatch{
		BatchID:   uuid.NewString(),
		EmailedAt: nowMs,
		ExpiresAt: nowMs + ttl.Milliseconds(),
	}
	for _, r := range reqs {
		p := r
		p.EnvVars = append([]EnvVar(nil), r.EnvVars...)
		if p.ProviderName == "" {
			p.ProviderName = p.Provider
		}
		p.Status = StatusPending
		b.Providers = append(b.Providers, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(nowMs)
	s.batches = append(s.batches, b)
	s.persistLocked()

	slog.Info("Key batch created", "batch_id", b.BatchID, "providers", len(b.Providers), "expires_at", b.ExpiresAt)
	return b.clone(), nil
}

// ResolveID finds the batch addressed by a path id: a canonical UUID matches
// exactly; a bare provider slug resolves to the newest unexpired batch with
// that provider still pending. Anything else is ErrNotFound — callers must
// not distinguish malformed, never-issued, and already-swept ids.
func (s *Store) ResolveID(id string) (*KeyBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	if s.sweepLocked(nowMs) {
		s.persistLocked()
	}

	b := s.resolveLocked(id, nowMs)
	if b == nil {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (s *Store) resolveLocked(id string, nowMs int64) *KeyBatch {
	switch {
	case validate.IsUUID(id):
		for _, b := range s.batches {
			if b.BatchID == id {
				return b
			}
		}
	case validate.ValidProvider(id):
		var newest *KeyBatch
		for _, b := range s.batches {
			if b.ExpiresAt <= nowMs {
				continue
			}
			for _, p := range b.Providers {
				if p.Provider == id && p.Status == StatusPending {
					if newest == nil || b.EmailedAt > newest.EmailedAt {
						newest = b
					}
					break
				}
			}
		}
		return newest
	}
	return nil
}

// Submit applies one form submission to the batch addressed by id. Field
// names have the shape "{provider}__{ENV_VAR}". Each provider is
// all-or-nothing: one invalid value rejects the provider's whole submission
// and persists nothing for it. A provider is fulfilled only when every one of
// its env vars received a valid non-empty value.
func (s *Store) Submit(id string, form url.Values) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	if s.sweepLocked(nowMs) {
		s.persistLocked()
	}

	b := s.resolveLocked(id, nowMs)
	if b == nil {
		return nil, ErrNotFound
	}

	res := &SubmitResult{Invalid: make(map[string]string)}
	changed := false

	for i := range b.Providers {
		p := &b.Providers[i]
		if p.Status == StatusFulfilled {
			continue
		}

		values := make(map[string]string)
		invalid := false
		for _, v := range p.EnvVars {
			raw := form.Get(p.Provider + "__" + v.Name)
			val := strings.TrimSpace(raw)
			if val == "" {
				continue
			}
			if !validate.ValidKeyVal(val) {
				invalid = true
				break
			}
			values[v.Name] = val
		}

		if invalid {
			res.Invalid[p.Provider] = "value contains unsupported characters or is too long"
			continue
		}
		if len(values) != len(p.EnvVars) {
			// Partial fill: keep pending, persist nothing.
			continue
		}

		if len(p.EnvVars) == 1 {
			// Aliases for consumers that expect either generic name.
			for _, v := range p.EnvVars {
				values["api_key"] = values[v.Name]
				values["token"] = values[v.Name]
			}
		}

		if err := writeCredentialFile(s.credDir, p.Provider, values); err != nil {
			slog.Error("Failed to write credential file", "provider", p.Provider, "error", err)
			res.Invalid[p.Provider] = "failed to save credentials, try again"
			continue
		}

		p.Status = StatusFulfilled
		res.Fulfilled = append(res.Fulfilled, p.Provider)
		changed = true
		slog.Info("Provider credentials collected", "batch_id", b.BatchID, "provider", p.Provider)
	}

	if changed {
		s.persistLocked()
	}
	res.Batch = b.clone()
	return res, nil
}

// Sweep applies the retention policy: a batch is removed when every provider
// is fulfilled and strictly more than the retention period has passed since
// it was emailed, or when it expired with every provider still pending. A
// partially-fulfilled expired batch is retained — it holds collected values
// worth reviewing.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepLocked(s.now().UnixMilli()) {
		s.persistLocked()
	}
}

func (s *Store) sweepLocked(nowMs int64) bool {
	kept := s.batches[:0]
	removed := 0
	for _, b := range s.batches {
		stale := b.AllFulfilled() && nowMs-b.EmailedAt > retentionPeriod.Milliseconds()
		dead := b.ExpiresAt < nowMs && b.AllPending()
		if stale || dead {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	s.batches = kept
	if removed > 0 {
		slog.Debug("Swept key batches", "removed", removed)
	}
	return removed > 0
}

// Count returns the number of live batches after a sweep.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepLocked(s.now().UnixMilli()) {
		s.persistLocked()
	}
	return len(s.batches)
}

// StartCleanup sweeps on an interval until ctx is cancelled, so an idle
// server still prunes stale batches.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(snapshot{Batches: s.batches}, "", "  ")
	if err != nil {
		slog.Error("Failed to encode batch snapshot", "error", err)
		return
	}
	if err := writeFileAtomic(s.dataFile, data); err != nil {
		slog.Error("Failed to write batch snapshot", "file", s.dataFile, "error", err)
	}
}
