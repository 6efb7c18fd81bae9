package services

import "sync"

// Registry holds the ledger's administrative state: who administers it,
// which tokens new invoices may use, where platform fees go, and the pause
// switch. It is owned by the administrative surface and handed to the
// lifecycle engine explicitly, never read as ambient globals.
type Registry struct {
	mu            sync.RWMutex
	admins        map[string]bool
	allowedTokens map[string]bool
	feeCollector  string
	feeBPS        int64
	paused        bool
}

func NewRegistry(admins, allowedTokens []string, feeCollector string, feeBPS int64) *Registry {
	r := &Registry{
		admins:        make(map[string]bool, len(admins)),
		allowedTokens: make(map[string]bool, len(allowedTokens)),
		feeCollector:  feeCollector,
		feeBPS:        feeBPS,
	}
	for _, a := range admins {
		r.admins[a] = true
	}
	for _, t := range allowedTokens {
		r.allowedTokens[t] = true
	}
	return r
}

func (r *Registry) IsAdmin(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins[identity]
}

func (r *Registry) IsTokenAllowed(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowedTokens[token]
}

func (r *Registry) AllowToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowedTokens[token] = true
}

// DisallowToken affects only future invoice creation; existing invoices keep
// settling in their token.
func (r *Registry) DisallowToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allowedTokens, token)
}

func (r *Registry) FeeCollector() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeCollector
}

func (r *Registry) SetFeeCollector(collector string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeCollector = collector
}

func (r *Registry) FeeBPS() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeBPS
}

func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

func (r *Registry) SetPaused(paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = paused
}
