// Package guard gates alert operations and API calls: admin key checks,
// per-client token-bucket rate limits, mute windows and ingestion locks.
package guard

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olv-group/prospect-intel/internal/model"
)

// DefaultAdminHeader carries the admin secret on requests.
const DefaultAdminHeader = "X-Admin-Key"

// AdminMode selects how the admin check behaves.
type AdminMode int

const (
	// AdminEnforced requires the configured secret. With no secret
	// configured every request is rejected.
	AdminEnforced AdminMode = iota
	// AdminDisabled permits every request.
	AdminDisabled
)

// ParseAdminMode parses "enforced" or "disabled". Empty input means enforced.
func ParseAdminMode(s string) (AdminMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "enforced":
		return AdminEnforced, nil
	case "disabled":
		return AdminDisabled, nil
	default:
		return AdminEnforced, eris.Errorf("guard: unknown admin mode %q", s)
	}
}

func (m AdminMode) String() string {
	if m == AdminDisabled {
		return "disabled"
	}
	return "enforced"
}

// Admin checks the admin secret header.
type Admin struct {
	mode   AdminMode
	secret []byte
	header string
}

// NewAdmin builds an admin check. An empty header name falls back to
// DefaultAdminHeader.
func NewAdmin(mode AdminMode, secret, header string) *Admin {
	if header == "" {
		header = DefaultAdminHeader
	}
	log := zap.L().With(zap.String("component", "guard.admin"))
	switch {
	case mode == AdminDisabled:
		log.Warn("guard: admin check disabled, all admin routes are open")
	case secret == "":
		log.Warn("guard: admin check enforced without a secret, all admin requests will be rejected")
	}
	return &Admin{mode: mode, secret: []byte(secret), header: header}
}

// Header returns the header name the secret is read from.
func (a *Admin) Header() string { return a.header }

// Mode returns the configured mode.
func (a *Admin) Mode() AdminMode { return a.mode }

// Check returns model.ErrUnauthorized unless the request may proceed.
func (a *Admin) Check(h http.Header) error {
	if a.mode == AdminDisabled {
		return nil
	}
	if len(a.secret) == 0 {
		return model.ErrUnauthorized
	}
	got := h.Get(a.header)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), a.secret) != 1 {
		return model.ErrUnauthorized
	}
	return nil
}
