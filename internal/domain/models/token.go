package models

import "time"

// TokenScope identifies a credential scope family. Product reads use an
// app-level client-credentials token; cart mutations require a token the
// user authorized interactively.
type TokenScope string

const (
	ScopeProduct TokenScope = "product"
	ScopeCart    TokenScope = "cart"
)

// TokenRecord is the persisted state of one credential scope family.
// It is owned exclusively by the token lifecycle manager.
type TokenRecord struct {
	Scope        TokenScope `json:"scope"`
	AccessToken  string     `json:"accessToken"`
	TokenType    string     `json:"tokenType"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	RefreshToken string     `json:"refreshToken,omitempty"`
}

// ValidAt reports whether the record may still be used at the given instant.
func (t TokenRecord) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}
