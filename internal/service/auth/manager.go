// Package auth owns the token lifecycle: when tokens are fetched, reused or
// refreshed. No other component mutates stored token records.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/pkg/clients/kroger"
)

// ErrReauthRequired means the scope needs interactive login and no usable
// refresh token exists. Not retryable; the caller must drive the user
// through the login flow.
var ErrReauthRequired = errors.New("interactive login required")

// ErrTokenExchangeFailed wraps network or credential errors from the token
// endpoint after the client's bounded retries were exhausted.
var ErrTokenExchangeFailed = errors.New("token exchange failed")

// expirySkew is subtracted from a record's lifetime so a token moments from
// expiry is refreshed instead of returned.
const expirySkew = 30 * time.Second

var (
	productScopes = []string{"product.compact"}
	cartScopes    = []string{"cart.basic:write", "product.compact"}
)

// TokenStore is the persistence collaborator holding one record per scope.
type TokenStore interface {
	Load(scope models.TokenScope) (*models.TokenRecord, error)
	Save(record models.TokenRecord) error
}

// Exchanger performs the remote token exchange.
type Exchanger interface {
	ExchangeToken(ctx context.Context, grant kroger.TokenGrant) (*kroger.TokenResponse, error)
}

// Manager guarantees every token it hands out is valid at return time,
// refreshing or exchanging synchronously when needed. New records are
// persisted before they are returned; the store write is the commit point.
type Manager struct {
	client Exchanger
	store  TokenStore
	now    func() time.Time
	logger *zap.Logger
}

// NewManager wires a token lifecycle manager.
func NewManager(client Exchanger, store TokenStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client: client,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// GetToken returns a valid access token for the scope, exchanging or
// refreshing first when the stored record is absent or expired.
func (m *Manager) GetToken(ctx context.Context, scope models.TokenScope) (string, error) {
	record, err := m.store.Load(scope)
	if err != nil {
		return "", err
	}
	if record != nil && record.ValidAt(m.now().Add(expirySkew)) {
		return record.AccessToken, nil
	}
	return m.exchange(ctx, scope, record)
}

// ForceRefresh discards the current record's validity and performs a fresh
// exchange. Used after the cart endpoint reports a stale-token 401.
func (m *Manager) ForceRefresh(ctx context.Context, scope models.TokenScope) (string, error) {
	record, err := m.store.Load(scope)
	if err != nil {
		return "", err
	}
	return m.exchange(ctx, scope, record)
}

func (m *Manager) exchange(ctx context.Context, scope models.TokenScope, previous *models.TokenRecord) (string, error) {
	var grant kroger.TokenGrant
	switch scope {
	case models.ScopeProduct:
		grant = kroger.TokenGrant{Type: kroger.GrantClientCredentials, Scopes: productScopes}
	case models.ScopeCart:
		if previous == nil || previous.RefreshToken == "" {
			return "", fmt.Errorf("cart scope has no refresh token: %w", ErrReauthRequired)
		}
		grant = kroger.TokenGrant{Type: kroger.GrantRefreshToken, RefreshToken: previous.RefreshToken}
	default:
		return "", fmt.Errorf("unknown token scope %q", scope)
	}

	resp, err := m.client.ExchangeToken(ctx, grant)
	if err != nil {
		if grant.Type == kroger.GrantRefreshToken {
			switch kroger.KindOf(err) {
			case kroger.KindInvalidRequest, kroger.KindAuthExpired:
				// The stored refresh token was rejected; only a new
				// interactive login can recover.
				return "", fmt.Errorf("refresh token rejected: %w", ErrReauthRequired)
			}
		}
		return "", fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	record := m.recordFrom(scope, resp, previous)
	if err := m.store.Save(record); err != nil {
		return "", fmt.Errorf("persist token record: %w", err)
	}

	m.logger.Info("token refreshed",
		zap.String("scope", string(scope)),
		zap.Time("expires_at", record.ExpiresAt))
	return record.AccessToken, nil
}

// CompleteAuthorization exchanges an authorization code obtained through the
// interactive flow and persists the resulting user-authorized record.
func (m *Manager) CompleteAuthorization(ctx context.Context, code, redirectURI string) error {
	resp, err := m.client.ExchangeToken(ctx, kroger.TokenGrant{
		Type:        kroger.GrantAuthorizationCode,
		Scopes:      cartScopes,
		Code:        code,
		RedirectURI: redirectURI,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	record := m.recordFrom(models.ScopeCart, resp, nil)
	if err := m.store.Save(record); err != nil {
		return fmt.Errorf("persist token record: %w", err)
	}

	m.logger.Info("user authorization completed", zap.Time("expires_at", record.ExpiresAt))
	return nil
}

func (m *Manager) recordFrom(scope models.TokenScope, resp *kroger.TokenResponse, previous *models.TokenRecord) models.TokenRecord {
	record := models.TokenRecord{
		Scope:        scope,
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		RefreshToken: resp.RefreshToken,
	}
	// Refresh responses may omit the refresh token; keep the previous one.
	if record.RefreshToken == "" && previous != nil {
		record.RefreshToken = previous.RefreshToken
	}
	return record
}

// ScopeState describes one scope family's lifecycle state for status output.
type ScopeState struct {
	Scope     models.TokenScope `json:"scope"`
	State     string            `json:"state"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

// States reports ABSENT/EXPIRED/VALID per scope family.
func (m *Manager) States() ([]ScopeState, error) {
	now := m.now()
	states := make([]ScopeState, 0, 2)
	for _, scope := range []models.TokenScope{models.ScopeProduct, models.ScopeCart} {
		record, err := m.store.Load(scope)
		if err != nil {
			return nil, err
		}
		state := ScopeState{Scope: scope, State: "ABSENT"}
		if record != nil {
			expires := record.ExpiresAt
			state.ExpiresAt = &expires
			if record.ValidAt(now) {
				state.State = "VALID"
			} else {
				state.State = "EXPIRED"
			}
		}
		states = append(states, state)
	}
	return states, nil
}
