// Package catalog resolves staple search terms to concrete catalog products.
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/krogetapp/kroget/internal/domain/models"
)

// backfillDepth bounds how many leading candidates get a product-detail call
// when the search response omitted their item identifier.
const backfillDepth = 3

// AmbiguityPredicate decides whether a candidate set is too ambiguous for
// auto-apply. The exact tie contract of the remote catalog is not published,
// so detection stays pluggable.
type AmbiguityPredicate func(candidates []models.ProductCandidate) bool

// NeverAmbiguous is the default policy: first candidate wins.
func NeverAmbiguous([]models.ProductCandidate) bool { return false }

// ScoreTieAmbiguity flags candidate sets whose top two entries report the
// same non-zero relevance score.
func ScoreTieAmbiguity(candidates []models.ProductCandidate) bool {
	return len(candidates) >= 2 &&
		candidates[0].Score > 0 &&
		candidates[0].Score == candidates[1].Score
}

// TokenSource supplies a valid client-credentials token for catalog reads.
type TokenSource interface {
	GetToken(ctx context.Context, scope models.TokenScope) (string, error)
}

// SearchClient is the remote catalog surface the resolver consumes.
type SearchClient interface {
	SearchProducts(ctx context.Context, accessToken, term, locationID string, limit int) ([]models.ProductCandidate, error)
	GetProduct(ctx context.Context, accessToken, productID, locationID string) (*models.ProductCandidate, error)
}

// Resolver turns a search term and location into a ranked candidate list.
// It holds no cache and has no side effects beyond the outbound reads.
type Resolver struct {
	client SearchClient
	tokens TokenSource
	logger *zap.Logger
}

// NewResolver wires a catalog resolver.
func NewResolver(client SearchClient, tokens TokenSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, tokens: tokens, logger: logger}
}

// Resolve returns candidates in the catalog service's ranking order,
// possibly empty. Candidates missing an item identifier near the top of the
// ranking are backfilled through the product-detail endpoint, since the cart
// endpoint only accepts item-level identifiers.
func (r *Resolver) Resolve(ctx context.Context, term, locationID string, limit int) ([]models.ProductCandidate, error) {
	token, err := r.tokens.GetToken(ctx, models.ScopeProduct)
	if err != nil {
		return nil, fmt.Errorf("catalog token: %w", err)
	}

	candidates, err := r.client.SearchProducts(ctx, token, term, locationID, limit)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		if i >= backfillDepth || candidates[i].UPC != "" {
			continue
		}
		detail, err := r.client.GetProduct(ctx, token, candidates[i].ProductID, locationID)
		if err != nil {
			r.logger.Debug("upc backfill failed",
				zap.String("product_id", candidates[i].ProductID),
				zap.Error(err))
			continue
		}
		candidates[i].UPC = detail.UPC
	}

	return candidates, nil
}
