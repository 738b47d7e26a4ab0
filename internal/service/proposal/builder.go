// Package proposal assembles reviewable cart-change proposals from staple
// lists. A proposal is a pure function of its input lists and the catalog
// responses at resolution time; nothing here touches the cart.
package proposal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/internal/service/catalog"
	"github.com/krogetapp/kroget/pkg/clients/kroger"
)

const (
	defaultSearchLimit = 5
	maxAlternatives    = 3
)

// Resolver is the catalog collaborator queried once per staple.
type Resolver interface {
	Resolve(ctx context.Context, term, locationID string, limit int) ([]models.ProductCandidate, error)
}

// Pinner records a chosen product back onto a staple as its preferred id.
type Pinner interface {
	PinPreferred(listName, stapleName, productID string) error
}

// Builder produces proposal documents from staple lists.
type Builder struct {
	resolver  Resolver
	ambiguous catalog.AmbiguityPredicate
	limit     int
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

// NewBuilder wires a proposal builder with the default resolution policy.
func NewBuilder(resolver Resolver, ambiguous catalog.AmbiguityPredicate, logger *zap.Logger) *Builder {
	if ambiguous == nil {
		ambiguous = catalog.NeverAmbiguous
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		resolver:  resolver,
		ambiguous: ambiguous,
		limit:     defaultSearchLimit,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Build iterates all staples across the given lists, in list order then
// staple order, resolving each against the catalog exactly once. A single
// staple that fails to resolve degrades to an UNRESOLVED line; the build
// only aborts when the location is rejected or when the catalog was
// unreachable for every staple.
func (b *Builder) Build(ctx context.Context, lists []models.StapleList, locationID string) (*models.Proposal, error) {
	var (
		lines      []models.ProposalLine
		total      int
		failures   int
		failureErr error
	)

	for _, list := range lists {
		for _, staple := range list.Staples {
			total++

			candidates, err := b.resolver.Resolve(ctx, staple.SearchTerm, locationID, b.limit)
			if err != nil {
				if kroger.KindOf(err) == kroger.KindInvalidLocation {
					return nil, err
				}
				failures++
				failureErr = err
				b.logger.Warn("staple resolution failed",
					zap.String("staple", staple.Name),
					zap.Error(err))
				lines = append(lines, unresolvedLine(list.Name, staple, err.Error()))
				continue
			}

			lines = append(lines, b.lineFor(list.Name, staple, candidates))
		}
	}

	if total > 0 && failures == total {
		return nil, failureErr
	}

	return &models.Proposal{
		ID:         b.newID(),
		CreatedAt:  b.now(),
		LocationID: locationID,
		Lines:      lines,
	}, nil
}

func unresolvedLine(listName string, staple models.Staple, note string) models.ProposalLine {
	return models.ProposalLine{
		StapleName:       staple.Name,
		Quantity:         staple.Quantity,
		Modality:         staple.Modality,
		ResolutionStatus: models.ResolutionUnresolved,
		SourceList:       listName,
		Note:             note,
	}
}

// lineFor applies the resolution policy: a preferred product wins when it
// appears among the candidates; otherwise the first (highest-ranked)
// candidate is chosen, downgraded to AMBIGUOUS only when the ambiguity
// predicate fires.
func (b *Builder) lineFor(listName string, staple models.Staple, candidates []models.ProductCandidate) models.ProposalLine {
	if len(candidates) == 0 {
		return unresolvedLine(listName, staple, "no catalog matches")
	}

	chosen := candidates[0]
	preferred := false
	if staple.PreferredProductID != "" {
		for _, candidate := range candidates {
			if candidate.CartIdentifier() == staple.PreferredProductID ||
				candidate.ProductID == staple.PreferredProductID {
				chosen = candidate
				preferred = true
				break
			}
		}
	}

	status := models.ResolutionResolved
	if !preferred && b.ambiguous(candidates) {
		status = models.ResolutionAmbiguous
	}

	line := models.ProposalLine{
		StapleName:        staple.Name,
		ResolvedProductID: chosen.CartIdentifier(),
		Quantity:          staple.Quantity,
		Modality:          staple.Modality,
		ResolutionStatus:  status,
		SourceList:        listName,
	}
	for _, candidate := range candidates {
		if len(line.Alternatives) >= maxAlternatives {
			break
		}
		if candidate.CartIdentifier() == chosen.CartIdentifier() {
			continue
		}
		line.Alternatives = append(line.Alternatives, models.ProposalAlternative{
			ProductID:   candidate.CartIdentifier(),
			Description: candidate.Description,
		})
	}
	return line
}

// Pin records each RESOLVED line's product back onto its staple so later
// proposals skip ranking entirely for those staples.
func Pin(proposal *models.Proposal, staples Pinner, logger *zap.Logger) map[string]bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	pinned := make(map[string]bool, len(proposal.Lines))
	for _, line := range proposal.Lines {
		if line.ResolutionStatus != models.ResolutionResolved {
			pinned[line.StapleName] = false
			continue
		}
		if err := staples.PinPreferred(line.SourceList, line.StapleName, line.ResolvedProductID); err != nil {
			logger.Warn("pin failed", zap.String("staple", line.StapleName), zap.Error(err))
			pinned[line.StapleName] = false
			continue
		}
		pinned[line.StapleName] = true
	}
	return pinned
}
