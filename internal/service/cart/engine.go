// Package cart applies reviewed proposals to the remote shopping cart. The
// engine reconciles each line against the sent-items ledger so re-applying
// the same proposal converges instead of duplicating cart contents.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/internal/service/auth"
	"github.com/krogetapp/kroget/pkg/clients/kroger"
)

// TokenSource supplies user-authorized tokens for cart mutation.
type TokenSource interface {
	GetToken(ctx context.Context, scope models.TokenScope) (string, error)
	ForceRefresh(ctx context.Context, scope models.TokenScope) (string, error)
}

// CartClient issues single cart-add calls. There is no batch endpoint.
type CartClient interface {
	AddToCart(ctx context.Context, accessToken, productID string, quantity int, modality models.Modality) error
}

// Ledger is the durable record of previously-applied quantities.
type Ledger interface {
	Lookup(productID, locationID string) (int, error)
	Record(productID, locationID string, delta int, at time.Time) error
	AppendSession(session models.ApplySession) error
	Acquire() (func(), error)
}

// Options controls one apply invocation. Confirmed must be true for any
// network mutation to happen; DryRun forces the computation-only path even
// when confirmed.
type Options struct {
	Confirmed bool
	DryRun    bool
}

// Engine applies proposals line by line, sequentially. Lines are never
// parallelized: partial success must be attributable to a specific line, and
// each ledger write must be durable before the next line is evaluated.
type Engine struct {
	cart         CartClient
	tokens       TokenSource
	ledger       Ledger
	now          func() time.Time
	newSessionID func() string
	logger       *zap.Logger
}

// NewEngine wires an apply engine.
func NewEngine(cart CartClient, tokens TokenSource, ledger Ledger, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cart:         cart,
		tokens:       tokens,
		ledger:       ledger,
		now:          func() time.Time { return time.Now().UTC() },
		newSessionID: uuid.NewString,
		logger:       logger,
	}
}

// Apply diffs the proposal against the ledger and, only when confirmed and
// not a dry run, issues the cart mutations. The returned report always
// carries every line's computed outcome; on a mid-run error (cancellation or
// a ledger write failure) the partial report is returned alongside the error.
func (e *Engine) Apply(ctx context.Context, proposal *models.Proposal, opts Options) (*models.ApplyReport, error) {
	mutate := opts.Confirmed && !opts.DryRun

	report := &models.ApplyReport{
		ProposalID: proposal.ID,
		DryRun:     !mutate,
	}

	if mutate {
		release, err := e.ledger.Acquire()
		if err != nil {
			return nil, err
		}
		defer release()
	}

	startedAt := e.now()

	for _, line := range proposal.Lines {
		// Cooperative cancellation between lines; a line already in
		// flight runs to completion and its outcome stays recorded.
		if err := ctx.Err(); err != nil {
			e.finishSession(proposal, report, startedAt, mutate)
			return report, err
		}

		outcome, err := e.applyLine(ctx, proposal.LocationID, line, mutate)
		report.Lines = append(report.Lines, outcome)
		if err != nil {
			// Ledger write failures make subsequent correctness unsafe:
			// an unrecorded success is the one state that can cause
			// future double-sends.
			e.finishSession(proposal, report, startedAt, mutate)
			return report, err
		}
	}

	e.finishSession(proposal, report, startedAt, mutate)
	return report, nil
}

func (e *Engine) applyLine(ctx context.Context, locationID string, line models.ProposalLine, mutate bool) (models.LineOutcome, error) {
	outcome := models.LineOutcome{
		StapleName: line.StapleName,
		ProductID:  line.ResolvedProductID,
	}

	switch line.ResolutionStatus {
	case models.ResolutionResolved:
	case models.ResolutionAmbiguous:
		outcome.Outcome = models.OutcomeSkipped
		outcome.Reason = "ambiguous"
		return outcome, nil
	default:
		outcome.Outcome = models.OutcomeSkipped
		outcome.Reason = "unresolved"
		return outcome, nil
	}

	sent, err := e.ledger.Lookup(line.ResolvedProductID, locationID)
	if err != nil {
		outcome.Outcome = models.OutcomeFailed
		outcome.Reason = "persistence_failure"
		return outcome, err
	}

	delta := line.Quantity - sent
	if delta <= 0 {
		outcome.Outcome = models.OutcomeAlreadyApplied
		return outcome, nil
	}

	outcome.QuantitySent = delta
	if !mutate {
		outcome.Outcome = models.OutcomeApplied
		return outcome, nil
	}

	if err := e.addToCart(ctx, line, delta); err != nil {
		outcome.Outcome = models.OutcomeFailed
		outcome.QuantitySent = 0
		outcome.Reason = failureReason(err)
		e.logger.Warn("cart add failed",
			zap.String("staple", line.StapleName),
			zap.String("product_id", line.ResolvedProductID),
			zap.Error(err))
		return outcome, nil
	}

	if err := e.ledger.Record(line.ResolvedProductID, locationID, delta, e.now()); err != nil {
		outcome.Outcome = models.OutcomeFailed
		outcome.Reason = "persistence_failure"
		e.logger.Error("ledger write failed after successful cart add",
			zap.String("product_id", line.ResolvedProductID),
			zap.Int("quantity", delta),
			zap.Error(err))
		return outcome, fmt.Errorf("record sent item %s: %w", line.ResolvedProductID, err)
	}

	outcome.Outcome = models.OutcomeApplied
	return outcome, nil
}

// addToCart issues the mutation, retrying exactly once after a forced token
// refresh when the failure is a stale-token 401. No other failure is
// retried: an ambiguous failure may have succeeded remotely, and
// double-sending must be avoided.
//
// Cancellation of the run must not abort a mutation already in flight: an
// aborted PUT may still have succeeded remotely, leaving an unrecorded
// success. The call is detached from the run's cancellation and bounded by
// the client's own timeout; the between-lines check in Apply is the sole
// cancellation point.
func (e *Engine) addToCart(ctx context.Context, line models.ProposalLine, quantity int) error {
	ctx = context.WithoutCancel(ctx)
	token, err := e.tokens.GetToken(ctx, models.ScopeCart)
	if err != nil {
		return err
	}

	err = e.cart.AddToCart(ctx, token, line.ResolvedProductID, quantity, line.Modality)
	if err == nil || kroger.KindOf(err) != kroger.KindAuthExpired {
		return err
	}

	token, refreshErr := e.tokens.ForceRefresh(ctx, models.ScopeCart)
	if refreshErr != nil {
		return refreshErr
	}
	return e.cart.AddToCart(ctx, token, line.ResolvedProductID, quantity, line.Modality)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrReauthRequired):
		return "reauth_required"
	case errors.Is(err, auth.ErrTokenExchangeFailed):
		return "token_exchange_failed"
	default:
		return string(kroger.KindOf(err))
	}
}

func (e *Engine) finishSession(proposal *models.Proposal, report *models.ApplyReport, startedAt time.Time, mutate bool) {
	if !mutate {
		return
	}
	session := models.ApplySession{
		SessionID:  e.newSessionID(),
		ProposalID: proposal.ID,
		StartedAt:  startedAt,
		FinishedAt: e.now(),
		LocationID: proposal.LocationID,
		DryRun:     false,
		Lines:      report.Lines,
	}
	if err := e.ledger.AppendSession(session); err != nil {
		e.logger.Error("failed recording apply session", zap.Error(err))
	}
}
