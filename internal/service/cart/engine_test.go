package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/internal/service/auth"
	"github.com/krogetapp/kroget/pkg/clients/kroger"
)

type cartCall struct {
	token     string
	productID string
	quantity  int
}

type fakeCart struct {
	calls []cartCall
	errs  map[string][]error
}

func (f *fakeCart) AddToCart(_ context.Context, token, productID string, quantity int, _ models.Modality) error {
	f.calls = append(f.calls, cartCall{token: token, productID: productID, quantity: quantity})
	queue := f.errs[productID]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.errs[productID] = queue[1:]
	return err
}

type fakeTokens struct {
	token       string
	getErr      error
	refreshes   int
	refreshed   string
	refreshErr  error
	tokensGiven int
}

func (f *fakeTokens) GetToken(context.Context, models.TokenScope) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	f.tokensGiven++
	return f.token, nil
}

func (f *fakeTokens) ForceRefresh(context.Context, models.TokenScope) (string, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshed, nil
}

type fakeLedger struct {
	sent      map[string]int
	lookups   int
	lookupErr error
	recordErr error
	sessions  []models.ApplySession
	acquired  int
	released  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{sent: make(map[string]int)}
}

func (f *fakeLedger) key(productID, locationID string) string { return productID + "@" + locationID }

func (f *fakeLedger) Lookup(productID, locationID string) (int, error) {
	f.lookups++
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	return f.sent[f.key(productID, locationID)], nil
}

func (f *fakeLedger) Record(productID, locationID string, delta int, _ time.Time) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.sent[f.key(productID, locationID)] += delta
	return nil
}

func (f *fakeLedger) AppendSession(session models.ApplySession) error {
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeLedger) Acquire() (func(), error) {
	f.acquired++
	return func() { f.released++ }, nil
}

func newTestEngine(cart CartClient, tokens *fakeTokens, ledger *fakeLedger) *Engine {
	e := NewEngine(cart, tokens, ledger, nil)
	e.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	e.newSessionID = func() string { return "session-1" }
	return e
}

func resolvedLine(name, productID string, quantity int) models.ProposalLine {
	return models.ProposalLine{
		StapleName:        name,
		ResolvedProductID: productID,
		Quantity:          quantity,
		Modality:          models.ModalityPickup,
		ResolutionStatus:  models.ResolutionResolved,
	}
}

func testProposal(lines ...models.ProposalLine) *models.Proposal {
	return &models.Proposal{ID: "prop-1", LocationID: "loc", Lines: lines}
}

var confirmed = Options{Confirmed: true}

func TestApplyConvergesOnSecondRun(t *testing.T) {
	cart := &fakeCart{}
	tokens := &fakeTokens{token: "t1"}
	ledger := newFakeLedger()
	engine := newTestEngine(cart, tokens, ledger)
	proposal := testProposal(resolvedLine("Milk", "0001", 2))

	report, err := engine.Apply(context.Background(), proposal, confirmed)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.Equal(t, models.OutcomeApplied, report.Lines[0].Outcome)
	assert.Equal(t, 2, report.Lines[0].QuantitySent)

	report, err = engine.Apply(context.Background(), proposal, confirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyApplied, report.Lines[0].Outcome)
	assert.Len(t, cart.calls, 1, "second apply issues no cart calls")
}

func TestApplySendsOnlyTheDelta(t *testing.T) {
	cart := &fakeCart{}
	ledger := newFakeLedger()
	ledger.sent["0001@loc"] = 1
	engine := newTestEngine(cart, &fakeTokens{token: "t1"}, ledger)

	report, err := engine.Apply(context.Background(), testProposal(resolvedLine("Milk", "0001", 3)), confirmed)
	require.NoError(t, err)

	require.Len(t, cart.calls, 1)
	assert.Equal(t, 2, cart.calls[0].quantity)
	assert.Equal(t, 2, report.Lines[0].QuantitySent)
	assert.Equal(t, 3, ledger.sent["0001@loc"], "ledger holds the cumulative quantity")
}

func TestApplyDryRunComputesWithoutMutating(t *testing.T) {
	cart := &fakeCart{}
	tokens := &fakeTokens{token: "t1"}
	ledger := newFakeLedger()
	engine := newTestEngine(cart, tokens, ledger)
	proposal := testProposal(resolvedLine("Milk", "0001", 2), resolvedLine("Eggs", "0002", 1))

	report, err := engine.Apply(context.Background(), proposal, Options{Confirmed: true, DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	require.Len(t, report.Lines, 2)
	assert.Equal(t, models.OutcomeApplied, report.Lines[0].Outcome)
	assert.Equal(t, 2, report.Lines[0].QuantitySent, "dry run reports the quantities a real apply would send")

	assert.Empty(t, cart.calls)
	assert.Zero(t, tokens.tokensGiven)
	assert.Zero(t, ledger.acquired, "dry runs take no lock")
	assert.Empty(t, ledger.sessions)
	assert.Empty(t, ledger.sent)
}

func TestApplyUnconfirmedIsDryRun(t *testing.T) {
	cart := &fakeCart{}
	engine := newTestEngine(cart, &fakeTokens{token: "t1"}, newFakeLedger())

	report, err := engine.Apply(context.Background(), testProposal(resolvedLine("Milk", "0001", 2)), Options{})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Empty(t, cart.calls)
}

func TestApplySkipsNonResolvedLines(t *testing.T) {
	cart := &fakeCart{}
	tokens := &fakeTokens{token: "t1"}
	ledger := newFakeLedger()
	engine := newTestEngine(cart, tokens, ledger)
	proposal := testProposal(
		models.ProposalLine{StapleName: "Eggs", Quantity: 1, ResolutionStatus: models.ResolutionUnresolved},
		models.ProposalLine{StapleName: "Bread", ResolvedProductID: "0002", Quantity: 1, ResolutionStatus: models.ResolutionAmbiguous},
	)

	report, err := engine.Apply(context.Background(), proposal, confirmed)
	require.NoError(t, err)

	require.Len(t, report.Lines, 2)
	assert.Equal(t, models.OutcomeSkipped, report.Lines[0].Outcome)
	assert.Equal(t, "unresolved", report.Lines[0].Reason)
	assert.Equal(t, models.OutcomeSkipped, report.Lines[1].Outcome)
	assert.Equal(t, "ambiguous", report.Lines[1].Reason)

	assert.Zero(t, ledger.lookups, "skipped lines never touch the ledger")
	assert.Zero(t, tokens.tokensGiven, "skipped lines never request a token")
}

func TestApplyPartialFailureIsolatedToItsLine(t *testing.T) {
	cart := &fakeCart{errs: map[string][]error{
		"0002": {&kroger.APIError{Kind: kroger.KindUpstreamUnavailable, StatusCode: 503}},
	}}
	ledger := newFakeLedger()
	engine := newTestEngine(cart, &fakeTokens{token: "t1"}, ledger)
	proposal := testProposal(
		resolvedLine("Milk", "0001", 2),
		resolvedLine("Eggs", "0002", 1),
		resolvedLine("Bread", "0003", 1),
	)

	report, err := engine.Apply(context.Background(), proposal, confirmed)
	require.NoError(t, err)

	require.Len(t, report.Lines, 3)
	assert.Equal(t, models.OutcomeApplied, report.Lines[0].Outcome)
	assert.Equal(t, models.OutcomeFailed, report.Lines[1].Outcome)
	assert.Equal(t, "upstream_unavailable", report.Lines[1].Reason)
	assert.Zero(t, report.Lines[1].QuantitySent)
	assert.Equal(t, models.OutcomeApplied, report.Lines[2].Outcome)

	assert.True(t, report.Failed())
	assert.Zero(t, ledger.sent["0002@loc"], "failed sends are never recorded")
}

func TestApplyRetriesOnceAfterStaleToken(t *testing.T) {
	cart := &fakeCart{errs: map[string][]error{
		"0001": {&kroger.APIError{Kind: kroger.KindAuthExpired, StatusCode: 401}},
	}}
	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	ledger := newFakeLedger()
	engine := newTestEngine(cart, tokens, ledger)

	report, err := engine.Apply(context.Background(), testProposal(resolvedLine("Milk", "0001", 2)), confirmed)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeApplied, report.Lines[0].Outcome)
	assert.Equal(t, 1, tokens.refreshes)
	require.Len(t, cart.calls, 2)
	assert.Equal(t, "fresh", cart.calls[1].token)
}

func TestApplyStaleTokenFailsAfterSecond401(t *testing.T) {
	cart := &fakeCart{errs: map[string][]error{
		"0001": {
			&kroger.APIError{Kind: kroger.KindAuthExpired, StatusCode: 401},
			&kroger.APIError{Kind: kroger.KindAuthExpired, StatusCode: 401},
		},
	}}
	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	engine := newTestEngine(cart, tokens, newFakeLedger())

	report, err := engine.Apply(context.Background(), testProposal(resolvedLine("Milk", "0001", 2)), confirmed)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, report.Lines[0].Outcome)
	assert.Equal(t, "auth_expired", report.Lines[0].Reason)
	assert.Equal(t, 1, tokens.refreshes, "exactly one forced refresh per line")
	assert.Len(t, cart.calls, 2)
}

func TestApplyReauthRequiredReason(t *testing.T) {
	tokens := &fakeTokens{getErr: auth.ErrReauthRequired}
	engine := newTestEngine(&fakeCart{}, tokens, newFakeLedger())

	report, err := engine.Apply(context.Background(), testProposal(resolvedLine("Milk", "0001", 2)), confirmed)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, report.Lines[0].Outcome)
	assert.Equal(t, "reauth_required", report.Lines[0].Reason)
}

func TestApplyLedgerWriteFailureStopsTheRun(t *testing.T) {
	cart := &fakeCart{}
	ledger := newFakeLedger()
	ledger.recordErr = errors.New("disk full")
	engine := newTestEngine(cart, &fakeTokens{token: "t1"}, ledger)
	proposal := testProposal(resolvedLine("Milk", "0001", 2), resolvedLine("Eggs", "0002", 1))

	report, err := engine.Apply(context.Background(), proposal, confirmed)
	require.Error(t, err)

	require.Len(t, report.Lines, 1, "remaining lines are not attempted")
	assert.Equal(t, models.OutcomeFailed, report.Lines[0].Outcome)
	assert.Equal(t, "persistence_failure", report.Lines[0].Reason)
	assert.Len(t, cart.calls, 1)
}

type cancellingCart struct {
	cancel   context.CancelFunc
	ctxErrs  []error
	canceled bool
}

func (c *cancellingCart) AddToCart(ctx context.Context, _, _ string, _ int, _ models.Modality) error {
	if !c.canceled {
		c.canceled = true
		c.cancel()
	}
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	return ctx.Err()
}

func TestApplyCancelMidFlightLineRunsToCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cart := &cancellingCart{cancel: cancel}
	ledger := newFakeLedger()
	engine := newTestEngine(cart, &fakeTokens{token: "t1"}, ledger)
	proposal := testProposal(resolvedLine("Milk", "0001", 2), resolvedLine("Eggs", "0002", 1))

	report, err := engine.Apply(ctx, proposal, confirmed)
	require.ErrorIs(t, err, context.Canceled)

	// The in-flight line saw an uncancelled context, completed, and was
	// recorded; cancellation only took effect before the next line.
	require.Len(t, cart.ctxErrs, 1)
	assert.NoError(t, cart.ctxErrs[0])
	require.Len(t, report.Lines, 1)
	assert.Equal(t, models.OutcomeApplied, report.Lines[0].Outcome)
	assert.Equal(t, 2, ledger.sent["0001@loc"])
}

func TestApplyCancellationReturnsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := newTestEngine(&fakeCart{}, &fakeTokens{token: "t1"}, newFakeLedger())

	report, err := engine.Apply(ctx, testProposal(resolvedLine("Milk", "0001", 2)), confirmed)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Lines)
}

func TestApplyRecordsSessionAndReleasesLock(t *testing.T) {
	ledger := newFakeLedger()
	engine := newTestEngine(&fakeCart{}, &fakeTokens{token: "t1"}, ledger)

	_, err := engine.Apply(context.Background(), testProposal(resolvedLine("Milk", "0001", 2)), confirmed)
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.acquired)
	assert.Equal(t, 1, ledger.released)
	require.Len(t, ledger.sessions, 1)
	session := ledger.sessions[0]
	assert.Equal(t, "session-1", session.SessionID)
	assert.Equal(t, "prop-1", session.ProposalID)
	assert.Equal(t, "loc", session.LocationID)
	assert.Len(t, session.Lines, 1)
}
