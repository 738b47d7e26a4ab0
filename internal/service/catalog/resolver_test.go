package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/pkg/clients/kroger"
)

type fakeTokenSource struct {
	token string
	err   error
}

func (f *fakeTokenSource) GetToken(context.Context, models.TokenScope) (string, error) {
	return f.token, f.err
}

type fakeSearchClient struct {
	candidates []models.ProductCandidate
	searchErr  error
	details    map[string]*models.ProductCandidate
	detailErr  error
	detailIDs  []string
}

func (f *fakeSearchClient) SearchProducts(_ context.Context, _, _, _ string, _ int) ([]models.ProductCandidate, error) {
	return f.candidates, f.searchErr
}

func (f *fakeSearchClient) GetProduct(_ context.Context, _, productID, _ string) (*models.ProductCandidate, error) {
	f.detailIDs = append(f.detailIDs, productID)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.details[productID], nil
}

func TestResolvePreservesSearchOrder(t *testing.T) {
	client := &fakeSearchClient{candidates: []models.ProductCandidate{
		{ProductID: "p1", UPC: "0001"},
		{ProductID: "p2", UPC: "0002"},
	}}
	resolver := NewResolver(client, &fakeTokenSource{token: "t1"}, nil)

	candidates, err := resolver.Resolve(context.Background(), "milk", "loc", 5)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "p1", candidates[0].ProductID)
	assert.Empty(t, client.detailIDs, "no backfill when identifiers are present")
}

func TestResolveBackfillsMissingIdentifiers(t *testing.T) {
	client := &fakeSearchClient{
		candidates: []models.ProductCandidate{
			{ProductID: "p1"},
			{ProductID: "p2", UPC: "0002"},
			{ProductID: "p3"},
			{ProductID: "p4"},
		},
		details: map[string]*models.ProductCandidate{
			"p1": {ProductID: "p1", UPC: "0001"},
			"p3": {ProductID: "p3", UPC: "0003"},
		},
	}
	resolver := NewResolver(client, &fakeTokenSource{token: "t1"}, nil)

	candidates, err := resolver.Resolve(context.Background(), "milk", "loc", 5)
	require.NoError(t, err)

	assert.Equal(t, "0001", candidates[0].UPC)
	assert.Equal(t, "0003", candidates[2].UPC)
	assert.Empty(t, candidates[3].UPC, "backfill stops past the ranking depth cutoff")
	assert.Equal(t, []string{"p1", "p3"}, client.detailIDs)
}

func TestResolveBackfillFailureIsNonFatal(t *testing.T) {
	client := &fakeSearchClient{
		candidates: []models.ProductCandidate{{ProductID: "p1"}},
		detailErr:  &kroger.APIError{Kind: kroger.KindUpstreamUnavailable},
	}
	resolver := NewResolver(client, &fakeTokenSource{token: "t1"}, nil)

	candidates, err := resolver.Resolve(context.Background(), "milk", "loc", 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Empty(t, candidates[0].UPC)
}

func TestResolveTokenErrorPropagates(t *testing.T) {
	tokenErr := errors.New("exchange refused")
	resolver := NewResolver(&fakeSearchClient{}, &fakeTokenSource{err: tokenErr}, nil)

	_, err := resolver.Resolve(context.Background(), "milk", "loc", 5)
	require.ErrorIs(t, err, tokenErr)
}

func TestResolveSearchErrorPropagates(t *testing.T) {
	searchErr := &kroger.APIError{Kind: kroger.KindInvalidLocation, StatusCode: 400}
	resolver := NewResolver(&fakeSearchClient{searchErr: searchErr}, &fakeTokenSource{token: "t1"}, nil)

	_, err := resolver.Resolve(context.Background(), "milk", "loc", 5)
	require.Error(t, err)
	assert.Equal(t, kroger.KindInvalidLocation, kroger.KindOf(err))
}
