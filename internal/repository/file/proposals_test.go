package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krogetapp/kroget/internal/domain/models"
)

func sampleProposal(id string, createdAt time.Time) *models.Proposal {
	return &models.Proposal{
		ID:         id,
		CreatedAt:  createdAt,
		LocationID: "01400441",
		Lines: []models.ProposalLine{
			{
				StapleName:        "Milk",
				ResolvedProductID: "0001",
				Quantity:          2,
				Modality:          models.ModalityPickup,
				ResolutionStatus:  models.ResolutionResolved,
			},
		},
	}
}

func TestProposalRoundTrip(t *testing.T) {
	repo := NewProposalRepository(t.TempDir())
	original := sampleProposal("prop-1", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	path, err := repo.Save(original)
	require.NoError(t, err)

	loaded, err := repo.Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestProposalSaveIsWriteOnce(t *testing.T) {
	repo := NewProposalRepository(t.TempDir())
	p := sampleProposal("prop-1", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	_, err := repo.Save(p)
	require.NoError(t, err)

	_, err = repo.Save(p)
	require.ErrorIs(t, err, ErrExists)
}

func TestProposalLatestPicksNewest(t *testing.T) {
	repo := NewProposalRepository(t.TempDir())

	_, err := repo.Save(sampleProposal("older", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = repo.Save(sampleProposal("newer", time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	latest, _, err := repo.Latest()
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.ID)
}

func TestProposalLatestEmpty(t *testing.T) {
	repo := NewProposalRepository(t.TempDir())

	_, _, err := repo.Latest()
	require.ErrorIs(t, err, ErrNotFound)
}
