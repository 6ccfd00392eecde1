package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/model"
	"localchat/internal/testutil"
)

func TestUsageRepositoryListByUserID(t *testing.T) {
	ctx := context.Background()
	repo := NewUsageRepository(testutil.NewDB(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.UsageRecord{
			UserID:    1,
			SessionID: uint(i + 1),
			Model:     "llama3",
			Outcome:   model.UsageOutcomeOK,
		}))
	}
	require.NoError(t, repo.Create(ctx, &model.UsageRecord{UserID: 2, SessionID: 9, Model: "llama3", Outcome: model.UsageOutcomeUpstreamFailure}))

	records, err := repo.ListByUserID(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint(3), records[0].SessionID)
	assert.Equal(t, uint(2), records[1].SessionID)

	other, err := repo.ListByUserID(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, model.UsageOutcomeUpstreamFailure, other[0].Outcome)
}
