package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/model"
	"localchat/internal/pkg/logger"
	"localchat/internal/repository"
	"localchat/internal/testutil"
)

func TestUsageWorkerHandle(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewUsageRepository(testutil.NewDB(t))
	w := NewUsagePersistWorker(nil, repo, "chat.usage.record", logger.Discard())

	body, err := json.Marshal(model.UsageRecord{
		ID:              99,
		UserID:          1,
		SessionID:       2,
		Model:           "llama3",
		Outcome:         model.UsageOutcomeOK,
		PromptChars:     12,
		CompletionChars: 1,
		LatencyMS:       320,
		CreatedAt:       time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, w.handle(ctx, body))

	records, err := repo.ListByUserID(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(320), records[0].LatencyMS)
	assert.NotEqual(t, uint(99), records[0].ID, "broker payload ids are ignored")
}

func TestUsageWorkerRejectsBadPayloads(t *testing.T) {
	w := NewUsagePersistWorker(nil, repository.NewUsageRepository(testutil.NewDB(t)), "q", logger.Discard())

	assert.Error(t, w.handle(context.Background(), []byte("{not json")))
	assert.Error(t, w.handle(context.Background(), []byte(`{"user_id":0,"session_id":1}`)))
}

func TestUsageWorkerCloseWithoutStart(t *testing.T) {
	w := NewUsagePersistWorker(nil, nil, "q", logger.Discard())
	w.Close()
}
