package quotes

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
)

const jobQuotes = "quotes_ingestion"

// recordRunning and recordTerminal mirror internal/ingestion's SyncStatus
// bookkeeping (job-keyed upsert, data_type as a denormalized tag) — kept
// as the pipeline's own small copy rather than exported from ingestion,
// since quotes has no other dependency on that package.
func recordRunning(ctx context.Context, st *store.Store, source string) error {
	now := time.Now().UTC()
	_, err := st.SyncStatuses().UpdateOne(ctx,
		bson.M{"job": jobQuotes},
		bson.M{"$set": bson.M{
			"job":         jobQuotes,
			"data_type":   "market_quotes",
			"status":      domain.SyncRunning,
			"source":      source,
			"started_at":  now,
			"finished_at": nil,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func recordTerminal(ctx context.Context, st *store.Store, status domain.SyncStatusState, source string, recordsCount int, errorMessage string) error {
	now := time.Now().UTC()
	_, err := st.SyncStatuses().UpdateOne(ctx,
		bson.M{"job": jobQuotes},
		bson.M{"$set": bson.M{
			"status":        status,
			"source":        source,
			"records_count": recordsCount,
			"error_message": errorMessage,
			"finished_at":   now,
		}},
		options.Update(),
	)
	return err
}
