package store

import (
	"context"
	"time"

	"github.com/marketpulse/ingestor/internal/reliability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChunkSize is the batch size for composed upsert operations: spec.md
// §4.4 asks for 200-1000 per chunk. 500 splits the difference.
const ChunkSize = 500

// Backoff describes a chunk retry policy (see reliability.BasicsBackoff
// and reliability.HistoricalBackoff).
type Backoff struct {
	Base     time.Duration
	Attempts int
}

// BulkUpsert executes models in chunks of ChunkSize against coll, using
// ordered=false (writes within a round are unordered per spec.md §5) and
// retrying each chunk on error with the given backoff policy. It returns
// the total number of documents upserted/matched/modified and the number
// of chunks that still failed after exhausting retries — the caller uses
// the error count to decide between a terminal "success" and
// "success_with_errors" SyncStatus.
func BulkUpsert(ctx context.Context, coll *mongo.Collection, models []mongo.WriteModel, backoff Backoff) (written int, failedChunks int) {
	opts := options.BulkWrite().SetOrdered(false)

	for start := 0; start < len(models); start += ChunkSize {
		end := start + ChunkSize
		if end > len(models) {
			end = len(models)
		}
		chunk := models[start:end]

		var res *mongo.BulkWriteResult
		err := reliability.Do(ctx, backoff.Attempts, backoff.Base, func(ctx context.Context) error {
			chunkCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()
			r, werr := coll.BulkWrite(chunkCtx, chunk, opts)
			if werr != nil {
				return werr
			}
			res = r
			return nil
		})

		if err != nil {
			failedChunks++
			continue
		}
		if res != nil {
			written += int(res.UpsertedCount + res.ModifiedCount + res.MatchedCount)
		}
	}
	return written, failedChunks
}
