// Package store is the Document Store Gateway: typed accessors over the
// MongoDB collections listed in spec.md §3, index creation at startup,
// batched upserts with retry/backoff, and ObjectId<->string conversion at
// the boundary.
//
// Connection tuning follows the teacher's profile idea
// (internal/database/db.go's ProfileLedger/ProfileCache/ProfileStandard)
// translated from sqlite PRAGMAs to Mongo write concern / read preference:
// Ledger-profile collections (AnalysisTask, AnalysisReport, Notification)
// write with majority concern since they are the durable job log; Cache-
// profile collections (MarketQuote) write with w:1 (primary
// acknowledgement only) since a lost write is superseded by the next
// ingestion round regardless; everything
// else uses the balanced Standard profile.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Profile selects the write-durability tradeoff for a collection.
type Profile string

const (
	ProfileLedger   Profile = "ledger"
	ProfileCache    Profile = "cache"
	ProfileStandard Profile = "standard"
)

// Config configures the Mongo connection.
type Config struct {
	URI               string
	Database          string
	MinPoolSize       uint64
	MaxPoolSize       uint64
	ConnectTimeout    time.Duration
	SocketTimeout     time.Duration
}

// Store wraps a Mongo database handle with the collection accessors used
// throughout the ingestion and orchestration paths.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// New connects to Mongo and returns a Store. It does not create indexes;
// call EnsureIndexes once after construction (non-blocking, idempotent).
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(cfg.Database),
		log:    log.With().Str("component", "store").Logger(),
	}, nil
}

// Close disconnects from Mongo.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// collection returns the named collection with the write concern implied
// by profile.
func (s *Store) collection(name string, profile Profile) *mongo.Collection {
	switch profile {
	case ProfileLedger:
		return s.db.Collection(name, options.Collection().SetWriteConcern(writeconcern.Majority()))
	case ProfileCache:
		return s.db.Collection(name, options.Collection().SetWriteConcern(writeconcern.W1()))
	default:
		return s.db.Collection(name)
	}
}

// Collection names, centralized so every accessor and the index-creation
// pass agree on them.
const (
	CollStockBasics    = "stock_basic_info"
	CollMarketQuotes   = "market_quotes"
	CollHistoricalBars = "stock_daily_quotes"
	CollFinancials     = "financial_statements"
	CollAnalysisTasks  = "analysis_tasks"
	CollAnalysisReport = "analysis_reports"
	CollSyncStatus     = "sync_status"
	CollNotifications  = "notifications"
	CollDataSourceGrp  = "data_source_grouping"
)

func (s *Store) StockBasics() *mongo.Collection    { return s.collection(CollStockBasics, ProfileStandard) }
func (s *Store) MarketQuotes() *mongo.Collection   { return s.collection(CollMarketQuotes, ProfileCache) }
func (s *Store) HistoricalBars() *mongo.Collection { return s.collection(CollHistoricalBars, ProfileStandard) }
func (s *Store) Financials() *mongo.Collection     { return s.collection(CollFinancials, ProfileStandard) }
func (s *Store) AnalysisTasks() *mongo.Collection  { return s.collection(CollAnalysisTasks, ProfileLedger) }
func (s *Store) AnalysisReports() *mongo.Collection {
	return s.collection(CollAnalysisReport, ProfileLedger)
}
func (s *Store) SyncStatuses() *mongo.Collection { return s.collection(CollSyncStatus, ProfileStandard) }
func (s *Store) Notifications() *mongo.Collection {
	return s.collection(CollNotifications, ProfileLedger)
}
func (s *Store) DataSourceGroupings() *mongo.Collection {
	return s.collection(CollDataSourceGrp, ProfileStandard)
}

// Database exposes the raw database handle for callers (e.g. the
// consistency checker's ad-hoc aggregation) that need it directly.
func (s *Store) Database() *mongo.Database { return s.db }
