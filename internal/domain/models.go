package domain

import "time"

// StockBasics is instrument metadata plus a valuation snapshot, keyed by
// the (code, source) compound. It is never hard-deleted — each ingestion
// round upserts in place.
type StockBasics struct {
	Code         string    `bson:"code" json:"code"`
	Source       string    `bson:"source" json:"source"`
	Name         string    `bson:"name" json:"name"`
	Industry     string    `bson:"industry,omitempty" json:"industry,omitempty"`
	Market       string    `bson:"market,omitempty" json:"market,omitempty"`
	ListDate     string    `bson:"list_date,omitempty" json:"list_date,omitempty"`
	FullSymbol   string    `bson:"full_symbol" json:"full_symbol"`
	TotalMV      *float64  `bson:"total_mv,omitempty" json:"total_mv,omitempty"`     // 亿元
	CircMV       *float64  `bson:"circ_mv,omitempty" json:"circ_mv,omitempty"`       // 亿元
	PE           *float64  `bson:"pe,omitempty" json:"pe,omitempty"`
	PETTM        *float64  `bson:"pe_ttm,omitempty" json:"pe_ttm,omitempty"`
	PB           *float64  `bson:"pb,omitempty" json:"pb,omitempty"`
	PS           *float64  `bson:"ps,omitempty" json:"ps,omitempty"`
	TurnoverRate *float64  `bson:"turnover_rate,omitempty" json:"turnover_rate,omitempty"`
	TotalShare   *float64  `bson:"total_share,omitempty" json:"total_share,omitempty"` // 万股
	ROE          *float64  `bson:"roe,omitempty" json:"roe,omitempty"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// MarketQuote is the latest near-realtime snapshot for one instrument,
// upserted on every ingestion round. Code is unique.
type MarketQuote struct {
	Code      string    `bson:"code" json:"code"`
	Symbol    string    `bson:"symbol" json:"symbol"`
	Close     float64   `bson:"close" json:"close"`
	Open      float64   `bson:"open" json:"open"`
	High      float64   `bson:"high" json:"high"`
	Low       float64   `bson:"low" json:"low"`
	PreClose  float64   `bson:"pre_close" json:"pre_close"`
	PctChg    float64   `bson:"pct_chg" json:"pct_chg"`
	Volume    float64   `bson:"volume" json:"volume"`
	Amount    float64   `bson:"amount" json:"amount"`
	TradeDate string    `bson:"trade_date" json:"trade_date"`
	Source    string    `bson:"source" json:"source"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HistoricalBar is one OHLCV bar, keyed by (symbol, trade_date,
// data_source, period). Immutable once written; unit conversion (Tushare
// amount thousands->yuan, volume hands->shares) happens before the upsert,
// never at read time.
type HistoricalBar struct {
	Symbol     string    `bson:"symbol" json:"symbol"`
	TradeDate  string    `bson:"trade_date" json:"trade_date"`
	DataSource string    `bson:"data_source" json:"data_source"`
	Period     string    `bson:"period" json:"period"` // daily | weekly | monthly
	Open       float64   `bson:"open" json:"open"`
	High       float64   `bson:"high" json:"high"`
	Low        float64   `bson:"low" json:"low"`
	Close      float64   `bson:"close" json:"close"`
	PreClose   float64   `bson:"pre_close,omitempty" json:"pre_close,omitempty"`
	Volume     float64   `bson:"volume" json:"volume"` // shares
	Amount     float64   `bson:"amount" json:"amount"` // yuan
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// FinancialStatement carries balance/income/cashflow figures and derived
// indicators for one (code, report_period).
type FinancialStatement struct {
	Code           string    `bson:"code" json:"code"`
	ReportPeriod   string    `bson:"report_period" json:"report_period"`
	TotalEquity    *float64  `bson:"total_equity,omitempty" json:"total_equity,omitempty"` // 亿元
	NetProfitTTM   *float64  `bson:"net_profit_ttm,omitempty" json:"net_profit_ttm,omitempty"`
	Revenue        *float64  `bson:"revenue,omitempty" json:"revenue,omitempty"`
	Source         string    `bson:"source" json:"source"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// TaskStatus is the lifecycle state of an AnalysisTask. Once terminal,
// status never regresses.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether status is one of the three terminal states.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// AnalysisTask is one analysis job's lifecycle record.
type AnalysisTask struct {
	TaskID      string     `bson:"task_id" json:"task_id"`
	UserID      string     `bson:"user_id" json:"user_id"`
	Symbol      string     `bson:"symbol" json:"symbol"`
	Status      TaskStatus `bson:"status" json:"status"`
	Params      map[string]any `bson:"params,omitempty" json:"params,omitempty"`
	BatchID     string     `bson:"batch_id,omitempty" json:"batch_id,omitempty"`
	WorkerID    string     `bson:"worker_id,omitempty" json:"worker_id,omitempty"`
	ErrorMessage string    `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	EnqueuedAt  *time.Time `bson:"enqueued_at,omitempty" json:"enqueued_at,omitempty"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	RequeuedAt  *time.Time `bson:"requeued_at,omitempty" json:"requeued_at,omitempty"`
}

// AnalysisReport is the completed analysis artifact, written once on
// success. Reports is a string-keyed map because the upstream analysis
// function's sections (market_report, sentiment_report, ...) are opaque
// to this system; every value is coerced to string at the write boundary.
type AnalysisReport struct {
	TaskID         string            `bson:"task_id" json:"task_id"`
	AnalysisID     string            `bson:"analysis_id,omitempty" json:"analysis_id,omitempty"`
	Symbol         string            `bson:"symbol" json:"symbol"`
	AnalysisDate   string            `bson:"analysis_date" json:"analysis_date"`
	Reports        map[string]string `bson:"reports" json:"reports"`
	Summary        string            `bson:"summary,omitempty" json:"summary,omitempty"`
	Recommendation string            `bson:"recommendation,omitempty" json:"recommendation,omitempty"`
	CreatedAt      time.Time         `bson:"created_at" json:"created_at"`
}

// SyncStatusState is the run state of one ingestion job.
type SyncStatusState string

const (
	SyncIdle               SyncStatusState = "idle"
	SyncRunning            SyncStatusState = "running"
	SyncSuccess            SyncStatusState = "success"
	SyncSuccessWithErrors  SyncStatusState = "success_with_errors"
	SyncFailed             SyncStatusState = "failed"
)

// SyncStatus is the last-run outcome for one ingestion job, overwritten
// each run. Upserted by Job alone; DataType is a denormalized tag used
// for filtering/display, not a partition key (see DESIGN.md Open
// Question decisions).
type SyncStatus struct {
	Job           string          `bson:"job" json:"job"`
	DataType      string          `bson:"data_type,omitempty" json:"data_type,omitempty"`
	Status        SyncStatusState `bson:"status" json:"status"`
	Source        string          `bson:"source,omitempty" json:"source,omitempty"`
	RecordsCount  int             `bson:"records_count" json:"records_count"`
	ErrorCount    int             `bson:"error_count" json:"error_count"`
	ErrorMessage  string          `bson:"error_message,omitempty" json:"error_message,omitempty"`
	StartedAt     time.Time       `bson:"started_at" json:"started_at"`
	FinishedAt    *time.Time      `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// IsStale reports whether a "running" status started long enough ago
// that it should be treated as crashed and eligible for takeover.
func (s SyncStatus) IsStale(now time.Time, threshold time.Duration) bool {
	return s.Status == SyncRunning && now.Sub(s.StartedAt) > threshold
}

// Notification is a user-visible event, pruned by the retention policy
// applied at write time (see internal/notify).
type Notification struct {
	ID        string         `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string         `bson:"user_id" json:"user_id"`
	Type      string         `bson:"type" json:"type"`
	Title     string         `bson:"title" json:"title"`
	Content   string         `bson:"content,omitempty" json:"content,omitempty"`
	Link      string         `bson:"link,omitempty" json:"link,omitempty"`
	Source    string         `bson:"source,omitempty" json:"source,omitempty"`
	Severity  string         `bson:"severity" json:"severity"`
	Status    string         `bson:"status" json:"status"` // unread | read
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// DataSourceGrouping is an admin-managed per-market priority override,
// read once at adapter manager construction. Larger Priority ranks higher.
type DataSourceGrouping struct {
	MarketCategoryID string `bson:"market_category_id" json:"market_category_id"`
	DataSourceName   string `bson:"data_source_name" json:"data_source_name"`
	Priority         int    `bson:"priority" json:"priority"`
}
