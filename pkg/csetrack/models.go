package csetrack

// FeeRate is the combined CSE transaction cost (brokerage + CSE/SEC fees +
// share transaction levy) applied to every BUY, as a fraction of base cost.
const FeeRate = 0.0112

// Disciplined-buying bands, in percent of the last buy price.
const (
	DefaultDisciplineBuyThreshold = 15.0
	disciplineDropGuard           = -5.0
	disciplineRiseGuard           = -10.0
)

var TransactionTypes = []string{"BUY", "SELL", "DIVIDEND"}

// Rule types supported by the evaluation engine.
const (
	RulePositionSize   = "POSITION_SIZE"
	RuleStopLoss       = "STOP_LOSS"
	RuleTakeProfit     = "TAKE_PROFIT"
	RuleSectorLimit    = "SECTOR_LIMIT"
	RuleTradeFrequency = "TRADE_FREQUENCY"
	RuleCashBuffer     = "CASH_BUFFER"
	RuleBuyCondition   = "BUY_CONDITION"
	RuleSellCondition  = "SELL_CONDITION"
)

var RuleTypes = []string{
	RulePositionSize,
	RuleStopLoss,
	RuleTakeProfit,
	RuleSectorLimit,
	RuleTradeFrequency,
	RuleCashBuffer,
	RuleBuyCondition,
	RuleSellCondition,
}

// Violation severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Holding statuses.
const (
	HoldingActive = "active"
	HoldingSold   = "sold"
)

// Holding represents a persisted position in one stock.
type Holding struct {
	ID              int64   `json:"id"`
	Symbol          string  `json:"symbol"`
	Name            *string `json:"name"`
	Sector          *string `json:"sector"`
	Quantity        float64 `json:"quantity"`
	AvgPrice        float64 `json:"avg_price"`
	TotalInvested   float64 `json:"total_invested"`
	InitialBuyPrice float64 `json:"initial_buy_price"`
	LastBuyPrice    float64 `json:"last_buy_price"`
	Status          string  `json:"status"`
	CreatedAt       *string `json:"created_at"`
	UpdatedAt       *string `json:"updated_at"`
}

// HoldingSnapshot is a holding enriched with the live price. Computed fresh
// on every evaluation; never cached or persisted.
type HoldingSnapshot struct {
	Holding
	CurrentPrice      float64 `json:"current_price"`
	CurrentValue      float64 `json:"current_value"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
}

// PortfolioTotals aggregates a snapshot into dashboard figures.
type PortfolioTotals struct {
	HoldingsCount       int     `json:"holdings_count"`
	TotalInvested       float64 `json:"total_invested"`
	TotalValue          float64 `json:"total_value"`
	ProfitLoss          float64 `json:"profit_loss"`
	CashBalance         float64 `json:"cash_balance"`
	NetLiquidationValue float64 `json:"net_liquidation_value"`
	CashPercent         float64 `json:"cash_percent"`
}

// Transaction represents one ledger entry.
type Transaction struct {
	ID              int64   `json:"id"`
	TransactionDate string  `json:"transaction_date"`
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	Fees            Amount  `json:"fees"`
	TotalAmount     Amount  `json:"total_amount"`
	Notes           *string `json:"notes"`
	Reference       string  `json:"reference"`
	CreatedAt       *string `json:"created_at"`
}

// AddTransactionRequest defines inputs to record a transaction.
type AddTransactionRequest struct {
	TransactionDate string
	Symbol          string
	TransactionType string
	Quantity        float64
	Price           float64
	Fees            *float64
	Sector          *string
	Notes           *string
}

// TradingRule is a persisted discipline rule, consumed read-only by the
// evaluation engine.
type TradingRule struct {
	ID        int64   `json:"id"`
	RuleType  string  `json:"rule_type"`
	Threshold float64 `json:"threshold"`
	IsActive  bool    `json:"is_active"`
	CreatedAt *string `json:"created_at"`
}

// RuleViolation is produced per evaluation call and never persisted.
type RuleViolation struct {
	RuleID       int64   `json:"rule_id"`
	RuleType     string  `json:"rule_type"`
	Threshold    float64 `json:"threshold"`
	CurrentValue float64 `json:"current_value"`
	Severity     string  `json:"severity"`
	Symbol       *string `json:"symbol,omitempty"`
	Sector       *string `json:"sector,omitempty"`
	Message      string  `json:"message"`
	Impact       string  `json:"impact"`
}

// Settings holds the single-row user configuration.
type Settings struct {
	TotalCapital           float64 `json:"total_capital"`
	DisciplineBuyThreshold float64 `json:"discipline_buy_threshold"`
}

// StockAllocationRequest is one optimizer input entry.
type StockAllocationRequest struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	AllocationPercent float64 `json:"allocation_percent"`
	TranchePercent    float64 `json:"tranche_percent"`
	IsPriority        bool    `json:"is_priority"`
}

// AllocationResult is one optimizer output entry, 1:1 with its input.
type AllocationResult struct {
	Symbol          string  `json:"symbol"`
	Price           float64 `json:"price"`
	IsPriority      bool    `json:"is_priority"`
	TargetAmount    float64 `json:"target_amount"`
	TargetShares    float64 `json:"target_shares"`
	OptimizedShares int     `json:"optimized_shares"`
	BaseCost        float64 `json:"base_cost"`
	FeeCost         float64 `json:"fee_cost"`
	TotalCost       float64 `json:"total_cost"`
	ActualPercent   float64 `json:"actual_percent"`
}

// AllocationPlan is the full optimizer output.
type AllocationPlan struct {
	Results          []AllocationResult `json:"results"`
	EffectiveBudget  float64            `json:"effective_budget"`
	TotalCost        float64            `json:"total_cost"`
	TotalFees        float64            `json:"total_fees"`
	RemainingCapital float64            `json:"remaining_capital"`
}

// AllocationTarget is a persisted optimizer input: one stock with its
// nominal share of total capital, optionally split into tranches.
type AllocationTarget struct {
	ID                int64               `json:"id"`
	Symbol            string              `json:"symbol"`
	AllocationPercent float64             `json:"allocation_percent"`
	IsPriority        bool                `json:"is_priority"`
	Tranches          []AllocationTranche `json:"tranches"`
}

// AllocationTranche is one staged entry of a target's allocation. Percent
// values of a target's tranches always sum to exactly 100.
type AllocationTranche struct {
	ID       int64   `json:"id"`
	TargetID int64   `json:"target_id"`
	Label    string  `json:"label"`
	Price    float64 `json:"price"`
	Percent  float64 `json:"percent"`
}

// ProposedTransaction is a hypothetical trade for pre-trade simulation.
type ProposedTransaction struct {
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	Fees            float64 `json:"fees"`
	Sector          *string `json:"sector,omitempty"`
}

// SimulationResult is the outcome of a pre-trade simulation.
type SimulationResult struct {
	IsValid    bool            `json:"is_valid"`
	Violations []RuleViolation `json:"violations"`
	NewTotals  PortfolioTotals `json:"new_totals"`
}

// LatestPrice represents the last known price for a symbol.
type LatestPrice struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Source    string  `json:"source"`
	UpdatedAt string  `json:"updated_at"`
}

// OperationLog represents an audit log record.
type OperationLog struct {
	ID        int64    `json:"id"`
	Operation string   `json:"operation_type"`
	Symbol    *string  `json:"symbol"`
	Details   *string  `json:"details"`
	OldValue  *float64 `json:"old_value"`
	NewValue  *float64 `json:"new_value"`
	CreatedAt *string  `json:"created_at"`
}

// PortfolioPoint represents a cumulative portfolio cash-flow point.
type PortfolioPoint struct {
	Date  string `json:"date"`
	Value Amount `json:"value"`
}

// PortfolioSummary bundles totals with the current rule status.
type PortfolioSummary struct {
	Totals         PortfolioTotals `json:"totals"`
	ViolationCount int             `json:"violation_count"`
	CriticalCount  int             `json:"critical_count"`
}

// PriceResult represents a fetch price result.
type PriceResult struct {
	Price   *float64 `json:"price"`
	Message string   `json:"message"`
}
