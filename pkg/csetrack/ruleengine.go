package csetrack

import (
	"fmt"
	"time"
)

// Severity escalation multipliers.
const (
	positionSizeCriticalFactor   = 1.2
	sectorLimitCriticalFactor    = 1.2
	stopLossCriticalFactor       = 1.5
	tradeFrequencyCriticalFactor = 1.5
	tradeFrequencyWindowDays     = 7
)

// EvaluateRules checks every active rule against a portfolio snapshot and
// returns violations keyed by rule id. Rules that produced no violation are
// absent from the map entirely; an absent id means "currently compliant".
// A rule matching several holdings yields one violation per match.
//
// Evaluation is read-only and recomputes all aggregates from the snapshot on
// every call. BUY_CONDITION and SELL_CONDITION rules apply to individual
// trades, not portfolio state, and never produce snapshot violations here.
func EvaluateRules(
	rules []TradingRule,
	snapshot []HoldingSnapshot,
	transactions []Transaction,
	settings Settings,
) map[int64][]RuleViolation {
	totals := ComputeTotals(snapshot, settings)
	result := map[int64][]RuleViolation{}

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		var violations []RuleViolation
		switch rule.RuleType {
		case RuleCashBuffer:
			violations = checkCashBuffer(rule, totals)
		case RulePositionSize:
			violations = checkPositionSize(rule, snapshot, totals)
		case RuleStopLoss:
			violations = checkStopLoss(rule, snapshot)
		case RuleTakeProfit:
			violations = checkTakeProfit(rule, snapshot)
		case RuleSectorLimit:
			violations = checkSectorLimit(rule, snapshot, totals)
		case RuleTradeFrequency:
			violations = checkTradeFrequency(rule, transactions)
		}
		if len(violations) > 0 {
			result[rule.ID] = violations
		}
	}
	return result
}

func checkCashBuffer(rule TradingRule, totals PortfolioTotals) []RuleViolation {
	if totals.CashPercent >= rule.Threshold {
		return nil
	}
	return []RuleViolation{{
		RuleID:       rule.ID,
		RuleType:     rule.RuleType,
		Threshold:    rule.Threshold,
		CurrentValue: round2(totals.CashPercent),
		Severity:     SeverityCritical,
		Message: fmt.Sprintf("Cash buffer is %.1f%%, below the required %.0f%%",
			totals.CashPercent, rule.Threshold),
		Impact: "Insufficient cash to absorb drawdowns or act on opportunities.",
	}}
}

func checkPositionSize(rule TradingRule, snapshot []HoldingSnapshot, totals PortfolioTotals) []RuleViolation {
	if totals.NetLiquidationValue <= 0 {
		return nil
	}
	var violations []RuleViolation
	for _, h := range snapshot {
		percent := h.CurrentValue / totals.NetLiquidationValue * 100
		if percent <= rule.Threshold {
			continue
		}
		severity := SeverityWarning
		if percent > rule.Threshold*positionSizeCriticalFactor {
			severity = SeverityCritical
		}
		symbol := h.Symbol
		violations = append(violations, RuleViolation{
			RuleID:       rule.ID,
			RuleType:     rule.RuleType,
			Threshold:    rule.Threshold,
			CurrentValue: round2(percent),
			Severity:     severity,
			Symbol:       &symbol,
			Message: fmt.Sprintf("%s is %.1f%% of the portfolio, above the %.0f%% cap",
				h.Symbol, percent, rule.Threshold),
			Impact: "Concentration risk: one position dominates portfolio outcomes.",
		})
	}
	return violations
}

func checkStopLoss(rule TradingRule, snapshot []HoldingSnapshot) []RuleViolation {
	var violations []RuleViolation
	for _, h := range snapshot {
		if h.ProfitLossPercent >= -rule.Threshold {
			continue
		}
		severity := SeverityWarning
		if h.ProfitLossPercent < -rule.Threshold*stopLossCriticalFactor {
			severity = SeverityCritical
		}
		symbol := h.Symbol
		violations = append(violations, RuleViolation{
			RuleID:       rule.ID,
			RuleType:     rule.RuleType,
			Threshold:    rule.Threshold,
			CurrentValue: round2(h.ProfitLossPercent),
			Severity:     severity,
			Symbol:       &symbol,
			Message: fmt.Sprintf("%s is down %.1f%%, past the %.0f%% stop-loss",
				h.Symbol, -h.ProfitLossPercent, rule.Threshold),
			Impact: "The position has breached its planned exit level.",
		})
	}
	return violations
}

func checkTakeProfit(rule TradingRule, snapshot []HoldingSnapshot) []RuleViolation {
	var violations []RuleViolation
	for _, h := range snapshot {
		if h.ProfitLossPercent <= rule.Threshold {
			continue
		}
		symbol := h.Symbol
		violations = append(violations, RuleViolation{
			RuleID:       rule.ID,
			RuleType:     rule.RuleType,
			Threshold:    rule.Threshold,
			CurrentValue: round2(h.ProfitLossPercent),
			Severity:     SeverityWarning,
			Symbol:       &symbol,
			Message: fmt.Sprintf("%s is up %.1f%%, past the %.0f%% take-profit level",
				h.Symbol, h.ProfitLossPercent, rule.Threshold),
			Impact: "Consider realizing gains per your trading plan.",
		})
	}
	return violations
}

func checkSectorLimit(rule TradingRule, snapshot []HoldingSnapshot, totals PortfolioTotals) []RuleViolation {
	if totals.NetLiquidationValue <= 0 {
		return nil
	}
	bySector := map[string]float64{}
	for _, h := range snapshot {
		if h.Sector == nil || *h.Sector == "" {
			continue
		}
		bySector[*h.Sector] += h.CurrentValue
	}

	var violations []RuleViolation
	for sector, value := range bySector {
		percent := value / totals.NetLiquidationValue * 100
		if percent <= rule.Threshold {
			continue
		}
		severity := SeverityWarning
		if percent > rule.Threshold*sectorLimitCriticalFactor {
			severity = SeverityCritical
		}
		sectorName := sector
		violations = append(violations, RuleViolation{
			RuleID:       rule.ID,
			RuleType:     rule.RuleType,
			Threshold:    rule.Threshold,
			CurrentValue: round2(percent),
			Severity:     severity,
			Sector:       &sectorName,
			Message: fmt.Sprintf("%s sector is %.1f%% of the portfolio, above the %.0f%% limit",
				sector, percent, rule.Threshold),
			Impact: "Sector concentration amplifies correlated drawdowns.",
		})
	}
	return violations
}

func checkTradeFrequency(rule TradingRule, transactions []Transaction) []RuleViolation {
	count := countRecentTrades(transactions, tradeFrequencyWindowDays)
	if float64(count) <= rule.Threshold {
		return nil
	}
	severity := SeverityWarning
	if float64(count) > rule.Threshold*tradeFrequencyCriticalFactor {
		severity = SeverityCritical
	}
	return []RuleViolation{{
		RuleID:       rule.ID,
		RuleType:     rule.RuleType,
		Threshold:    rule.Threshold,
		CurrentValue: float64(count),
		Severity:     severity,
		Message: fmt.Sprintf("%d trades in the last %d days, above the cap of %.0f",
			count, tradeFrequencyWindowDays, rule.Threshold),
		Impact: "Overtrading erodes returns through fees and impulsive decisions.",
	}}
}

// countRecentTrades counts non-dividend transactions dated within the
// trailing window, inclusive of today.
func countRecentTrades(transactions []Transaction, days int) int {
	cutoff := time.Now().In(colomboLocation()).AddDate(0, 0, -days).Format("2006-01-02")
	count := 0
	for _, t := range transactions {
		if t.TransactionType == "DIVIDEND" {
			continue
		}
		if t.TransactionDate >= cutoff {
			count++
		}
	}
	return count
}

// EvaluateActiveRules runs the rule engine against the stored portfolio state.
func (c *Core) EvaluateActiveRules() (map[int64][]RuleViolation, error) {
	rules, err := c.GetTradingRules(false)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.CurrentSnapshot()
	if err != nil {
		return nil, err
	}
	transactions, err := c.GetTransactions(TransactionFilter{Limit: 500})
	if err != nil {
		return nil, err
	}
	settings, err := c.GetSettings()
	if err != nil {
		return nil, err
	}
	return EvaluateRules(rules, snapshot, transactions, settings), nil
}
