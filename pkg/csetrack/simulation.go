package csetrack

import "fmt"

// transientHoldingID marks a holding synthesized for simulation only. It is
// never persisted.
const transientHoldingID = -1

// applyTrade returns a new holdings slice with the proposed BUY or SELL
// applied. The input slice is never mutated. A SELL against a missing
// holding is a no-op; a SELL that empties a position removes it.
func applyTrade(holdings []Holding, p ProposedTransaction) []Holding {
	symbol := normalizeSymbol(p.Symbol)
	next := make([]Holding, 0, len(holdings)+1)
	found := false

	for _, h := range holdings {
		if h.Symbol != symbol {
			next = append(next, h)
			continue
		}
		found = true
		switch p.TransactionType {
		case "BUY":
			priorQuantity := h.Quantity
			h.Quantity += p.Quantity
			h.TotalInvested += p.Quantity*p.Price + p.Fees
			if h.Quantity > 0 {
				h.AvgPrice = h.TotalInvested / h.Quantity
			}
			h.LastBuyPrice = p.Price
			// Re-entering a fully exited position resets the entry price.
			if priorQuantity == 0 {
				h.InitialBuyPrice = p.Price
			}
			h.Status = HoldingActive
			next = append(next, h)
		case "SELL":
			remaining := h.Quantity - p.Quantity
			if remaining <= 0 {
				continue // full exit: drop the holding
			}
			// Reduce cost basis proportionally; per-share basis unchanged.
			h.TotalInvested *= remaining / h.Quantity
			h.Quantity = remaining
			next = append(next, h)
		default:
			next = append(next, h)
		}
	}

	if !found && p.TransactionType == "BUY" && p.Quantity > 0 {
		invested := p.Quantity*p.Price + p.Fees
		next = append(next, Holding{
			ID:              transientHoldingID,
			Symbol:          symbol,
			Sector:          p.Sector,
			Quantity:        p.Quantity,
			AvgPrice:        p.Price,
			TotalInvested:   invested,
			InitialBuyPrice: p.Price,
			LastBuyPrice:    p.Price,
			Status:          HoldingActive,
		})
	}

	return next
}

// disciplineCheck applies the pre-trade averaging-down bands for a BUY
// against the holding's previous buy price. At most one warning fires:
// a drop inside (dropGuard, threshold) flags a premature average-down, a
// rise beyond riseGuard flags buying into strength. Drops between the two
// guard bands fire nothing.
func disciplineCheck(prior *Holding, p ProposedTransaction, settings Settings) []RuleViolation {
	if p.TransactionType != "BUY" || prior == nil || prior.LastBuyPrice <= 0 {
		return nil
	}
	threshold := settings.DisciplineBuyThreshold
	if threshold <= 0 {
		threshold = DefaultDisciplineBuyThreshold
	}

	percentDrop := (prior.LastBuyPrice - p.Price) / prior.LastBuyPrice * 100
	symbol := normalizeSymbol(p.Symbol)

	if percentDrop < threshold && percentDrop > disciplineDropGuard {
		return []RuleViolation{{
			RuleType:     RuleBuyCondition,
			Threshold:    threshold,
			CurrentValue: round2(percentDrop),
			Severity:     SeverityWarning,
			Symbol:       &symbol,
			Message: fmt.Sprintf("%s is only %.1f%% below your last buy at %.2f; averaging down below a %.0f%% drop is premature",
				symbol, percentDrop, prior.LastBuyPrice, threshold),
			Impact: "Adding at this level lowers your average without a meaningful discount.",
		}}
	}
	if percentDrop < disciplineRiseGuard {
		return []RuleViolation{{
			RuleType:     RuleBuyCondition,
			Threshold:    threshold,
			CurrentValue: round2(percentDrop),
			Severity:     SeverityWarning,
			Symbol:       &symbol,
			Message: fmt.Sprintf("%s is %.1f%% above your last buy at %.2f; buying strength should be justified by fundamentals",
				symbol, -percentDrop, prior.LastBuyPrice),
			Impact: "Chasing a rising price raises your average cost and risk.",
		}}
	}
	return nil
}

// SimulateTransaction clones the portfolio state, applies a hypothetical
// transaction, and re-evaluates every active rule against the result. The
// caller's holdings, transactions and rules are never modified. The proposed
// trade is counted toward trade-frequency checks as if executed today.
func SimulateTransaction(
	holdings []Holding,
	prices map[string]float64,
	transactions []Transaction,
	rules []TradingRule,
	settings Settings,
	proposed ProposedTransaction,
) SimulationResult {
	var prior *Holding
	symbol := normalizeSymbol(proposed.Symbol)
	for i := range holdings {
		if holdings[i].Symbol == symbol {
			prior = &holdings[i]
			break
		}
	}

	next := applyTrade(holdings, proposed)

	simulated := make([]Transaction, 0, len(transactions)+1)
	simulated = append(simulated, transactions...)
	simulated = append(simulated, Transaction{
		TransactionDate: todayISO(),
		Symbol:          symbol,
		TransactionType: proposed.TransactionType,
		Quantity:        proposed.Quantity,
		Price:           proposed.Price,
	})

	snapshot := BuildSnapshot(next, prices)
	ruleViolations := EvaluateRules(rules, snapshot, simulated, settings)

	var violations []RuleViolation
	for _, list := range ruleViolations {
		violations = append(violations, list...)
	}
	violations = append(violations, disciplineCheck(prior, proposed, settings)...)

	isValid := true
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			isValid = false
			break
		}
	}

	return SimulationResult{
		IsValid:    isValid,
		Violations: violations,
		NewTotals:  ComputeTotals(snapshot, settings),
	}
}

// SimulateProposed runs a pre-trade simulation against the stored portfolio state.
func (c *Core) SimulateProposed(proposed ProposedTransaction) (*SimulationResult, error) {
	proposed.Symbol = normalizeSymbol(proposed.Symbol)
	if proposed.Symbol == "" {
		return nil, NewError(ErrCodeInvalidInput, "symbol required")
	}
	if proposed.TransactionType != "BUY" && proposed.TransactionType != "SELL" {
		return nil, NewError(ErrCodeValidation, fmt.Sprintf("invalid transaction_type: %s", proposed.TransactionType))
	}
	if proposed.Quantity <= 0 || proposed.Price < 0 {
		return nil, NewError(ErrCodeValidation, "quantity must be positive and price non-negative")
	}

	holdings, err := c.GetHoldings(false)
	if err != nil {
		return nil, err
	}
	latest, err := c.GetAllLatestPrices()
	if err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(latest))
	for symbol, lp := range latest {
		prices[symbol] = lp.Price
	}
	transactions, err := c.GetTransactions(TransactionFilter{Limit: 500})
	if err != nil {
		return nil, err
	}
	rules, err := c.GetTradingRules(false)
	if err != nil {
		return nil, err
	}
	settings, err := c.GetSettings()
	if err != nil {
		return nil, err
	}

	result := SimulateTransaction(holdings, prices, transactions, rules, settings, proposed)
	return &result, nil
}
