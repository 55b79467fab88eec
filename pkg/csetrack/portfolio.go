package csetrack

import "sort"

// GetPortfolioSummary returns live totals plus the current rule status.
func (c *Core) GetPortfolioSummary() (*PortfolioSummary, error) {
	snapshot, err := c.CurrentSnapshot()
	if err != nil {
		return nil, err
	}
	settings, err := c.GetSettings()
	if err != nil {
		return nil, err
	}
	violations, err := c.EvaluateActiveRules()
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{Totals: ComputeTotals(snapshot, settings)}
	for _, list := range violations {
		summary.ViolationCount += len(list)
		for _, v := range list {
			if v.Severity == SeverityCritical {
				summary.CriticalCount++
			}
		}
	}
	return summary, nil
}

// GetPortfolioHistory returns cumulative BUY/SELL cash flow over time.
func (c *Core) GetPortfolioHistory(limit int) ([]PortfolioPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	transactions, err := c.GetTransactions(TransactionFilter{Limit: limit})
	if err != nil {
		return nil, err
	}

	byDate := map[string]Amount{}
	for _, t := range transactions {
		if t.TransactionType != "BUY" && t.TransactionType != "SELL" {
			continue
		}
		date := t.TransactionDate
		if date == "" {
			continue
		}
		if t.TransactionType == "BUY" {
			byDate[date] = Amount{byDate[date].Add(t.TotalAmount.Decimal)}
		} else {
			byDate[date] = Amount{byDate[date].Sub(t.TotalAmount.Decimal)}
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var cumulative []PortfolioPoint
	var running Amount
	for _, d := range dates {
		running = Amount{running.Add(byDate[d].Decimal)}
		cumulative = append(cumulative, PortfolioPoint{Date: d, Value: running})
	}
	return cumulative, nil
}
