package csetrack

import "math"

// allocState tracks one entry's mutable share count and cost during a run.
type allocState struct {
	req          StockAllocationRequest
	targetAmount float64
	targetShares float64
	shares       int
	baseCost     float64
	fees         float64
	cost         float64
}

func (s *allocState) recost() {
	s.baseCost = float64(s.shares) * s.req.Price
	s.fees = s.baseCost * FeeRate
	s.cost = s.baseCost + s.fees
}

// Allocate converts a cash budget and desired stock/tranche allocations into
// rounded, budget-respecting share counts with a full cost breakdown.
//
// The optimizer floors each entry's target amount to a step-aligned share
// count, then corrects downward while total cost exceeds the effective
// budget (the sum of per-entry targets, not the nominal capital), and
// finally grows entries greedily while budget remains. Priority entries are
// protected from shrinking and preferred for growth; within a tier the entry
// most overshot (shrinking) or most underweight (growing) relative to its
// own target moves first. The result is deterministic but heuristic; it is
// not a knapsack-optimal packing.
//
// Degenerate inputs (zero capital, non-positive prices, empty entry list)
// produce zero results rather than errors.
func Allocate(totalCapital float64, entries []StockAllocationRequest, step int) AllocationPlan {
	if step < 1 {
		step = 1
	}

	work := make([]allocState, len(entries))
	var effectiveBudget float64
	for i, e := range entries {
		fullAmount := totalCapital * e.AllocationPercent / 100
		targetAmount := fullAmount * e.TranchePercent / 100
		if targetAmount < 0 {
			targetAmount = 0
		}
		effectiveBudget += targetAmount

		var rawShares float64
		if e.Price > 0 {
			rawShares = targetAmount / e.Price
		}
		shares := int(math.Floor(rawShares/float64(step))) * step
		if shares < 0 {
			shares = 0
		}
		work[i] = allocState{
			req:          e,
			targetAmount: targetAmount,
			targetShares: rawShares,
			shares:       shares,
		}
		work[i].recost()
	}

	// Downward correction: shrink one step at a time until within the
	// effective budget or nothing is left to shrink.
	for sumCost(work) > effectiveBudget {
		idx := pickShrink(work, step)
		if idx < 0 {
			break
		}
		work[idx].shares -= step
		work[idx].recost()
	}

	// Upward improvement: greedily absorb leftover budget one step at a
	// time. First-fit-best-improvement, not a knapsack solve.
	for {
		idx := pickGrow(work, sumCost(work), effectiveBudget, step)
		if idx < 0 {
			break
		}
		work[idx].shares += step
		work[idx].recost()
	}

	totalCost := sumCost(work)
	var totalFees float64
	results := make([]AllocationResult, len(work))
	for i, w := range work {
		totalFees += w.fees
		actualPercent := 0.0
		if totalCost > 0 {
			actualPercent = w.cost / totalCost * 100
		}
		results[i] = AllocationResult{
			Symbol:          w.req.Symbol,
			Price:           w.req.Price,
			IsPriority:      w.req.IsPriority,
			TargetAmount:    w.targetAmount,
			TargetShares:    w.targetShares,
			OptimizedShares: w.shares,
			BaseCost:        w.baseCost,
			FeeCost:         w.fees,
			TotalCost:       w.cost,
			ActualPercent:   actualPercent,
		}
	}

	return AllocationPlan{
		Results:          results,
		EffectiveBudget:  effectiveBudget,
		TotalCost:        totalCost,
		TotalFees:        totalFees,
		// Unused nominal capital outside the allocated entries counts as
		// remaining, so this is measured against totalCapital.
		RemainingCapital: totalCapital - totalCost,
	}
}

func sumCost(work []allocState) float64 {
	var total float64
	for i := range work {
		total += work[i].cost
	}
	return total
}

// pickShrink selects the entry to reduce by one step: non-priority entries
// first, and within a tier the one most overshot relative to its target.
// Returns -1 when no entry has a full step left.
func pickShrink(work []allocState, step int) int {
	best := -1
	bestPriority := true
	bestOvershoot := math.Inf(-1)
	for i := range work {
		w := &work[i]
		if w.shares < step {
			continue
		}
		overshoot := w.cost - w.targetAmount
		switch {
		case best < 0:
		case !w.req.IsPriority && bestPriority:
			// Non-priority always outranks priority.
		case w.req.IsPriority == bestPriority && overshoot > bestOvershoot:
		default:
			continue
		}
		best = i
		bestPriority = w.req.IsPriority
		bestOvershoot = overshoot
	}
	return best
}

// pickGrow selects the entry to grow by one step without pushing the total
// past the effective budget: priority entries first, and within a tier the
// most underweight relative to its target. Returns -1 when nothing fits.
func pickGrow(work []allocState, total, effectiveBudget float64, step int) int {
	best := -1
	bestPriority := false
	bestShortfall := math.Inf(-1)
	for i := range work {
		w := &work[i]
		// A non-positive price would consume no budget and loop forever.
		if w.req.Price <= 0 {
			continue
		}
		stepCost := float64(step) * w.req.Price * (1 + FeeRate)
		if total+stepCost > effectiveBudget {
			continue
		}
		shortfall := w.targetAmount - w.cost
		switch {
		case best < 0:
		case w.req.IsPriority && !bestPriority:
		case w.req.IsPriority == bestPriority && shortfall > bestShortfall:
		default:
			continue
		}
		best = i
		bestPriority = w.req.IsPriority
		bestShortfall = shortfall
	}
	return best
}

// PlanAllocation builds optimizer entries from the persisted allocation
// targets and runs Allocate against the configured total capital. Tranches
// with no price of their own fall back to the latest stored price.
func (c *Core) PlanAllocation(step int) (*AllocationPlan, error) {
	settings, err := c.GetSettings()
	if err != nil {
		return nil, err
	}
	targets, err := c.GetAllocationTargets()
	if err != nil {
		return nil, err
	}
	prices, err := c.GetAllLatestPrices()
	if err != nil {
		return nil, err
	}

	var entries []StockAllocationRequest
	for _, t := range targets {
		latest := prices[t.Symbol].Price
		if len(t.Tranches) == 0 {
			entries = append(entries, StockAllocationRequest{
				Symbol:            t.Symbol,
				Price:             latest,
				AllocationPercent: t.AllocationPercent,
				TranchePercent:    100,
				IsPriority:        t.IsPriority,
			})
			continue
		}
		for _, tr := range t.Tranches {
			price := tr.Price
			if price <= 0 {
				price = latest
			}
			entries = append(entries, StockAllocationRequest{
				Symbol:            t.Symbol,
				Price:             price,
				AllocationPercent: t.AllocationPercent,
				TranchePercent:    tr.Percent,
				IsPriority:        t.IsPriority,
			})
		}
	}

	plan := Allocate(settings.TotalCapital, entries, step)
	return &plan, nil
}
