package csetrack

import "testing"

func simulationFixture() ([]Holding, map[string]float64, Settings) {
	bank := "Banks"
	holdings := []Holding{
		{ID: 1, Symbol: "COMB.N0000", Sector: &bank, Quantity: 1000, AvgPrice: 90, TotalInvested: 90000, InitialBuyPrice: 88, LastBuyPrice: 92, Status: HoldingActive},
		{ID: 2, Symbol: "DIAL.N0000", Quantity: 2000, AvgPrice: 12, TotalInvested: 24000, InitialBuyPrice: 12, LastBuyPrice: 12, Status: HoldingActive},
	}
	prices := map[string]float64{"COMB.N0000": 95, "DIAL.N0000": 13}
	settings := Settings{TotalCapital: 300000, DisciplineBuyThreshold: DefaultDisciplineBuyThreshold}
	return holdings, prices, settings
}

func TestApplyTradeBuyExisting(t *testing.T) {
	holdings, _, _ := simulationFixture()
	next := applyTrade(holdings, ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 500, Price: 80, Fees: 448,
	})

	if len(next) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(next))
	}
	var comb Holding
	for _, h := range next {
		if h.Symbol == "COMB.N0000" {
			comb = h
		}
	}
	assertFloatEquals(t, comb.Quantity, 1500, "quantity")
	assertFloatEquals(t, comb.TotalInvested, 130448, "total invested")
	assertFloatEquals(t, comb.AvgPrice, 130448.0/1500, "average price")
	assertFloatEquals(t, comb.LastBuyPrice, 80, "last buy price")
	// Existing position keeps its original entry price.
	assertFloatEquals(t, comb.InitialBuyPrice, 88, "initial buy price")
}

func TestApplyTradeBuyNewSymbol(t *testing.T) {
	holdings, _, _ := simulationFixture()
	next := applyTrade(holdings, ProposedTransaction{
		Symbol: "hnb.n0000", TransactionType: "BUY", Quantity: 100, Price: 200, Fees: 224,
	})

	if len(next) != 3 {
		t.Fatalf("expected 3 holdings, got %d", len(next))
	}
	added := next[2]
	if added.Symbol != "HNB.N0000" {
		t.Errorf("expected normalized symbol HNB.N0000, got %s", added.Symbol)
	}
	if added.ID != transientHoldingID {
		t.Errorf("synthesized holding must carry the transient id, got %d", added.ID)
	}
	assertFloatEquals(t, added.TotalInvested, 20224, "invested includes fees")
	assertFloatEquals(t, added.AvgPrice, 200, "average price")
	assertFloatEquals(t, added.InitialBuyPrice, 200, "initial buy price")
}

func TestApplyTradeSellPartial(t *testing.T) {
	holdings, _, _ := simulationFixture()
	next := applyTrade(holdings, ProposedTransaction{
		Symbol: "DIAL.N0000", TransactionType: "SELL", Quantity: 500, Price: 13,
	})

	var dial Holding
	for _, h := range next {
		if h.Symbol == "DIAL.N0000" {
			dial = h
		}
	}
	assertFloatEquals(t, dial.Quantity, 1500, "remaining quantity")
	// Cost basis shrinks proportionally, per-share basis unchanged.
	assertFloatEquals(t, dial.TotalInvested, 18000, "remaining invested")
	assertFloatEquals(t, dial.TotalInvested/dial.Quantity, 12, "per-share basis")
}

func TestApplyTradeSellFullExitRemovesHolding(t *testing.T) {
	holdings, _, _ := simulationFixture()
	next := applyTrade(holdings, ProposedTransaction{
		Symbol: "DIAL.N0000", TransactionType: "SELL", Quantity: 2000, Price: 13,
	})

	if len(next) != 1 {
		t.Fatalf("expected full exit to remove the holding, got %d holdings", len(next))
	}
	if next[0].Symbol != "COMB.N0000" {
		t.Errorf("wrong holding survived: %s", next[0].Symbol)
	}
}

func TestApplyTradeSellUnknownSymbolNoOp(t *testing.T) {
	holdings, _, _ := simulationFixture()
	next := applyTrade(holdings, ProposedTransaction{
		Symbol: "SAMP.N0000", TransactionType: "SELL", Quantity: 100, Price: 50,
	})
	if len(next) != 2 {
		t.Errorf("sell of unknown symbol must be a no-op, got %d holdings", len(next))
	}
}

func TestApplyTradeDoesNotMutateInput(t *testing.T) {
	holdings, _, _ := simulationFixture()
	applyTrade(holdings, ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 500, Price: 80,
	})
	applyTrade(holdings, ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "SELL", Quantity: 1000, Price: 95,
	})

	assertFloatEquals(t, holdings[0].Quantity, 1000, "caller quantity untouched")
	assertFloatEquals(t, holdings[0].TotalInvested, 90000, "caller invested untouched")
	if len(holdings) != 2 {
		t.Errorf("caller slice length changed: %d", len(holdings))
	}
}

func TestDisciplineCheckPrematureAverageDown(t *testing.T) {
	holdings, _, settings := simulationFixture()
	// Last buy 92, proposing 88: drop of 4.35%, inside (−5, 15).
	violations := disciplineCheck(&holdings[0], ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 100, Price: 88,
	}, settings)

	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.RuleType != RuleBuyCondition || v.Severity != SeverityWarning {
		t.Errorf("unexpected violation shape: %+v", v)
	}
	assertContains(t, v.Message, "premature", "average-down message")
}

func TestDisciplineCheckBuyingStrength(t *testing.T) {
	holdings, _, settings := simulationFixture()
	// Last buy 92, proposing 105: a 14.1% rise, past the 10% rise guard.
	violations := disciplineCheck(&holdings[0], ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 100, Price: 105,
	}, settings)

	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	assertContains(t, violations[0].Message, "buying strength", "rise message")
}

func TestDisciplineCheckDeadZone(t *testing.T) {
	holdings, _, settings := simulationFixture()
	// Last buy 92, proposing 98.44: a 7% rise. Neither band fires in the
	// gap between the drop guard and the rise guard.
	violations := disciplineCheck(&holdings[0], ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 100, Price: 98.44,
	}, settings)
	if len(violations) != 0 {
		t.Errorf("expected no violation in the guard gap, got %v", violations)
	}
}

func TestDisciplineCheckDeepDropPasses(t *testing.T) {
	holdings, _, settings := simulationFixture()
	// Last buy 92, proposing 75: a 18.5% drop, at or past the threshold.
	violations := disciplineCheck(&holdings[0], ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 100, Price: 75,
	}, settings)
	if len(violations) != 0 {
		t.Errorf("a disciplined deep-drop buy must pass, got %v", violations)
	}
}

func TestDisciplineCheckIgnoresSells(t *testing.T) {
	holdings, _, settings := simulationFixture()
	violations := disciplineCheck(&holdings[0], ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "SELL", Quantity: 100, Price: 88,
	}, settings)
	if len(violations) != 0 {
		t.Errorf("discipline bands apply to buys only, got %v", violations)
	}
}

func TestSimulateTransactionFullExit(t *testing.T) {
	holdings, prices, settings := simulationFixture()
	result := SimulateTransaction(holdings, prices, nil, nil, settings, ProposedTransaction{
		Symbol: "DIAL.N0000", TransactionType: "SELL", Quantity: 2000, Price: 13,
	})

	if result.NewTotals.HoldingsCount != 1 {
		t.Errorf("expected holdings count to drop to 1, got %d", result.NewTotals.HoldingsCount)
	}
	if !result.IsValid {
		t.Error("a sell with no rules must be valid")
	}
	// Caller state untouched.
	if len(holdings) != 2 {
		t.Errorf("caller holdings mutated: %d", len(holdings))
	}
}

func TestSimulateTransactionCriticalInvalidates(t *testing.T) {
	holdings, prices, settings := simulationFixture()
	// Buying more COMB pushes it far past a tight position cap.
	rules := []TradingRule{{ID: 1, RuleType: RulePositionSize, Threshold: 20, IsActive: true}}
	result := SimulateTransaction(holdings, prices, nil, rules, settings, ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 500, Price: 80,
	})

	if result.IsValid {
		t.Error("expected critical position-size violation to invalidate the trade")
	}
	found := false
	for _, v := range result.Violations {
		if v.RuleType == RulePositionSize && v.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a critical position-size violation, got %v", result.Violations)
	}
}

func TestSimulateTransactionWarningStaysValid(t *testing.T) {
	holdings, prices, settings := simulationFixture()
	// The discipline warning alone must not invalidate the trade.
	result := SimulateTransaction(holdings, prices, nil, nil, settings, ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 10, Price: 88,
	})

	if len(result.Violations) == 0 {
		t.Fatal("expected a discipline warning")
	}
	if !result.IsValid {
		t.Error("warnings alone must keep the trade valid")
	}
}

func TestSimulateTransactionCountsProposedTrade(t *testing.T) {
	holdings, prices, settings := simulationFixture()
	rules := []TradingRule{{ID: 9, RuleType: RuleTradeFrequency, Threshold: 0, IsActive: true}}
	result := SimulateTransaction(holdings, prices, nil, rules, settings, ProposedTransaction{
		Symbol: "DIAL.N0000", TransactionType: "SELL", Quantity: 100, Price: 13,
	})

	found := false
	for _, v := range result.Violations {
		if v.RuleType == RuleTradeFrequency {
			found = true
			assertFloatEquals(t, v.CurrentValue, 1, "proposed trade counted")
		}
	}
	if !found {
		t.Errorf("expected the proposed trade to count toward frequency, got %v", result.Violations)
	}
}

func TestSimulateProposedValidation(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := core.SimulateProposed(ProposedTransaction{TransactionType: "BUY", Quantity: 10, Price: 100})
	assertError(t, err, "missing symbol")

	_, err = core.SimulateProposed(ProposedTransaction{Symbol: "COMB.N0000", TransactionType: "DIVIDEND", Quantity: 10, Price: 100})
	assertError(t, err, "unsupported transaction type")

	_, err = core.SimulateProposed(ProposedTransaction{Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 0, Price: 100})
	assertError(t, err, "zero quantity")
}

func TestSimulateProposedAgainstStoredState(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	testSettings(t, core, 200000)
	testBuyTransaction(t, core, "COMB.N0000", 1000, 90)
	assertNoError(t, core.SetManualPrice("COMB.N0000", 95), "set price")

	result, err := core.SimulateProposed(ProposedTransaction{
		Symbol: "COMB.N0000", TransactionType: "SELL", Quantity: 1000, Price: 95,
	})
	assertNoError(t, err, "simulate")
	if result.NewTotals.HoldingsCount != 0 {
		t.Errorf("expected simulated full exit, got %d holdings", result.NewTotals.HoldingsCount)
	}

	// The stored holding is untouched by the simulation.
	holding, err := core.GetHolding("COMB.N0000")
	assertNoError(t, err, "get holding")
	assertFloatEquals(t, holding.Quantity, 1000, "stored quantity unchanged")
}
