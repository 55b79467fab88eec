package csetrack

import (
	"reflect"
	"testing"
	"time"
)

// snapshotFixture builds a snapshot directly so the engine can be exercised
// without a database.
func snapshotFixture() ([]HoldingSnapshot, Settings) {
	bank := "Banks"
	telco := "Telecommunications"
	holdings := []Holding{
		{ID: 1, Symbol: "COMB.N0000", Sector: &bank, Quantity: 1000, AvgPrice: 90, TotalInvested: 90000, Status: HoldingActive},
		{ID: 2, Symbol: "HNB.N0000", Sector: &bank, Quantity: 200, AvgPrice: 200, TotalInvested: 40000, Status: HoldingActive},
		{ID: 3, Symbol: "DIAL.N0000", Sector: &telco, Quantity: 2000, AvgPrice: 12, TotalInvested: 24000, Status: HoldingActive},
	}
	prices := map[string]float64{
		"COMB.N0000": 95,
		"HNB.N0000":  150,
		"DIAL.N0000": 13,
	}
	settings := Settings{TotalCapital: 200000, DisciplineBuyThreshold: DefaultDisciplineBuyThreshold}
	return BuildSnapshot(holdings, prices), settings
}

func TestEvaluateRulesCashBuffer(t *testing.T) {
	// Portfolio with cashPercent = 15 against a 20% buffer rule.
	holdings := []Holding{
		{ID: 1, Symbol: "COMB.N0000", Quantity: 1000, AvgPrice: 85, TotalInvested: 85000, Status: HoldingActive},
	}
	snapshot := BuildSnapshot(holdings, map[string]float64{"COMB.N0000": 85})
	settings := Settings{TotalCapital: 100000}
	// TotalValue 85000, cash 15000, NLV 100000, cashPercent 15.

	rule := TradingRule{ID: 7, RuleType: RuleCashBuffer, Threshold: 20, IsActive: true}
	result := EvaluateRules([]TradingRule{rule}, snapshot, nil, settings)

	violations, ok := result[7]
	if !ok {
		t.Fatal("expected cash buffer violation")
	}
	if len(violations) != 1 {
		t.Fatalf("expected exactly 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", v.Severity)
	}
	assertFloatEquals(t, v.CurrentValue, 15, "cash percent")
	assertContains(t, v.Message, "20%", "message names the requirement")
}

func TestEvaluateRulesPositionSizeSeverity(t *testing.T) {
	snapshot, settings := snapshotFixture()
	// COMB is 95000 of NLV 197000 = 48.2%.
	rules := []TradingRule{
		{ID: 1, RuleType: RulePositionSize, Threshold: 45, IsActive: true},
		{ID: 2, RuleType: RulePositionSize, Threshold: 40, IsActive: true},
	}
	result := EvaluateRules(rules, snapshot, nil, settings)

	// 48.2% exceeds 45 but not 45*1.2=54: warning.
	if got := result[1][0].Severity; got != SeverityWarning {
		t.Errorf("threshold 45: expected warning, got %s", got)
	}
	// 48.2% exceeds 40*1.2=48: critical.
	if got := result[2][0].Severity; got != SeverityCritical {
		t.Errorf("threshold 40: expected critical, got %s", got)
	}
	if result[1][0].Symbol == nil || *result[1][0].Symbol != "COMB.N0000" {
		t.Error("expected violation tagged with COMB.N0000")
	}
}

func TestEvaluateRulesStopLossSeverity(t *testing.T) {
	snapshot, settings := snapshotFixture()
	// HNB is down 25% (invested 40000, value 30000).
	warning := TradingRule{ID: 1, RuleType: RuleStopLoss, Threshold: 20, IsActive: true}
	critical := TradingRule{ID: 2, RuleType: RuleStopLoss, Threshold: 15, IsActive: true}
	result := EvaluateRules([]TradingRule{warning, critical}, snapshot, nil, settings)

	// -25 is past -20 but not past -20*1.5=-30: warning.
	if got := result[1][0].Severity; got != SeverityWarning {
		t.Errorf("threshold 20: expected warning, got %s", got)
	}
	// -25 is past -15*1.5=-22.5: critical.
	if got := result[2][0].Severity; got != SeverityCritical {
		t.Errorf("threshold 15: expected critical, got %s", got)
	}
	assertFloatEquals(t, result[1][0].CurrentValue, -25, "stop loss current value")
}

func TestEvaluateRulesTakeProfitAlwaysWarning(t *testing.T) {
	snapshot, settings := snapshotFixture()
	// COMB is up 5.56%, DIAL up 8.33%.
	rule := TradingRule{ID: 3, RuleType: RuleTakeProfit, Threshold: 5, IsActive: true}
	result := EvaluateRules([]TradingRule{rule}, snapshot, nil, settings)

	violations := result[3]
	if len(violations) != 2 {
		t.Fatalf("expected 2 take-profit violations, got %d", len(violations))
	}
	for _, v := range violations {
		if v.Severity != SeverityWarning {
			t.Errorf("%v: take-profit must never escalate, got %s", v.Symbol, v.Severity)
		}
	}
}

func TestEvaluateRulesSectorLimit(t *testing.T) {
	snapshot, settings := snapshotFixture()
	// Banks sector: 95000+30000 = 125000 of NLV 197000 = 63.5%.
	rule := TradingRule{ID: 4, RuleType: RuleSectorLimit, Threshold: 50, IsActive: true}
	result := EvaluateRules([]TradingRule{rule}, snapshot, nil, settings)

	violations := result[4]
	if len(violations) != 1 {
		t.Fatalf("expected 1 sector violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Sector == nil || *v.Sector != "Banks" {
		t.Error("expected violation tagged with Banks sector")
	}
	// 64.1% exceeds 50*1.2=60: critical.
	if v.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", v.Severity)
	}
}

func TestEvaluateRulesSectorLimitSkipsUnsectored(t *testing.T) {
	holdings := []Holding{
		{ID: 1, Symbol: "LOFC.N0000", Quantity: 10000, AvgPrice: 5, TotalInvested: 50000, Status: HoldingActive},
	}
	snapshot := BuildSnapshot(holdings, map[string]float64{"LOFC.N0000": 6})
	rule := TradingRule{ID: 1, RuleType: RuleSectorLimit, Threshold: 10, IsActive: true}
	result := EvaluateRules([]TradingRule{rule}, snapshot, nil, Settings{TotalCapital: 60000})
	if len(result) != 0 {
		t.Errorf("holdings without a sector must not trigger sector limits, got %v", result)
	}
}

func TestEvaluateRulesTradeFrequency(t *testing.T) {
	today := time.Now().In(colomboLocation()).Format("2006-01-02")
	old := time.Now().In(colomboLocation()).AddDate(0, 0, -30).Format("2006-01-02")
	transactions := []Transaction{
		{TransactionDate: today, TransactionType: "BUY"},
		{TransactionDate: today, TransactionType: "SELL"},
		{TransactionDate: today, TransactionType: "BUY"},
		{TransactionDate: today, TransactionType: "DIVIDEND"},
		{TransactionDate: old, TransactionType: "BUY"},
	}
	snapshot, settings := snapshotFixture()

	// 3 recent trades against a cap of 2: warning (3 <= 2*1.5).
	rule := TradingRule{ID: 5, RuleType: RuleTradeFrequency, Threshold: 2, IsActive: true}
	result := EvaluateRules([]TradingRule{rule}, snapshot, transactions, settings)
	if got := result[5][0].Severity; got != SeverityWarning {
		t.Errorf("expected warning, got %s", got)
	}
	assertFloatEquals(t, result[5][0].CurrentValue, 3, "recent trade count")

	// Against a cap of 1: critical (3 > 1*1.5).
	rule.Threshold = 1
	result = EvaluateRules([]TradingRule{rule}, snapshot, transactions, settings)
	if got := result[5][0].Severity; got != SeverityCritical {
		t.Errorf("expected critical, got %s", got)
	}
}

func TestEvaluateRulesOmitsCompliantRules(t *testing.T) {
	snapshot, settings := snapshotFixture()
	rules := []TradingRule{
		{ID: 1, RuleType: RulePositionSize, Threshold: 90, IsActive: true},
		{ID: 2, RuleType: RuleStopLoss, Threshold: 60, IsActive: true},
		{ID: 3, RuleType: RuleCashBuffer, Threshold: 1, IsActive: true},
	}
	result := EvaluateRules(rules, snapshot, nil, settings)
	if len(result) != 0 {
		t.Errorf("compliant rules must be absent from the map, got %v", result)
	}
}

func TestEvaluateRulesSkipsInactive(t *testing.T) {
	snapshot, settings := snapshotFixture()
	rule := TradingRule{ID: 1, RuleType: RulePositionSize, Threshold: 10, IsActive: false}
	result := EvaluateRules([]TradingRule{rule}, snapshot, nil, settings)
	if len(result) != 0 {
		t.Errorf("inactive rules must not evaluate, got %v", result)
	}
}

func TestEvaluateRulesIdempotent(t *testing.T) {
	snapshot, settings := snapshotFixture()
	rules := []TradingRule{
		{ID: 1, RuleType: RulePositionSize, Threshold: 40, IsActive: true},
		{ID: 2, RuleType: RuleStopLoss, Threshold: 15, IsActive: true},
		{ID: 3, RuleType: RuleSectorLimit, Threshold: 50, IsActive: true},
	}
	first := EvaluateRules(rules, snapshot, nil, settings)
	second := EvaluateRules(rules, snapshot, nil, settings)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different evaluations")
	}
}

func TestEvaluateActiveRulesFromDB(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	testSettings(t, core, 100000)
	testBuyTransaction(t, core, "COMB.N0000", 1000, 85)
	ruleID := testRule(t, core, RuleCashBuffer, 50)

	result, err := core.EvaluateActiveRules()
	assertNoError(t, err, "evaluate active rules")
	if _, ok := result[ruleID]; !ok {
		t.Fatalf("expected stored cash buffer rule to fire, got %v", result)
	}
}
