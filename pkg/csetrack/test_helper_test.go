package csetrack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestDB creates a temporary database for testing and returns a Core instance.
// The caller should defer cleanup() to remove the temp file.
func setupTestDB(t *testing.T) (*Core, func()) {
	t.Helper()

	// Create temp directory for test database
	tmpDir, err := os.MkdirTemp("", "csetrack-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	core, err := Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}

	return core, cleanup
}

// testSettings sets the total capital and leaves the default discipline threshold.
func testSettings(t *testing.T, core *Core, totalCapital float64) {
	t.Helper()
	if err := core.UpdateSettings(Settings{TotalCapital: totalCapital, DisciplineBuyThreshold: DefaultDisciplineBuyThreshold}); err != nil {
		t.Fatalf("failed to update test settings: %v", err)
	}
}

// testBuyTransaction creates a BUY transaction for testing.
func testBuyTransaction(t *testing.T, core *Core, symbol string, qty, price float64) int64 {
	t.Helper()
	id, err := core.AddTransaction(AddTransactionRequest{
		Symbol:          symbol,
		TransactionType: "BUY",
		Quantity:        qty,
		Price:           price,
	})
	if err != nil {
		t.Fatalf("failed to create test BUY transaction: %v", err)
	}
	return id
}

// testSellTransaction creates a SELL transaction for testing.
func testSellTransaction(t *testing.T, core *Core, symbol string, qty, price float64) int64 {
	t.Helper()
	id, err := core.AddTransaction(AddTransactionRequest{
		Symbol:          symbol,
		TransactionType: "SELL",
		Quantity:        qty,
		Price:           price,
	})
	if err != nil {
		t.Fatalf("failed to create test SELL transaction: %v", err)
	}
	return id
}

// testRule creates an active trading rule for testing.
func testRule(t *testing.T, core *Core, ruleType string, threshold float64) int64 {
	t.Helper()
	id, err := core.AddTradingRule(ruleType, threshold, true)
	if err != nil {
		t.Fatalf("failed to create test rule: %v", err)
	}
	return id
}

// floatEquals checks if two floats are approximately equal.
func floatEquals(a, b, epsilon float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

// assertFloatEquals fails the test if the floats are not approximately equal.
func assertFloatEquals(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if !floatEquals(got, want, 0.001) {
		t.Errorf("%s: got %.4f, want %.4f", msg, got, want)
	}
}

// assertNoError fails the test if err is not nil.
func assertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// assertError fails the test if err is nil.
func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error but got nil", msg)
	}
}

// assertContains checks if the string contains the substring.
func assertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: string %q does not contain %q", msg, s, substr)
	}
}
