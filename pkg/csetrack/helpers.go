package csetrack

import (
	"database/sql"
	"math"
	"strings"
	"time"
)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeRuleType(ruleType string) string {
	return strings.ToUpper(strings.TrimSpace(ruleType))
}

func isValidTransactionType(t string) bool {
	for _, v := range TransactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

func isValidRuleType(t string) bool {
	for _, v := range RuleTypes {
		if v == t {
			return true
		}
	}
	return false
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func floatPtr(value float64) *float64 {
	return &value
}

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func scanNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// colomboLocation resolves the CSE trading timezone, falling back to a fixed
// UTC+5:30 offset when tzdata is unavailable.
func colomboLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Colombo")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// TodayISOInColombo returns today's date in the CSE trading timezone.
func TodayISOInColombo() string {
	return time.Now().In(colomboLocation()).Format("2006-01-02")
}

func todayISO() string {
	return TodayISOInColombo()
}
