package csetrack

import (
	"database/sql"
	"fmt"
)

// GetTradingRules returns rules, all of them or active only.
func (c *Core) GetTradingRules(includeInactive bool) ([]TradingRule, error) {
	query := "SELECT id, rule_type, threshold, is_active, created_at FROM trading_rules"
	if !includeInactive {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY rule_type, id"

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []TradingRule
	for rows.Next() {
		var r TradingRule
		var active int
		var createdAt sql.NullString
		if err := rows.Scan(&r.ID, &r.RuleType, &r.Threshold, &active, &createdAt); err != nil {
			return nil, err
		}
		r.IsActive = active != 0
		r.CreatedAt = scanNullString(createdAt)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// AddTradingRule creates a rule and returns its id.
func (c *Core) AddTradingRule(ruleType string, threshold float64, isActive bool) (int64, error) {
	ruleType = normalizeRuleType(ruleType)
	if !isValidRuleType(ruleType) {
		return 0, NewError(ErrCodeValidation, fmt.Sprintf("invalid rule_type: %s", ruleType))
	}
	if threshold < 0 {
		return 0, NewError(ErrCodeValidation, "threshold must be non-negative")
	}
	active := 0
	if isActive {
		active = 1
	}
	result, err := c.db.Exec(
		"INSERT INTO trading_rules (rule_type, threshold, is_active) VALUES (?, ?, ?)",
		ruleType, threshold, active,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateTradingRule updates a rule's threshold and active flag.
func (c *Core) UpdateTradingRule(id int64, threshold float64, isActive bool) error {
	if threshold < 0 {
		return NewError(ErrCodeValidation, "threshold must be non-negative")
	}
	active := 0
	if isActive {
		active = 1
	}
	result, err := c.db.Exec(
		"UPDATE trading_rules SET threshold = ?, is_active = ? WHERE id = ?",
		threshold, active, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return NewError(ErrCodeNotFound, fmt.Sprintf("rule %d not found", id))
	}
	return nil
}

// DeleteTradingRule removes a rule.
func (c *Core) DeleteTradingRule(id int64) error {
	result, err := c.db.Exec("DELETE FROM trading_rules WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return NewError(ErrCodeNotFound, fmt.Sprintf("rule %d not found", id))
	}
	return nil
}
