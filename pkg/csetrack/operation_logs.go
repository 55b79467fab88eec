package csetrack

import "database/sql"

// AddOperationLog adds a new operation log entry.
func (c *Core) AddOperationLog(log OperationLog) (int64, error) {
	result, err := c.db.Exec(`
		INSERT INTO operation_logs (operation_type, symbol, details, old_value, new_value)
		VALUES (?, ?, ?, ?, ?)
	`, log.Operation, nullString(log.Symbol), nullString(log.Details), log.OldValue, log.NewValue)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// logOperation records an audit entry, logging (not failing) on error.
func (c *Core) logOperation(operation string, symbol, details *string, oldValue, newValue *float64) {
	_, err := c.AddOperationLog(OperationLog{
		Operation: operation,
		Symbol:    symbol,
		Details:   details,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
	if err != nil {
		c.Logger().Warn("operation log write failed", "operation", operation, "err", err)
	}
}

// GetOperationLogs returns recent operation logs.
func (c *Core) GetOperationLogs(limit, offset int) ([]OperationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := c.db.Query(
		"SELECT id, operation_type, symbol, details, old_value, new_value, created_at FROM operation_logs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []OperationLog
	for rows.Next() {
		var log OperationLog
		var symbol, details, createdAt sql.NullString
		var oldValue, newValue sql.NullFloat64
		if err := rows.Scan(&log.ID, &log.Operation, &symbol, &details, &oldValue, &newValue, &createdAt); err != nil {
			return nil, err
		}
		log.Symbol = scanNullString(symbol)
		log.Details = scanNullString(details)
		log.CreatedAt = scanNullString(createdAt)
		if oldValue.Valid {
			log.OldValue = floatPtr(oldValue.Float64)
		}
		if newValue.Valid {
			log.NewValue = floatPtr(newValue.Float64)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
