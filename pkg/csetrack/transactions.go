package csetrack

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionFilter controls transaction queries.
type TransactionFilter struct {
	Symbol          string
	TransactionType string
	StartDate       string
	EndDate         string
	Limit           int
	Offset          int
}

// AddTransaction records a ledger entry and applies it to the persisted
// holding in the same database transaction. When no fee is supplied, BUY and
// SELL entries are charged the standard CSE rate on the base amount.
func (c *Core) AddTransaction(req AddTransactionRequest) (int64, error) {
	req.Symbol = normalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		return 0, NewError(ErrCodeInvalidInput, "symbol required")
	}
	if req.TransactionType == "" {
		return 0, NewError(ErrCodeInvalidInput, "transaction_type required")
	}
	if !isValidTransactionType(req.TransactionType) {
		return 0, NewError(ErrCodeValidation, fmt.Sprintf("invalid transaction_type: %s", req.TransactionType))
	}
	if req.Quantity <= 0 {
		return 0, NewError(ErrCodeValidation, "quantity must be positive")
	}
	if req.Price < 0 {
		return 0, NewError(ErrCodeValidation, "price must be non-negative")
	}
	if req.TransactionDate == "" {
		req.TransactionDate = todayISO()
	}

	totalAmount := req.Quantity * req.Price
	fees := 0.0
	if req.Fees != nil {
		fees = *req.Fees
	} else if req.TransactionType != "DIVIDEND" {
		fees = totalAmount * FeeRate
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := c.applyTransactionTx(tx, req, fees); err != nil {
		return 0, err
	}

	reference := uuid.NewString()
	result, err := tx.Exec(`
		INSERT INTO transactions (transaction_date, symbol, transaction_type, quantity, price, fees, total_amount, notes, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.TransactionDate, req.Symbol, req.TransactionType, req.Quantity, req.Price,
		fees, totalAmount, nullString(req.Notes), reference)
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "insert transaction", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	c.logOperation(req.TransactionType, &req.Symbol, stringPtr(reference), floatPtr(req.Price), floatPtr(req.Quantity))
	return id, nil
}

// applyTransactionTx mirrors the pre-trade simulation semantics against the
// holdings table: BUY folds fees into the cost basis, partial SELL reduces
// the basis proportionally, and a full exit marks the holding sold instead
// of deleting it so history survives.
func (c *Core) applyTransactionTx(tx *sql.Tx, req AddTransactionRequest, fees float64) error {
	if req.TransactionType == "DIVIDEND" {
		return nil
	}

	row := tx.QueryRow(`
		SELECT id, quantity, total_invested, initial_buy_price
		FROM holdings WHERE symbol = ?
	`, req.Symbol)
	var id int64
	var quantity, invested, initialBuyPrice float64
	err := row.Scan(&id, &quantity, &invested, &initialBuyPrice)
	if err == sql.ErrNoRows {
		if req.TransactionType == "SELL" {
			return NewError(ErrCodeValidation, fmt.Sprintf("no holding in %s to sell", req.Symbol))
		}
		newInvested := req.Quantity*req.Price + fees
		_, err := tx.Exec(`
			INSERT INTO holdings (symbol, sector, quantity, avg_price, total_invested, initial_buy_price, last_buy_price, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'active')
		`, req.Symbol, nullString(req.Sector), req.Quantity, req.Price, newInvested, req.Price, req.Price)
		return err
	}
	if err != nil {
		return err
	}

	switch req.TransactionType {
	case "BUY":
		newQuantity := quantity + req.Quantity
		newInvested := invested + req.Quantity*req.Price + fees
		avgPrice := 0.0
		if newQuantity > 0 {
			avgPrice = newInvested / newQuantity
		}
		if quantity == 0 {
			initialBuyPrice = req.Price
		}
		_, err := tx.Exec(`
			UPDATE holdings
			SET quantity = ?, avg_price = ?, total_invested = ?, initial_buy_price = ?,
				last_buy_price = ?, status = 'active', updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, newQuantity, avgPrice, newInvested, initialBuyPrice, req.Price, id)
		return err
	case "SELL":
		if req.Quantity > quantity {
			return NewError(ErrCodeValidation,
				fmt.Sprintf("cannot sell %.0f of %s; only %.0f held", req.Quantity, req.Symbol, quantity))
		}
		remaining := quantity - req.Quantity
		if remaining <= 0 {
			_, err := tx.Exec(`
				UPDATE holdings
				SET quantity = 0, total_invested = 0, status = 'sold', updated_at = CURRENT_TIMESTAMP
				WHERE id = ?
			`, id)
			return err
		}
		newInvested := invested * remaining / quantity
		_, err := tx.Exec(`
			UPDATE holdings
			SET quantity = ?, total_invested = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, remaining, newInvested, id)
		return err
	}
	return nil
}

// GetTransactions returns ledger entries matching the filter, newest first.
func (c *Core) GetTransactions(filter TransactionFilter) ([]Transaction, error) {
	query := `
		SELECT id, transaction_date, symbol, transaction_type, quantity, price,
			fees, total_amount, notes, reference, created_at
		FROM transactions
	`
	var conditions []string
	var params []any
	if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		params = append(params, normalizeSymbol(filter.Symbol))
	}
	if filter.TransactionType != "" {
		conditions = append(conditions, "transaction_type = ?")
		params = append(params, filter.TransactionType)
	}
	if filter.StartDate != "" {
		conditions = append(conditions, "transaction_date >= ?")
		params = append(params, filter.StartDate)
	}
	if filter.EndDate != "" {
		conditions = append(conditions, "transaction_date <= ?")
		params = append(params, filter.EndDate)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY transaction_date DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += " LIMIT ? OFFSET ?"
	params = append(params, limit, offset)

	rows, err := c.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		var notes, createdAt sql.NullString
		if err := rows.Scan(
			&t.ID, &t.TransactionDate, &t.Symbol, &t.TransactionType, &t.Quantity,
			&t.Price, &t.Fees, &t.TotalAmount, &notes, &t.Reference, &createdAt,
		); err != nil {
			return nil, err
		}
		t.Notes = scanNullString(notes)
		t.CreatedAt = scanNullString(createdAt)
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// DeleteTransaction removes a ledger entry. Holdings are not rewound; the
// removal is audit-logged for manual reconciliation.
func (c *Core) DeleteTransaction(id int64) error {
	var symbol string
	err := c.db.QueryRow("SELECT symbol FROM transactions WHERE id = ?", id).Scan(&symbol)
	if err == sql.ErrNoRows {
		return NewError(ErrCodeNotFound, fmt.Sprintf("transaction %d not found", id))
	}
	if err != nil {
		return err
	}
	if _, err := c.db.Exec("DELETE FROM transactions WHERE id = ?", id); err != nil {
		return err
	}
	c.logOperation("DELETE_TRANSACTION", &symbol, stringPtr(fmt.Sprintf("transaction %d removed", id)), nil, nil)
	return nil
}

// CountRecentTrades counts non-dividend ledger entries in the trailing window.
func (c *Core) CountRecentTrades(days int) (int, error) {
	if days <= 0 {
		days = tradeFrequencyWindowDays
	}
	cutoff := time.Now().In(colomboLocation()).AddDate(0, 0, -days).Format("2006-01-02")
	var count int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM transactions WHERE transaction_type != 'DIVIDEND' AND transaction_date >= ?",
		cutoff,
	).Scan(&count)
	return count, err
}
