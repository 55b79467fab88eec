package csetrack

import (
	"database/sql"
	"fmt"
)

// GetHoldings returns persisted holdings, active only unless includeSold is set.
func (c *Core) GetHoldings(includeSold bool) ([]Holding, error) {
	query := `
		SELECT id, symbol, name, sector, quantity, avg_price, total_invested,
			initial_buy_price, last_buy_price, status, created_at, updated_at
		FROM holdings
	`
	if !includeSold {
		query += " WHERE status = 'active'"
	}
	query += " ORDER BY symbol"

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// GetHolding fetches a single holding by symbol.
func (c *Core) GetHolding(symbol string) (*Holding, error) {
	row := c.db.QueryRow(`
		SELECT id, symbol, name, sector, quantity, avg_price, total_invested,
			initial_buy_price, last_buy_price, status, created_at, updated_at
		FROM holdings WHERE symbol = ?
	`, normalizeSymbol(symbol))
	h, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, NewError(ErrCodeNotFound, fmt.Sprintf("holding %s not found", normalizeSymbol(symbol)))
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHolding(row rowScanner) (Holding, error) {
	var h Holding
	var name, sector, createdAt, updatedAt sql.NullString
	err := row.Scan(
		&h.ID, &h.Symbol, &name, &sector, &h.Quantity, &h.AvgPrice,
		&h.TotalInvested, &h.InitialBuyPrice, &h.LastBuyPrice, &h.Status,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return Holding{}, err
	}
	h.Name = scanNullString(name)
	h.Sector = scanNullString(sector)
	h.CreatedAt = scanNullString(createdAt)
	h.UpdatedAt = scanNullString(updatedAt)
	return h, nil
}

// AddHolding inserts a new holding record.
func (c *Core) AddHolding(h Holding) (int64, error) {
	h.Symbol = normalizeSymbol(h.Symbol)
	if h.Symbol == "" {
		return 0, NewError(ErrCodeInvalidInput, "symbol required")
	}
	if h.Quantity < 0 || h.AvgPrice < 0 || h.TotalInvested < 0 {
		return 0, NewError(ErrCodeValidation, "quantity, avg_price and total_invested must be non-negative")
	}
	if h.Status == "" {
		h.Status = HoldingActive
	}
	if h.InitialBuyPrice == 0 {
		h.InitialBuyPrice = h.AvgPrice
	}
	if h.LastBuyPrice == 0 {
		h.LastBuyPrice = h.AvgPrice
	}
	if h.TotalInvested == 0 {
		h.TotalInvested = h.Quantity * h.AvgPrice
	}

	result, err := c.db.Exec(`
		INSERT INTO holdings (symbol, name, sector, quantity, avg_price, total_invested,
			initial_buy_price, last_buy_price, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.Symbol, nullString(h.Name), nullString(h.Sector), h.Quantity, h.AvgPrice,
		h.TotalInvested, h.InitialBuyPrice, h.LastBuyPrice, h.Status)
	if err != nil {
		return 0, WrapError(ErrCodeDuplicate, fmt.Sprintf("holding %s already exists", h.Symbol), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.logOperation("ADD_HOLDING", &h.Symbol, nil, nil, floatPtr(h.Quantity))
	return id, nil
}

// UpdateHolding updates a holding's mutable fields by id.
func (c *Core) UpdateHolding(h Holding) error {
	if h.Quantity < 0 || h.AvgPrice < 0 || h.TotalInvested < 0 {
		return NewError(ErrCodeValidation, "quantity, avg_price and total_invested must be non-negative")
	}
	if h.Status != HoldingActive && h.Status != HoldingSold {
		return NewError(ErrCodeValidation, fmt.Sprintf("invalid status: %s", h.Status))
	}
	result, err := c.db.Exec(`
		UPDATE holdings
		SET name = ?, sector = ?, quantity = ?, avg_price = ?, total_invested = ?,
			initial_buy_price = ?, last_buy_price = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, nullString(h.Name), nullString(h.Sector), h.Quantity, h.AvgPrice, h.TotalInvested,
		h.InitialBuyPrice, h.LastBuyPrice, h.Status, h.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return NewError(ErrCodeNotFound, fmt.Sprintf("holding %d not found", h.ID))
	}
	return nil
}

// DeleteHolding removes a holding by id.
func (c *Core) DeleteHolding(id int64) error {
	result, err := c.db.Exec("DELETE FROM holdings WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return NewError(ErrCodeNotFound, fmt.Sprintf("holding %d not found", id))
	}
	return nil
}

// BuildSnapshot enriches holdings with live prices. Holdings with no known
// price are valued at cost. Pure; the inputs are never mutated.
func BuildSnapshot(holdings []Holding, prices map[string]float64) []HoldingSnapshot {
	snapshot := make([]HoldingSnapshot, 0, len(holdings))
	for _, h := range holdings {
		s := HoldingSnapshot{Holding: h}
		price, ok := prices[h.Symbol]
		if !ok || price <= 0 {
			price = h.AvgPrice
		}
		s.CurrentPrice = price
		s.CurrentValue = h.Quantity * price
		s.ProfitLoss = s.CurrentValue - h.TotalInvested
		if h.TotalInvested > 0 {
			s.ProfitLossPercent = s.ProfitLoss / h.TotalInvested * 100
		}
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// ComputeTotals derives portfolio aggregates from a snapshot. Aggregates are
// recomputed fresh on every call; nothing is cached.
func ComputeTotals(snapshot []HoldingSnapshot, settings Settings) PortfolioTotals {
	totals := PortfolioTotals{HoldingsCount: len(snapshot)}
	for _, s := range snapshot {
		totals.TotalInvested += s.TotalInvested
		totals.TotalValue += s.CurrentValue
	}
	totals.ProfitLoss = totals.TotalValue - totals.TotalInvested
	totals.CashBalance = settings.TotalCapital - totals.TotalInvested
	totals.NetLiquidationValue = totals.TotalValue + totals.CashBalance
	if totals.NetLiquidationValue > 0 {
		totals.CashPercent = totals.CashBalance / totals.NetLiquidationValue * 100
	}
	return totals
}

// CurrentSnapshot loads active holdings and enriches them with stored prices.
func (c *Core) CurrentSnapshot() ([]HoldingSnapshot, error) {
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
	return BuildSnapshot(holdings, prices), nil
}
