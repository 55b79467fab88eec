package csetrack

import (
	"database/sql"
	"fmt"
	"math"
)

// RedistributeOnAdd appends a tranche and re-spreads percents so they sum to
// exactly 100: every prior tranche gets floor(100/count) and the new tranche
// absorbs the remainder. Distribution is uneven when 100 is not divisible.
func RedistributeOnAdd(tranches []AllocationTranche, added AllocationTranche) []AllocationTranche {
	result := make([]AllocationTranche, 0, len(tranches)+1)
	result = append(result, tranches...)
	result = append(result, added)

	newCount := len(result)
	evenShare := math.Floor(100 / float64(newCount))
	for i := 0; i < newCount-1; i++ {
		result[i].Percent = evenShare
	}
	result[newCount-1].Percent = 100 - evenShare*float64(newCount-1)
	return result
}

// RedistributeOnRemove drops the tranche at index and re-spreads percents:
// all but the last remaining tranche get floor(100/count), the last absorbs
// the remainder. An empty result stays empty.
func RedistributeOnRemove(tranches []AllocationTranche, index int) []AllocationTranche {
	if index < 0 || index >= len(tranches) {
		return tranches
	}
	result := make([]AllocationTranche, 0, len(tranches)-1)
	result = append(result, tranches[:index]...)
	result = append(result, tranches[index+1:]...)
	if len(result) == 0 {
		return result
	}

	perTranche := math.Floor(100 / float64(len(result)))
	for i := 0; i < len(result)-1; i++ {
		result[i].Percent = perTranche
	}
	result[len(result)-1].Percent = 100 - perTranche*float64(len(result)-1)
	return result
}

// GetAllocationTargets returns all targets with their tranches in position order.
func (c *Core) GetAllocationTargets() ([]AllocationTarget, error) {
	rows, err := c.db.Query("SELECT id, symbol, allocation_percent, is_priority FROM allocation_targets ORDER BY symbol")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []AllocationTarget
	byID := map[int64]int{}
	for rows.Next() {
		var t AllocationTarget
		var priority int
		if err := rows.Scan(&t.ID, &t.Symbol, &t.AllocationPercent, &priority); err != nil {
			return nil, err
		}
		t.IsPriority = priority != 0
		byID[t.ID] = len(targets)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trancheRows, err := c.db.Query("SELECT id, target_id, label, price, percent FROM allocation_tranches ORDER BY target_id, position, id")
	if err != nil {
		return nil, err
	}
	defer trancheRows.Close()
	for trancheRows.Next() {
		var tr AllocationTranche
		if err := trancheRows.Scan(&tr.ID, &tr.TargetID, &tr.Label, &tr.Price, &tr.Percent); err != nil {
			return nil, err
		}
		if idx, ok := byID[tr.TargetID]; ok {
			targets[idx].Tranches = append(targets[idx].Tranches, tr)
		}
	}
	return targets, trancheRows.Err()
}

// AddAllocationTarget creates a target with a single 100% tranche.
func (c *Core) AddAllocationTarget(symbol string, allocationPercent float64, isPriority bool) (int64, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return 0, NewError(ErrCodeInvalidInput, "symbol required")
	}
	if allocationPercent < 0 || allocationPercent > 100 {
		return 0, NewError(ErrCodeValidation, "allocation_percent must be between 0 and 100")
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	priority := 0
	if isPriority {
		priority = 1
	}
	result, err := tx.Exec(
		"INSERT INTO allocation_targets (symbol, allocation_percent, is_priority) VALUES (?, ?, ?)",
		symbol, allocationPercent, priority,
	)
	if err != nil {
		return 0, WrapError(ErrCodeDuplicate, fmt.Sprintf("target for %s already exists", symbol), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(
		"INSERT INTO allocation_tranches (target_id, label, price, percent, position) VALUES (?, ?, 0, 100, 0)",
		id, "Tranche 1",
	); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// UpdateAllocationTarget updates a target's allocation percent and priority flag.
func (c *Core) UpdateAllocationTarget(id int64, allocationPercent float64, isPriority bool) error {
	if allocationPercent < 0 || allocationPercent > 100 {
		return NewError(ErrCodeValidation, "allocation_percent must be between 0 and 100")
	}
	priority := 0
	if isPriority {
		priority = 1
	}
	result, err := c.db.Exec(
		"UPDATE allocation_targets SET allocation_percent = ?, is_priority = ? WHERE id = ?",
		allocationPercent, priority, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return NewError(ErrCodeNotFound, fmt.Sprintf("allocation target %d not found", id))
	}
	return nil
}

// DeleteAllocationTarget removes a target and its tranches.
func (c *Core) DeleteAllocationTarget(id int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.Exec("DELETE FROM allocation_tranches WHERE target_id = ?", id); err != nil {
		return err
	}
	result, err := tx.Exec("DELETE FROM allocation_targets WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return NewError(ErrCodeNotFound, fmt.Sprintf("allocation target %d not found", id))
	}
	return tx.Commit()
}

// AddAllocationTranche appends a tranche to a target and rewrites the
// target's tranche percents so they sum to exactly 100.
func (c *Core) AddAllocationTranche(targetID int64, label string, price float64) ([]AllocationTranche, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	tranches, err := loadTranchesTx(tx, targetID)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = fmt.Sprintf("Tranche %d", len(tranches)+1)
	}
	redistributed := RedistributeOnAdd(tranches, AllocationTranche{
		TargetID: targetID,
		Label:    label,
		Price:    price,
	})
	if err := rewriteTranchesTx(tx, targetID, redistributed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c.tranchesForTarget(targetID)
}

// RemoveAllocationTranche deletes one tranche and rewrites the remaining
// percents so they again sum to exactly 100.
func (c *Core) RemoveAllocationTranche(targetID, trancheID int64) ([]AllocationTranche, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	tranches, err := loadTranchesTx(tx, targetID)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, tr := range tranches {
		if tr.ID == trancheID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, NewError(ErrCodeNotFound, fmt.Sprintf("tranche %d not found", trancheID))
	}
	redistributed := RedistributeOnRemove(tranches, index)
	if err := rewriteTranchesTx(tx, targetID, redistributed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c.tranchesForTarget(targetID)
}

func loadTranchesTx(tx *sql.Tx, targetID int64) ([]AllocationTranche, error) {
	var exists int
	if err := tx.QueryRow("SELECT 1 FROM allocation_targets WHERE id = ?", targetID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, NewError(ErrCodeNotFound, fmt.Sprintf("allocation target %d not found", targetID))
		}
		return nil, err
	}
	rows, err := tx.Query(
		"SELECT id, target_id, label, price, percent FROM allocation_tranches WHERE target_id = ? ORDER BY position, id",
		targetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tranches []AllocationTranche
	for rows.Next() {
		var tr AllocationTranche
		if err := rows.Scan(&tr.ID, &tr.TargetID, &tr.Label, &tr.Price, &tr.Percent); err != nil {
			return nil, err
		}
		tranches = append(tranches, tr)
	}
	return tranches, rows.Err()
}

func rewriteTranchesTx(tx *sql.Tx, targetID int64, tranches []AllocationTranche) error {
	if _, err := tx.Exec("DELETE FROM allocation_tranches WHERE target_id = ?", targetID); err != nil {
		return err
	}
	for i, tr := range tranches {
		if _, err := tx.Exec(
			"INSERT INTO allocation_tranches (target_id, label, price, percent, position) VALUES (?, ?, ?, ?, ?)",
			targetID, tr.Label, tr.Price, tr.Percent, i,
		); err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) tranchesForTarget(targetID int64) ([]AllocationTranche, error) {
	rows, err := c.db.Query(
		"SELECT id, target_id, label, price, percent FROM allocation_tranches WHERE target_id = ? ORDER BY position, id",
		targetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tranches []AllocationTranche
	for rows.Next() {
		var tr AllocationTranche
		if err := rows.Scan(&tr.ID, &tr.TargetID, &tr.Label, &tr.Price, &tr.Percent); err != nil {
			return nil, err
		}
		tranches = append(tranches, tr)
	}
	return tranches, rows.Err()
}
