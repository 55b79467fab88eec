package csetrack

// GetSettings returns the single-row user configuration.
func (c *Core) GetSettings() (Settings, error) {
	var s Settings
	err := c.db.QueryRow(
		"SELECT total_capital, discipline_buy_threshold FROM settings WHERE id = 1",
	).Scan(&s.TotalCapital, &s.DisciplineBuyThreshold)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

// UpdateSettings persists the user configuration.
func (c *Core) UpdateSettings(s Settings) error {
	if s.TotalCapital < 0 {
		return NewError(ErrCodeValidation, "total_capital must be non-negative")
	}
	if s.DisciplineBuyThreshold <= 0 {
		s.DisciplineBuyThreshold = DefaultDisciplineBuyThreshold
	}
	old, err := c.GetSettings()
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`
		UPDATE settings
		SET total_capital = ?, discipline_buy_threshold = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, s.TotalCapital, s.DisciplineBuyThreshold)
	if err != nil {
		return err
	}
	c.logOperation("UPDATE_SETTINGS", nil, stringPtr("total capital changed"),
		floatPtr(old.TotalCapital), floatPtr(s.TotalCapital))
	return nil
}
