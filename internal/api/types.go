package api

type holdingPayload struct {
	Symbol          string  `json:"symbol"`
	Name            *string `json:"name"`
	Sector          *string `json:"sector"`
	Quantity        float64 `json:"quantity"`
	AvgPrice        float64 `json:"avg_price"`
	TotalInvested   float64 `json:"total_invested"`
	InitialBuyPrice float64 `json:"initial_buy_price"`
	LastBuyPrice    float64 `json:"last_buy_price"`
	Status          string  `json:"status"`
}

type addTransactionPayload struct {
	TransactionDate string   `json:"transaction_date"`
	Symbol          string   `json:"symbol"`
	TransactionType string   `json:"transaction_type"`
	Quantity        float64  `json:"quantity"`
	Price           float64  `json:"price"`
	Fees            *float64 `json:"fees"`
	Sector          *string  `json:"sector"`
	Notes           *string  `json:"notes"`
}

type rulePayload struct {
	RuleType  string  `json:"rule_type"`
	Threshold float64 `json:"threshold"`
	IsActive  *bool   `json:"is_active"`
}

type simulatePayload struct {
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	Fees            float64 `json:"fees"`
	Sector          *string `json:"sector"`
}

type allocationTargetPayload struct {
	Symbol            string  `json:"symbol"`
	AllocationPercent float64 `json:"allocation_percent"`
	IsPriority        bool    `json:"is_priority"`
}

type tranchePayload struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

type pricePayload struct {
	Symbol string `json:"symbol"`
}

type manualPricePayload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type settingsPayload struct {
	TotalCapital           float64 `json:"total_capital"`
	DisciplineBuyThreshold float64 `json:"discipline_buy_threshold"`
}

type advicePayload struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}
