package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"csetrack/pkg/csetrack"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getHoldings(w http.ResponseWriter, r *http.Request) {
	includeSold := r.URL.Query().Get("include_sold") == "1"
	result, err := h.core.GetHoldings(includeSold)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) addHolding(w http.ResponseWriter, r *http.Request) {
	var payload holdingPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.core.AddHolding(csetrack.Holding{
		Symbol:          payload.Symbol,
		Name:            payload.Name,
		Sector:          payload.Sector,
		Quantity:        payload.Quantity,
		AvgPrice:        payload.AvgPrice,
		TotalInvested:   payload.TotalInvested,
		InitialBuyPrice: payload.InitialBuyPrice,
		LastBuyPrice:    payload.LastBuyPrice,
		Status:          payload.Status,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *handler) updateHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var payload holdingPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.core.UpdateHolding(csetrack.Holding{
		ID:              id,
		Symbol:          payload.Symbol,
		Name:            payload.Name,
		Sector:          payload.Sector,
		Quantity:        payload.Quantity,
		AvgPrice:        payload.AvgPrice,
		TotalInvested:   payload.TotalInvested,
		InitialBuyPrice: payload.InitialBuyPrice,
		LastBuyPrice:    payload.LastBuyPrice,
		Status:          payload.Status,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *handler) deleteHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.core.DeleteHolding(id); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *handler) getPortfolioSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.GetPortfolioSummary()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 1000)
	result, err := h.core.GetPortfolioHistory(limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := csetrack.TransactionFilter{
		Symbol:          query.Get("symbol"),
		TransactionType: query.Get("transaction_type"),
		StartDate:       query.Get("start_date"),
		EndDate:         query.Get("end_date"),
		Limit:           parseIntDefault(query.Get("limit"), 100),
		Offset:          parseIntDefault(query.Get("offset"), 0),
	}
	result, err := h.core.GetTransactions(filter)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	var payload addTransactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.core.AddTransaction(csetrack.AddTransactionRequest{
		TransactionDate: payload.TransactionDate,
		Symbol:          payload.Symbol,
		TransactionType: payload.TransactionType,
		Quantity:        payload.Quantity,
		Price:           payload.Price,
		Fees:            payload.Fees,
		Sector:          payload.Sector,
		Notes:           payload.Notes,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.core.DeleteTransaction(id); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *handler) getRules(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "1"
	result, err := h.core.GetTradingRules(includeInactive)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) addRule(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}
	id, err := h.core.AddTradingRule(payload.RuleType, payload.Threshold, isActive)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var payload rulePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}
	if err := h.core.UpdateTradingRule(id, payload.Threshold, isActive); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.core.DeleteTradingRule(id); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *handler) evaluateRules(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.EvaluateActiveRules()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) simulateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload simulatePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.core.SimulateProposed(csetrack.ProposedTransaction{
		Symbol:          payload.Symbol,
		TransactionType: payload.TransactionType,
		Quantity:        payload.Quantity,
		Price:           payload.Price,
		Fees:            payload.Fees,
		Sector:          payload.Sector,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getAllocationPlan(w http.ResponseWriter, r *http.Request) {
	step := parseIntDefault(r.URL.Query().Get("step"), 1)
	result, err := h.core.PlanAllocation(step)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getAllocationTargets(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.GetAllocationTargets()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) addAllocationTarget(w http.ResponseWriter, r *http.Request) {
	var payload allocationTargetPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.core.AddAllocationTarget(payload.Symbol, payload.AllocationPercent, payload.IsPriority)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *handler) updateAllocationTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var payload allocationTargetPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.core.UpdateAllocationTarget(id, payload.AllocationPercent, payload.IsPriority); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *handler) deleteAllocationTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.core.DeleteAllocationTarget(id); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *handler) addAllocationTranche(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var payload tranchePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tranches, err := h.core.AddAllocationTranche(id, payload.Label, payload.Price)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, tranches)
}

func (h *handler) removeAllocationTranche(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	trancheID, ok := parseIDParam(w, r, "trancheID")
	if !ok {
		return
	}
	tranches, err := h.core.RemoveAllocationTranche(id, trancheID)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, tranches)
}

func (h *handler) getPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.GetAllLatestPrices()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	var payload pricePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.core.UpdatePrice(r.Context(), payload.Symbol)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) setManualPrice(w http.ResponseWriter, r *http.Request) {
	var payload manualPricePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.core.SetManualPrice(payload.Symbol, payload.Price); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *handler) updateAllPrices(w http.ResponseWriter, r *http.Request) {
	results, err := h.core.UpdateAllPrices(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.core.GetSettings()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.core.UpdateSettings(csetrack.Settings{
		TotalCapital:           payload.TotalCapital,
		DisciplineBuyThreshold: payload.DisciplineBuyThreshold,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *handler) getOperationLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseIntDefault(query.Get("limit"), 50)
	offset := parseIntDefault(query.Get("offset"), 0)
	logs, err := h.core.GetOperationLogs(limit, offset)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *handler) getPortfolioAdvice(w http.ResponseWriter, r *http.Request) {
	var payload advicePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.core.GetPortfolioAdvice(csetrack.AdviceRequest{
		APIKey: payload.APIKey,
		Model:  payload.Model,
	})
	if err != nil {
		h.logger.Error("portfolio advice failed", "model", payload.Model, "err", err)
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}
