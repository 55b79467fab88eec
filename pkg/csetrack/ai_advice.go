package csetrack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const adviceRequestTimeout = 5 * time.Minute

const portfolioAdviceSystemPrompt = `You are a disciplined portfolio review assistant for a retail investor on the Colombo Stock Exchange.
You are given the investor's current holdings snapshot, portfolio totals, and the discipline rules currently being violated.
Review position sizing, sector concentration, unrealized losses and cash buffer.

You must output a pure JSON object, no Markdown fences, no extra text, with fields:
- overall_summary: string (2-3 sentences)
- risk_level: string (one of "low", "moderate", "elevated", "high")
- key_findings: string[]
- recommendations: [{symbol, action, rationale}] where action is one of hold/reduce/increase/exit
- disclaimer: string

Never promise returns. Always include a risk disclaimer. Base findings only on the supplied data.`

// AdviceRequest defines the inputs for an AI portfolio review.
type AdviceRequest struct {
	APIKey string
	Model  string
}

// AdviceRecommendation is one per-symbol suggestion from the model.
type AdviceRecommendation struct {
	Symbol    string `json:"symbol"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// AdviceResult is the structured review returned to clients.
type AdviceResult struct {
	GeneratedAt     string                 `json:"generated_at"`
	Model           string                 `json:"model"`
	OverallSummary  string                 `json:"overall_summary"`
	RiskLevel       string                 `json:"risk_level"`
	KeyFindings     []string               `json:"key_findings"`
	Recommendations []AdviceRecommendation `json:"recommendations"`
	Disclaimer      string                 `json:"disclaimer"`
}

type adviceModelResponse struct {
	OverallSummary  string                 `json:"overall_summary"`
	RiskLevel       string                 `json:"risk_level"`
	KeyFindings     []string               `json:"key_findings"`
	Recommendations []AdviceRecommendation `json:"recommendations"`
	Disclaimer      string                 `json:"disclaimer"`
}

type advicePromptInput struct {
	Totals     PortfolioTotals   `json:"totals"`
	Holdings   []HoldingSnapshot `json:"holdings"`
	Violations []RuleViolation   `json:"violations"`
}

// GetPortfolioAdvice generates an AI review of the current portfolio state.
func (c *Core) GetPortfolioAdvice(req AdviceRequest) (*AdviceResult, error) {
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.Model = strings.TrimSpace(req.Model)
	if req.APIKey == "" {
		return nil, NewError(ErrCodeInvalidInput, "API key is required")
	}
	if req.Model == "" {
		return nil, NewError(ErrCodeInvalidInput, "model is required")
	}

	snapshot, err := c.CurrentSnapshot()
	if err != nil {
		return nil, err
	}
	settings, err := c.GetSettings()
	if err != nil {
		return nil, err
	}
	violationsByRule, err := c.EvaluateActiveRules()
	if err != nil {
		return nil, err
	}
	var violations []RuleViolation
	for _, list := range violationsByRule {
		violations = append(violations, list...)
	}

	userPrompt, err := buildAdviceUserPrompt(snapshot, ComputeTotals(snapshot, settings), violations)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), adviceRequestTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  req.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: portfolioAdviceSystemPrompt}},
		},
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
	}
	response, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(userPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("AI request failed: %w", err)
	}
	content := strings.TrimSpace(response.Text())
	if content == "" {
		return nil, NewError(ErrCodeInternal, "ai response content is empty")
	}
	model := strings.TrimSpace(response.ModelVersion)
	if model == "" {
		model = req.Model
	}

	parsed, err := parseAdviceResponse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return &AdviceResult{
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Model:           model,
		OverallSummary:  parsed.OverallSummary,
		RiskLevel:       parsed.RiskLevel,
		KeyFindings:     parsed.KeyFindings,
		Recommendations: parsed.Recommendations,
		Disclaimer:      parsed.Disclaimer,
	}, nil
}

func buildAdviceUserPrompt(snapshot []HoldingSnapshot, totals PortfolioTotals, violations []RuleViolation) (string, error) {
	payload, err := json.Marshal(advicePromptInput{
		Totals:     totals,
		Holdings:   snapshot,
		Violations: violations,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize prompt input: %w", err)
	}
	return fmt.Sprintf(`Review this Colombo Stock Exchange portfolio and respond with the required JSON object only.

%s

Amounts are in LKR. "violations" lists discipline rules currently breached; weigh critical ones heavily.`, string(payload)), nil
}

func parseAdviceResponse(content string) (*adviceModelResponse, error) {
	cleaned := cleanupModelJSON(content)
	var parsed adviceModelResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return &parsed, nil
}

// cleanupModelJSON strips Markdown code fences some models wrap around JSON.
func cleanupModelJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}
