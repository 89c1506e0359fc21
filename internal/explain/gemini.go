package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/govguard/internal/decision"
	"github.com/opensource-finance/govguard/internal/domain"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// contentGenerator is the part of the genai client the explainer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExplainer asks a Gemini model for an explanation and falls back to
// the template when the call fails.
type GeminiExplainer struct {
	models   contentGenerator
	model    string
	fallback Explainer
}

// NewGeminiExplainer creates a Gemini client for apiKey.
func NewGeminiExplainer(ctx context.Context, apiKey, model string) (*GeminiExplainer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newGeminiExplainer(client.Models, model), nil
}

func newGeminiExplainer(models contentGenerator, model string) *GeminiExplainer {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExplainer{
		models:   models,
		model:    model,
		fallback: TemplateExplainer{},
	}
}

// Explain returns the model's explanation, or the template text when the
// model errors or returns nothing.
func (g *GeminiExplainer) Explain(ctx context.Context, inv domain.InvoiceRecord, d domain.Decision) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(inv, d)},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		slog.Warn("gemini explanation failed, using template",
			"invoice_id", inv.InvoiceID,
			"error", err,
		)
		return g.fallback.Explain(ctx, inv, d)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		slog.Warn("gemini returned an empty explanation, using template",
			"invoice_id", inv.InvoiceID,
		)
		return g.fallback.Explain(ctx, inv, d)
	}

	return text, nil
}

func buildPrompt(inv domain.InvoiceRecord, d domain.Decision) string {
	flags := "none"
	if labels := decision.Labels(d); len(labels) > 0 {
		flags = strings.Join(labels, "; ")
	}

	date := "unknown"
	if !inv.Date.IsZero() {
		date = inv.Date.Format("2006-01-02")
	}

	return "You are assisting a public-sector audit team reviewing invoices for fraud risk.\n\n" +
		"Invoice:\n" +
		fmt.Sprintf("- ID: %s\n", inv.InvoiceID) +
		fmt.Sprintf("- Vendor: %s\n", inv.Vendor) +
		fmt.Sprintf("- Department: %s\n", inv.Department) +
		fmt.Sprintf("- Amount: %s\n", inv.Amount.StringFixed(2)) +
		fmt.Sprintf("- Date: %s\n", date) +
		fmt.Sprintf("- Prior transactions on file: %d\n\n", len(inv.PreviousTransactions)) +
		fmt.Sprintf("Triggered risk flags: %s\n", flags) +
		fmt.Sprintf("Decision: %s\n\n", d.Status) +
		"Explain the risk factors in at most four short sentences and end with a one-line recommendation. " +
		"Do not invent facts that are not listed above. Plain text only, no Markdown."
}
