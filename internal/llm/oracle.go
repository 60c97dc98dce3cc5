package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/pcm"
	"github.com/kasbahsoft/comptaflow/internal/service"
)

// Oracle wraps a raw oracle client with caching, rate limiting and retries,
// and implements the classifier's oracle contract.
type Oracle struct {
	client      Client
	chart       *pcm.Chart
	cache       *suggestionCache
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// NewOracle creates a classification oracle. The chart constrains the
// candidate accounts offered to the model.
func NewOracle(cfg Config, chart *pcm.Chart) (*Oracle, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}
	return newOracleWithClient(cfg, chart, client), nil
}

func newOracleWithClient(cfg Config, chart *pcm.Chart, client Client) *Oracle {
	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Oracle{
		client:      client,
		chart:       chart,
		cache:       newSuggestionCache(cfg.CacheTTL),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts:   retryOpts,
	}
}

// ClassifyLine asks the oracle for the PCM account of one invoice line.
func (o *Oracle) ClassifyLine(ctx context.Context, description string, amountHT decimal.Decimal, invoiceType model.InvoiceType) (service.ClassificationSuggestion, error) {
	key := string(invoiceType) + "|" + strings.ToLower(strings.TrimSpace(description))
	if suggestion, found := o.cache.get(key); found {
		slog.Debug("oracle cache hit", "description", description)
		return suggestion, nil
	}

	if err := o.rateLimiter.wait(ctx); err != nil {
		return service.ClassificationSuggestion{}, err
	}

	prompt := o.buildClassifyPrompt(description, amountHT, invoiceType)

	var resp ClassificationResponse
	err := common.WithRetry(ctx, func() error {
		var callErr error
		resp, callErr = o.client.Classify(ctx, prompt)
		return callErr
	}, o.retryOpts)
	if err != nil {
		return service.ClassificationSuggestion{}, fmt.Errorf("oracle classification failed: %w", err)
	}

	suggestion := service.ClassificationSuggestion{
		PcmClass:     resp.PcmClass,
		AccountCode:  resp.AccountCode,
		AccountLabel: resp.AccountLabel,
		Confidence:   resp.Confidence,
		Reason:       resp.Reason,
	}

	// Prefer the chart's label and class when the account is known.
	if account, ok := o.chart.Get(resp.AccountCode); ok {
		suggestion.AccountLabel = account.Label
		suggestion.PcmClass = account.Class
	}

	o.cache.set(key, suggestion)

	slog.Info("line classified by oracle",
		"description", description,
		"account", suggestion.AccountCode,
		"confidence", suggestion.Confidence)

	return suggestion, nil
}

// Close releases the oracle's background resources.
func (o *Oracle) Close() {
	o.cache.Close()
	o.rateLimiter.Close()
}

func (o *Oracle) buildClassifyPrompt(description string, amountHT decimal.Decimal, invoiceType model.InvoiceType) string {
	var b strings.Builder

	b.WriteString("Assign a PCM account to this invoice line.\n\n")
	fmt.Fprintf(&b, "Line description: %s\n", description)
	if !amountHT.IsZero() {
		fmt.Fprintf(&b, "Amount HT: %s MAD\n", amountHT.StringFixed(2))
	}
	fmt.Fprintf(&b, "Document type: %s\n\n", invoiceType)

	b.WriteString("Candidate accounts:\n")
	for _, account := range o.candidates(invoiceType) {
		fmt.Fprintf(&b, "- %s | %s\n", account.Code, account.Label)
	}

	b.WriteString(`
Respond with a single JSON object:
{"pcm_class": <1-8>, "pcm_account_code": "<code>", "pcm_account_label": "<label>", "confidence": <0.0-1.0>, "reason": "<short justification in French>"}
`)

	return b.String()
}

// candidates narrows the chart to the classes relevant to the document type:
// revenue accounts for sales, expense and fixed-asset accounts otherwise.
func (o *Oracle) candidates(invoiceType model.InvoiceType) []model.PcmAccount {
	var out []model.PcmAccount
	for _, account := range o.chart.Accounts() {
		if account.IsVAT {
			continue
		}
		switch invoiceType {
		case model.TypeVente:
			if account.Class == 7 {
				out = append(out, account)
			}
		case model.TypeImmobilisation:
			if account.Class == 2 {
				out = append(out, account)
			}
		default:
			if account.Class == 6 || account.Class == 2 {
				out = append(out, account)
			}
		}
	}
	return out
}
