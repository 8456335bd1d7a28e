package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/variantlab/variant-scraper/internal/ratelimit"
	"github.com/variantlab/variant-scraper/internal/variants"
)

const (
	defaultModel   = openai.GPT4oMini
	defaultTimeout = 10 * time.Second
)

// OpenAIVerifier asks a chat completion model to judge which extracted
// options are real purchasable variants. It satisfies variants.Verifier.
type OpenAIVerifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *ratelimit.AdaptiveRateLimiter
	logger  *slog.Logger
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAIVerifier(cfg Config, logger *slog.Logger) (*OpenAIVerifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIVerifier{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: ratelimit.NewAdaptiveRateLimiter(time.Second, 5*time.Second),
		logger:  logger.With("component", "verifier"),
	}, nil
}

func (v *OpenAIVerifier) Verify(ctx context.Context, req variants.VerifyRequest) (*variants.VerifyResponse, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       v.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req),
			},
		},
	})
	if err != nil {
		v.limiter.RecordError()
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		v.limiter.RecordError()
		return nil, fmt.Errorf("empty completion response")
	}

	options, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		v.limiter.RecordError()
		return nil, err
	}

	v.limiter.RecordSuccess()
	v.logger.Debug("verification complete",
		"sent", len(req.Options),
		"confirmed", len(options))

	return &variants.VerifyResponse{Options: options}, nil
}

const systemPrompt = `You review product options scraped from e-commerce pages. ` +
	`Given a product title and a list of candidate options, return ONLY the options ` +
	`that are real purchasable variants of the product (colors, sizes, styles, ` +
	`materials, storage capacities, or other genuine dimensions). ` +
	`Exclude quantity selectors, UI controls, navigation entries, and anything ` +
	`unrelated to the product. Correct the type when it is wrong. ` +
	`Respond with a JSON array of {"type": "...", "name": "..."} objects and nothing else.`

func buildPrompt(req variants.VerifyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", req.Title)
	if req.BasePrice > 0 {
		fmt.Fprintf(&b, "Base price: %.2f\n", req.BasePrice)
	}
	b.WriteString("Candidate options:\n")
	for _, opt := range req.Options {
		fmt.Fprintf(&b, "- type=%s name=%q\n", opt.Type, opt.Name)
	}
	return b.String()
}

// parseResponse decodes the model's JSON array, tolerating a markdown code
// fence around it.
func parseResponse(content string) ([]variants.TypedOption, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var options []variants.TypedOption
	if err := json.Unmarshal([]byte(content), &options); err != nil {
		return nil, fmt.Errorf("malformed verifier response: %w", err)
	}
	return options, nil
}
