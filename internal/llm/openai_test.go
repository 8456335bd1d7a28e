package llm

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/variant-scraper/internal/variants"
)

func TestNewOpenAIVerifierRequiresKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewOpenAIVerifier(Config{}, logger)
	assert.Error(t, err)

	v, err := NewOpenAIVerifier(Config{APIKey: "sk-test"}, logger)
	require.NoError(t, err)
	assert.Equal(t, defaultModel, v.model)
	assert.Equal(t, defaultTimeout, v.timeout)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(variants.VerifyRequest{
		Title:     "Wireless Earbuds",
		BasePrice: 26.58,
		Options: []variants.TypedOption{
			{Type: "color", Name: "Black"},
			{Type: "unknown", Name: "Hazelnut"},
		},
	})

	assert.Contains(t, prompt, "Product: Wireless Earbuds")
	assert.Contains(t, prompt, "Base price: 26.58")
	assert.Contains(t, prompt, `type=color name="Black"`)
	assert.Contains(t, prompt, `type=unknown name="Hazelnut"`)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "plain array",
			content: `[{"type":"color","name":"Black"},{"type":"color","name":"White"}]`,
			want:    2,
		},
		{
			name:    "fenced array",
			content: "```json\n[{\"type\":\"size\",\"name\":\"Medium\"}]\n```",
			want:    1,
		},
		{
			name:    "empty array",
			content: "[]",
			want:    0,
		},
		{
			name:    "prose instead of JSON",
			content: "I could not determine any variants.",
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			content: `[{"type":"color","name":"Bl`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseResponse(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, opts, tt.want)
		})
	}
}
