package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/variant-scraper/internal/variants"
)

func TestVariantsExtractedPayloadStamping(t *testing.T) {
	payload := &VariantsExtractedPayload{
		ASIN:      "B001TEST",
		Title:     "Wireless Earbuds",
		BasePrice: 26.58,
		Variants: []variants.Variant{
			{Type: "color", Name: "Black", Price: 26.58},
		},
		Method:     "rule_based",
		Confidence: 0.85,
	}

	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeVariantsExtracted)

	assert.NotEmpty(t, payload.EventID)
	assert.Equal(t, "VARIANTS_EXTRACTED", payload.EventType)
	assert.False(t, payload.Timestamp.IsZero())
	assert.Equal(t, "variant-scraper", payload.Source)
}

func TestStampPayloadKeepsExistingValues(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := &ExtractionFailedPayload{
		EventID:   "fixed-id",
		EventType: "CUSTOM",
		Timestamp: ts,
		Source:    "backfill",
	}

	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeExtractionFailed)

	assert.Equal(t, "fixed-id", payload.EventID)
	assert.Equal(t, "CUSTOM", payload.EventType)
	assert.Equal(t, ts, payload.Timestamp)
	assert.Equal(t, "backfill", payload.Source)
}

func TestVariantsExtractedPayloadJSONShape(t *testing.T) {
	stock := 4
	payload := &VariantsExtractedPayload{
		EventID:   "evt-1",
		EventType: string(EventTypeVariantsExtracted),
		Timestamp: time.Now(),
		ASIN:      "B001TEST",
		Title:     "Cotton T-Shirt",
		BasePrice: 19.99,
		Variants: []variants.Variant{
			{Type: "size", Name: "Medium", Price: 31.99, Stock: &stock, SKU: "TS-M"},
		},
		Method:     "ai",
		Confidence: 0.92,
		Source:     "variant-scraper",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "B001TEST", decoded["asin"])
	assert.Equal(t, "ai", decoded["method"])
	assert.Equal(t, 0.92, decoded["confidence"])

	variantList, ok := decoded["variants"].([]interface{})
	require.True(t, ok)
	require.Len(t, variantList, 1)

	first := variantList[0].(map[string]interface{})
	assert.Equal(t, "size", first["type"])
	assert.Equal(t, "Medium", first["name"])
	assert.Equal(t, "TS-M", first["sku"])
}
