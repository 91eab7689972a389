package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal"
)

func TestExtractQuantitiesGeneric(t *testing.T) {
	got := ExtractQuantities("Need 50 pcs urgently", nil)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, internal.QuantityMention{ProductRef: internal.GenericProductRef, Quantity: 50, Confidence: 0.5}, m)
	}
}

func TestExtractQuantitiesBroadcastWithProximity(t *testing.T) {
	text := "100 units of Widget-X Pro" + strings.Repeat(" ", 70) + "Steel Bolt"
	got := ExtractQuantities(text, []string{"Widget-X Pro", "Steel Bolt", "Hex Nut"})
	require.Len(t, got, 3)

	assert.Equal(t, "Widget-X Pro", got[0].ProductRef)
	assert.Equal(t, 100, got[0].Quantity)
	assert.Equal(t, 0.9, got[0].Confidence)

	// name starts at offset 95: 0.5 + (1 - 95/100)
	assert.Equal(t, "Steel Bolt", got[1].ProductRef)
	assert.InDelta(t, 0.55, got[1].Confidence, 1e-9)

	assert.Equal(t, "Hex Nut", got[2].ProductRef)
	assert.Equal(t, 0.3, got[2].Confidence)
}

func TestExtractQuantitiesBounds(t *testing.T) {
	got := ExtractQuantities("0 units, 1000000 pcs, 999999 pcs and 5 boxes", nil)
	var values []int
	for _, m := range got {
		assert.Greater(t, m.Quantity, 0)
		assert.Less(t, m.Quantity, 1_000_000)
		values = append(values, m.Quantity)
	}
	assert.Equal(t, []int{999999, 5}, values)
}

func TestExtractQuantitiesCaseInsensitive(t *testing.T) {
	got := ExtractQuantities("QTY: 3", nil)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Quantity)
}

func TestExtractQuantitiesNone(t *testing.T) {
	assert.Empty(t, ExtractQuantities("", []string{"Widget"}))
	assert.Empty(t, ExtractQuantities("call me at noon", nil))
}

func TestExtractQuantitiesProximityCountsCharacters(t *testing.T) {
	cases := []struct {
		name string
		gap  int
		want float64
	}{
		// quantity starts at character 48: 0.5 + 0.52, capped
		{name: "near", gap: 40, want: 0.9},
		// quantity starts at character 88: 0.5 + 0.12
		{name: "far", gap: 80, want: 0.62},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := "Кабель " + strings.Repeat("ж", tc.gap) + " 10 pcs"
			got := ExtractQuantities(text, []string{"Кабель"})
			require.Len(t, got, 1)
			assert.Equal(t, 10, got[0].Quantity)
			assert.InDelta(t, tc.want, got[0].Confidence, 1e-9)
		})
	}
}
