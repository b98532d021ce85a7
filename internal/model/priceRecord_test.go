package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriceLevel(t *testing.T) {
	assert.Equal(t, PriceLevelLow, ParsePriceLevel("low"))
	assert.Equal(t, PriceLevelTypical, ParsePriceLevel("typical"))
	assert.Equal(t, PriceLevelHigh, ParsePriceLevel("high"))
	assert.Equal(t, PriceLevelUnknown, ParsePriceLevel(""))
	assert.Equal(t, PriceLevelUnknown, ParsePriceLevel("bargain"))
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, PriceStats{}, ComputeStats(nil))

	prs := []PriceRecord{
		{Price: 320},
		{Price: 280},
		{Price: 400},
		{Price: 300},
	}
	st := ComputeStats(prs)
	assert.Equal(t, 280.0, st.Min)
	assert.Equal(t, 400.0, st.Max)
	assert.Equal(t, 325.0, st.Mean)
	assert.Equal(t, 4, st.Count)

	for _, pr := range prs {
		assert.GreaterOrEqual(t, pr.Price, st.Min)
		assert.LessOrEqual(t, pr.Price, st.Max)
	}
}
