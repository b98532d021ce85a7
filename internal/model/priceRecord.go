package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flighttracker/internal/misc"
)

type PriceLevel string

const (
	PriceLevelLow     PriceLevel = "low"
	PriceLevelTypical PriceLevel = "typical"
	PriceLevelHigh    PriceLevel = "high"
	PriceLevelUnknown PriceLevel = "unknown"
)

func ParsePriceLevel(s string) PriceLevel {
	switch PriceLevel(s) {
	case PriceLevelLow, PriceLevelTypical, PriceLevelHigh:
		return PriceLevel(s)
	}
	return PriceLevelUnknown
}

// PriceRecord is one observed price for a route. Records are append-only
// and never modified after insert.
type PriceRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RouteID    primitive.ObjectID `bson:"route_id" json:"-"`
	Price      float64            `bson:"pr" json:"price"`
	Currency   string             `bson:"cur" json:"currency"`
	Level      PriceLevel         `bson:"lv" json:"price_level"`
	Airline    string             `bson:"airline,omitempty" json:"airline,omitempty"`
	RecordedAt primitive.DateTime `bson:"ts" json:"recorded_at"`
}

type PriceStats struct {
	Min   float64 `json:"min_price"`
	Max   float64 `json:"max_price"`
	Mean  float64 `json:"avg_price"`
	Count int     `json:"record_count"`
}

// ComputeStats folds aggregate statistics over a history snapshot. It is
// computed from the same slice returned to the caller so the sequence and
// the aggregates can never disagree.
func ComputeStats(prs []PriceRecord) PriceStats {
	if len(prs) == 0 {
		return PriceStats{}
	}
	st := PriceStats{
		Min:   prs[0].Price,
		Max:   prs[0].Price,
		Count: len(prs),
	}
	var sum float64
	for _, pr := range prs {
		st.Min = misc.Min(st.Min, pr.Price)
		st.Max = misc.Max(st.Max, pr.Price)
		sum += pr.Price
	}
	st.Mean = sum / float64(len(prs))
	return st
}
