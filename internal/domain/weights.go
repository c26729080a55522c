package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// ValidateWeight rejects weights that are not finite positive numbers
func ValidateWeight(field string, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return NewValidationError(field, "weight must be a finite number")
	}
	if weight <= 0 {
		return NewValidationError(field, "weight must be greater than zero")
	}
	return nil
}

// RoundWeight rounds to two decimal places for presentation
func RoundWeight(v float64) float64 {
	return math.Round(v*100) / 100
}

// WeightSummary aggregates original and reconciled weights of a batch.
// Values are kept at full precision; use Rounded for presentation.
type WeightSummary struct {
	TotalCrates     int `json:"totalCrates"`
	ReconciledCount int `json:"reconciledCount"`
	// Sum of original weights of all crates
	TotalOriginalWeight float64 `json:"totalOriginalWeight"`
	// Sum of original weights of reconciled crates only
	ReconciledOriginalWeight float64 `json:"reconciledOriginalWeight"`
	TotalReconciledWeight    float64 `json:"totalReconciledWeight"`
	TotalWeightDifferential  float64 `json:"totalWeightDifferential"`
	// Positive is loss, negative is gain. Zero until a crate is reconciled.
	WeightLossPercentage float64 `json:"weightLossPercentage"`
}

// Rounded returns a copy with weights and percentage rounded to 2 decimals
func (s WeightSummary) Rounded() WeightSummary {
	s.TotalOriginalWeight = RoundWeight(s.TotalOriginalWeight)
	s.ReconciledOriginalWeight = RoundWeight(s.ReconciledOriginalWeight)
	s.TotalReconciledWeight = RoundWeight(s.TotalReconciledWeight)
	s.TotalWeightDifferential = RoundWeight(s.TotalWeightDifferential)
	s.WeightLossPercentage = RoundWeight(s.WeightLossPercentage)
	return s
}

// SummarizeWeights computes batch weight aggregates from its crates. Crates are
// summed in id order so the result does not depend on the order they were read in.
func SummarizeWeights(crates []*Crate) WeightSummary {
	ordered := slices.Clone(crates)
	slices.SortFunc(ordered, func(a, b *Crate) int { return strings.Compare(a.ID, b.ID) })

	var s WeightSummary
	for _, c := range ordered {
		s.TotalCrates++
		s.TotalOriginalWeight += c.Weight
		if !c.Reconciled {
			continue
		}
		s.ReconciledCount++
		s.ReconciledOriginalWeight += c.Weight
		s.TotalReconciledWeight += c.ReconciledWeight
	}

	s.TotalWeightDifferential = s.ReconciledOriginalWeight - s.TotalReconciledWeight
	if s.ReconciledOriginalWeight > 0 {
		s.WeightLossPercentage = s.TotalWeightDifferential / s.ReconciledOriginalWeight * 100
	}
	return s
}

// CrateWeight is one row of the per-crate differential table
type CrateWeight struct {
	CrateID          string       `json:"crateId"`
	QRCode           string       `json:"qrCode"`
	Variety          string       `json:"variety"`
	QualityGrade     QualityGrade `json:"qualityGrade,omitempty"`
	OriginalWeight   float64      `json:"originalWeight"`
	Reconciled       bool         `json:"reconciled"`
	ReconciledWeight *float64     `json:"reconciledWeight,omitempty"`
	Differential     *float64     `json:"differential,omitempty"`
	LossPercentage   *float64     `json:"lossPercentage,omitempty"`
	ReconciledAt     *time.Time   `json:"reconciledAt,omitempty"`
}

// CrateWeights builds the per-crate table ordered by QR code. Unreconciled crates
// carry no reconciled weight or differential rather than a zero.
func CrateWeights(crates []*Crate) []CrateWeight {
	rows := make([]CrateWeight, 0, len(crates))
	for _, c := range crates {
		row := CrateWeight{
			CrateID:        c.ID,
			QRCode:         c.QRCode,
			Variety:        c.Variety,
			QualityGrade:   c.QualityGrade,
			OriginalWeight: c.Weight,
			Reconciled:     c.Reconciled,
		}
		if c.Reconciled {
			reconciled := c.ReconciledWeight
			diff := c.Weight - c.ReconciledWeight
			row.ReconciledWeight = &reconciled
			row.Differential = &diff
			if c.Weight > 0 {
				loss := diff / c.Weight * 100
				row.LossPercentage = &loss
			}
			row.ReconciledAt = c.ReconciledAt
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b CrateWeight) int { return strings.Compare(a.QRCode, b.QRCode) })
	return rows
}
