package domain

import (
	"fmt"
	"math"
)

// ReconciliationProgress is the human-facing reconciliation status of a batch
type ReconciliationProgress struct {
	BatchID           string `json:"batchId"`
	ReconciledCount   int    `json:"reconciledCount"`
	TotalCrates       int    `json:"totalCrates"`
	MissingCrates     int    `json:"missingCrates"`
	Percentage        int    `json:"percentage"`
	IsFullyReconciled bool   `json:"isFullyReconciled"`
	Label             string `json:"label"`
}

// NewReconciliationProgress derives progress from reconciled and total counts
func NewReconciliationProgress(batchID string, reconciled, total int) ReconciliationProgress {
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(reconciled) / float64(total) * 100))
	}
	return ReconciliationProgress{
		BatchID:           batchID,
		ReconciledCount:   reconciled,
		TotalCrates:       total,
		MissingCrates:     total - reconciled,
		Percentage:        percentage,
		IsFullyReconciled: total > 0 && reconciled == total,
		Label:             fmt.Sprintf("%d/%d crates (%d%%)", reconciled, total, percentage),
	}
}

// ComputeProgress counts reconciled crates directly from the crate records
func ComputeProgress(batchID string, crates []*Crate) ReconciliationProgress {
	reconciled := 0
	for _, c := range crates {
		if c.Reconciled {
			reconciled++
		}
	}
	return NewReconciliationProgress(batchID, reconciled, len(crates))
}
