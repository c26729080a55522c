package domain

import (
	"errors"
	"time"
)

// ReconciliationRecord is the append-only proof that a crate was re-weighed on arrival.
// At most one record exists per crate.
type ReconciliationRecord struct {
	ID               string    `bson:"_id" json:"id"`
	BatchID          string    `bson:"batchId" json:"batchId"`
	CrateID          string    `bson:"crateId" json:"crateId"`
	QRCode           string    `bson:"qrCode" json:"qrCode"`
	OriginalWeight   float64   `bson:"originalWeight" json:"originalWeight"`
	ReconciledWeight float64   `bson:"reconciledWeight" json:"reconciledWeight"`
	Differential     float64   `bson:"differential" json:"differential"`
	PhotoURL         string    `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	RecordedBy       string    `bson:"recordedBy,omitempty" json:"recordedBy,omitempty"`
	RecordedAt       time.Time `bson:"recordedAt" json:"recordedAt"`
}

// ReconciliationResult is returned by a successful reconciliation
type ReconciliationResult struct {
	Record   *ReconciliationRecord
	Batch    *Batch
	Progress ReconciliationProgress
	Weights  WeightSummary
}

// ScanOutcome classifies a reconciliation attempt for the scan log
type ScanOutcome string

const (
	ScanOutcomeMatched    ScanOutcome = "matched"
	ScanOutcomeDuplicate  ScanOutcome = "duplicate"
	ScanOutcomeWrongBatch ScanOutcome = "wrong_batch"
	ScanOutcomeNotFound   ScanOutcome = "not_found"
	ScanOutcomeRejected   ScanOutcome = "rejected"
)

// AllScanOutcomes lists outcomes in reporting order
var AllScanOutcomes = []ScanOutcome{
	ScanOutcomeMatched,
	ScanOutcomeDuplicate,
	ScanOutcomeWrongBatch,
	ScanOutcomeNotFound,
	ScanOutcomeRejected,
}

// ScanAttempt is an audit entry written for every reconciliation attempt, successful or not
type ScanAttempt struct {
	ID        string      `bson:"_id" json:"id"`
	BatchID   string      `bson:"batchId" json:"batchId"`
	QRCode    string      `bson:"qrCode" json:"qrCode"`
	CrateID   string      `bson:"crateId,omitempty" json:"crateId,omitempty"`
	Outcome   ScanOutcome `bson:"outcome" json:"outcome"`
	Weight    float64     `bson:"weight" json:"weight"`
	Reason    string      `bson:"reason,omitempty" json:"reason,omitempty"`
	ScannedBy string      `bson:"scannedBy,omitempty" json:"scannedBy,omitempty"`
	DeviceID  string      `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	ScannedAt time.Time   `bson:"scannedAt" json:"scannedAt"`
}

// OutcomeFor maps a reconciliation error to its scan outcome. Wrong-batch scans
// surface as NotFound to callers and are classified by the engine directly.
func OutcomeFor(err error) ScanOutcome {
	switch {
	case err == nil:
		return ScanOutcomeMatched
	case errors.Is(err, ErrDuplicateReconciliation):
		return ScanOutcomeDuplicate
	case errors.Is(err, ErrNotFound):
		return ScanOutcomeNotFound
	default:
		return ScanOutcomeRejected
	}
}

// StatusCount is a batch count for one status
type StatusCount struct {
	Status BatchStatus `json:"status"`
	Count  int64       `json:"count"`
}

// OutcomeCount is a scan count for one outcome
type OutcomeCount struct {
	Outcome ScanOutcome `json:"outcome"`
	Count   int64       `json:"count"`
}

// DailyCount is the number of scans on one UTC day (YYYY-MM-DD)
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ReconciliationSummary is the service-wide reconciliation overview
type ReconciliationSummary struct {
	Since              time.Time      `json:"since"`
	BatchesByStatus    []StatusCount  `json:"batchesByStatus"`
	TotalCrates        int64          `json:"totalCrates"`
	ReconciledCrates   int64          `json:"reconciledCrates"`
	ReconciliationRate float64        `json:"reconciliationRate"`
	ScansByOutcome     []OutcomeCount `json:"scansByOutcome"`
	DailyScans         []DailyCount   `json:"dailyScans"`
}

// BuildReconciliationSummary arranges raw counts into the typed summary, filling
// every status, outcome and day in the window with zero when absent.
func BuildReconciliationSummary(
	since, until time.Time,
	byStatus map[BatchStatus]int64,
	totalCrates, reconciledCrates int64,
	byOutcome map[ScanOutcome]int64,
	byDay map[string]int64,
) ReconciliationSummary {
	summary := ReconciliationSummary{
		Since:            since,
		TotalCrates:      totalCrates,
		ReconciledCrates: reconciledCrates,
	}
	if totalCrates > 0 {
		summary.ReconciliationRate = RoundWeight(float64(reconciledCrates) / float64(totalCrates) * 100)
	}
	for _, s := range AllBatchStatuses {
		summary.BatchesByStatus = append(summary.BatchesByStatus, StatusCount{Status: s, Count: byStatus[s]})
	}
	for _, o := range AllScanOutcomes {
		summary.ScansByOutcome = append(summary.ScansByOutcome, OutcomeCount{Outcome: o, Count: byOutcome[o]})
	}

	start := since.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := until.UTC()
	for !day.After(last) {
		key := day.Format(DayLayout)
		summary.DailyScans = append(summary.DailyScans, DailyCount{Date: key, Count: byDay[key]})
		day = day.AddDate(0, 0, 1)
	}
	return summary
}

// DayLayout is the date key used for daily scan counts
const DayLayout = "2006-01-02"
