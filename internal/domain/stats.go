package domain

import (
	"slices"
	"strings"
	"time"
)

// VarietyCount is the number and weight of crates of one variety in a batch
type VarietyCount struct {
	Variety string  `json:"variety"`
	Crates  int     `json:"crates"`
	Weight  float64 `json:"weight"`
}

// GradeCount is the number and weight of crates of one quality grade in a batch.
// Crates without a grade are reported under an empty grade.
type GradeCount struct {
	Grade  QualityGrade `json:"grade"`
	Crates int          `json:"crates"`
	Weight float64      `json:"weight"`
}

// BatchStats is the typed statistics view of a batch
type BatchStats struct {
	BatchID        string                 `json:"batchId"`
	BatchCode      string                 `json:"batchCode"`
	Status         BatchStatus            `json:"status"`
	CreatedAt      time.Time              `json:"createdAt"`
	DepartureTime  *time.Time             `json:"departureTime,omitempty"`
	ArrivalTime    *time.Time             `json:"arrivalTime,omitempty"`
	TransitMinutes *float64               `json:"transitMinutes,omitempty"`
	Weights        WeightSummary          `json:"weights"`
	Progress       ReconciliationProgress `json:"progress"`
	Varieties      []VarietyCount         `json:"varieties"`
	Grades         []GradeCount           `json:"grades"`
}

// ComputeBatchStats builds statistics for a batch from its crate records
func ComputeBatchStats(batch *Batch, crates []*Crate) BatchStats {
	stats := BatchStats{
		BatchID:       batch.ID,
		BatchCode:     batch.Code,
		Status:        batch.Status,
		CreatedAt:     batch.CreatedAt,
		DepartureTime: batch.DepartureTime,
		ArrivalTime:   batch.ArrivalTime,
		Weights:       SummarizeWeights(crates).Rounded(),
		Progress:      ComputeProgress(batch.ID, crates),
		Varieties:     []VarietyCount{},
		Grades:        []GradeCount{},
	}
	if batch.DepartureTime != nil && batch.ArrivalTime != nil {
		minutes := RoundWeight(batch.TransitTime().Minutes())
		stats.TransitMinutes = &minutes
	}

	varietyIdx := make(map[string]int)
	gradeIdx := make(map[QualityGrade]int)
	for _, c := range crates {
		i, ok := varietyIdx[c.Variety]
		if !ok {
			i = len(stats.Varieties)
			varietyIdx[c.Variety] = i
			stats.Varieties = append(stats.Varieties, VarietyCount{Variety: c.Variety})
		}
		stats.Varieties[i].Crates++
		stats.Varieties[i].Weight += c.Weight

		j, ok := gradeIdx[c.QualityGrade]
		if !ok {
			j = len(stats.Grades)
			gradeIdx[c.QualityGrade] = j
			stats.Grades = append(stats.Grades, GradeCount{Grade: c.QualityGrade})
		}
		stats.Grades[j].Crates++
		stats.Grades[j].Weight += c.Weight
	}

	for i := range stats.Varieties {
		stats.Varieties[i].Weight = RoundWeight(stats.Varieties[i].Weight)
	}
	for i := range stats.Grades {
		stats.Grades[i].Weight = RoundWeight(stats.Grades[i].Weight)
	}
	slices.SortFunc(stats.Varieties, func(a, b VarietyCount) int { return strings.Compare(a.Variety, b.Variety) })
	slices.SortFunc(stats.Grades, func(a, b GradeCount) int { return gradeRank(a.Grade) - gradeRank(b.Grade) })

	return stats
}

func gradeRank(g QualityGrade) int {
	if i := slices.Index(AllQualityGrades, g); i >= 0 {
		return i
	}
	return len(AllQualityGrades)
}
