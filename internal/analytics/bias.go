// Package analytics computes derived bias statistics over behavior entries.
//
// All functions are pure. The correlation score is a cosine-similarity-style
// co-occurrence ratio scaled by tag multiplicity, not Pearson correlation.
package analytics

import (
	"fmt"
	"math"

	"example.com/biastrack/internal/domain"
)

// NoData is returned by DominantBias and PeakActivityTime when there are
// no behavior entries to analyze.
const NoData = "N/A"

// DominantBias returns the most frequently detected bias tag across all
// entries. Every occurrence counts, including duplicates within one
// entry's tag list. Ties break to the lexicographically smallest tag.
func DominantBias(entries []domain.BehaviorEntry) string {
	counts := make(map[string]int)
	for _, entry := range entries {
		for _, tag := range entry.BiasDetected {
			counts[tag]++
		}
	}
	if len(counts) == 0 {
		return NoData
	}

	best := ""
	bestCount := 0
	for tag, count := range counts {
		if count > bestCount || (count == bestCount && tag < best) {
			best = tag
			bestCount = count
		}
	}
	return best
}

// PeakActivityTime returns the one-hour interval with the most behavior
// entries, formatted "H:00 - H+1:00". Hour 23 renders "23:00 - 24:00";
// the end bound is deliberately not wrapped. Ties break to the lowest
// hour. Empty input yields NoData.
func PeakActivityTime(entries []domain.BehaviorEntry) string {
	if len(entries) == 0 {
		return NoData
	}

	var counts [24]int
	for _, entry := range entries {
		counts[entry.Timestamp.Local().Hour()]++
	}

	peak := 0
	for hour := 1; hour < 24; hour++ {
		if counts[hour] > counts[peak] {
			peak = hour
		}
	}
	return fmt.Sprintf("%d:00 - %d:00", peak, peak+1)
}

// Cell is one entry of the flattened correlation matrix.
type Cell struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Score float64 `json:"score"`
}

// Correlation is the full row-major co-occurrence matrix, symmetric
// duplicates and diagonal included, plus the label for each index.
type Correlation struct {
	Labels []string `json:"labels"`
	Cells  []Cell   `json:"cells"`
}

// CorrelationMatrix measures how often pairs of bias tags are detected
// together. Labels are ordered by first appearance. Counting walks every
// index pair p <= q within each entry's own tag list without
// deduplicating, so an entry listing a tag twice inflates both the
// diagonal and its pair counts; this multiplicative behavior is part of
// the score's definition. Scores normalize by sqrt of the self counts and
// are 0 whenever a self count is 0.
func CorrelationMatrix(entries []domain.BehaviorEntry) Correlation {
	labels := make([]string, 0)
	index := make(map[string]int)
	for _, entry := range entries {
		for _, tag := range entry.BiasDetected {
			if _, seen := index[tag]; !seen {
				index[tag] = len(labels)
				labels = append(labels, tag)
			}
		}
	}

	n := len(labels)
	counts := make([][]float64, n)
	for i := range counts {
		counts[i] = make([]float64, n)
	}

	for _, entry := range entries {
		tags := entry.BiasDetected
		for p := 0; p < len(tags); p++ {
			for q := p; q < len(tags); q++ {
				i := index[tags[p]]
				j := index[tags[q]]
				counts[i][j]++
				if p != q {
					counts[j][i]++
				}
			}
		}
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			den := math.Sqrt(counts[i][i] * counts[j][j])
			if den != 0 {
				scores[i][j] = counts[i][j] / den
			}
			scores[j][i] = scores[i][j]
		}
	}

	cells := make([]Cell, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cells = append(cells, Cell{Row: i, Col: j, Score: scores[i][j]})
		}
	}
	return Correlation{Labels: labels, Cells: cells}
}
