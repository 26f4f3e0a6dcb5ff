package compare

import (
	"fmt"
	"math"
)

// NotAvailable is printed in place of a statistic with no data behind it.
const NotAvailable = "N/A"

// Stats summarizes one series for the stats panel.
type Stats struct {
	Available bool
	Count     int
	FirstYear int
	LastYear  int
	Start     float64
	End       float64
	Delta     float64
	Average   float64
}

// ComputeStats derives stats from the valid points of a trend.
func ComputeStats(points []TrendPoint) Stats {
	valid := ValidPoints(points)
	if len(valid) == 0 {
		return Stats{}
	}

	first, last := valid[0], valid[len(valid)-1]
	sum := 0.0
	for _, p := range valid {
		sum += p.Value
	}
	return Stats{
		Available: true,
		Count:     len(valid),
		FirstYear: first.Year,
		LastYear:  last.Year,
		Start:     first.Value,
		End:       last.Value,
		Delta:     last.Value - first.Value,
		Average:   sum / float64(len(valid)),
	}
}

// Direction classifies Delta. Unavailable stats are stable.
func (s Stats) Direction() Direction {
	if !s.Available {
		return Stable
	}
	return DirectionOf(round2(s.Delta))
}

// Analysis converts the stats into the rounded wire form.
func (s Stats) Analysis() *Analysis {
	if !s.Available {
		return nil
	}
	return &Analysis{
		FirstYear:  s.FirstYear,
		LastYear:   s.LastYear,
		StartValue: round2(s.Start),
		EndValue:   round2(s.End),
		Change:     round2(s.Delta),
		Average:    round2(s.Average),
		Direction:  s.Direction(),
	}
}

// StartText formats the first valid value, or NotAvailable.
func (s Stats) StartText() string { return s.format(s.Start, false) }

// EndText formats the latest valid value, or NotAvailable.
func (s Stats) EndText() string { return s.format(s.End, false) }

// AverageText formats the mean of the valid values, or NotAvailable.
func (s Stats) AverageText() string { return s.format(s.Average, false) }

// DeltaText formats End minus Start with an explicit sign, or NotAvailable.
func (s Stats) DeltaText() string { return s.format(s.Delta, true) }

func (s Stats) format(v float64, signed bool) string {
	if !s.Available {
		return NotAvailable
	}
	v = round2(v)
	if signed && v > 0 {
		return fmt.Sprintf("+%.2f", v)
	}
	if v == 0 {
		v = 0 // drops negative zero
	}
	return fmt.Sprintf("%.2f", v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
