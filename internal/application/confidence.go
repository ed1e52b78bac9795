package application

import (
	"slices"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-dossier/internal/domain"
)

// Band awards Points when a factor is at least Min.
type Band struct {
	Min    float64 `yaml:"min" mapstructure:"min"`
	Points int     `yaml:"points" mapstructure:"points" validate:"min=0,max=100"`
}

// Calibration holds the point bands for each factor and the label cut-offs.
// Bands are evaluated from the highest Min down and the first match wins.
type Calibration struct {
	Count      []Band `yaml:"count" mapstructure:"count" validate:"dive"`
	Average    []Band `yaml:"average" mapstructure:"average" validate:"dive"`
	Top        []Band `yaml:"top" mapstructure:"top" validate:"dive"`
	Quality    []Band `yaml:"quality" mapstructure:"quality" validate:"dive"`
	HighAt     int    `yaml:"high_at" mapstructure:"high_at" validate:"min=0,max=100"`
	MediumAt   int    `yaml:"medium_at" mapstructure:"medium_at" validate:"min=0,max=100,ltefield=HighAt"`
	QualityKey string `yaml:"quality_key" mapstructure:"quality_key" validate:"required"`
	// QualityMarkers must match the attribute exactly unless
	// FoldQualityMarkers is set.
	QualityMarkers     []string `yaml:"quality_markers" mapstructure:"quality_markers" validate:"min=1,dive,required"`
	FoldQualityMarkers bool     `yaml:"fold_quality_markers" mapstructure:"fold_quality_markers"`
}

// DefaultCalibration returns the hand-tuned thresholds the service has
// always shipped with.
func DefaultCalibration() Calibration {
	return Calibration{
		Count: []Band{
			{Min: 8, Points: 30},
			{Min: 5, Points: 20},
			{Min: 3, Points: 12},
			{Min: 1, Points: 5},
		},
		Average: []Band{
			{Min: 0.85, Points: 35},
			{Min: 0.75, Points: 25},
			{Min: 0.65, Points: 15},
			{Min: 0.5, Points: 8},
			{Min: 0.3, Points: 3},
		},
		Top: []Band{
			{Min: 0.9, Points: 25},
			{Min: 0.8, Points: 18},
			{Min: 0.7, Points: 12},
			{Min: 0.6, Points: 6},
			{Min: 0.5, Points: 3},
		},
		Quality: []Band{
			{Min: 0.8, Points: 10},
			{Min: 0.6, Points: 6},
			{Min: 0.4, Points: 3},
		},
		HighAt:         75,
		MediumAt:       45,
		QualityKey:     "ocr_quality",
		QualityMarkers: []string{"high", "good"},
	}
}

// ConfidenceScorer is a pure function of an evidence set.
type ConfidenceScorer struct {
	cal     Calibration
	markers map[string]struct{}
}

// NewConfidenceScorer sorts each band list high to low so callers may
// supply bands in any order.
func NewConfidenceScorer(cal Calibration) *ConfidenceScorer {
	cal.Count = sortBands(cal.Count)
	cal.Average = sortBands(cal.Average)
	cal.Top = sortBands(cal.Top)
	cal.Quality = sortBands(cal.Quality)

	markers := make(map[string]struct{}, len(cal.QualityMarkers))
	for _, m := range cal.QualityMarkers {
		if cal.FoldQualityMarkers {
			m = foldMarker(m)
		}
		markers[m] = struct{}{}
	}
	return &ConfidenceScorer{cal: cal, markers: markers}
}

func sortBands(bands []Band) []Band {
	sorted := slices.Clone(bands)
	slices.SortFunc(sorted, func(a, b Band) int {
		switch {
		case a.Min > b.Min:
			return -1
		case a.Min < b.Min:
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// foldMarker builds a fresh Caser per call; Casers carry state and must not
// be shared between goroutines.
func foldMarker(s string) string {
	return cases.Fold().String(s)
}

// ConfidenceFactors are the statistics the score is derived from.
type ConfidenceFactors struct {
	Count        int
	Average      float64
	Top          float64
	QualityRatio float64
}

// Factors computes count, mean relevance, max relevance and the fraction of
// items carrying a recognized quality marker. It must not be called with
// an empty set.
func (s *ConfidenceScorer) Factors(evidence []domain.Evidence) ConfidenceFactors {
	var sum, top float64
	quality := 0
	for i, e := range evidence {
		sum += e.Relevance
		if i == 0 || e.Relevance > top {
			top = e.Relevance
		}
		if s.isQualityMarked(e) {
			quality++
		}
	}
	n := float64(len(evidence))
	return ConfidenceFactors{
		Count:        len(evidence),
		Average:      sum / n,
		Top:          top,
		QualityRatio: float64(quality) / n,
	}
}

func (s *ConfidenceScorer) isQualityMarked(e domain.Evidence) bool {
	v, ok := e.Attributes[s.cal.QualityKey].(string)
	if !ok {
		return false
	}
	if s.cal.FoldQualityMarkers {
		v = foldMarker(v)
	}
	_, ok = s.markers[v]
	return ok
}

// Score returns the accumulated points, 0 for an empty set.
func (s *ConfidenceScorer) Score(evidence []domain.Evidence) int {
	if len(evidence) == 0 {
		return 0
	}
	f := s.Factors(evidence)
	return bandPoints(s.cal.Count, float64(f.Count)) +
		bandPoints(s.cal.Average, f.Average) +
		bandPoints(s.cal.Top, f.Top) +
		bandPoints(s.cal.Quality, f.QualityRatio)
}

// Level maps the evidence set onto a confidence label. An empty set is Low
// without computing any statistics.
func (s *ConfidenceScorer) Level(evidence []domain.Evidence) domain.Confidence {
	if len(evidence) == 0 {
		return domain.ConfidenceLow
	}
	return s.label(s.Score(evidence))
}

func (s *ConfidenceScorer) label(score int) domain.Confidence {
	switch {
	case score >= s.cal.HighAt:
		return domain.ConfidenceHigh
	case score >= s.cal.MediumAt:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func bandPoints(bands []Band, v float64) int {
	for _, b := range bands {
		if v >= b.Min {
			return b.Points
		}
	}
	return 0
}
