package risk

import "github.com/Kermit457/gICM-sub020/pkg/autonomy"

// Band maps the top of a score range to a discrete risk level.
type Band struct {
	// Max is the highest score (inclusive) classified into Level.
	Max float64 `yaml:"max" json:"max"`

	Level autonomy.RiskLevel `yaml:"level" json:"level"`
}

// Bands is an ordered set of score bands covering [0,100]. Band edges are
// configuration, not algorithmic constants; deployments may tune them via
// the risk.bands config section.
type Bands []Band

// DefaultBands returns the default classification:
//
//	0–20  safe
//	21–40 low
//	41–60 medium
//	61–80 high
//	81–100 critical
func DefaultBands() Bands {
	return Bands{
		{Max: 20, Level: autonomy.RiskSafe},
		{Max: 40, Level: autonomy.RiskLow},
		{Max: 60, Level: autonomy.RiskMedium},
		{Max: 80, Level: autonomy.RiskHigh},
		{Max: 100, Level: autonomy.RiskCritical},
	}
}

// LevelFor classifies a score. Scores above the last band edge fall into the
// last band's level.
func (b Bands) LevelFor(score float64) autonomy.RiskLevel {
	for _, band := range b {
		if score <= band.Max {
			return band.Level
		}
	}
	if len(b) == 0 {
		return autonomy.RiskCritical
	}
	return b[len(b)-1].Level
}

// Valid reports whether the bands are non-empty and strictly increasing.
func (b Bands) Valid() bool {
	if len(b) == 0 {
		return false
	}
	prev := -1.0
	for _, band := range b {
		if band.Max <= prev {
			return false
		}
		prev = band.Max
	}
	return true
}
