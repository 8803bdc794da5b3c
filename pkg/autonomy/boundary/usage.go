package boundary

import "time"

// DailyUsage holds cumulative counters for one UTC day. Counters are
// incremented only after a successful auto-execution and roll over when the
// day stamp changes.
type DailyUsage struct {
	// Day is the UTC day stamp in 2006-01-02 form.
	Day string `json:"day"`

	Trades       int     `json:"trades"`
	ContentItems int     `json:"content_items"`
	Builds       int     `json:"builds"`
	SpentUSD     float64 `json:"spent_usd"`
}

// dayStamp formats t as the usage day key.
func dayStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// rolledOver returns a fresh usage struct for now's day if u belongs to an
// earlier day, otherwise u unchanged.
func (u DailyUsage) rolledOver(now time.Time) DailyUsage {
	stamp := dayStamp(now)
	if u.Day == stamp {
		return u
	}
	return DailyUsage{Day: stamp}
}
