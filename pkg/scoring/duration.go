package scoring

import "callqa-server/pkg/audio"

// Call duration statuses.
const (
	StatusTooShort = "too_short"
	StatusTooLong  = "too_long"
	StatusOptimal  = "optimal"
)

// assumed length of a call without audio, in minutes
const defaultCallMinutes = 3.0

// DurationAnalysis compares the call length to the ideal range.
type DurationAnalysis struct {
	TotalDurationMinutes float64 `json:"totalDurationMinutes"`
	IdealRangeMin        float64 `json:"idealRangeMin"`
	IdealRangeMax        float64 `json:"idealRangeMax"`
	WithinIdealRange     bool    `json:"withinIdealRange"`
	DeviationFromIdeal   float64 `json:"deviationFromIdeal"`
	Status               string  `json:"status"`
}

// AnalyzeDuration places the call against an inclusive [idealMin, idealMax]
// range in minutes.
func AnalyzeDuration(data *audio.Data, idealMin, idealMax float64) DurationAnalysis {
	minutes := defaultCallMinutes
	if data != nil {
		minutes = data.Duration / 60
	}

	d := DurationAnalysis{
		TotalDurationMinutes: minutes,
		IdealRangeMin:        idealMin,
		IdealRangeMax:        idealMax,
		WithinIdealRange:     minutes >= idealMin && minutes <= idealMax,
		Status:               StatusOptimal,
	}
	switch {
	case minutes < idealMin:
		d.DeviationFromIdeal = idealMin - minutes
		d.Status = StatusTooShort
	case minutes > idealMax:
		d.DeviationFromIdeal = minutes - idealMax
		d.Status = StatusTooLong
	}
	return d
}
