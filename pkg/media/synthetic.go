package media

import (
	"math/rand"
	"sort"

	"callqa-server/pkg/audio"
)

const (
	syntheticSpacing     = 30.0
	syntheticTailGuard   = 10.0
	syntheticMinDuration = 3.0
	syntheticSpread      = 8.0
)

// SyntheticSilences generates roughly one silence candidate per thirty
// seconds of audio, each three to eleven seconds long, ordered by start.
// The same seed always yields the same candidates.
func SyntheticSilences(duration float64, seed int64) []audio.Silence {
	count := int(duration / syntheticSpacing)
	silences := make([]audio.Silence, 0, count)
	if count <= 0 {
		return silences
	}

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < count; i++ {
		start := rng.Float64() * (duration - syntheticTailGuard)
		length := syntheticMinDuration + rng.Float64()*syntheticSpread
		silences = append(silences, audio.Silence{
			Start:    start,
			End:      start + length,
			Duration: length,
		})
	}

	sort.Slice(silences, func(i, j int) bool { return silences[i].Start < silences[j].Start })
	return silences
}
