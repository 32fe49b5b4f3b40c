package conditions

import "math/rand"

// AQIGenerator produces the synthetic AQI value. The source system never
// measured air quality; it generated a plausible-looking number from the
// weather code and wind level, and that pseudo-data is preserved here as a
// documented limitation rather than replaced with a formula. The RNG is
// injectable so tests can seed it.
type AQIGenerator struct {
	rng *rand.Rand
}

// NewAQIGenerator returns a generator backed by the given source. A nil rng
// falls back to the shared package-level source.
func NewAQIGenerator(rng *rand.Rand) *AQIGenerator {
	return &AQIGenerator{rng: rng}
}

// Generate returns a synthetic AQI for the given weather code and wind level:
// fog/haze 100-300, windy (level >= 3) 0-100, otherwise 50-150. Bounds are
// inclusive.
func (g *AQIGenerator) Generate(weatherCode, windLevel int) int {
	switch {
	case weatherCode == 45 || weatherCode == 48:
		return g.intInRange(100, 300)
	case windLevel >= 3:
		return g.intInRange(0, 100)
	default:
		return g.intInRange(50, 150)
	}
}

func (g *AQIGenerator) intInRange(lo, hi int) int {
	if g.rng != nil {
		return lo + g.rng.Intn(hi-lo+1)
	}
	return lo + rand.Intn(hi-lo+1)
}
