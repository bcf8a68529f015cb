// Package simulate produces plausible sensor readings for exercising a
// running server without hardware.
package simulate

import (
	"math"
	"time"

	"climalog/internal/modules/readings/types"

	"github.com/brianvoe/gofakeit/v7"
)

// Generator drifts around a baseline with a daily temperature cycle and
// humidity that moves against it.
type Generator struct {
	faker            *gofakeit.Faker
	baselineTemp     float64
	baselineHumidity float64
	noise            float64
	// DropRate is the chance that a field is reported missing.
	DropRate float64
}

// New returns a generator; seed 0 picks a random seed.
func New(seed uint64) *Generator {
	f := gofakeit.New(seed)
	return &Generator{
		faker:            f,
		baselineTemp:     f.Float64Range(20, 26),
		baselineHumidity: f.Float64Range(40, 60),
		noise:            f.Float64Range(0.2, 1.5),
	}
}

// Reading returns the reading a sensor would report at t.
func (g *Generator) Reading(t time.Time) types.Reading {
	hour := float64(t.Hour()) + float64(t.Minute())/60

	// Daily cycle peaking mid-afternoon.
	daily := 3 * math.Sin((hour-8)*math.Pi/12)
	temp := g.baselineTemp + daily + g.faker.Float64Range(-g.noise, g.noise)

	rh := g.baselineHumidity - (temp-g.baselineTemp)*2 + g.faker.Float64Range(-g.noise, g.noise)
	rh = math.Max(5, math.Min(99, rh))

	r := types.Reading{Time: float64(t.Unix())}
	if g.faker.Float64() >= g.DropRate {
		v := round(temp, 2)
		r.Temp = &v
	}
	if g.faker.Float64() >= g.DropRate {
		v := round(rh, 1)
		r.RH = &v
	}
	return r
}

// Series returns n readings spaced interval apart, ending at end.
func (g *Generator) Series(end time.Time, n int, interval time.Duration) []types.Reading {
	out := make([]types.Reading, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, g.Reading(end.Add(-time.Duration(i)*interval)))
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
