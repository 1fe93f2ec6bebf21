// internal/humanoid/trajectory.go
package humanoid

import (
	"math/rand"
	"time"
)

// stepCount derives the number of intermediate pointer events from the travel
// distance, clamped to [minSteps, maxSteps]. Longer moves take longer.
func stepCount(distance float64, minSteps, maxSteps int, rng *rand.Rand) int {
	duration := 100 + (distance/2000)*200 + float64(rng.Intn(100))
	steps := int(duration / 20)
	if steps < minSteps {
		steps = minSteps
	}
	if steps > maxSteps {
		steps = maxSteps
	}
	return steps
}

// bezierPath samples a cubic bezier curve from start to end. The two control
// points sit at a quarter and three quarters of the way, pushed sideways by
// up to spread/2 pixels; every sample except the last gets up to jitter/2
// pixels of tremor. The final point is exactly end.
func bezierPath(start, end Vector2D, steps int, spread, jitter float64, rng *rand.Rand) []Vector2D {
	if steps < 1 {
		steps = 1
	}
	delta := end.Sub(start)
	cp1 := start.Add(delta.Mul(0.25)).Add(Vector2D{X: (rng.Float64() - 0.5) * spread, Y: (rng.Float64() - 0.5) * spread})
	cp2 := start.Add(delta.Mul(0.75)).Add(Vector2D{X: (rng.Float64() - 0.5) * spread, Y: (rng.Float64() - 0.5) * spread})

	path := make([]Vector2D, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t

		p := start.Mul(u * u * u).
			Add(cp1.Mul(3 * u * u * t)).
			Add(cp2.Mul(3 * u * t * t)).
			Add(end.Mul(t * t * t))

		if i < steps {
			p = p.Add(Vector2D{X: (rng.Float64() - 0.5) * jitter, Y: (rng.Float64() - 0.5) * jitter})
		} else {
			p = end
		}
		path = append(path, p)
	}
	return path
}

// stepDelay returns the base delay plus up to half of it again at random.
func stepDelay(base time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	return base + time.Duration(rng.Int63n(int64(base)/2+1))
}
