package action

import "time"

// Backoff computes the cooldown duration for the given attempt count,
// exponential in the configured number of steps.
func Backoff(attempt, steps int) time.Duration {
	if steps <= 0 {
		steps = 1
	}
	base := time.Second
	d := base
	for i := 0; i < attempt && i < steps; i++ {
		d *= 2
	}
	const capDuration = 5 * time.Minute
	if d > capDuration {
		d = capDuration
	}
	return d
}
