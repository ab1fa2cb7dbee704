package autoscale

import "math"

// Desired computes the target worker count from observed queue depth:
// clamp(max(max(1,min), ceil(depth/targetPerWorker)), max(1,min), max).
//
// A missing metric is represented by depth=0 by the caller, which is not by
// itself a reason to scale up: the ceil(0/targetPerWorker) term is 0, so the
// result floors to max(1, min).
func Desired(depth, min, max, targetPerWorker int) int {
	floor := 1
	if min > floor {
		floor = min
	}

	ceiling := max
	if ceiling < floor {
		ceiling = floor
	}

	if targetPerWorker <= 0 {
		targetPerWorker = 1
	}

	wanted := int(math.Ceil(float64(depth) / float64(targetPerWorker)))
	if wanted < floor {
		wanted = floor
	}
	if wanted > ceiling {
		wanted = ceiling
	}
	return wanted
}
