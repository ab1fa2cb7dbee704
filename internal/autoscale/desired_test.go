package autoscale

import "testing"

// Scenarios with MIN=0, MAX=5, TARGET_PER_WORKER=2.
func TestDesiredScalingScenarios(t *testing.T) {
	cases := []struct {
		name  string
		depth int
		want  int
	}{
		{"empty queue floors to 1", 0, 1},
		{"depth 3 rounds up to 2", 3, 2},
		{"depth 20 clamps to MAX", 20, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Desired(tc.depth, 0, 5, 2)
			if got != tc.want {
				t.Fatalf("Desired(%d, 0, 5, 2) = %d, want %d", tc.depth, got, tc.want)
			}
		})
	}
}

func TestDesiredMissingMetricIsNotScaleUpReason(t *testing.T) {
	// Missing metric is represented as depth=0 by the caller; it must floor
	// to max(1, MIN), never be treated as a reason to scale up.
	if got := Desired(0, 0, 5, 2); got != 1 {
		t.Fatalf("expected floor of 1 for missing metric, got %d", got)
	}
}

func TestDesiredNeverFloorsBelowMinWhenMinExceedsOne(t *testing.T) {
	if got := Desired(0, 3, 10, 2); got != 3 {
		t.Fatalf("expected floor of MIN=3, got %d", got)
	}
}

func TestDesiredNeverExceedsMax(t *testing.T) {
	if got := Desired(1000, 0, 5, 2); got != 5 {
		t.Fatalf("expected ceiling of MAX=5, got %d", got)
	}
}

func TestDesiredNeverScalesToZero(t *testing.T) {
	if got := Desired(0, 0, 0, 2); got != 1 {
		t.Fatalf("expected floor of 1 even when MIN=MAX=0, got %d", got)
	}
}
