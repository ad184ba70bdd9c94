package model

import "testing"

func TestPerformanceLevelFor(t *testing.T) {
	cases := []struct {
		correct int
		total   int
		want    PerformanceLevel
	}{
		{10, 10, PerformanceExcellent},
		{9, 10, PerformanceExcellent},
		{8, 10, PerformanceGood},
		{6, 10, PerformanceAverage},
		{4, 10, PerformanceNeedsImprovement},
		{3, 10, PerformancePoor},
		{0, 10, PerformancePoor},
		{0, 0, PerformancePoor}, // 空卷不除零
	}

	for _, tc := range cases {
		if got := PerformanceLevelFor(tc.correct, tc.total); got != tc.want {
			t.Errorf("PerformanceLevelFor(%d, %d) = %s, want %s", tc.correct, tc.total, got, tc.want)
		}
	}
}
