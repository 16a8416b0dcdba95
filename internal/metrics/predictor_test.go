package metrics

import (
	"math"
	"testing"
)

func TestConversionRateMonotonicNonIncreasing(t *testing.T) {
	p := NewPredictor()
	prev := math.Inf(1)
	for _, size := range []int{10, 99, 100, 299, 300, 499, 500, 5000} {
		rate := p.ConversionRate(size)
		if rate > prev {
			t.Fatalf("conversion rate increased at size %d: %f > %f", size, rate, prev)
		}
		if rate <= 0 || rate > 0.15 {
			t.Fatalf("rate out of range at size %d: %f", size, rate)
		}
		prev = rate
	}
}

func TestConversionRateBands(t *testing.T) {
	p := NewPredictor()
	cases := []struct {
		size int
		want float64
	}{
		{50, 0.09},
		{150, 0.075},
		{400, 0.06},
		{800, 0.05},
	}
	for _, tc := range cases {
		if got := p.ConversionRate(tc.size); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("size %d: got %f, want %f", tc.size, got, tc.want)
		}
	}
}

func TestPredictComposition(t *testing.T) {
	p := NewPredictor()
	got := p.Predict(50, 90, map[string]int{"VVIP": 30, "VIP": 20})

	if got.AudienceSize != 50 {
		t.Errorf("audience size: %d", got.AudienceSize)
	}
	wantRevenue := 50 * 0.09 * 18000.0
	if math.Abs(got.EstimatedRevenue-wantRevenue) > 1e-6 {
		t.Errorf("revenue: got %f, want %f", got.EstimatedRevenue, wantRevenue)
	}
	wantROI := (wantRevenue - 10000) / 10000 * 100
	if math.Abs(got.ROI-wantROI) > 1e-6 {
		t.Errorf("roi: got %f, want %f", got.ROI, wantROI)
	}
	if math.Abs(got.ReachRate-5.0) > 1e-9 {
		t.Errorf("reach: got %f, want 5.0", got.ReachRate)
	}
}

func TestQualityScore(t *testing.T) {
	p := NewPredictor()

	// 90*0.5 + (0.5*0.8 + 0.5*0.5)*50 = 45 + 32.5
	got := p.QualityScore(90, map[string]int{"VVIP": 10, "VIP": 10})
	if math.Abs(got-77.5) > 1e-9 {
		t.Errorf("quality: got %f, want 77.5", got)
	}

	if got := p.QualityScore(100, map[string]int{"VVIP": 100}); got > 100 {
		t.Errorf("quality must cap at 100, got %f", got)
	}

	// Empty distribution contributes no tier bonus.
	if got := p.QualityScore(80, nil); got != 40 {
		t.Errorf("quality without tiers: got %f, want 40", got)
	}

	// Unknown tiers carry zero weight.
	if got := p.QualityScore(0, map[string]int{"Gold": 5}); got != 0 {
		t.Errorf("unknown tier weighted: got %f", got)
	}
}
