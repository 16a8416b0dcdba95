// Package metrics estimates campaign KPIs for a selected audience. All
// formulas are deterministic and complete without external calls.
package metrics

const (
	defaultAvgOrderValue = 18000 // CNY
	defaultCampaignCost  = 10000 // CNY
	defaultBaseRate      = 0.05
	defaultTotalUsers    = 1000
)

// Prediction carries the estimated KPIs for one audience selection.
type Prediction struct {
	AudienceSize     int     `json:"audienceSize"`
	ConversionRate   float64 `json:"conversionRate"`
	EstimatedRevenue float64 `json:"estimatedRevenue"`
	ROI              float64 `json:"roi"`
	ReachRate        float64 `json:"reachRate"`
	QualityScore     float64 `json:"qualityScore"`
	CampaignCost     float64 `json:"campaignCost"`
	AvgUserScore     float64 `json:"avgUserScore"`
}

// Predictor computes KPI estimates. The zero value is not usable; construct
// with NewPredictor.
type Predictor struct {
	avgOrderValue float64
	campaignCost  float64
	baseRate      float64
	totalUsers    int
}

func NewPredictor() *Predictor {
	return &Predictor{
		avgOrderValue: defaultAvgOrderValue,
		campaignCost:  defaultCampaignCost,
		baseRate:      defaultBaseRate,
		totalUsers:    defaultTotalUsers,
	}
}

// ConversionRate models diminishing precision of broader targeting: smaller
// audiences convert better, with a floor at the base rate for large ones.
func (p *Predictor) ConversionRate(audienceSize int) float64 {
	switch {
	case audienceSize < 100:
		return min(p.baseRate*1.8, 0.15)
	case audienceSize < 300:
		return min(p.baseRate*1.5, 0.12)
	case audienceSize < 500:
		return min(p.baseRate*1.2, 0.10)
	default:
		return p.baseRate
	}
}

func (p *Predictor) EstimatedRevenue(audienceSize int, conversionRate float64) float64 {
	return float64(audienceSize) * conversionRate * p.avgOrderValue
}

// ROI is a percentage over the fixed campaign cost.
func (p *Predictor) ROI(estimatedRevenue float64) float64 {
	if p.campaignCost <= 0 {
		return 0
	}
	return (estimatedRevenue - p.campaignCost) / p.campaignCost * 100
}

// ReachRate is the audience's share of the total user base, as a percentage.
func (p *Predictor) ReachRate(audienceSize int) float64 {
	if p.totalUsers <= 0 {
		return 0
	}
	return float64(audienceSize) / float64(p.totalUsers) * 100
}

var qualityTierWeights = map[string]float64{
	"VVIP":   0.8,
	"VIP":    0.5,
	"Member": 0.2,
}

// QualityScore blends the average match score with a bonus for high-tier
// concentration. Result is capped at 100.
func (p *Predictor) QualityScore(avgUserScore float64, tierDistribution map[string]int) float64 {
	quality := avgUserScore * 0.5

	total := 0
	for _, n := range tierDistribution {
		total += n
	}
	if total > 0 {
		tierScore := 0.0
		for tier, n := range tierDistribution {
			tierScore += float64(n) / float64(total) * qualityTierWeights[tier] * 50
		}
		quality += tierScore
	}

	return min(100, quality)
}

// Predict estimates all KPIs for one audience.
func (p *Predictor) Predict(audienceSize int, avgUserScore float64, tierDistribution map[string]int) Prediction {
	rate := p.ConversionRate(audienceSize)
	revenue := p.EstimatedRevenue(audienceSize, rate)
	return Prediction{
		AudienceSize:     audienceSize,
		ConversionRate:   rate,
		EstimatedRevenue: revenue,
		ROI:              p.ROI(revenue),
		ReachRate:        p.ReachRate(audienceSize),
		QualityScore:     p.QualityScore(avgUserScore, tierDistribution),
		CampaignCost:     p.campaignCost,
		AvgUserScore:     avgUserScore,
	}
}
