// ABOUTME: Tunable weights and thresholds for GPS authenticity scoring
// ABOUTME: Defaults reproduce the stock anti-fraud heuristics

package verify

import "fmt"

// Weights combine the four sub-scores into a confidence value.
type Weights struct {
	DataQuality      float64 `json:"data_quality" yaml:"data_quality" env:"DATA_QUALITY"`
	SpeedProfile     float64 `json:"speed_profile" yaml:"speed_profile" env:"SPEED_PROFILE"`
	RouteConsistency float64 `json:"route_consistency" yaml:"route_consistency" env:"ROUTE_CONSISTENCY"`
	Duration         float64 `json:"duration" yaml:"duration" env:"DURATION"`
}

// Config holds every threshold the verifier applies.
type Config struct {
	Weights Weights `json:"weights" yaml:"weights" envPrefix:"WEIGHT_"`

	// Data quality.
	MinFixes          int     `json:"min_fixes" yaml:"min_fixes" env:"MIN_FIXES"`
	LowFixes          int     `json:"low_fixes" yaml:"low_fixes" env:"LOW_FIXES"`
	InaccurateMeters  float64 `json:"inaccurate_meters" yaml:"inaccurate_meters" env:"INACCURATE_METERS"`
	InaccurateHigh    float64 `json:"inaccurate_high" yaml:"inaccurate_high"`
	InaccurateLow     float64 `json:"inaccurate_low" yaml:"inaccurate_low"`
	GapSeconds        float64 `json:"gap_seconds" yaml:"gap_seconds" env:"GAP_SECONDS"`
	MaxGapFraction    float64 `json:"max_gap_fraction" yaml:"max_gap_fraction"`
	PenaltyFewFixes   float64 `json:"penalty_few_fixes" yaml:"penalty_few_fixes"`
	PenaltyLowFixes   float64 `json:"penalty_low_fixes" yaml:"penalty_low_fixes"`
	PenaltyInaccurate float64 `json:"penalty_inaccurate" yaml:"penalty_inaccurate"`
	PenaltySomeInacc  float64 `json:"penalty_some_inaccurate" yaml:"penalty_some_inaccurate"`
	PenaltyGaps       float64 `json:"penalty_gaps" yaml:"penalty_gaps"`

	// Speed profile, km/h.
	MinAvgSpeed       float64 `json:"min_avg_speed" yaml:"min_avg_speed" env:"MIN_AVG_SPEED"`
	MaxAvgSpeed       float64 `json:"max_avg_speed" yaml:"max_avg_speed" env:"MAX_AVG_SPEED"`
	MaxSegmentSpeed   float64 `json:"max_segment_speed" yaml:"max_segment_speed" env:"MAX_SEGMENT_SPEED"`
	MaxAvgVariation   float64 `json:"max_avg_variation" yaml:"max_avg_variation"`
	PenaltySlow       float64 `json:"penalty_slow" yaml:"penalty_slow"`
	PenaltyFast       float64 `json:"penalty_fast" yaml:"penalty_fast"`
	PenaltyTopSpeed   float64 `json:"penalty_top_speed" yaml:"penalty_top_speed"`
	PenaltyVariation  float64 `json:"penalty_variation" yaml:"penalty_variation"`

	// Route consistency, meters.
	MaxDetourRatio      float64 `json:"max_detour_ratio" yaml:"max_detour_ratio"`
	MinStraightLine     float64 `json:"min_straight_line" yaml:"min_straight_line"`
	MinTotalDistance    float64 `json:"min_total_distance" yaml:"min_total_distance" env:"MIN_TOTAL_DISTANCE"`
	MaxEndpointOffset   float64 `json:"max_endpoint_offset" yaml:"max_endpoint_offset" env:"MAX_ENDPOINT_OFFSET"`
	PenaltyDetour       float64 `json:"penalty_detour" yaml:"penalty_detour"`
	PenaltyShortRoute   float64 `json:"penalty_short_route" yaml:"penalty_short_route"`
	PenaltyEndpointMiss float64 `json:"penalty_endpoint_miss" yaml:"penalty_endpoint_miss"`

	// Duration, minutes.
	VeryShortMinutes  float64 `json:"very_short_minutes" yaml:"very_short_minutes"`
	ShortMinutes      float64 `json:"short_minutes" yaml:"short_minutes"`
	MaxMinutes        float64 `json:"max_minutes" yaml:"max_minutes" env:"MAX_MINUTES"`
	PenaltyVeryShort  float64 `json:"penalty_very_short" yaml:"penalty_very_short"`
	PenaltyShort      float64 `json:"penalty_short" yaml:"penalty_short"`
	PenaltyTooLong    float64 `json:"penalty_too_long" yaml:"penalty_too_long"`

	// Recommendation tiers.
	AutoApproveScore  float64 `json:"auto_approve_score" yaml:"auto_approve_score" env:"AUTO_APPROVE_SCORE"`
	AutoApproveIssues int     `json:"auto_approve_issues" yaml:"auto_approve_issues"`
	ReviewScore       float64 `json:"review_score" yaml:"review_score" env:"REVIEW_SCORE"`
	ReviewIssues      int     `json:"review_issues" yaml:"review_issues"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			DataQuality:      0.30,
			SpeedProfile:     0.25,
			RouteConsistency: 0.30,
			Duration:         0.15,
		},

		MinFixes:          10,
		LowFixes:          30,
		InaccurateMeters:  50,
		InaccurateHigh:    0.5,
		InaccurateLow:     0.3,
		GapSeconds:        60,
		MaxGapFraction:    0.2,
		PenaltyFewFixes:   0.3,
		PenaltyLowFixes:   0.7,
		PenaltyInaccurate: 0.6,
		PenaltySomeInacc:  0.8,
		PenaltyGaps:       0.7,

		MinAvgSpeed:      3,
		MaxAvgSpeed:      50,
		MaxSegmentSpeed:  80,
		MaxAvgVariation:  20,
		PenaltySlow:      0.6,
		PenaltyFast:      0.3,
		PenaltyTopSpeed:  0.4,
		PenaltyVariation: 0.7,

		MaxDetourRatio:      10,
		MinStraightLine:     100,
		MinTotalDistance:    500,
		MaxEndpointOffset:   200,
		PenaltyDetour:       0.7,
		PenaltyShortRoute:   0.5,
		PenaltyEndpointMiss: 0.8,

		VeryShortMinutes: 2,
		ShortMinutes:     5,
		MaxMinutes:       480,
		PenaltyVeryShort: 0.4,
		PenaltyShort:     0.7,
		PenaltyTooLong:   0.5,

		AutoApproveScore:  0.8,
		AutoApproveIssues: 1,
		ReviewScore:       0.6,
		ReviewIssues:      3,
	}
}

// Validate checks that weights sum to one and tiers are ordered.
func (c Config) Validate() error {
	w := c.Weights
	sum := w.DataQuality + w.SpeedProfile + w.RouteConsistency + w.Duration
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("verification weights must sum to 1, got %.3f", sum)
	}
	for name, v := range map[string]float64{
		"data_quality":      w.DataQuality,
		"speed_profile":     w.SpeedProfile,
		"route_consistency": w.RouteConsistency,
		"duration":          w.Duration,
	} {
		if v < 0 {
			return fmt.Errorf("verification weight %s cannot be negative", name)
		}
	}
	if c.ReviewScore > c.AutoApproveScore {
		return fmt.Errorf("review score %.2f exceeds auto-approve score %.2f", c.ReviewScore, c.AutoApproveScore)
	}
	return nil
}
