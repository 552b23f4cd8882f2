// ABOUTME: Authenticity scoring for completed tracking sessions
// ABOUTME: Combines data quality, speed, route, and duration checks into a recommendation

package verify

import (
	"math"

	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
)

// Verifier scores sessions with a fixed Config. It holds no mutable state
// and is safe for concurrent use.
type Verifier struct {
	cfg Config
}

// New creates a verifier.
func New(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Config returns the verifier's thresholds.
func (v *Verifier) Config() Config { return v.cfg }

// Verify scores a session with the default configuration.
func Verify(session *models.TrackingSession, course *models.Course) models.VerificationResult {
	return New(DefaultConfig()).Verify(session, course)
}

type check struct {
	score  float64
	issues []string
}

func (c *check) penalize(factor float64, issue string) {
	c.score *= factor
	c.issues = append(c.issues, issue)
}

// Verify scores session. course is optional; without it the endpoint
// comparison is skipped. Fewer than two fixes is inconclusive rather than an
// error.
func (v *Verifier) Verify(session *models.TrackingSession, course *models.Course) models.VerificationResult {
	fixes := session.Fixes
	total := geo.PathLength(session.Points())

	if len(fixes) < 2 {
		return models.VerificationResult{
			IsValid:        false,
			Confidence:     0,
			Issues:         []string{"insufficient GPS data to verify"},
			Metrics:        models.VerificationMetrics{Distance: total / 1000},
			Recommendation: models.ScreenshotRequired,
			Source:         models.SourceGPS,
		}
	}

	dq := v.dataQuality(fixes)
	sp := v.speedProfile(fixes)
	rc := v.routeConsistency(fixes, total, course)
	du := v.duration(session)

	w := v.cfg.Weights
	confidence := dq.score*w.DataQuality +
		sp.score*w.SpeedProfile +
		rc.score*w.RouteConsistency +
		du.score*w.Duration
	confidence = math.Max(0, math.Min(1, confidence))

	issues := make([]string, 0, len(dq.issues)+len(sp.issues)+len(rc.issues)+len(du.issues))
	issues = append(issues, dq.issues...)
	issues = append(issues, sp.issues...)
	issues = append(issues, rc.issues...)
	issues = append(issues, du.issues...)

	return models.VerificationResult{
		IsValid:    confidence >= v.cfg.ReviewScore,
		Confidence: confidence,
		Issues:     issues,
		Metrics: models.VerificationMetrics{
			DataQuality:      dq.score,
			RouteConsistency: rc.score,
			SpeedProfile:     sp.score,
			Duration:         du.score,
			Distance:         total / 1000,
		},
		Recommendation: v.recommend(confidence, len(issues)),
		Source:         models.SourceGPS,
	}
}

func (v *Verifier) recommend(confidence float64, issues int) models.Recommendation {
	switch {
	case confidence >= v.cfg.AutoApproveScore && issues <= v.cfg.AutoApproveIssues:
		return models.AutoApprove
	case confidence >= v.cfg.ReviewScore && issues <= v.cfg.ReviewIssues:
		return models.ManualReview
	default:
		return models.ScreenshotRequired
	}
}

func (v *Verifier) dataQuality(fixes []models.Fix) check {
	c := check{score: 1}
	n := len(fixes)

	switch {
	case n < v.cfg.MinFixes:
		c.penalize(v.cfg.PenaltyFewFixes, "not enough GPS fixes")
	case n < v.cfg.LowFixes:
		c.penalize(v.cfg.PenaltyLowFixes, "few GPS fixes")
	}

	inaccurate := 0
	for _, f := range fixes {
		if f.Accuracy > v.cfg.InaccurateMeters {
			inaccurate++
		}
	}
	ratio := float64(inaccurate) / float64(n)
	switch {
	case ratio > v.cfg.InaccurateHigh:
		c.penalize(v.cfg.PenaltyInaccurate, "GPS accuracy is poor")
	case ratio > v.cfg.InaccurateLow:
		c.penalize(v.cfg.PenaltySomeInacc, "some GPS fixes are inaccurate")
	}

	gaps := 0
	for i := 1; i < n; i++ {
		if fixes[i].Timestamp.Sub(fixes[i-1].Timestamp).Seconds() > v.cfg.GapSeconds {
			gaps++
		}
	}
	if float64(gaps) > float64(n)*v.cfg.MaxGapFraction {
		c.penalize(v.cfg.PenaltyGaps, "frequent GPS signal gaps")
	}

	return c
}

// segmentSpeeds returns km/h for each consecutive pair with a positive time delta.
func segmentSpeeds(fixes []models.Fix) []float64 {
	speeds := make([]float64, 0, len(fixes)-1)
	for i := 1; i < len(fixes); i++ {
		dt := fixes[i].Timestamp.Sub(fixes[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		d := geo.Distance(fixes[i-1].Point(), fixes[i].Point())
		speeds = append(speeds, d/dt*3.6)
	}
	return speeds
}

func (v *Verifier) speedProfile(fixes []models.Fix) check {
	speeds := segmentSpeeds(fixes)
	if len(speeds) == 0 {
		return check{score: 0, issues: []string{"speed cannot be computed from fix timestamps"}}
	}

	c := check{score: 1}

	sum, top := 0.0, 0.0
	for _, s := range speeds {
		sum += s
		top = math.Max(top, s)
	}
	avg := sum / float64(len(speeds))

	switch {
	case avg < v.cfg.MinAvgSpeed:
		c.penalize(v.cfg.PenaltySlow, "average speed is too low (walking pace)")
	case avg > v.cfg.MaxAvgSpeed:
		c.penalize(v.cfg.PenaltyFast, "average speed is too high (vehicle suspected)")
	}

	if top > v.cfg.MaxSegmentSpeed {
		c.penalize(v.cfg.PenaltyTopSpeed, "top speed is unrealistic")
	}

	if len(speeds) > 1 {
		variation := 0.0
		for i := 1; i < len(speeds); i++ {
			variation += math.Abs(speeds[i] - speeds[i-1])
		}
		if variation/float64(len(speeds)-1) > v.cfg.MaxAvgVariation {
			c.penalize(v.cfg.PenaltyVariation, "speed changes are unnatural")
		}
	}

	return c
}

func (v *Verifier) routeConsistency(fixes []models.Fix, total float64, course *models.Course) check {
	c := check{score: 1}
	first, last := fixes[0].Point(), fixes[len(fixes)-1].Point()

	straight := math.Max(geo.Distance(first, last), v.cfg.MinStraightLine)
	if total/straight > v.cfg.MaxDetourRatio {
		c.penalize(v.cfg.PenaltyDetour, "path is unusually indirect")
	}

	if total < v.cfg.MinTotalDistance {
		c.penalize(v.cfg.PenaltyShortRoute, "distance covered is too short")
	}

	if course != nil && len(course.Polyline) > 0 {
		if geo.Distance(first, course.Start()) > v.cfg.MaxEndpointOffset {
			c.penalize(v.cfg.PenaltyEndpointMiss, "start point does not match the course")
		}
		if geo.Distance(last, course.Finish()) > v.cfg.MaxEndpointOffset {
			c.penalize(v.cfg.PenaltyEndpointMiss, "finish point does not match the course")
		}
	}

	return c
}

func (v *Verifier) duration(session *models.TrackingSession) check {
	if session.EndTime == nil {
		return check{score: 0, issues: []string{"session end time was not recorded"}}
	}

	c := check{score: 1}
	minutes := session.Duration().Minutes()

	switch {
	case minutes < v.cfg.VeryShortMinutes:
		c.penalize(v.cfg.PenaltyVeryShort, "run is far too short")
	case minutes < v.cfg.ShortMinutes:
		c.penalize(v.cfg.PenaltyShort, "run is short")
	}

	if minutes > v.cfg.MaxMinutes {
		c.penalize(v.cfg.PenaltyTooLong, "run is implausibly long")
	}

	return c
}
