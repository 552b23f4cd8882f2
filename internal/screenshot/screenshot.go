// ABOUTME: Screenshot fallback verification of a completed run
// ABOUTME: Checks OCR text for map-app signatures and plausible run figures

package screenshot

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/harper/courserun/internal/models"
)

// Text is what an OCR engine read from an image.
type Text struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
}

// OCR extracts text from an encoded image.
type OCR interface {
	ExtractText(ctx context.Context, image []byte) (Text, error)
}

// DefaultSignatures are tokens a genuine map-app completion screen contains:
// app branding, completion words, units, and navigation labels.
var DefaultSignatures = []string{
	"카카오맵", "kakao", "map",
	"도착", "완주", "완료",
	"km", "분", "시간", "거리", "속도",
	"경로", "네비게이션", "길찾기",
}

// Config holds the screenshot checks' thresholds.
type Config struct {
	Signatures      []string `json:"signatures" yaml:"signatures" env:"SIGNATURES"`
	MinSignatures   int      `json:"min_signatures" yaml:"min_signatures" env:"MIN_SIGNATURES"`
	MinDistanceKM   float64  `json:"min_distance_km" yaml:"min_distance_km"`
	MaxDistanceKM   float64  `json:"max_distance_km" yaml:"max_distance_km"`
	ConfidenceFloor float64  `json:"confidence_floor" yaml:"confidence_floor" env:"CONFIDENCE_FLOOR"`
	BlurryBelow     float64  `json:"blurry_below" yaml:"blurry_below"`
	MaxDataIssues   int      `json:"max_data_issues" yaml:"max_data_issues"`
}

// DefaultConfig returns the stock screenshot thresholds.
func DefaultConfig() Config {
	return Config{
		Signatures:      DefaultSignatures,
		MinSignatures:   3,
		MinDistanceKM:   0.1,
		MaxDistanceKM:   100,
		ConfidenceFloor: 0.5,
		BlurryBelow:     0.6,
		MaxDataIssues:   1,
	}
}

// Extracted holds the run figures found in the text, as written.
type Extracted struct {
	Distance   string  `json:"distance,omitempty"`
	DistanceKM float64 `json:"distance_km,omitempty"`
	Duration   string  `json:"duration,omitempty"`
	Speed      string  `json:"speed,omitempty"`
	Pace       string  `json:"pace,omitempty"`
	Calories   string  `json:"calories,omitempty"`
}

// Analysis is the full outcome of a screenshot check.
type Analysis struct {
	Verified   bool      `json:"verified"`
	Confidence float64   `json:"confidence"`
	Extracted  Extracted `json:"extracted"`
	Signatures []string  `json:"signatures"`
	Issues     []string  `json:"issues"`
	RawText    string    `json:"raw_text"`
}

// Result converts the analysis to a verification result. A screenshot never
// earns more than manual review and is always marked as screenshot-sourced.
func (a Analysis) Result() models.VerificationResult {
	rec := models.ScreenshotRequired
	if a.Verified {
		rec = models.ManualReview
	}
	issues := make([]string, len(a.Issues))
	copy(issues, a.Issues)
	return models.VerificationResult{
		IsValid:        a.Verified,
		Confidence:     a.Confidence,
		Issues:         issues,
		Metrics:        models.VerificationMetrics{Distance: a.Extracted.DistanceKM},
		Recommendation: rec,
		Source:         models.SourceScreenshot,
	}
}

// Verifier runs OCR and the screenshot checks.
type Verifier struct {
	ocr OCR
	cfg Config
}

// New creates a screenshot verifier.
func New(ocr OCR, cfg Config) *Verifier {
	if len(cfg.Signatures) == 0 {
		cfg.Signatures = DefaultSignatures
	}
	return &Verifier{ocr: ocr, cfg: cfg}
}

// Verify analyzes image and returns a screenshot-sourced verification result.
func (v *Verifier) Verify(ctx context.Context, image []byte) models.VerificationResult {
	return v.Analyze(ctx, image).Result()
}

// Analyze runs OCR on image and evaluates the text. OCR failures are
// reported as issues, never returned as errors.
func (v *Verifier) Analyze(ctx context.Context, image []byte) Analysis {
	if len(image) == 0 {
		return Analysis{Issues: []string{"no image provided"}}
	}

	text, err := v.ocr.ExtractText(ctx, image)
	if err != nil {
		return Analysis{Issues: []string{fmt.Sprintf("image analysis failed: %v", err)}}
	}
	return v.Evaluate(text)
}

// Evaluate scores already-extracted OCR text.
func (v *Verifier) Evaluate(text Text) Analysis {
	found, uiScore := v.signatures(text.Text)
	uiValid := len(found) >= v.cfg.MinSignatures

	data := ExtractFigures(text.Text)
	missing := v.missingFigures(data)
	implausible := v.implausibleDistance(data)
	dataValid := len(missing) <= v.cfg.MaxDataIssues && implausible == ""

	var issues []string
	if !uiValid {
		issues = append(issues, "image is not recognized as a map app screen")
	}
	if text.Confidence < v.cfg.BlurryBelow {
		issues = append(issues, "image is blurry or text is unclear")
	}
	issues = append(issues, missing...)
	if implausible != "" {
		issues = append(issues, implausible)
	}

	verified := uiValid && dataValid &&
		text.Confidence > v.cfg.ConfidenceFloor &&
		(data.Distance != "" || data.Duration != "")

	dataScore := 0.5
	if dataValid {
		dataScore = 1
	}
	confidence := math.Min(text.Confidence*0.4+uiScore*0.3+dataScore*0.3, 1)

	return Analysis{
		Verified:   verified,
		Confidence: confidence,
		Extracted:  data,
		Signatures: found,
		Issues:     issues,
		RawText:    text.Text,
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// signatures returns the tokens found and the fraction of the list matched.
func (v *Verifier) signatures(text string) ([]string, float64) {
	normalized := whitespace.ReplaceAllString(strings.ToLower(text), "")
	found := []string{}
	for _, sig := range v.cfg.Signatures {
		if strings.Contains(normalized, strings.ToLower(sig)) {
			found = append(found, sig)
		}
	}
	return found, float64(len(found)) / float64(len(v.cfg.Signatures))
}

// missingFigures lists the figures that could not be read. Up to
// MaxDataIssues of these are tolerated.
func (v *Verifier) missingFigures(data Extracted) []string {
	var issues []string
	if data.Distance == "" && data.Duration == "" {
		issues = append(issues, "neither distance nor duration was found")
	}
	if data.Distance == "" {
		issues = append(issues, "distance is not legible")
	}
	if data.Duration == "" {
		issues = append(issues, "duration is not legible")
	}
	return issues
}

// implausibleDistance describes a legible distance outside the plausible
// range. Any such distance fails the data check on its own.
func (v *Verifier) implausibleDistance(data Extracted) string {
	if data.Distance == "" {
		return ""
	}
	switch {
	case data.DistanceKM < v.cfg.MinDistanceKM:
		return fmt.Sprintf("distance is too short (under %.1fkm)", v.cfg.MinDistanceKM)
	case data.DistanceKM > v.cfg.MaxDistanceKM:
		return fmt.Sprintf("distance is implausibly long (over %.0fkm)", v.cfg.MaxDistanceKM)
	}
	return ""
}

// Patterns are tried in order; the first match wins. Distance patterns skip
// speeds written as km/h.
var (
	distancePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)((\d+\.?\d*)\s*km)(?:$|[^/a-z])`),
		regexp.MustCompile(`(?i)((\d+\.?\d*)\s*킬로미터)`),
	}
	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)시간\s*(\d+)분`),
		regexp.MustCompile(`(\d+)분\s*(\d+)초`),
		regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})`),
		regexp.MustCompile(`(\d{1,2}):(\d{2})`),
	}
	speedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+\.?\d*)\s*km/h`),
	}
	pacePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)'(\d+)"`),
		regexp.MustCompile(`(?i)(\d+)분\s*(\d+)초/km`),
	}
	caloriePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*kcal`),
		regexp.MustCompile(`(\d+)\s*칼로리`),
		regexp.MustCompile(`칼로리[:\s]*(\d+)`),
	}
)

func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// ExtractFigures pulls distance, duration, speed, pace, and calories out of
// OCR text.
func ExtractFigures(text string) Extracted {
	var out Extracted

	for _, re := range distancePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		out.Distance = strings.TrimSpace(m[1])
		if km, err := strconv.ParseFloat(m[2], 64); err == nil {
			out.DistanceKM = km
		}
		break
	}

	out.Duration = firstMatch(text, durationPatterns)
	out.Speed = firstMatch(text, speedPatterns)
	out.Pace = firstMatch(text, pacePatterns)
	out.Calories = firstMatch(text, caloriePatterns)
	return out
}
