// Package sensitivity implements the Sensitivity Gate (SG): content
// scanning for PII, credentials, financial, health, and proprietary
// markers, scoring, masking, and the approval-required decision.
package sensitivity

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// PIIRecognizer is the external, asynchronous PII detector consulted
// alongside the built-in regex rules.
type PIIRecognizer interface {
	DetectPII(ctx context.Context, content string) ([]model.Detection, error)
}

// categoryWeight is the per-category scoring weight.
var categoryWeight = map[model.DetectionCategory]float64{
	model.CategoryCredentials: 1.5,
	model.CategoryFinancial:   1.3,
	model.CategoryHealth:      1.4,
	model.CategoryPII:         1.0,
	model.CategoryProprietary: 0.8,
}

// severityWeight is the per-detection severity contribution.
var severityWeight = map[model.Severity]float64{
	model.SeverityLow:      10,
	model.SeverityMedium:   25,
	model.SeverityHigh:     50,
	model.SeverityCritical: 100,
}

const maxCountPerCategory = 5

// Gate is the Sensitivity Gate. Scan is a deterministic pure function of
// content plus the detector backends' outputs.
type Gate struct {
	recognizer PIIRecognizer
	rules      []Rule
	logger     *logrus.Logger
}

// New constructs a Gate from an external PII recognizer and the regex
// rule battery (credentials, financial, proprietary). A nil recognizer is
// valid: PII detection is simply skipped, matching the degrade-not-abort
// posture used elsewhere in this pipeline.
func New(recognizer PIIRecognizer, rules []Rule, logger *logrus.Logger) *Gate {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gate{recognizer: recognizer, rules: rules, logger: logger}
}

// Scan runs every detector over content and produces a SensitivityScanResult.
func (g *Gate) Scan(ctx context.Context, content string, policy *model.DataProtectionPolicy) (*model.SensitivityScanResult, error) {
	var detections []model.Detection

	if g.recognizer != nil {
		piiDetections, err := g.recognizer.DetectPII(ctx, content)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "sensitivity scan failed").
				WithDetails("pii recognizer error")
		}
		detections = append(detections, piiDetections...)
	}

	for _, rule := range g.rules {
		detections = append(detections, rule.Detect(content)...)
	}

	summary := summarize(detections)
	score := scoreOf(summary)

	autoMask := true
	if policy != nil {
		autoMask = policy.AutoMask
	}

	masked := content
	if autoMask {
		masked = mask(content, detections)
	}

	result := &model.SensitivityScanResult{
		Detections:      detections,
		CategorySummary: summary,
		Score:           score,
		MaskedContent:   masked,
	}
	result.RequiresApproval = g.RequiresApproval(result, policy)
	return result, nil
}

// RequiresApproval reports whether human approval is required before
// this content may proceed: score >= threshold (default 50),
// OR any category has severity critical, OR any CREDENTIALS detection is
// present at all.
func (g *Gate) RequiresApproval(result *model.SensitivityScanResult, policy *model.DataProtectionPolicy) bool {
	threshold := 50
	if policy != nil && policy.ApprovalScoreThreshold != 0 {
		threshold = policy.ApprovalScoreThreshold
	}

	if result.Score >= threshold {
		return true
	}
	for _, summary := range result.CategorySummary {
		if summary.HighestSeverity == model.SeverityCritical {
			return true
		}
	}
	if cred, ok := result.CategorySummary[model.CategoryCredentials]; ok && cred.Count > 0 {
		return true
	}
	return false
}

func summarize(detections []model.Detection) map[model.DetectionCategory]model.CategorySummary {
	out := map[model.DetectionCategory]model.CategorySummary{}
	for _, d := range detections {
		summary := out[d.Category]
		summary.Category = d.Category
		summary.Count++
		summary.Detections = append(summary.Detections, d)
		if model.SeverityRank(d.Severity) > model.SeverityRank(summary.HighestSeverity) {
			summary.HighestSeverity = d.Severity
		}
		out[d.Category] = summary
	}
	return out
}

// scoreOf computes the 0-100 sensitivity score.
func scoreOf(summary map[model.DetectionCategory]model.CategorySummary) int {
	total := decimal.Zero
	maxTotal := decimal.Zero

	for category, s := range summary {
		weight := decimal.NewFromFloat(categoryWeight[category])
		count := s.Count
		if count > maxCountPerCategory {
			count = maxCountPerCategory
		}

		categoryTotal := decimal.Zero
		for _, d := range s.Detections[:min(count, len(s.Detections))] {
			categoryTotal = categoryTotal.Add(decimal.NewFromFloat(severityWeight[d.Severity]))
		}
		total = total.Add(categoryTotal.Mul(weight))
		maxTotal = maxTotal.Add(decimal.NewFromInt(100).Mul(weight).Mul(decimal.NewFromInt(int64(count))))
	}

	if maxTotal.IsZero() {
		return 0
	}

	pct := total.Div(maxTotal).Mul(decimal.NewFromInt(100))
	rounded := pct.Round(0).IntPart()
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return int(rounded)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// mask replaces each detection range with "[<TYPE>_REDACTED]", processing
// ranges in descending start order so earlier offsets stay valid.
func mask(content string, detections []model.Detection) string {
	ordered := make([]model.Detection, len(detections))
	copy(ordered, detections)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	runes := []rune(content)
	for _, d := range ordered {
		if d.Start < 0 || d.End > len(runes) || d.Start >= d.End {
			continue
		}
		tag := []rune("[" + toUpper(d.Type) + "_REDACTED]")
		runes = append(runes[:d.Start], append(tag, runes[d.End:]...)...)
	}
	return string(runes)
}

func toUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
	}
	return string(out)
}
