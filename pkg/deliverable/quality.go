package deliverable

import (
	"context"
	"strings"

	"github.com/taskforge/orchestrator/pkg/llm"
	"github.com/taskforge/orchestrator/pkg/model"
)

// defaultWeights splits quality weight evenly across the six dimensions
// of step 4.
var defaultWeights = map[model.QualityDimension]float64{
	model.DimCompleteness:    1.0 / 6,
	model.DimAccuracy:        1.0 / 6,
	model.DimConsistency:     1.0 / 6,
	model.DimUsability:       1.0 / 6,
	model.DimMaintainability: 1.0 / 6,
	model.DimPerformance:     1.0 / 6,
}

// HeuristicScorer is a dependency-free quality assessment fallback used
// when no LLM backend is configured for DQM. It scores completeness by
// content length and the remaining dimensions at a neutral baseline,
// deliberately conservative so it never approves on heuristics alone
// without also clearing the quality threshold.
type HeuristicScorer struct{}

func (HeuristicScorer) AssessQuality(_ context.Context, content, _ string) (model.QualityAssessment, error) {
	completeness := 40.0
	switch {
	case len(content) > 2000:
		completeness = 85
	case len(content) > 500:
		completeness = 65
	case len(content) > 0:
		completeness = 50
	}

	dims := []model.DimensionScore{
		{Dimension: model.DimCompleteness, Score: completeness, Weight: defaultWeights[model.DimCompleteness]},
		{Dimension: model.DimAccuracy, Score: 70, Weight: defaultWeights[model.DimAccuracy]},
		{Dimension: model.DimConsistency, Score: 70, Weight: defaultWeights[model.DimConsistency]},
		{Dimension: model.DimUsability, Score: 70, Weight: defaultWeights[model.DimUsability]},
		{Dimension: model.DimMaintainability, Score: 70, Weight: defaultWeights[model.DimMaintainability]},
		{Dimension: model.DimPerformance, Score: 70, Weight: defaultWeights[model.DimPerformance]},
	}
	return model.QualityAssessment{Dimensions: dims, Overall: weightedSum(dims)}, nil
}

// LLMScorer assesses completeness and accuracy heuristically (length and
// structure, like HeuristicScorer) but sources its improvement
// suggestions from an NLPBackend summary, closing the loop between DQM
// and the same llm.Backend the Analysis Pipeline uses.
type LLMScorer struct {
	Backend llm.Backend
	Base    HeuristicScorer
}

func (s LLMScorer) AssessQuality(ctx context.Context, content, fileType string) (model.QualityAssessment, error) {
	assessment, err := s.Base.AssessQuality(ctx, content, fileType)
	if err != nil {
		return assessment, err
	}
	if s.Backend == nil || strings.TrimSpace(content) == "" {
		return assessment, nil
	}

	summary, err := s.Backend.Summarize(ctx, content, 3)
	if err != nil {
		// Degrade: keep the heuristic scores, skip suggestions.
		return assessment, nil
	}
	for _, line := range strings.Split(summary, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			assessment.Suggestions = append(assessment.Suggestions, line)
		}
	}
	return assessment, nil
}

func weightedSum(dims []model.DimensionScore) float64 {
	total := 0.0
	for _, d := range dims {
		total += d.Score * d.Weight
	}
	return total
}
