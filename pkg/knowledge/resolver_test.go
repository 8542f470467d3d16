package knowledge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/pkg/knowledge"
	"github.com/taskforge/orchestrator/pkg/model"
)

type fakeBackend struct {
	raw any
	err error
}

func (f fakeBackend) Search(ctx context.Context, query string, filters map[string]string) (knowledge.SearchResults, error) {
	if f.err != nil {
		return knowledge.SearchResults{}, f.err
	}
	return knowledge.SearchResults{Raw: f.raw}, nil
}

func (f fakeBackend) SubmitFeedback(ctx context.Context, queryID string, relevanceLabel float64) error {
	return nil
}

type fakeDirectory struct{}

func (fakeDirectory) Capacity(ctx context.Context, teamID string) (model.CapacityInfo, error) {
	if teamID == "security-team" {
		return model.CapacityInfo{ActiveTodos: 2, Capacity: 10, FitScore: 0.9}, nil
	}
	return model.CapacityInfo{ActiveTodos: 5, Capacity: 5, FitScore: 0.3}, nil
}

func (fakeDirectory) HistoricalPerformance(ctx context.Context, teamID string) (model.HistoricalPerformance, error) {
	return model.HistoricalPerformance{SuccessRate: 0.8}, nil
}

func TestResolveRanksBySkillMatch(t *testing.T) {
	raw := map[string]any{
		"candidates": []any{
			map[string]any{"teamId": "platform-team", "skillMatch": 0.3, "matchedSkills": []any{"go"}, "recentSimilarity": 0.1},
			map[string]any{"teamId": "security-team", "skillMatch": 0.9, "matchedSkills": []any{"oauth", "security"}, "recentSimilarity": 0.5},
		},
		"knowledge": []any{
			map[string]any{"sourceId": "doc-1", "sourceType": "wiki", "title": "OAuth2 guide", "snippet": "...", "relevance": 0.9},
		},
	}

	r := knowledge.New(fakeBackend{raw: raw}, fakeDirectory{}, 5, nil)
	result, err := r.Resolve(context.Background(), "Implement OAuth2", nil)
	require.NoError(t, err)

	require.Len(t, result.Workgroups, 2)
	assert.Equal(t, "security-team", result.Workgroups[0].TeamID)
	require.Len(t, result.KnowledgeRefs, 1)
	assert.Equal(t, "doc-1", result.KnowledgeRefs[0].SourceID)
	assert.False(t, result.Degraded)
}

func TestResolveDegradesOnBackendFailure(t *testing.T) {
	r := knowledge.New(fakeBackend{err: errors.New("boom")}, fakeDirectory{}, 5, nil)
	result, err := r.Resolve(context.Background(), "content", nil)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Workgroups)
}

func TestResolveNilBackendDegrades(t *testing.T) {
	r := knowledge.New(nil, nil, 0, nil)
	result, err := r.Resolve(context.Background(), "content", nil)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}

func TestTopKLimitsResults(t *testing.T) {
	candidates := make([]any, 0, 10)
	for i := 0; i < 10; i++ {
		candidates = append(candidates, map[string]any{"teamId": string(rune('a' + i)), "skillMatch": 0.5})
	}
	raw := map[string]any{"candidates": candidates}

	r := knowledge.New(fakeBackend{raw: raw}, nil, 3, nil)
	result, err := r.Resolve(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Len(t, result.Workgroups, 3)
}
