// Package knowledge implements the Knowledge & Workgroup Resolver (KWR):
// given an analyzed task, return ranked knowledge references and ranked
// workgroups with skill-match/capacity/historical-performance metadata.
package knowledge

import (
	"context"
	"sort"

	"github.com/itchyny/gojq"
	"github.com/sirupsen/logrus"

	"github.com/taskforge/orchestrator/pkg/model"
)

// SearchResults is the raw, loosely-typed payload a SearchBackend
// returns. Real backends vary in shape; gojq extracts the fields this
// resolver needs (mirrors this package's own jq-style querying over
// dynamic backend payloads).
type SearchResults struct {
	Raw any
}

// SearchBackend is the external capability consulted for both knowledge
// references and workgroup candidates.
type SearchBackend interface {
	Search(ctx context.Context, query string, filters map[string]string) (SearchResults, error)
	SubmitFeedback(ctx context.Context, queryID string, relevanceLabel float64) error
}

// WorkgroupDirectory supplies the capacity/performance metadata a
// SearchBackend result doesn't carry directly.
type WorkgroupDirectory interface {
	Capacity(ctx context.Context, teamID string) (model.CapacityInfo, error)
	HistoricalPerformance(ctx context.Context, teamID string) (model.HistoricalPerformance, error)
}

// Resolver is the Knowledge & Workgroup Resolver.
type Resolver struct {
	backend   SearchBackend
	directory WorkgroupDirectory
	topK      int
	logger    *logrus.Logger
}

// New constructs a Resolver. topK <= 0 defaults to 5.
func New(backend SearchBackend, directory WorkgroupDirectory, topK int, logger *logrus.Logger) *Resolver {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{backend: backend, directory: directory, topK: topK, logger: logger}
}

// Result is KWR.Resolve's output.
type Result struct {
	KnowledgeRefs []model.KnowledgeReference
	Workgroups    []model.RelatedWorkgroup
	Degraded      bool
}

// candidateRow is the shape extracted from a SearchBackend result via gojq.
type candidateRow struct {
	TeamID        string
	SkillMatch    float64
	MatchedSkills []string
	RecentSimilarity float64
}

var candidatesQuery = mustCompile(`.candidates[]? | {teamId: .teamId, skillMatch: .skillMatch, matchedSkills: .matchedSkills, recentSimilarity: .recentSimilarity}`)
var knowledgeQuery = mustCompile(`.knowledge[]? | {sourceId: .sourceId, sourceType: .sourceType, title: .title, snippet: .snippet, relevance: .relevance}`)

func mustCompile(src string) *gojq.Code {
	query, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		panic(err)
	}
	return code
}

// Resolve produces ranked knowledge references and workgroups for a
// task's content and extracted key points. A backend failure degrades to
// an empty ranked list with Degraded=true; it never aborts the pipeline.
func (r *Resolver) Resolve(ctx context.Context, content string, keyPoints []model.KeyPoint) (Result, error) {
	query := buildQuery(content, keyPoints)

	if r.backend == nil {
		return Result{Degraded: true}, nil
	}

	raw, err := r.backend.Search(ctx, query, nil)
	if err != nil {
		r.logger.WithError(err).Warn("knowledge resolver: search backend failed, degrading")
		return Result{Degraded: true}, nil
	}

	knowledgeRefs := extractKnowledge(raw.Raw)
	workgroups := r.rankWorkgroups(ctx, raw.Raw)

	return Result{KnowledgeRefs: knowledgeRefs, Workgroups: workgroups}, nil
}

func buildQuery(content string, keyPoints []model.KeyPoint) string {
	q := content
	for _, kp := range keyPoints {
		q += " " + kp.Text
	}
	return q
}

func extractKnowledge(raw any) []model.KnowledgeReference {
	iter := knowledgeQuery.Run(raw)
	var out []model.KnowledgeReference
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			_ = err
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.KnowledgeReference{
			SourceID:   asString(m["sourceId"]),
			SourceType: asString(m["sourceType"]),
			Title:      asString(m["title"]),
			Snippet:    asString(m["snippet"]),
			Relevance:  asFloat(m["relevance"]),
		})
	}
	return out
}

// rankWorkgroups scores each candidate team by the weighted formula of
// : 0.5*skillMatch + 0.2*capacityFit + 0.2*historicalSuccess +
// 0.1*recentSimilarity, breaking ties by higher capacity then
// lexicographic team id, and returns the top-K.
func (r *Resolver) rankWorkgroups(ctx context.Context, raw any) []model.RelatedWorkgroup {
	iter := candidatesQuery.Run(raw)
	var rows []candidateRow
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if _, isErr := v.(error); isErr {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, candidateRow{
			TeamID:           asString(m["teamId"]),
			SkillMatch:       asFloat(m["skillMatch"]),
			MatchedSkills:    asStringSlice(m["matchedSkills"]),
			RecentSimilarity: asFloat(m["recentSimilarity"]),
		})
	}

	workgroups := make([]model.RelatedWorkgroup, 0, len(rows))
	for _, row := range rows {
		capacity := model.CapacityInfo{FitScore: 0.5}
		performance := model.HistoricalPerformance{SuccessRate: 0.5}
		if r.directory != nil {
			if c, err := r.directory.Capacity(ctx, row.TeamID); err == nil {
				capacity = c
			}
			if p, err := r.directory.HistoricalPerformance(ctx, row.TeamID); err == nil {
				performance = p
			}
		}

		relevance := 0.5*row.SkillMatch + 0.2*capacity.FitScore + 0.2*performance.SuccessRate + 0.1*row.RecentSimilarity

		workgroups = append(workgroups, model.RelatedWorkgroup{
			TeamID:    row.TeamID,
			Relevance: relevance,
			SkillMatch: model.SkillMatch{
				MatchedSkills: row.MatchedSkills,
				Score:         row.SkillMatch,
			},
			Capacity:               capacity,
			HistoricalPerformance:  performance,
			RecommendedInvolvement: involvementFor(relevance),
		})
	}

	sort.Slice(workgroups, func(i, j int) bool {
		if workgroups[i].Relevance != workgroups[j].Relevance {
			return workgroups[i].Relevance > workgroups[j].Relevance
		}
		if workgroups[i].Capacity.Capacity != workgroups[j].Capacity.Capacity {
			return workgroups[i].Capacity.Capacity > workgroups[j].Capacity.Capacity
		}
		return workgroups[i].TeamID < workgroups[j].TeamID
	})

	if len(workgroups) > r.topK {
		workgroups = workgroups[:r.topK]
	}
	return workgroups
}

func involvementFor(relevance float64) model.Involvement {
	switch {
	case relevance >= 0.75:
		return model.InvolvementApproval
	case relevance >= 0.5:
		return model.InvolvementCollaboration
	case relevance >= 0.25:
		return model.InvolvementConsultation
	default:
		return model.InvolvementNotification
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, asString(item))
	}
	return out
}
