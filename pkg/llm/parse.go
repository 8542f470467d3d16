package llm

import (
	"strconv"
	"strings"

	"github.com/taskforge/orchestrator/pkg/model"
)

func parseKeyPoints(out string) []model.KeyPoint {
	var points []model.KeyPoint
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		points = append(points, model.KeyPoint{Text: line, Confidence: 0.8})
	}
	return points
}

func parsePIILines(out string) []model.Detection {
	var detections []model.Detection
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 4 {
			continue
		}
		start, err1 := strconv.Atoi(strings.TrimSpace(fields[1]))
		end, err2 := strconv.Atoi(strings.TrimSpace(fields[2]))
		confidence, err3 := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		detections = append(detections, model.Detection{
			Category:   model.CategoryPII,
			Type:       strings.ToLower(strings.TrimSpace(fields[0])),
			Start:      start,
			End:        end,
			Confidence: confidence,
			Severity:   severityForConfidence(confidence),
		})
	}
	return detections
}

func severityForConfidence(confidence float64) model.Severity {
	switch {
	case confidence >= 0.9:
		return model.SeverityHigh
	case confidence >= 0.6:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
