package pipeline

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

// DefaultNERModel is the token classification model used when none is configured.
const DefaultNERModel = "KnightsAnalytics/distilbert-NER"

// nerLabels maps the model's tag set onto entity labels.
var nerLabels = map[string]string{
	"PER":  model.LabelPerson,
	"LOC":  model.LabelLocation,
	"DATE": model.LabelDate,
	"TIME": model.LabelDate,
	"ORG":  "Organization",
	"MISC": "Misc",
}

// DefaultEntityExtractor creates an entity extractor using the default NER model
func DefaultEntityExtractor() (EntityExtractFunc, error) {
	return NEREntityExtractor(DefaultNERModel)
}

// NEREntityExtractor creates an entity extractor using a token classification model
// Only hits whose mapped label is requested and whose score reaches the threshold are returned
func NEREntityExtractor(modelName string) (EntityExtractFunc, error) {
	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	// Create token classification pipeline for NER
	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}), // Ignore non-entity tokens
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(text string, labels []string, threshold float64) ([]RawEntity, error) {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}

		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		if len(result.Entities) == 0 {
			return nil, nil
		}

		var entities []RawEntity
		for _, entity := range result.Entities[0] {
			entities = append(entities, RawEntity{
				Text:  strings.TrimSpace(entity.Word),
				Label: normalizeEntityType(entity.Entity),
				Start: int(entity.Start),
				End:   int(entity.End),
				Score: float64(entity.Score),
			})
		}

		return FilterEntities(text, entities, labels, threshold), nil
	}, nil
}

// FilterEntities maps the labels of raw hits, keeps the requested ones scoring at least
// threshold and anchors each span on the hit's text.
func FilterEntities(text string, entities []RawEntity, labels []string, threshold float64) []RawEntity {
	wanted := make(map[string]bool, len(labels))
	for _, label := range labels {
		wanted[label] = true
	}

	var out []RawEntity
	for _, e := range entities {
		if mapped, ok := nerLabels[e.Label]; ok {
			e.Label = mapped
		}
		if !wanted[e.Label] || e.Score < threshold {
			continue
		}

		start, end, ok := anchorSpan(text, e.Text, e.Start, e.End)
		if !ok {
			continue
		}
		e.Start, e.End = start, end
		e.Text = text[start:end]
		out = append(out, e)
	}
	return out
}

// anchorSpan returns the span of word in text, preferring the reported span and
// otherwise the first occurrence at or after it.
func anchorSpan(text, word string, start, end int) (int, int, bool) {
	if start >= 0 && start < end && end <= len(text) && (word == "" || text[start:end] == word) {
		return start, end, true
	}
	if word == "" {
		return 0, 0, false
	}

	from := max(0, min(start, len(text)))
	if i := strings.Index(text[from:], word); i >= 0 {
		return from + i, from + i + len(word), true
	}
	if i := strings.Index(text, word); i >= 0 {
		return i, i + len(word), true
	}
	return 0, 0, false
}

// normalizeEntityType removes B- and I- prefixes from NER labels
func normalizeEntityType(label string) string {
	// Remove BIO tagging prefixes (B- for beginning, I- for inside)
	if strings.HasPrefix(label, "B-") {
		return label[2:]
	}
	if strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
