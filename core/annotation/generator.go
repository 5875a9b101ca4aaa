package annotation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/siherrmann/memories/model"
)

// MediaResolveFunc resolves the media object an interview was transcribed from.
type MediaResolveFunc func(ctx context.Context, sourceIdentifier string) (model.MediaObject, error)

// linkPriority is the order in which link attributes become SpecificResource bodies.
var linkPriority = []string{model.LinkWikidata, model.LinkAdamlink}

// Generator renders the entities and topics of an interview as web annotations.
type Generator struct {
	Resolve       MediaResolveFunc
	ContextLength int
	Logger        *slog.Logger
}

// NewGenerator creates a generator. A nil resolver leaves media fields empty.
func NewGenerator(resolve MediaResolveFunc, contextLength int, logger *slog.Logger) *Generator {
	if contextLength <= 0 {
		contextLength = DefaultContextLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		Resolve:       resolve,
		ContextLength: contextLength,
		Logger:        logger,
	}
}

// Generate returns one annotation per entity followed by one annotation per
// aggregated topic. With textOnly the target is the bare source identifier
// and no media fragment selector is written.
func (g *Generator) Generate(ctx context.Context, interview *model.Interview, sourceIdentifier string, textOnly bool) ([]model.Annotation, error) {
	source := g.targetSource(ctx, sourceIdentifier, textOnly)

	entities := interview.Entities.All()
	annotations := make([]model.Annotation, 0, len(entities)+len(interview.Topics))
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		quote := ExtractContext(interview.FullText, e.GlobalStart, e.GlobalEnd, g.ContextLength)
		selectors := []model.Selector{model.NewTextQuoteSelector(quote.Prefix, quote.Exact, quote.Suffix)}
		if !textOnly {
			selectors = append(selectors, model.NewFragmentSelector(e.Timestamps))
		}

		annotations = append(annotations, model.Annotation{
			Context: model.AnnotationContext,
			ID:      newAnnotationID(),
			Type:    model.AnnotationType,
			Body:    entityBody(e),
			Target:  model.Target{Source: source, Selector: selectors},
		})
	}

	for _, topic := range interview.Topics {
		annotations = append(annotations, model.Annotation{
			Context: model.AnnotationContext,
			ID:      newAnnotationID(),
			Type:    model.AnnotationType,
			Body: []model.Body{{
				Type:    model.BodyTextual,
				Value:   topic.Label,
				Purpose: model.PurposeTagging,
			}},
			Target: model.Target{Source: source},
		})
	}

	g.Logger.Debug("generated annotations", slog.String("interview", interview.Label), slog.Int("entities", len(entities)), slog.Int("topics", len(interview.Topics)))
	return annotations, nil
}

func (g *Generator) targetSource(ctx context.Context, sourceIdentifier string, textOnly bool) model.TargetSource {
	if textOnly {
		return model.TargetSource{ID: sourceIdentifier, Bare: true}
	}

	source := model.TargetSource{Type: model.SourceTypeVideo}
	if g.Resolve == nil {
		return source
	}
	media, err := g.Resolve(ctx, sourceIdentifier)
	if err != nil {
		g.Logger.Warn("media lookup failed", slog.String("source", sourceIdentifier), slog.String("error", err.Error()))
		return source
	}
	source.ID = media.ID
	source.Name = media.Name
	source.ContentID = media.ContentID
	return source
}

func entityBody(e model.Entity) []model.Body {
	body := []model.Body{{
		Type:    model.BodyTextual,
		Value:   e.Label,
		Purpose: model.PurposeClassifying,
	}}

	sourceType := model.SourceTypeConcept
	if e.Label == model.LabelLocation {
		sourceType = model.SourceTypePlace
	}
	prefLabel := e.Links.Get(model.LinkPrefLabel)
	for _, key := range linkPriority {
		value := e.Links.Get(key)
		if value == "" {
			continue
		}
		label := prefLabel
		if label == "" {
			label = value
		}
		body = append(body, specificResource(value, sourceType, label))
	}

	for _, uri := range e.SubjectURIs {
		label := prefLabel
		if label == "" {
			label = uri
		}
		body = append(body, specificResource(uri, model.SourceTypeConcept, label))
	}
	return body
}

func specificResource(id string, sourceType string, label string) model.Body {
	return model.Body{
		Type:    model.BodySpecific,
		Purpose: model.PurposeIdentifying,
		Source:  &model.BodySource{ID: id, Type: sourceType, Label: label},
	}
}

func newAnnotationID() string {
	return "urn:uuid:" + uuid.New().String()
}

// WriteAnnotations writes the annotations as an indented JSON array.
// Non-ASCII characters and HTML are written literally.
func WriteAnnotations(w io.Writer, annotations []model.Annotation) error {
	if annotations == nil {
		annotations = []model.Annotation{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(annotations)
}
