package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

// Pipeline segments a transcription, extracts and links entities,
// optionally extracts topics and locations, and projects offsets.
type Pipeline struct {
	Chunker           ChunkFunc
	EntityExtractor   EntityExtractFunc
	LocationLookup    LocationLookupFunc  // Optional
	SubjectLookup     SubjectLookupFunc   // Optional
	TopicExtractor    TopicExtractFunc    // Optional, used with IncludeLLMTopics
	LocationExtractor LocationExtractFunc // Optional, used with IncludeLLMTopics
	Embedder          EmbedFunc           // Optional
	Config            model.Configuration
	Logger            *slog.Logger
}

// NewPipeline creates a new processing pipeline
func NewPipeline(config model.Configuration, chunker ChunkFunc, extractor EntityExtractFunc, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Chunker:         chunker,
		EntityExtractor: extractor,
		Config:          config,
		Logger:          logger,
	}
}

// SetLocationLookup sets the gazetteer lookup for Location entities
func (p *Pipeline) SetLocationLookup(lookup LocationLookupFunc) {
	p.LocationLookup = lookup
}

// SetSubjectLookup sets the thesaurus lookup for entities that are no person, location or date
func (p *Pipeline) SetSubjectLookup(lookup SubjectLookupFunc) {
	p.SubjectLookup = lookup
}

// SetTopicExtractor sets the topic extraction function
func (p *Pipeline) SetTopicExtractor(extractor TopicExtractFunc) {
	p.TopicExtractor = extractor
}

// SetLocationExtractor sets the language model location extraction function
func (p *Pipeline) SetLocationExtractor(extractor LocationExtractFunc) {
	p.LocationExtractor = extractor
}

// SetEmbedder sets the chunk embedding function
func (p *Pipeline) SetEmbedder(embedder EmbedFunc) {
	p.Embedder = embedder
}

// ProcessingResult contains the processed interview, chunk embeddings and per-item problems
type ProcessingResult struct {
	Interview  *model.Interview
	Embeddings map[string][]float32
	Problems   []error
}

// Process runs the pipeline over a raw transcription and fills the interview.
// Per-item problems are collected in the result, an IntegrityViolation is returned as error.
func (p *Pipeline) Process(ctx context.Context, interview *model.Interview, raw json.RawMessage) (*ProcessingResult, error) {
	segmentation, err := p.Chunker(raw)
	if err != nil {
		return nil, helper.NewError("segment", err)
	}

	result := &ProcessingResult{
		Interview:  interview,
		Embeddings: map[string][]float32{},
		Problems:   segmentation.Problems,
	}

	interview.Raw = raw
	interview.Lines = segmentation.Lines
	interview.Chunks = segmentation.Chunks
	interview.Entities = model.NewEntityStore()

	for _, chunk := range interview.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Problems = append(result.Problems, p.extractChunk(ctx, interview, chunk)...)
	}

	if p.Config.IncludeLLMTopics {
		result.Problems = append(result.Problems, p.extractTopics(ctx, interview)...)
	}

	if err := ProjectInterview(interview); err != nil {
		return nil, helper.NewError("project offsets", err)
	}

	if p.Embedder != nil {
		for _, chunk := range interview.Chunks {
			embedding, err := p.Embedder(chunk.Text)
			if err != nil {
				p.Logger.Warn("Embedding failed", slog.String("chunk_id", chunk.ID), slog.String("error", err.Error()))
				result.Problems = append(result.Problems, helper.ExternalLookup("embed "+chunk.ID, err))
				continue
			}
			result.Embeddings[chunk.ID] = embedding
		}
	}

	p.Logger.Info(
		"Processed interview",
		slog.String("label", interview.Label),
		slog.Int("chunks", len(interview.Chunks)),
		slog.Int("entities", interview.Entities.Len()),
		slog.Int("problems", len(result.Problems)),
	)
	return result, nil
}

func (p *Pipeline) extractChunk(ctx context.Context, interview *model.Interview, chunk model.Chunk) []error {
	if p.EntityExtractor == nil {
		return nil
	}

	hits, err := p.EntityExtractor(chunk.Text, p.Config.EntityLabels, p.Config.ModelThreshold)
	if err != nil {
		p.Logger.Warn("Entity extraction failed", slog.String("chunk_id", chunk.ID), slog.String("error", err.Error()))
		return []error{helper.ExternalLookup("extract entities "+chunk.ID, err)}
	}

	var problems []error
	for _, hit := range hits {
		if hit.Score <= p.Config.PostThreshold {
			continue
		}

		entity := model.Entity{
			Text:       hit.Text,
			Label:      hit.Label,
			LocalStart: hit.Start,
			LocalEnd:   hit.End,
			ChunkID:    chunk.ID,
			Timestamps: chunk.TimeRange,
			Score:      hit.Score,
		}
		if err := entity.Validate(len(chunk.Text)); err != nil {
			problems = append(problems, err)
			continue
		}

		ref := interview.Entities.Append(entity)
		p.link(ctx, interview.Entities, ref)
	}
	return problems
}

// link adds gazetteer links to locations and thesaurus subjects to every label
// other than person, location and date. Lookup failures leave the entity unlinked.
func (p *Pipeline) link(ctx context.Context, store *model.EntityStore, ref model.EntityRef) {
	entity, _ := store.Get(ref)

	switch entity.Label {
	case model.LabelLocation:
		if p.LocationLookup == nil {
			return
		}
		match, err := p.LocationLookup(entity.Text)
		if err != nil {
			p.Logger.Warn("Location lookup failed", slog.String("text", entity.Text), slog.String("error", err.Error()))
			return
		}
		if match.Found() {
			_ = store.MergeLinkAttrs(ref, match.Links())
		}
	case model.LabelPerson, model.LabelDate:
		return
	default:
		if p.SubjectLookup == nil {
			return
		}
		uris, err := p.SubjectLookup(ctx, entity.Text)
		if err != nil {
			p.Logger.Warn("Subject lookup failed", slog.String("text", entity.Text), slog.String("error", err.Error()))
			return
		}
		_ = store.Update(ref, func(e *model.Entity) error {
			e.SubjectURIs = uris
			return nil
		})
	}
}

func (p *Pipeline) extractTopics(ctx context.Context, interview *model.Interview) []error {
	var problems []error

	if p.TopicExtractor != nil {
		interview.ChunkTopics = nil
		for _, chunk := range interview.Chunks {
			topics, err := p.TopicExtractor(ctx, chunk.Text)
			if err != nil {
				p.Logger.Warn("Topic extraction failed", slog.String("chunk_id", chunk.ID), slog.String("error", err.Error()))
				problems = append(problems, helper.ExternalLookup("extract topics "+chunk.ID, err))
				continue
			}
			interview.ChunkTopics = append(interview.ChunkTopics, model.ChunkTopics{ChunkID: chunk.ID, Topics: topics})
		}
		interview.Topics = AggregateTopics(interview.ChunkTopics, p.Config.TopicCount)
		p.Logger.Debug("Aggregated topics", slog.Any("topics", interview.Topics))
	}

	if p.LocationExtractor != nil {
		interview.ChunkLocations = nil
		for _, chunk := range interview.Chunks {
			var known []string
			for _, e := range interview.Entities.ByChunk(chunk.ID) {
				if e.Label == model.LabelLocation {
					known = append(known, e.Text)
				}
			}

			locations, err := p.LocationExtractor(ctx, chunk.Text, known)
			if err != nil {
				p.Logger.Warn("Location extraction failed", slog.String("chunk_id", chunk.ID), slog.String("error", err.Error()))
				problems = append(problems, helper.ExternalLookup("extract locations "+chunk.ID, err))
				continue
			}
			interview.ChunkLocations = append(interview.ChunkLocations, model.ChunkLocations{ChunkID: chunk.ID, Locations: locations})
		}
	}

	return problems
}
