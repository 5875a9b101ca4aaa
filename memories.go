package memories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/memories/core/annotation"
	"github.com/siherrmann/memories/core/pipeline"
	"github.com/siherrmann/memories/core/retrieval"
	"github.com/siherrmann/memories/database"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	loadSql "github.com/siherrmann/memories/sql"
)

// AnnotationsFileName is the name of the web annotation file written next to the interview files.
const AnnotationsFileName = "annotations.jsonld"

// Memories processes, reviews, exports and searches oral-history interviews.
// The database handlers are nil when it runs without persistence.
type Memories struct {
	Config      model.Configuration
	DB          *helper.Database
	Interviews  *database.InterviewsDBHandler
	Chunks      *database.ChunksDBHandler
	Entities    *database.EntitiesDBHandler
	Pipeline    *pipeline.Pipeline    // Processing pipeline, see UseDefaultPipeline
	Generator   *annotation.Generator // Web annotation generator
	Engine      *retrieval.Engine     // Fragment search over stored interviews
	Transcriber pipeline.TranscribeFunc
	// Logging
	log *slog.Logger
}

// Job is one interview of a batch with its raw transcription
type Job struct {
	Interview *model.Interview
	Raw       json.RawMessage
}

// BatchResult is the outcome of one job of a batch
type BatchResult struct {
	Label  string
	Result *pipeline.ProcessingResult
	Err    error
}

// NewMemories creates a new Memories instance.
// With a nil database configuration nothing is persisted and FindFragments is unavailable.
func NewMemories(config model.Configuration, dbConfig *helper.DatabaseConfiguration) (*Memories, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	m := &Memories{
		Config:    config,
		Generator: annotation.NewGenerator(nil, config.ContextLength, logger),
		log:       logger,
	}

	if dbConfig == nil {
		return m, nil
	}

	// Initialize database
	db, err := helper.NewDatabase("memories", dbConfig, logger)
	if err != nil {
		return nil, err
	}
	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Interviews first, chunks and entities reference them
	// force=false to not reload if functions already exist
	interviews, err := database.NewInterviewsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create interviews handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	m.DB = db
	m.Interviews = interviews
	m.Chunks = chunks
	m.Entities = entities
	m.Engine = retrieval.NewEngine(chunks, entities)
	return m, nil
}

// Close closes the database connection
func (m *Memories) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// SetLogger replaces the logger of the instance and its components
func (m *Memories) SetLogger(logger *slog.Logger) {
	m.log = logger
	m.Generator.Logger = logger
	if m.Pipeline != nil {
		m.Pipeline.Logger = logger
	}
}

// SetPipeline sets the processing pipeline
func (m *Memories) SetPipeline(p *pipeline.Pipeline) {
	m.Pipeline = p
}

// SetMediaResolver sets the media lookup used for annotation targets
func (m *Memories) SetMediaResolver(resolve annotation.MediaResolveFunc) {
	m.Generator.Resolve = resolve
}

// SetTranscriber sets the audio transcriber used by TranscribeInterview
func (m *Memories) SetTranscriber(transcribe pipeline.TranscribeFunc) {
	m.Transcriber = transcribe
}

// UseDefaultPipeline builds the pipeline from the configuration:
// the configured chunker and NER model, the gazetteer and thesaurus linkers
// when configured, language model topics when enabled and the sentence
// embedder when an embedding model is set.
func (m *Memories) UseDefaultPipeline() error {
	chunker, err := pipeline.NewChunker(m.Config)
	if err != nil {
		return helper.NewError("create chunker", err)
	}

	extractor, err := pipeline.NEREntityExtractor(m.Config.NERModel)
	if err != nil {
		return helper.NewError("create entity extractor", err)
	}

	p := pipeline.NewPipeline(m.Config, chunker, extractor, m.log)

	if m.Config.GazetteerPath != "" {
		linker, err := pipeline.OpenLocationLinker(m.Config.GazetteerPath, m.Config.FuzzySearchLocations, m.Config.FuzzyThreshold)
		if err != nil {
			return helper.NewError("create location linker", err)
		}
		p.SetLocationLookup(linker.Lookup)
	}

	if len(m.Config.ThesaurusURIs) > 0 {
		linker := pipeline.NewSubjectLinker(m.Config.ThesaurusEndpoint, m.Config.ThesaurusURIs, nil, m.log)
		p.SetSubjectLookup(linker.Lookup)
	}

	if m.Config.IncludeLLMTopics {
		llm, err := pipeline.NewLLMExtractor(m.Config.LLMAPIKey, m.Config.LLMBaseURL, m.Config.LLMModel)
		if err != nil {
			return helper.NewError("create llm extractor", err)
		}
		p.SetTopicExtractor(llm.Topics)
		p.SetLocationExtractor(llm.Locations)
	}

	if m.Config.EmbeddingModel != "" {
		embedder, err := pipeline.SentenceEmbedder(m.Config.EmbeddingModel)
		if err != nil {
			return helper.NewError("create embedder", err)
		}
		p.SetEmbedder(embedder)
	}

	m.Pipeline = p
	return nil
}

// ProcessInterview runs the pipeline over a raw transcription and stores the
// result when a database is configured.
// Per-item problems are part of the result, the error is fatal for the interview.
func (m *Memories) ProcessInterview(ctx context.Context, interview *model.Interview, raw json.RawMessage) (*pipeline.ProcessingResult, error) {
	if m.Pipeline == nil {
		return nil, helper.NewError("process interview", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	if interview == nil {
		return nil, helper.NewError("process interview", fmt.Errorf("interview is nil"))
	}

	result, err := m.Pipeline.Process(ctx, interview, raw)
	if err != nil {
		return nil, helper.NewError(fmt.Sprintf("process interview %s", interview.Label), err)
	}

	if m.Interviews != nil {
		record, err := m.saveInterview(interview)
		if err != nil {
			return nil, err
		}
		if err := m.saveChunks(record, interview, result.Embeddings); err != nil {
			return nil, err
		}
		if err := m.saveEntities(record, interview); err != nil {
			return nil, err
		}
		m.log.Info("Stored interview", slog.String("label", interview.Label), slog.String("rid", record.RID.String()))
	}

	return result, nil
}

// ProcessBatch processes the jobs concurrently, at most MaxParallel at a time.
// A failing interview does not affect the others, results keep the job order.
func (m *Memories) ProcessBatch(ctx context.Context, jobs []Job) []BatchResult {
	results := make([]BatchResult, len(jobs))
	semaphore := make(chan struct{}, m.Config.MaxParallel)
	var wg sync.WaitGroup

	for i, job := range jobs {
		label := ""
		if job.Interview != nil {
			label = job.Interview.Label
		}
		results[i].Label = label

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}

			result, err := m.ProcessInterview(ctx, job.Interview, job.Raw)
			if err != nil {
				m.log.Error("Processing interview failed", slog.String("label", results[i].Label), slog.String("error", err.Error()))
				results[i].Err = err
				return
			}
			results[i].Result = result
		}(i, job)
	}

	wg.Wait()
	return results
}

// TranscribeInterview transcribes an audio file and processes the transcription.
// An audio file whose hash is already stored is not transcribed again,
// the stored interview is returned instead.
func (m *Memories) TranscribeInterview(ctx context.Context, interview *model.Interview, audioPath string) (*pipeline.ProcessingResult, error) {
	if m.Transcriber == nil {
		return nil, helper.NewError("transcribe interview", fmt.Errorf("transcriber not set, use SetTranscriber() first"))
	}

	hash, err := helper.HashFile(audioPath)
	if err != nil {
		return nil, helper.NewError("hash audio", err)
	}

	if m.Interviews != nil {
		existing, err := m.Interviews.SelectInterviewByHash(hash)
		if err != nil {
			return nil, helper.NewError("select interview by hash", err)
		}
		if existing != nil {
			m.log.Info("Audio already processed", slog.String("label", existing.Label), slog.String("hash", hash))
			stored, err := recordInterview(existing)
			if err != nil {
				return nil, err
			}
			return &pipeline.ProcessingResult{Interview: stored, Embeddings: map[string][]float32{}}, nil
		}
	}

	words, err := m.Transcriber(ctx, audioPath)
	if err != nil {
		return nil, helper.NewError("transcribe", helper.ExternalLookup("transcribe "+filepath.Base(audioPath), err))
	}

	raw, err := json.Marshal(words)
	if err != nil {
		return nil, helper.NewError("encode transcription", err)
	}

	interview.SourceHash = hash
	return m.ProcessInterview(ctx, interview, raw)
}

// ImportReview applies a reviewed task to the interview and stores the
// corrected entities when a database is configured.
// The interview passed in is left unchanged.
func (m *Memories) ImportReview(ctx context.Context, interview *model.Interview, task model.ReviewTask) (*model.Interview, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	corrected, problems, err := annotation.ImportTask(interview, task)
	if err != nil {
		return nil, problems, helper.NewError(fmt.Sprintf("import review %s", interview.Label), err)
	}

	m.log.Info(
		"Imported review",
		slog.String("label", corrected.Label),
		slog.Int("entities", corrected.Entities.Len()),
		slog.Int("original_entities", len(corrected.OriginalEntities)),
		slog.Int("problems", len(problems)),
	)

	if m.Interviews != nil {
		record, err := m.saveInterview(corrected)
		if err != nil {
			return nil, problems, err
		}
		if err := m.saveEntities(record, corrected); err != nil {
			return nil, problems, err
		}
	}

	return corrected, problems, nil
}

// Export converts the interview into its file shape with review predictions
// and generates its web annotations
func (m *Memories) Export(ctx context.Context, interview *model.Interview) (*model.InterviewFile, []model.Annotation, error) {
	file := interview.ToFile(annotation.ExportRegions(interview))

	annotations, err := m.Generator.Generate(ctx, interview, interview.OriginalURI, m.Config.TextOnly)
	if err != nil {
		return nil, nil, helper.NewError(fmt.Sprintf("generate annotations %s", interview.Label), err)
	}

	return file, annotations, nil
}

// WriteExport exports the interview into dir as <label>.json and the
// web annotations as annotations.jsonld. It returns both paths.
func (m *Memories) WriteExport(ctx context.Context, dir string, interview *model.Interview) (string, string, error) {
	file, annotations, err := m.Export(ctx, interview)
	if err != nil {
		return "", "", err
	}

	filePath, err := file.WriteFile(dir)
	if err != nil {
		return "", "", err
	}

	annotationsPath := filepath.Join(dir, AnnotationsFileName)
	f, err := os.Create(annotationsPath)
	if err != nil {
		return "", "", helper.NewError("create annotations file", err)
	}
	defer f.Close()

	if err := annotation.WriteAnnotations(f, annotations); err != nil {
		return "", "", helper.NewError("write annotations", err)
	}

	m.log.Info("Exported interview", slog.String("file", filePath), slog.String("annotations", annotationsPath), slog.Int("count", len(annotations)))
	return filePath, annotationsPath, nil
}

// LoadInterview restores a stored interview
func (m *Memories) LoadInterview(rid uuid.UUID) (*model.Interview, error) {
	if m.Interviews == nil {
		return nil, helper.NewError("load interview", fmt.Errorf("no database configured"))
	}

	record, err := m.Interviews.SelectInterview(rid)
	if err != nil {
		return nil, helper.NewError("select interview", err)
	}
	return recordInterview(record)
}

// FindFragments finds the stored chunks mentioning an entity text,
// with their surrounding chunks as configured
func (m *Memories) FindFragments(ctx context.Context, text string, config *model.QueryConfig) ([]*model.Fragment, error) {
	if m.Engine == nil {
		return nil, helper.NewError("find fragments", fmt.Errorf("no database configured"))
	}
	if config == nil {
		defaults := model.DefaultQueryConfig()
		config = &defaults
	}

	strategy := retrieval.NewContextualStrategy(m.Engine, retrieval.NewEntityStrategy(m.Engine))
	return strategy.Retrieve(ctx, retrieval.Query{Text: text}, config)
}

// SearchFragments combines entity matches of the query with chunk similarity.
// Without an embedder only entity matches are used.
func (m *Memories) SearchFragments(ctx context.Context, query string, config *model.QueryConfig) ([]*model.Fragment, error) {
	if m.Engine == nil {
		return nil, helper.NewError("search fragments", fmt.Errorf("no database configured"))
	}
	if config == nil {
		defaults := model.DefaultQueryConfig()
		config = &defaults
	}

	q := retrieval.Query{Text: query}
	if m.Pipeline != nil && m.Pipeline.Embedder != nil {
		embedding, err := m.Pipeline.Embedder(query)
		if err != nil {
			return nil, helper.NewError("generate embedding", err)
		}
		q.Embedding = embedding
	}

	strategy := retrieval.NewContextualStrategy(m.Engine, retrieval.NewHybridStrategy(m.Engine))
	return strategy.Retrieve(ctx, q, config)
}

// ChangeIndexType changes the chunk embedding index between HNSW and IVFFlat
func (m *Memories) ChangeIndexType(ctx context.Context, indexType database.IndexType, params database.IndexParams) error {
	if m.Chunks == nil {
		return helper.NewError("change index type", fmt.Errorf("no database configured"))
	}
	return m.Chunks.ChangeIndexType(ctx, indexType, params)
}

// saveInterview inserts a new interview or updates a stored one and sets its RID
func (m *Memories) saveInterview(interview *model.Interview) (*model.InterviewRecord, error) {
	record := &model.InterviewRecord{
		RID:         interview.RID,
		Label:       interview.Label,
		OriginalURI: interview.OriginalURI,
		SourceHash:  interview.SourceHash,
		Payload:     interview.ToFile(annotation.ExportRegions(interview)),
	}

	if interview.RID == uuid.Nil {
		if err := m.Interviews.InsertInterview(record); err != nil {
			return nil, helper.NewError("insert interview", err)
		}
	} else {
		if err := m.Interviews.UpdateInterview(record); err != nil {
			return nil, helper.NewError("update interview", err)
		}
	}

	interview.RID = record.RID
	return record, nil
}

// saveChunks replaces the stored chunks of an interview
func (m *Memories) saveChunks(record *model.InterviewRecord, interview *model.Interview, embeddings map[string][]float32) error {
	if err := m.Chunks.DeleteChunksByInterview(record.ID); err != nil {
		return helper.NewError("delete chunks", err)
	}

	for i, chunk := range interview.Chunks {
		err := m.Chunks.InsertChunk(&model.ChunkRecord{
			InterviewID: record.ID,
			ChunkIndex:  i,
			Chunk:       chunk,
			Embedding:   embeddings[chunk.ID],
		})
		if err != nil {
			return helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}
	return nil
}

// saveEntities replaces the stored entity mentions of an interview
func (m *Memories) saveEntities(record *model.InterviewRecord, interview *model.Interview) error {
	if err := m.Entities.DeleteEntitiesByInterview(record.ID); err != nil {
		return helper.NewError("delete entities", err)
	}

	for i, entity := range interview.Entities.All() {
		err := m.Entities.InsertEntity(&model.EntityRecord{InterviewID: record.ID, Entity: entity})
		if err != nil {
			return helper.NewError(fmt.Sprintf("insert entity %d", i), err)
		}
	}
	return nil
}

// recordInterview restores the interview held in a stored record
func recordInterview(record *model.InterviewRecord) (*model.Interview, error) {
	if record.Payload == nil {
		return nil, helper.NewError("restore interview", fmt.Errorf("interview %s has no payload", record.Label))
	}

	interview, err := record.Payload.Interview()
	if err != nil {
		return nil, helper.NewError("restore interview", err)
	}
	interview.RID = record.RID
	return interview, nil
}
