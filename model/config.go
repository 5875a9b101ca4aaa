package model

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/siherrmann/memories/helper"
)

// SegmentMode selects the chunking strategy.
type SegmentMode string

const (
	// LineMode chunks timed lines by word count.
	LineMode SegmentMode = "line"
	// WordMode chunks timed words or segments by duration.
	WordMode SegmentMode = "word"
)

// Configuration holds every processing option. It is loaded once and passed
// by value into the components that need it.
type Configuration struct {
	// Segmentation
	SegmentMode     SegmentMode `json:"segment_mode"`
	MaxChunkSize    int         `json:"max_chunk_size"` // words in line mode, seconds in word mode
	KeepSameSpeaker bool        `json:"keep_same_speaker"`

	// Extraction
	EntityLabels   []string `json:"entity_labels"`
	ModelThreshold float64  `json:"model_threshold"`
	PostThreshold  float64  `json:"post_threshold"`
	NERModel       string   `json:"ner_model"`
	EmbeddingModel string   `json:"embedding_model,omitempty"`
	EmbeddingDim   int      `json:"embedding_dim"`

	// Linking
	GazetteerPath        string   `json:"gazetteer_path,omitempty"`
	FuzzySearchLocations bool     `json:"fuzzy_search_locations"`
	FuzzyThreshold       int      `json:"fuzzy_threshold"` // 0 to 100
	ThesaurusEndpoint    string   `json:"thesaurus_endpoint,omitempty"`
	ThesaurusURIs        []string `json:"thesaurus_uris,omitempty"`

	// Language model
	IncludeLLMTopics bool   `json:"include_llm_topics"`
	LLMModel         string `json:"llm_model,omitempty"`
	LLMBaseURL       string `json:"llm_base_url,omitempty"`
	LLMAPIKey        string `json:"-"`

	// Export
	TopicCount    int  `json:"topic_count"`
	ContextLength int  `json:"context_length"`
	TextOnly      bool `json:"text_only"`

	// Batch
	MaxParallel int `json:"max_parallel"`
}

// DefaultConfiguration returns the configuration used when nothing is set.
func DefaultConfiguration() Configuration {
	return Configuration{
		SegmentMode:          LineMode,
		MaxChunkSize:         750,
		KeepSameSpeaker:      false,
		EntityLabels:         append([]string(nil), DefaultLabels...),
		ModelThreshold:       0.5,
		PostThreshold:        0.8,
		NERModel:             "KnightsAnalytics/distilbert-NER",
		EmbeddingDim:         384,
		FuzzySearchLocations: false,
		FuzzyThreshold:       90,
		IncludeLLMTopics:     false,
		TopicCount:           5,
		ContextLength:        30,
		TextOnly:             false,
		MaxParallel:          4,
	}
}

// NewConfiguration loads an optional .env file and applies MEMORIES_* environment
// variables over the defaults. The result is validated.
func NewConfiguration() (Configuration, error) {
	_ = godotenv.Load()

	config := DefaultConfiguration()
	var errs []string

	if v := os.Getenv("MEMORIES_SEGMENT_MODE"); v != "" {
		config.SegmentMode = SegmentMode(strings.ToLower(v))
	}
	config.MaxChunkSize = envInt("MEMORIES_MAX_CHUNK_SIZE", config.MaxChunkSize, &errs)
	config.KeepSameSpeaker = envBool("MEMORIES_KEEP_SAME_SPEAKER", config.KeepSameSpeaker, &errs)
	config.EntityLabels = envList("MEMORIES_ENTITY_LABELS", config.EntityLabels)
	config.ModelThreshold = envFloat("MEMORIES_MODEL_THRESHOLD", config.ModelThreshold, &errs)
	config.PostThreshold = envFloat("MEMORIES_POST_THRESHOLD", config.PostThreshold, &errs)
	config.NERModel = envString("MEMORIES_NER_MODEL", config.NERModel)
	config.EmbeddingModel = envString("MEMORIES_EMBEDDING_MODEL", config.EmbeddingModel)
	config.EmbeddingDim = envInt("MEMORIES_EMBEDDING_DIM", config.EmbeddingDim, &errs)
	config.GazetteerPath = envString("MEMORIES_GAZETTEER_PATH", config.GazetteerPath)
	config.FuzzySearchLocations = envBool("MEMORIES_FUZZY_SEARCH_LOCATIONS", config.FuzzySearchLocations, &errs)
	config.FuzzyThreshold = envInt("MEMORIES_FUZZY_THRESHOLD", config.FuzzyThreshold, &errs)
	config.ThesaurusEndpoint = envString("MEMORIES_THESAURUS_ENDPOINT", config.ThesaurusEndpoint)
	config.ThesaurusURIs = envList("MEMORIES_THESAURUS_URIS", config.ThesaurusURIs)
	config.IncludeLLMTopics = envBool("MEMORIES_INCLUDE_LLM_TOPICS", config.IncludeLLMTopics, &errs)
	config.LLMModel = envString("MEMORIES_LLM_MODEL", config.LLMModel)
	config.LLMBaseURL = envString("MEMORIES_LLM_BASE_URL", config.LLMBaseURL)
	config.LLMAPIKey = envString("MEMORIES_LLM_API_KEY", config.LLMAPIKey)
	config.TopicCount = envInt("MEMORIES_TOPIC_COUNT", config.TopicCount, &errs)
	config.ContextLength = envInt("MEMORIES_CONTEXT_LENGTH", config.ContextLength, &errs)
	config.TextOnly = envBool("MEMORIES_TEXT_ONLY", config.TextOnly, &errs)
	config.MaxParallel = envInt("MEMORIES_MAX_PARALLEL", config.MaxParallel, &errs)

	if len(errs) > 0 {
		return config, helper.NewError("configuration", fmt.Errorf("invalid environment variables: %s", strings.Join(errs, ", ")))
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks every option and reports all problems at once.
func (c Configuration) Validate() error {
	var problems []string
	if c.SegmentMode != LineMode && c.SegmentMode != WordMode {
		problems = append(problems, fmt.Sprintf("segment mode %q is not one of %q, %q", c.SegmentMode, LineMode, WordMode))
	}
	if c.MaxChunkSize <= 0 {
		problems = append(problems, "max chunk size must be positive")
	}
	if len(c.EntityLabels) == 0 {
		problems = append(problems, "at least one entity label is required")
	}
	if c.ModelThreshold < 0 || c.ModelThreshold > 1 {
		problems = append(problems, "model threshold must be within [0,1]")
	}
	if c.PostThreshold < 0 || c.PostThreshold > 1 {
		problems = append(problems, "post threshold must be within [0,1]")
	}
	if c.EmbeddingDim <= 0 {
		problems = append(problems, "embedding dimension must be positive")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		problems = append(problems, "fuzzy threshold must be within [0,100]")
	}
	if c.IncludeLLMTopics && c.LLMModel == "" {
		problems = append(problems, "llm topics need an llm model")
	}
	if len(c.ThesaurusURIs) > 0 && c.ThesaurusEndpoint == "" {
		problems = append(problems, "thesaurus uris need a thesaurus endpoint")
	}
	if c.TopicCount < 0 {
		problems = append(problems, "topic count must not be negative")
	}
	if c.ContextLength <= 0 {
		problems = append(problems, "context length must be positive")
	}
	if c.MaxParallel <= 0 {
		problems = append(problems, "max parallel must be positive")
	}

	if len(problems) > 0 {
		return helper.NewError("validate configuration", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

func envString(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, key)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64, errs *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, key)
		return fallback
	}
	return f
}

func envBool(key string, fallback bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, key)
		return fallback
	}
	return b
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
