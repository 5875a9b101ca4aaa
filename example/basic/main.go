package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/siherrmann/memories"
	"github.com/siherrmann/memories/core/pipeline"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

const sampleTranscript = `[
	{"text": "Ik ben geboren in Amsterdam, in de Jordaan.", "timestamp": [0.0, 4.2]},
	{"text": "Mijn vader was bakker en mijn moeder werkte op de markt.", "timestamp": [4.2, 9.8]},
	{"text": "In de oorlog zijn we naar Friesland gegaan.", "timestamp": [9.8, 13.5]},
	{"text": "Na de bevrijding kwamen we terug naar Amsterdam.", "timestamp": [13.5, 17.9]}
]`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Line mode with small chunks and the default sentence embedder
	config := model.DefaultConfiguration()
	config.MaxChunkSize = 20
	config.EmbeddingModel = pipeline.DefaultEmbeddingModel
	config.EmbeddingDim = pipeline.DefaultEmbeddingDimension
	config.TextOnly = true

	m, err := memories.NewMemories(config, dbConfig)
	if err != nil {
		log.Fatalf("Failed to create memories: %v", err)
	}
	defer m.Close()

	// Set up the default pipeline (NER model + embeddings)
	if err := m.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	interview := model.NewInterview("basic_example", "https://example.org/interviews/basic_example")

	fmt.Println("Processing interview...")
	result, err := m.ProcessInterview(context.Background(), interview, json.RawMessage(sampleTranscript))
	if err != nil {
		log.Fatalf("Failed to process interview: %v", err)
	}
	fmt.Printf("Interview stored with ID: %s\n", interview.RID)
	fmt.Printf("Chunks: %d, entities: %d, problems: %d\n", len(interview.Chunks), interview.Entities.Len(), len(result.Problems))

	for _, e := range interview.Entities.All() {
		fmt.Printf("  %-10s %-20s [%d,%d) %s\n", e.Label, e.Text, e.GlobalStart, e.GlobalEnd, e.Timestamps.Fragment())
	}

	// Export the review file and the web annotations
	dir, err := os.MkdirTemp("", "memories-example")
	if err != nil {
		log.Fatalf("Failed to create export directory: %v", err)
	}
	filePath, annotationsPath, err := m.WriteExport(context.Background(), dir, interview)
	if err != nil {
		log.Fatalf("Failed to export interview: %v", err)
	}
	fmt.Printf("\nWrote %s and %s\n", filePath, annotationsPath)

	// Find the fragments mentioning a place with one chunk of context
	queryConfig := model.DefaultQueryConfig()
	queryConfig.ContextChunks = 1

	fragments, err := m.FindFragments(context.Background(), "Amsterdam", &queryConfig)
	if err != nil {
		log.Fatalf("Failed to find fragments: %v", err)
	}

	fmt.Printf("\nFound %d fragments:\n", len(fragments))
	for i, fragment := range fragments {
		fmt.Printf("\n--- Fragment %d ---\n", i+1)
		fmt.Printf("Interview: %s\n", fragment.InterviewLabel)
		fmt.Printf("Time: %s\n", fragment.Chunk.TimeRange.Fragment())
		fmt.Printf("Text: %s\n", fragment.Chunk.Text)
		fmt.Printf("Context chunks: %d\n", len(fragment.Context))
	}

	fmt.Println("\nBasic example completed successfully!")
}
