package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/siherrmann/memories/helper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultSkipList holds location names too general to link.
var DefaultSkipList = []string{"Nederland", "Europa"}

var gazetteerColumns = []string{"preflabel", "wikidata", "adamlink_uri", "longitude", "latitude"}

// LocationLinker matches location mentions against a gazetteer of streets and buildings.
type LocationLinker struct {
	entries   map[string]LocationMatch
	labels    []string
	skip      map[string]bool
	fuzzy     bool
	threshold int
}

// NewLocationLinker reads a gazetteer CSV with the columns
// preflabel, wikidata, adamlink_uri, longitude and latitude.
// With fuzzyMatch the best entry scoring at least threshold (0 to 100) is used.
func NewLocationLinker(r io.Reader, fuzzyMatch bool, threshold int) (*LocationLinker, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, helper.NewError("read gazetteer header", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range gazetteerColumns {
		if _, ok := columns[name]; !ok {
			return nil, helper.NewError("read gazetteer header", fmt.Errorf("missing column %q", name))
		}
	}

	linker := &LocationLinker{
		entries:   map[string]LocationMatch{},
		skip:      map[string]bool{},
		fuzzy:     fuzzyMatch,
		threshold: threshold,
	}
	for _, name := range DefaultSkipList {
		linker.skip[name] = true
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, helper.NewError("read gazetteer row", err)
		}

		field := func(name string) string {
			if i := columns[name]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		match := LocationMatch{
			PrefLabel: field("preflabel"),
			Wikidata:  field("wikidata"),
			Adamlink:  field("adamlink_uri"),
			Longitude: field("longitude"),
			Latitude:  field("latitude"),
		}
		if match.PrefLabel == "" {
			continue
		}
		if _, ok := linker.entries[match.PrefLabel]; !ok {
			linker.labels = append(linker.labels, match.PrefLabel)
		}
		// Later rows with the same label win
		linker.entries[match.PrefLabel] = match
	}

	return linker, nil
}

// OpenLocationLinker reads the gazetteer from a file.
func OpenLocationLinker(path string, fuzzyMatch bool, threshold int) (*LocationLinker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, helper.NewError("open gazetteer", err)
	}
	defer f.Close()

	return NewLocationLinker(f, fuzzyMatch, threshold)
}

// Len returns the number of gazetteer entries.
func (l *LocationLinker) Len() int {
	return len(l.entries)
}

// Lookup title-cases the mention and returns its gazetteer entry.
// Skipped and unmatched mentions return a zero match.
func (l *LocationLinker) Lookup(text string) (LocationMatch, error) {
	// A Caser is stateful, so every lookup gets its own
	location := cases.Title(language.Dutch).String(strings.TrimSpace(text))
	if location == "" || l.skip[location] {
		return LocationMatch{}, nil
	}

	if !l.fuzzy {
		return l.entries[location], nil
	}

	best, bestScore := "", -1
	for _, label := range l.labels {
		if score := similarity(location, label); score > bestScore {
			best, bestScore = label, score
		}
	}
	if best == "" || bestScore < l.threshold {
		return LocationMatch{}, nil
	}
	return l.entries[best], nil
}

// similarity scores two strings from 0 to 100 by normalized edit distance.
func similarity(a, b string) int {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	return int(100 * (1 - float64(distance)/float64(longest)))
}

// DefaultThesaurusEndpoint is the GraphQL endpoint of the term network.
const DefaultThesaurusEndpoint = "https://termennetwerk-api.netwerkdigitaalerfgoed.nl/graphql"

const termsQuery = `query Terms($sources: [ID]!, $query: String!) {
  terms(sources: $sources, query: $query) {
    source { uri name }
    result {
      __typename
      ... on Terms { terms { uri prefLabel } }
      ... on Error { message }
    }
  }
}`

// SubjectLinker finds thesaurus subjects for mentions over a GraphQL term network.
type SubjectLinker struct {
	endpoint string
	sources  []string
	client   *http.Client
	logger   *slog.Logger
}

// NewSubjectLinker creates a linker querying every source uri separately.
func NewSubjectLinker(endpoint string, sources []string, client *http.Client, logger *slog.Logger) *SubjectLinker {
	if endpoint == "" {
		endpoint = DefaultThesaurusEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubjectLinker{endpoint: endpoint, sources: sources, client: client, logger: logger}
}

type termsRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type termsResponse struct {
	Data struct {
		Terms []struct {
			Result struct {
				Typename string `json:"__typename"`
				Terms    []struct {
					URI string `json:"uri"`
				} `json:"terms"`
				Message string `json:"message"`
			} `json:"result"`
		} `json:"terms"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Lookup returns the union of subject uris of all sources in first-seen order.
// Each source is queried with a fresh response, a failing source contributes nothing.
// It errors only when every source failed.
func (l *SubjectLinker) Lookup(ctx context.Context, text string) ([]string, error) {
	var uris []string
	seen := map[string]bool{}
	var errs []error

	for _, source := range l.sources {
		found, err := l.query(ctx, source, text)
		if err != nil {
			l.logger.Warn("Subject lookup failed", slog.String("source", source), slog.String("text", text), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		for _, uri := range found {
			if uri != "" && !seen[uri] {
				seen[uri] = true
				uris = append(uris, uri)
			}
		}
	}

	if len(errs) > 0 && len(errs) == len(l.sources) {
		return nil, helper.ExternalLookup("subject lookup", errors.Join(errs...))
	}
	return uris, nil
}

func (l *SubjectLinker) query(ctx context.Context, source string, text string) ([]string, error) {
	body, err := json.Marshal(termsRequest{
		Query:     termsQuery,
		Variables: map[string]any{"sources": []string{source}, "query": text},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var response termsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", response.Errors[0].Message)
	}

	var uris []string
	for _, term := range response.Data.Terms {
		if term.Result.Typename != "Terms" {
			continue
		}
		for _, item := range term.Result.Terms {
			uris = append(uris, item.URI)
		}
	}
	return uris, nil
}
