package annotation

import (
	"encoding/json"

	"github.com/siherrmann/memories/core/pipeline"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

// reviewedScore is the score of reviewed entities whose record carries none.
const reviewedScore = 1.0

type region struct {
	entity  model.Entity
	primary bool
	invalid bool
	attrs   []model.ReviewRecord
}

// GroupRegions merges review records sharing a region id into one entity each,
// in order of first appearance of the region's labels record.
// Entities carry the global span, label, text and link attributes of the region.
// Spans are kept in the character offsets written by the review tool.
// Regions without a valid labels record are reported and left out.
func GroupRegions(records []model.ReviewRecord) ([]model.Entity, []error) {
	var problems []error
	regions := map[string]*region{}
	var order []string
	var seen []string

	for _, record := range records {
		r, ok := regions[record.ID]
		if !ok {
			r = &region{}
			regions[record.ID] = r
			seen = append(seen, record.ID)
		}

		switch record.Type {
		case model.ReviewTypeLabels:
			if r.primary {
				problems = append(problems, helper.MalformedInput("region %s has more than one labels record", record.ID))
				continue
			}
			r.primary = true
			entity, err := entityFromLabels(record)
			if err != nil {
				r.invalid = true
				problems = append(problems, err)
				continue
			}
			r.entity = entity
			order = append(order, record.ID)
		case model.ReviewTypeTextarea:
			r.attrs = append(r.attrs, record)
		default:
			problems = append(problems, helper.MalformedInput("region %s has record of unknown type %q", record.ID, record.Type))
		}
	}

	for _, id := range seen {
		if r := regions[id]; !r.primary {
			problems = append(problems, helper.MalformedInput("region %s has no labels record", id))
		}
	}

	entities := make([]model.Entity, 0, len(order))
	for _, id := range order {
		r := regions[id]
		for _, attr := range r.attrs {
			texts, ok := attr.TextList()
			if !ok {
				problems = append(problems, helper.MalformedInput("region %s textarea %q has no text list", id, attr.FromName))
				continue
			}
			if attr.FromName == model.LinkGTAASubject {
				r.entity.SubjectURIs = append(r.entity.SubjectURIs, texts...)
				continue
			}
			if len(texts) > 0 {
				r.entity.SetLink(attr.FromName, texts[0])
			}
		}
		entities = append(entities, r.entity)
	}
	return entities, problems
}

func entityFromLabels(record model.ReviewRecord) (model.Entity, error) {
	v := record.Value
	if v.Start == nil || v.End == nil {
		return model.Entity{}, helper.MalformedInput("region %s labels record has no span", record.ID)
	}
	if len(v.Labels) == 0 {
		return model.Entity{}, helper.MalformedInput("region %s labels record has no label", record.ID)
	}
	text, _ := record.TextString()

	score := reviewedScore
	if v.Score != nil {
		score = *v.Score
	}
	return model.Entity{
		Text:        text,
		Label:       v.Labels[0],
		GlobalStart: *v.Start,
		GlobalEnd:   *v.End,
		Score:       score,
	}, nil
}

// ImportCorrection rebuilds the entities of an interview from reviewed results.
// Reviewed spans count characters of the full text.
// Chunk id, local offsets and timestamps are derived from the global span,
// the entity text is taken from the full text.
// Entities that cannot be placed are reported and left out. The previous entities
// are archived in OriginalEntities of the returned copy, the input is not changed.
func ImportCorrection(interview *model.Interview, results []model.ReviewResult) (*model.Interview, []error, error) {
	if err := pipeline.CheckConcatenation(interview.FullText, interview.Chunks); err != nil {
		return nil, nil, err
	}

	var problems []error
	store := model.NewEntityStore()
	for _, result := range results {
		entities, groupProblems := GroupRegions(result.Result)
		problems = append(problems, groupProblems...)

		for _, e := range entities {
			start, okStart := model.ByteOffset(interview.FullText, e.GlobalStart)
			end, okEnd := model.ByteOffset(interview.FullText, e.GlobalEnd)
			if !okStart || !okEnd {
				problems = append(problems, helper.UnresolvedReference("entity %q span [%d,%d) is outside the text", e.Text, e.GlobalStart, e.GlobalEnd))
				continue
			}
			ref, ok := pipeline.LocateChunk(interview.Chunks, start)
			if !ok {
				problems = append(problems, helper.UnresolvedReference("entity %q at offset %d is in no chunk", e.Text, e.GlobalStart))
				continue
			}
			if end <= start || end > ref.Offset+ref.Length {
				problems = append(problems, helper.MalformedInput("entity %q span [%d,%d) does not fit chunk %s", e.Text, e.GlobalStart, e.GlobalEnd, ref.ID))
				continue
			}

			e.GlobalStart, e.GlobalEnd = start, end
			e.ChunkID = ref.ID
			e.LocalStart = e.GlobalStart - ref.Offset
			e.LocalEnd = e.GlobalEnd - ref.Offset
			e.Timestamps = ref.TimeRange
			e.Text = interview.FullText[e.GlobalStart:e.GlobalEnd]
			store.Append(e)
		}
	}
	pipeline.ResolveLines(store, pipeline.BuildLineTable(interview.Lines))

	corrected := *interview
	corrected.OriginalEntities = interview.Entities.All()
	corrected.Entities = store
	return &corrected, problems, nil
}

// ImportTask imports the annotations of a review task and keeps them
// as pass-through data on the returned interview.
func ImportTask(interview *model.Interview, task model.ReviewTask) (*model.Interview, []error, error) {
	corrected, problems, err := ImportCorrection(interview, task.Annotations)
	if err != nil {
		return nil, nil, err
	}
	raw, err := json.Marshal(task.Annotations)
	if err != nil {
		return nil, nil, helper.NewError("marshal review annotations", err)
	}
	corrected.ReviewAnnotations = raw
	return corrected, problems, nil
}

// ExportRegions writes every entity of the interview as a review region:
// one labels record plus one textarea record per link attribute and one
// for the subject uris. Spans count characters of the full text.
func ExportRegions(interview *model.Interview) []model.ReviewRecord {
	entities := interview.Entities.All()
	records := make([]model.ReviewRecord, 0, len(entities))
	for _, e := range entities {
		id := model.NewRegionID()
		labeled := e
		labeled.GlobalStart = model.CharOffset(interview.FullText, e.GlobalStart)
		labeled.GlobalEnd = model.CharOffset(interview.FullText, e.GlobalEnd)
		records = append(records, model.NewLabelsRecord(id, labeled))
		for _, key := range e.Links.Keys() {
			records = append(records, model.NewTextareaRecord(id, key, e.Links[key]))
		}
		if len(e.SubjectURIs) > 0 {
			records = append(records, model.NewTextareaRecord(id, model.LinkGTAASubject, e.SubjectURIs...))
		}
	}
	return records
}
