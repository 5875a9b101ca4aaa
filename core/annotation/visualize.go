package annotation

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/siherrmann/memories/model"
)

// DefaultHighlightScore is the minimum score of entities highlighted by RenderHTML.
const DefaultHighlightScore = 0.8

var labelStyles = map[string]string{
	model.LabelLocation: "background-color: lightcoral; color: black;",
	model.LabelPerson:   "background-color: lightgreen; color: black;",
	model.LabelFood:     "background-color: peachpuff; color: black;",
	model.LabelDate:     "background-color: lightblue; color: black;",
}

const defaultStyle = "background-color: white; color: black;"

var sentenceEnd = regexp.MustCompile(`([A-Za-z0-9])([.!?])(\s|$)`)

// RenderHTML writes a review page of the interview: every chunk with its time range,
// highlighted entities scoring above minScore and the aggregated topics.
func RenderHTML(w io.Writer, interview *model.Interview, minScore float64) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(interview.Label))
	b.WriteString("</title></head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(interview.Label))

	for _, chunk := range interview.Chunks {
		fmt.Fprintf(&b, "<h3>%s [%s]</h3>\n<p>", html.EscapeString(chunk.ID), chunk.TimeRange.Fragment())
		b.WriteString(highlight(chunk.Text, interview.Entities.ByChunk(chunk.ID), minScore))
		b.WriteString("</p>\n")
	}

	if len(interview.Topics) > 0 {
		b.WriteString("<h2>Topics</h2>\n<ul>\n")
		for _, topic := range interview.Topics {
			fmt.Fprintf(&b, "<li>%s (%d)</li>\n", html.EscapeString(topic.Label), topic.Count)
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</body>\n</html>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func highlight(text string, entities []model.Entity, minScore float64) string {
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].LocalStart < entities[j].LocalStart })

	var b strings.Builder
	pos := 0
	for _, e := range entities {
		if e.Score <= minScore || e.LocalStart < pos || e.LocalEnd > len(text) {
			continue
		}
		b.WriteString(plain(text[pos:e.LocalStart]))
		b.WriteString(span(text[e.LocalStart:e.LocalEnd], e))
		pos = e.LocalEnd
	}
	b.WriteString(plain(text[pos:]))
	return b.String()
}

func plain(text string) string {
	return sentenceEnd.ReplaceAllString(html.EscapeString(text), "$1$2<br>$3")
}

func span(text string, e model.Entity) string {
	style, ok := labelStyles[e.Label]
	if !ok {
		style = defaultStyle
	}
	out := fmt.Sprintf(`<span style="%s padding: 5px; border-radius: 3px;">%s</span>`, style, html.EscapeString(text))

	link := e.Links.Get(model.LinkAdamlink)
	if link == "" && len(e.SubjectURIs) > 0 {
		link = e.SubjectURIs[0]
	}
	if link == "" {
		return out
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(link), out)
}
