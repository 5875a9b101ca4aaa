package model

import "encoding/json"

// Web annotation vocabulary.
const (
	AnnotationContext = "http://www.w3.org/ns/anno.jsonld"
	AnnotationType    = "Annotation"

	BodyTextual  = "TextualBody"
	BodySpecific = "SpecificResource"

	PurposeClassifying = "classifying"
	PurposeIdentifying = "identifying"
	PurposeTagging     = "tagging"

	SelectorTextQuote = "TextQuoteSelector"
	SelectorFragment  = "FragmentSelector"
	MediaFragments    = "http://www.w3.org/TR/media-frags/"

	SourceTypeVideo   = "Video"
	SourceTypePlace   = "Place"
	SourceTypeConcept = "Concept"
)

// Annotation is a W3C web annotation.
type Annotation struct {
	Context string `json:"@context"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Body    []Body `json:"body"`
	Target  Target `json:"target"`
}

// Body is one body item of an annotation.
type Body struct {
	Type    string      `json:"type"`
	Value   string      `json:"value,omitempty"`
	Purpose string      `json:"purpose"`
	Source  *BodySource `json:"source,omitempty"`
}

// BodySource is the linked resource of a SpecificResource body.
type BodySource struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Target anchors an annotation to its source.
type Target struct {
	Source   TargetSource `json:"source"`
	Selector []Selector   `json:"selector,omitempty"`
}

// TargetSource is either a media object reference or, when Bare is set,
// an identifier-only object.
type TargetSource struct {
	ID        string
	Type      string
	Name      string
	ContentID string
	Bare      bool
}

// MarshalJSON writes {id} for bare sources and the full media reference otherwise.
func (s TargetSource) MarshalJSON() ([]byte, error) {
	if s.Bare {
		return json.Marshal(struct {
			ID string `json:"id"`
		}{s.ID})
	}
	return json.Marshal(struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Name      string `json:"name"`
		ContentID string `json:"content_id"`
	}{s.ID, s.Type, s.Name, s.ContentID})
}

// UnmarshalJSON marks sources without a type as bare.
func (s *TargetSource) UnmarshalJSON(b []byte) error {
	var in struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Name      string `json:"name"`
		ContentID string `json:"content_id"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = TargetSource{ID: in.ID, Type: in.Type, Name: in.Name, ContentID: in.ContentID, Bare: in.Type == ""}
	return nil
}

// Selector is a text quote or media fragment selector.
type Selector struct {
	Type       string
	Exact      string
	Prefix     string
	Suffix     string
	ConformsTo string
	Value      string
}

// NewTextQuoteSelector creates a text quote selector.
func NewTextQuoteSelector(prefix, exact, suffix string) Selector {
	return Selector{Type: SelectorTextQuote, Exact: exact, Prefix: prefix, Suffix: suffix}
}

// NewFragmentSelector creates a media fragment selector for a time range.
func NewFragmentSelector(t TimeRange) Selector {
	return Selector{Type: SelectorFragment, ConformsTo: MediaFragments, Value: t.Fragment()}
}

// MarshalJSON writes only the fields of the selector's type.
// A text quote selector always carries exact, prefix and suffix.
func (s Selector) MarshalJSON() ([]byte, error) {
	if s.Type == SelectorFragment {
		return json.Marshal(struct {
			Type       string `json:"type"`
			ConformsTo string `json:"conformsTo"`
			Value      string `json:"value"`
		}{s.Type, s.ConformsTo, s.Value})
	}
	return json.Marshal(struct {
		Type   string `json:"type"`
		Exact  string `json:"exact"`
		Prefix string `json:"prefix"`
		Suffix string `json:"suffix"`
	}{s.Type, s.Exact, s.Prefix, s.Suffix})
}

// UnmarshalJSON reads either selector type.
func (s *Selector) UnmarshalJSON(b []byte) error {
	var in struct {
		Type       string `json:"type"`
		Exact      string `json:"exact"`
		Prefix     string `json:"prefix"`
		Suffix     string `json:"suffix"`
		ConformsTo string `json:"conformsTo"`
		Value      string `json:"value"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = Selector(in)
	return nil
}
