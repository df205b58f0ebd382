package extract

import "strings"

// FieldMap holds extracted field contents keyed by field name.
type FieldMap map[string]string

// Get returns the content of a field, or "" when absent.
func (m FieldMap) Get(name string) string { return m[name] }

type span struct {
	field Field
	start int // index of the opening marker
	end   int // index just past the closing marker
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// Extract parses a raw model reply into the fields required by schema.
//
// Every field must appear as <tag>content</tag> with balanced markers. When a
// pair is repeated the first one wins. Content is trimmed and may be empty.
// Field spans may not overlap. The first failing field in schema order is
// reported as a *FieldError. Extract is pure and deterministic.
func Extract(raw string, schema Schema) (FieldMap, error) {
	spans := make([]span, 0, len(schema.Fields))
	out := make(FieldMap, len(schema.Fields))
	for _, f := range schema.Fields {
		sp, content, err := locate(raw, f)
		if err != nil {
			return nil, err
		}
		spans = append(spans, sp)
		out[f.Name] = content
	}

	for i, sp := range spans {
		for j, other := range spans {
			if i == j || !sp.overlaps(other) {
				continue
			}
			// Report the span that starts inside the other one.
			if sp.start > other.start {
				return nil, malformed(sp.field, "<%s> is nested inside <%s>", sp.field.Tag, other.field.Tag)
			}
		}
	}
	return out, nil
}

func locate(raw string, f Field) (span, string, error) {
	openTag, closeTag := f.Open(), f.Close()
	nOpen := strings.Count(raw, openTag)
	nClose := strings.Count(raw, closeTag)
	switch {
	case nOpen == 0 && nClose == 0:
		return span{}, "", missing(f)
	case nOpen != nClose:
		return span{}, "", malformed(f, "unbalanced markers (%d %s, %d %s)", nOpen, openTag, nClose, closeTag)
	}

	start := strings.Index(raw, openTag)
	stop := strings.Index(raw, closeTag)
	if stop < start+len(openTag) {
		return span{}, "", malformed(f, "%s appears before %s", closeTag, openTag)
	}
	body := raw[start+len(openTag) : stop]
	if strings.Contains(body, openTag) {
		return span{}, "", malformed(f, "%s is nested inside itself", openTag)
	}
	content := strings.TrimSpace(body)
	return span{field: f, start: start, end: stop + len(closeTag)}, content, nil
}
