package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Field names used by the two pipeline stages.
const (
	FieldNarrative     = "narrative"
	FieldGrowthPoints  = "growthPoints"
	FieldContributions = "aiContributions"
	FieldStyledDraft   = "styledDraft"
)

// Stage names, also used as human-readable labels in errors and history.
const (
	StageThoughtProcessing = "thought_processing"
	StageBlogConversion    = "blog_conversion"
)

// Field is one tagged section a model reply has to contain.
type Field struct {
	Name string
	Tag  string
}

// Open returns the opening marker, e.g. <styled_draft>.
func (f Field) Open() string { return "<" + f.Tag + ">" }

// Close returns the closing marker, e.g. </styled_draft>.
func (f Field) Close() string { return "</" + f.Tag + ">" }

// Schema is the ordered set of required fields for one stage.
// Schemas are built once at startup and never mutated.
type Schema struct {
	Name   string
	Fields []Field
}

// NewSchema validates names and tags and returns an immutable schema.
func NewSchema(name string, fields ...Field) (Schema, error) {
	if strings.TrimSpace(name) == "" {
		return Schema{}, errors.New("schema name is required")
	}
	if len(fields) == 0 {
		return Schema{}, fmt.Errorf("schema %s: at least one field is required", name)
	}
	names := make(map[string]bool, len(fields))
	tags := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Tag == "" {
			return Schema{}, fmt.Errorf("schema %s: field name and tag are required", name)
		}
		if strings.ContainsAny(f.Tag, "<>/ \t\n") {
			return Schema{}, fmt.Errorf("schema %s: tag %q contains marker characters", name, f.Tag)
		}
		if names[f.Name] {
			return Schema{}, fmt.Errorf("schema %s: duplicate field %s", name, f.Name)
		}
		if tags[f.Tag] {
			return Schema{}, fmt.Errorf("schema %s: duplicate tag %s", name, f.Tag)
		}
		names[f.Name] = true
		tags[f.Tag] = true
	}
	return Schema{Name: name, Fields: append([]Field(nil), fields...)}, nil
}

// NarrationSchema is the stage-1 schema with the given tag names.
func NarrationSchema(narrativeTag, growthTag, contributionsTag string) (Schema, error) {
	return NewSchema(StageThoughtProcessing,
		Field{Name: FieldNarrative, Tag: narrativeTag},
		Field{Name: FieldGrowthPoints, Tag: growthTag},
		Field{Name: FieldContributions, Tag: contributionsTag},
	)
}

// BlogSchema is the stage-2 schema with the given tag name.
func BlogSchema(styledDraftTag string) (Schema, error) {
	return NewSchema(StageBlogConversion, Field{Name: FieldStyledDraft, Tag: styledDraftTag})
}

// DefaultNarrationSchema uses connected_narrative, growth_points and ai_contributions.
func DefaultNarrationSchema() Schema {
	s, _ := NarrationSchema("connected_narrative", "growth_points", "ai_contributions")
	return s
}

// DefaultBlogSchema uses styled_draft.
func DefaultBlogSchema() Schema {
	s, _ := BlogSchema("styled_draft")
	return s
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Tags lists the marker names in schema order.
func (s Schema) Tags() []string {
	tags := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		tags = append(tags, f.Tag)
	}
	return tags
}
