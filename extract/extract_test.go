package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const narratedReply = `Here is the analysis.

<connected_narrative>
Remote work removes the ambient learning juniors get from overhearing seniors.
</connected_narrative>

<growth_points>
- Hybrid onboarding programs
- Async code review as mentorship
</growth_points>

<ai_contributions>
- Added evidence: studies on apprenticeship learning
</ai_contributions>`

func TestExtract_AllFieldsPresent(t *testing.T) {
	fields, err := Extract(narratedReply, DefaultNarrationSchema())
	require.NoError(t, err)

	assert.Equal(t, "Remote work removes the ambient learning juniors get from overhearing seniors.", fields.Get(FieldNarrative))
	assert.Equal(t, "- Hybrid onboarding programs\n- Async code review as mentorship", fields.Get(FieldGrowthPoints))
	assert.Equal(t, "- Added evidence: studies on apprenticeship learning", fields.Get(FieldContributions))
	assert.Len(t, fields, 3)
}

func TestExtract_IsDeterministic(t *testing.T) {
	first, err := Extract(narratedReply, DefaultNarrationSchema())
	require.NoError(t, err)
	second, err := Extract(narratedReply, DefaultNarrationSchema())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_BlogStage(t *testing.T) {
	fields, err := Extract("noise <styled_draft>\n# Title\n\nBody\n</styled_draft> trailing", DefaultBlogSchema())
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", fields.Get(FieldStyledDraft))
}

func TestExtract_ValidNestingAlwaysSucceeds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FieldMap
	}{
		{
			name: "empty contributions",
			raw:  "<connected_narrative>story</connected_narrative>\n<growth_points>- a</growth_points>\n<ai_contributions></ai_contributions>",
			want: FieldMap{FieldNarrative: "story", FieldGrowthPoints: "- a", FieldContributions: ""},
		},
		{
			name: "whitespace only body",
			raw:  "<connected_narrative>  </connected_narrative><growth_points>g</growth_points><ai_contributions>c</ai_contributions>",
			want: FieldMap{FieldNarrative: "", FieldGrowthPoints: "g", FieldContributions: "c"},
		},
		{
			name: "repeated pair takes the first",
			raw:  "<connected_narrative>a</connected_narrative><connected_narrative>b</connected_narrative><growth_points>g</growth_points><ai_contributions>c</ai_contributions>",
			want: FieldMap{FieldNarrative: "a", FieldGrowthPoints: "g", FieldContributions: "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := Extract(tt.raw, DefaultNarrationSchema())
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields)
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  Kind
		field string
	}{
		{
			name:  "missing growth points",
			raw:   "<connected_narrative>n</connected_narrative><ai_contributions>c</ai_contributions>",
			kind:  MissingField,
			field: FieldGrowthPoints,
		},
		{
			name:  "first failing field in schema order",
			raw:   "<growth_points>g</growth_points>",
			kind:  MissingField,
			field: FieldNarrative,
		},
		{
			name:  "unclosed marker",
			raw:   "<connected_narrative>n<growth_points>g</growth_points><ai_contributions>c</ai_contributions>",
			kind:  MalformedField,
			field: FieldNarrative,
		},
		{
			name:  "close before open",
			raw:   "</connected_narrative>n<connected_narrative><growth_points>g</growth_points><ai_contributions>c</ai_contributions>",
			kind:  MalformedField,
			field: FieldNarrative,
		},
		{
			name:  "pair nested in itself",
			raw:   "<connected_narrative><connected_narrative>n</connected_narrative></connected_narrative><growth_points>g</growth_points><ai_contributions>c</ai_contributions>",
			kind:  MalformedField,
			field: FieldNarrative,
		},
		{
			name:  "nested field",
			raw:   "<connected_narrative>n <growth_points>g</growth_points></connected_narrative><ai_contributions>c</ai_contributions>",
			kind:  MalformedField,
			field: FieldGrowthPoints,
		},
		{
			name:  "crossing fields",
			raw:   "<connected_narrative>n <growth_points>g</connected_narrative></growth_points><ai_contributions>c</ai_contributions>",
			kind:  MalformedField,
			field: FieldGrowthPoints,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := Extract(tt.raw, DefaultNarrationSchema())
			require.Error(t, err)
			assert.Nil(t, fields)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.field, fe.Field)

			if tt.kind == MissingField {
				assert.ErrorIs(t, err, ErrMissingField)
				assert.NotErrorIs(t, err, ErrMalformedField)
			} else {
				assert.ErrorIs(t, err, ErrMalformedField)
				assert.NotErrorIs(t, err, ErrMissingField)
			}
		})
	}
}

func TestFieldError_MessageNamesField(t *testing.T) {
	_, err := Extract("no tags at all", DefaultBlogSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), FieldStyledDraft)
	assert.Contains(t, err.Error(), "<styled_draft>")
}

func TestNewSchema_Validation(t *testing.T) {
	_, err := NewSchema("", Field{Name: "a", Tag: "a"})
	assert.Error(t, err)

	_, err = NewSchema("s")
	assert.Error(t, err)

	_, err = NewSchema("s", Field{Name: "a", Tag: "x"}, Field{Name: "b", Tag: "x"})
	assert.Error(t, err)

	_, err = NewSchema("s", Field{Name: "a", Tag: "x"}, Field{Name: "a", Tag: "y"})
	assert.Error(t, err)

	_, err = NewSchema("s", Field{Name: "a", Tag: "<x>"})
	assert.Error(t, err)

	s, err := NarrationSchema("n", "g", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "g", "c"}, s.Tags())
	f, ok := s.Field(FieldGrowthPoints)
	require.True(t, ok)
	assert.Equal(t, "<g>", f.Open())
	assert.Equal(t, "</g>", f.Close())
}
