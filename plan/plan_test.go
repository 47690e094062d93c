package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSegment(t *testing.T) {
	tests := []struct {
		in      string
		want    Segment
		wantErr bool
	}{
		{"buyer", Buyer, false},
		{"Shopper", Shopper, false},
		{" long_term ", LongTerm, false},
		{"vip", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSegment(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseSegment(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseSegment(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDefault_IsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	for _, seg := range Segments {
		assert.NotEmpty(t, p.Steps(seg), "segment %s has no steps", seg)
	}
	assert.Equal(t, []Step{{DayOffset: 365, Description: "Happy anniversary follow-up"}}, p.Steps(LongTerm))
}

func TestSteps_UnknownSegmentIsEmpty(t *testing.T) {
	assert.Empty(t, Default().Steps(Segment("vip")))
}

func TestValidate(t *testing.T) {
	t.Run("negative offset", func(t *testing.T) {
		p := Plans{Buyer: {{DayOffset: -1, Description: "x"}}}
		assert.ErrorContains(t, p.Validate(), "negative day offset")
	})
	t.Run("empty description", func(t *testing.T) {
		p := Plans{Buyer: {{DayOffset: 1, Description: "  "}}}
		assert.ErrorContains(t, p.Validate(), "empty description")
	})
	t.Run("duplicate description", func(t *testing.T) {
		p := Plans{Shopper: {{DayOffset: 1, Description: "call"}, {DayOffset: 2, Description: "call"}}}
		assert.ErrorContains(t, p.Validate(), "duplicate description")
	})
	t.Run("same description in different segments", func(t *testing.T) {
		p := Plans{
			Buyer:   {{DayOffset: 1, Description: "call"}},
			Shopper: {{DayOffset: 1, Description: "call"}},
		}
		assert.NoError(t, p.Validate())
	})
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(map[string][]Step{
		"buyer": {{DayOffset: 14, Description: "Two-week delivery check"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Step{{DayOffset: 14, Description: "Two-week delivery check"}}, p.Steps(Buyer))
	assert.Empty(t, p.Steps(Shopper))

	_, err = FromConfig(map[string][]Step{"vip": {{DayOffset: 1, Description: "x"}}})
	assert.ErrorContains(t, err, "unknown segment")
}

func TestMergeAndSorted(t *testing.T) {
	override := Plans{LongTerm: {
		{DayOffset: 730, Description: "Second anniversary"},
		{DayOffset: 365, Description: "First anniversary"},
	}}
	merged := Default().Merge(override)

	assert.Equal(t, Default().Steps(Buyer), merged.Steps(Buyer))
	sorted := merged.Sorted(LongTerm)
	require.Len(t, sorted, 2)
	assert.Equal(t, 365, sorted[0].DayOffset)
	assert.Equal(t, 730, sorted[1].DayOffset)
}
