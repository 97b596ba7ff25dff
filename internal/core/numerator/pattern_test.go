package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/core/apperror"
)

var jan10 = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func TestDefaultPattern_Format(t *testing.T) {
	p := DefaultPattern("PO")

	got, err := p.Format(jan10, 1)
	require.NoError(t, err)
	assert.Equal(t, "PO24010001", got)

	got, err = p.Format(jan10, 12345)
	require.NoError(t, err)
	assert.Equal(t, "PO240112345", got, "counter grows past width")
}

func TestPattern_Affixes(t *testing.T) {
	p := Pattern{Segments: []Segment{
		{Type: SegmentText, Value: "PO-"},
		{Type: SegmentDate, Value: "yyyy-MM"},
		{Type: SegmentText, Value: "-"},
		{Type: SegmentRunning, Width: 3},
		{Type: SegmentText, Value: "/"},
		{Type: SegmentDate, Value: "dd"},
	}}

	prefix, suffix, err := p.Affixes(jan10)
	require.NoError(t, err)
	assert.Equal(t, "PO-2024-01-", prefix)
	assert.Equal(t, "/10", suffix)

	got, err := p.Format(jan10, 7)
	require.NoError(t, err)
	assert.Equal(t, "PO-2024-01-007/10", got)
}

func TestPattern_ParseRunning(t *testing.T) {
	p := DefaultPattern("PO")

	n, err := p.ParseRunning("PO24010042", "PO2401", "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = p.ParseRunning("PO2401ABCD", "PO2401", "")
	assert.Error(t, err)

	_, err = p.ParseRunning("GR24010001", "PO2401", "")
	assert.Error(t, err)
}

func TestPattern_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
	}{
		{"no date", Pattern{Segments: []Segment{{Type: SegmentText, Value: "PO"}, {Type: SegmentRunning, Width: 4}}}},
		{"no running", Pattern{Segments: []Segment{{Type: SegmentDate, Value: "yyMM"}}}},
		{"two running", Pattern{Segments: []Segment{{Type: SegmentDate, Value: "yy"}, {Type: SegmentRunning, Width: 2}, {Type: SegmentRunning, Width: 2}}}},
		{"zero width", Pattern{Segments: []Segment{{Type: SegmentDate, Value: "yy"}, {Type: SegmentRunning}}}},
		{"bad token", Pattern{Segments: []Segment{{Type: SegmentDate, Value: "YYYY"}, {Type: SegmentRunning, Width: 4}}}},
		{"unknown type", Pattern{Segments: []Segment{{Type: "hash"}, {Type: SegmentDate, Value: "yy"}, {Type: SegmentRunning, Width: 4}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.Validate()
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
		})
	}

	assert.NoError(t, DefaultPattern("PO").Validate())
}
