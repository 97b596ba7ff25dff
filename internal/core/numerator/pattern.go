// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"procurement/internal/core/apperror"
)

// SegmentType identifies how a pattern segment is rendered.
type SegmentType string

const (
	SegmentText    SegmentType = "text"
	SegmentDate    SegmentType = "date"
	SegmentRunning SegmentType = "running"
)

// Segment is one piece of a document number.
// Text segments render Value literally, date segments format the reference
// date with Value (tokens yyyy, yy, MM, dd), running segments render the
// counter zero-padded to Width.
type Segment struct {
	Type  SegmentType `json:"type"`
	Value string      `json:"value,omitempty"`
	Width int         `json:"width,omitempty"`
}

// Pattern is an ordered list of segments describing a document number.
type Pattern struct {
	Segments []Segment `json:"segments"`
}

// DefaultPattern returns PREFIX + yyMM + 4 digit running number,
// e.g. PO24010001.
func DefaultPattern(prefix string) Pattern {
	return Pattern{Segments: []Segment{
		{Type: SegmentText, Value: prefix},
		{Type: SegmentDate, Value: "yyMM"},
		{Type: SegmentRunning, Width: 4},
	}}
}

// dateTokens are replaced longest first.
var dateTokens = []struct{ token, layout string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
}

const dateSeparators = "-/._"

// Validate checks that the pattern has at least one date segment and
// exactly one running segment.
func (p Pattern) Validate() error {
	var dates, running int
	for _, seg := range p.Segments {
		switch seg.Type {
		case SegmentText:
		case SegmentDate:
			if _, err := dateLayout(seg.Value); err != nil {
				return err
			}
			dates++
		case SegmentRunning:
			if seg.Width <= 0 {
				return invalidPattern("running segment width must be positive")
			}
			running++
		default:
			return invalidPattern(fmt.Sprintf("unknown segment type %q", seg.Type))
		}
	}
	if dates == 0 {
		return invalidPattern("pattern requires a date segment")
	}
	if running != 1 {
		return invalidPattern("pattern requires exactly one running segment")
	}
	return nil
}

// Affixes renders everything before and after the running segment for date.
// Numbers sharing both affixes belong to the same sequence.
func (p Pattern) Affixes(date time.Time) (prefix, suffix string, err error) {
	if err := p.Validate(); err != nil {
		return "", "", err
	}
	var b strings.Builder
	for _, seg := range p.Segments {
		switch seg.Type {
		case SegmentText:
			b.WriteString(seg.Value)
		case SegmentDate:
			layout, _ := dateLayout(seg.Value)
			b.WriteString(date.Format(layout))
		case SegmentRunning:
			prefix = b.String()
			b.Reset()
		}
	}
	return prefix, b.String(), nil
}

// Format renders the number for date and running counter n.
// Counters wider than Width are rendered in full.
func (p Pattern) Format(date time.Time, n int64) (string, error) {
	prefix, suffix, err := p.Affixes(date)
	if err != nil {
		return "", err
	}
	return prefix + fmt.Sprintf("%0*d", p.runningWidth(), n) + suffix, nil
}

// ParseRunning extracts the running counter from number.
func (p Pattern) ParseRunning(number, prefix, suffix string) (int64, error) {
	if !strings.HasPrefix(number, prefix) || !strings.HasSuffix(number, suffix) || len(number) < len(prefix)+len(suffix) {
		return 0, fmt.Errorf("number %q does not match %q...%q", number, prefix, suffix)
	}
	digits := number[len(prefix) : len(number)-len(suffix)]
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q has a malformed running part: %w", number, err)
	}
	return n, nil
}

func (p Pattern) runningWidth() int {
	for _, seg := range p.Segments {
		if seg.Type == SegmentRunning {
			return seg.Width
		}
	}
	return 0
}

// dateLayout converts a date format using yyyy/yy/MM/dd tokens into a Go layout.
func dateLayout(format string) (string, error) {
	if format == "" {
		return "", invalidPattern("date segment requires a format")
	}
	var b strings.Builder
	rest := format
	tokens := 0
	for rest != "" {
		matched := false
		for _, t := range dateTokens {
			if strings.HasPrefix(rest, t.token) {
				b.WriteString(t.layout)
				rest = rest[len(t.token):]
				matched = true
				tokens++
				break
			}
		}
		if matched {
			continue
		}
		if !strings.ContainsRune(dateSeparators, rune(rest[0])) {
			return "", invalidPattern(fmt.Sprintf("unsupported date format %q", format))
		}
		b.WriteByte(rest[0])
		rest = rest[1:]
	}
	if tokens == 0 {
		return "", invalidPattern(fmt.Sprintf("date format %q has no tokens", format))
	}
	return b.String(), nil
}

func invalidPattern(msg string) error {
	return apperror.NewInvalidArgument("invalid running pattern: " + msg)
}
