package testutils

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	errors []string
}

func (r *recordingT) Helper() {}
func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestTextAsserter(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
		match    bool
	}{
		{name: "identical", actual: "a\nb", expected: "a\nb", match: true},
		{name: "trailing whitespace ignored by default", actual: "a   \nb\n\n", expected: "a\nb", match: true},
		{name: "trailing whitespace significant", opts: []TextOption{WithIgnoreTrailingWhitespace(false)}, actual: "a  \nb", expected: "a\nb"},
		{name: "empty lines ignored", opts: []TextOption{WithIgnoreEmptyLines(true)}, actual: "a\n\nb", expected: "a\nb", match: true},
		{name: "different content", actual: "a\nc", expected: "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			ok := NewTextAsserter(rec, tt.opts...).Assert(tt.actual, tt.expected)
			assert.Equal(t, tt.match, ok)
			assert.Equal(t, tt.match, len(rec.errors) == 0)
		})
	}
}

func TestTextAsserter_DiffIsUnified(t *testing.T) {
	diff := NewTextAsserter(t).Diff("a\nc", "a\nb")
	assert.Contains(t, diff, "--- expected")
	assert.Contains(t, diff, "+++ actual")
	assert.Contains(t, diff, "-b")
	assert.Contains(t, diff, "+c")

	colored := NewTextAsserter(t, WithEnableColors(true)).Diff("a\nc", "a\nb")
	assert.Contains(t, colored, "\x1b[")
}

func TestJSONAsserter(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		actual   string
		expected string
		match    bool
	}{
		{name: "equal", actual: `{"a":1}`, expected: `{"a":1}`, match: true},
		{name: "extra keys ignored", actual: `{"a":1,"b":2}`, expected: `{"a":1}`, match: true},
		{name: "extra keys significant", opts: []Option{WithIgnoreExtraKeys(false)}, actual: `{"a":1,"b":2}`, expected: `{"a":1}`},
		{name: "presence placeholder", actual: `{"at":"2024-01-01"}`, expected: `{"at":"<<PRESENCE>>"}`, match: true},
		{name: "placeholder needs key", opts: []Option{WithIgnoreExtraKeys(false)}, actual: `{}`, expected: `{"at":"<<PRESENCE>>"}`},
		{name: "ignored fields", opts: []Option{WithIgnoredFields("age_ms")}, actual: `[{"seq":1,"age_ms":5}]`, expected: `[{"seq":1,"age_ms":9}]`, match: true},
		{name: "root arrays", actual: `[1,2]`, expected: `[1,3]`},
		{name: "invalid json", actual: `{`, expected: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			ok := NewJSONAsserter(rec, tt.opts...).Assert(tt.actual, tt.expected)
			assert.Equal(t, tt.match, ok, rec.errors)
		})
	}
}

func TestJSONAsserter_Defaults(t *testing.T) {
	opts := NewJSONAsserter(t).Options()
	assert.True(t, opts.IgnoreExtraKeys)
	assert.True(t, opts.AllowPresencePlaceholder)
	assert.Equal(t, `{"a":1}`, MustJSON(map[string]int{"a": 1}))
}

func TestClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(start)
	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())
	assert.NotNil(t, QuietLogger())
}
