package sse

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAssemblesDataEventAndID(t *testing.T) {
	raw := "event: message\nid: 7\ndata: hello\n\n"
	p := NewParser(bufio.NewReader(strings.NewReader(raw)))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Event)
	assert.Equal(t, "7", ev.ID)
	assert.Equal(t, "hello", ev.Data)
}

func TestRepeatedDataFieldsJoinWithNewline(t *testing.T) {
	raw := "data: line1\ndata: line2\n\n"
	p := NewParser(bufio.NewReader(strings.NewReader(raw)))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", ev.Data)
}

func TestCommentLinesAreIgnored(t *testing.T) {
	raw := ": this is a comment\ndata: hi\n\n"
	p := NewParser(bufio.NewReader(strings.NewReader(raw)))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", ev.Data)
}

func TestEventAndIDOverwriteRatherThanAccumulate(t *testing.T) {
	raw := "id: 1\nid: 2\ndata: x\n\n"
	p := NewParser(bufio.NewReader(strings.NewReader(raw)))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", ev.ID)
}

func TestSingleLeadingSpaceIsStripped(t *testing.T) {
	raw := "data:  two leading spaces becomes one stripped\n\n"
	p := NewParser(bufio.NewReader(strings.NewReader(raw)))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, " two leading spaces becomes one stripped", ev.Data)
}

func TestParseAllDeliversMultipleEvents(t *testing.T) {
	raw := "data: first\n\ndata: second\n\n"
	var got []Event
	err := ParseAll(bufio.NewReader(strings.NewReader(raw)), func(ev Event) {
		got = append(got, ev)
	})
	require.Error(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Data)
	assert.Equal(t, "second", got[1].Data)
}

func TestBlankLineWithNoDataDoesNotDispatch(t *testing.T) {
	raw := "\n\ndata: only\n\n"
	var got []Event
	err := ParseAll(bufio.NewReader(strings.NewReader(raw)), func(ev Event) {
		got = append(got, ev)
	})
	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Data)
}
