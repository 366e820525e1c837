// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sse parses a text/event-stream byte stream into discrete
// events, one field line at a time, so callers can feed it bytes as they
// arrive from a chunked HTTP response.
package sse

import (
	"bufio"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	Event string
	Data  string
	ID    string
}

// Handler is invoked once per dispatched event.
type Handler func(Event)

// Parser assembles field lines into Events. It is restartable: it
// buffers only the current in-progress event, never whole events.
type Parser struct {
	reader *bufio.Reader

	event     string
	id        string
	dataLines []string
}

// NewParser wraps r for line-oriented SSE parsing.
func NewParser(r *bufio.Reader) *Parser {
	return &Parser{reader: r}
}

// Next reads and returns the next dispatched event, or an error
// (typically io.EOF) when the underlying reader is exhausted.
func (p *Parser) Next() (Event, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if line == "" && err != nil {
			return Event{}, err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if len(p.dataLines) > 0 {
				ev := p.dispatch()
				return ev, nil
			}
			if err != nil {
				return Event{}, err
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			if err != nil {
				return Event{}, err
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			p.event = value
		case "id":
			p.id = value
		case "data":
			p.dataLines = append(p.dataLines, value)
		}

		if err != nil {
			if len(p.dataLines) > 0 {
				return p.dispatch(), nil
			}
			return Event{}, err
		}
	}
}

// dispatch assembles the accumulated fields into an Event and resets the
// accumulator, per the "blank line dispatches and resets" rule.
func (p *Parser) dispatch() Event {
	ev := Event{
		Event: p.event,
		Data:  strings.Join(p.dataLines, "\n"),
		ID:    p.id,
	}
	p.event = ""
	p.id = ""
	p.dataLines = nil
	return ev
}

// ParseAll reads every event from r until EOF, invoking fn for each.
func ParseAll(r *bufio.Reader, fn Handler) error {
	p := NewParser(r)
	for {
		ev, err := p.Next()
		if err != nil {
			return err
		}
		fn(ev)
	}
}
