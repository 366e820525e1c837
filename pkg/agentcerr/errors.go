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

// Package agentcerr defines the error taxonomy shared across the runtime.
package agentcerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independent of its message, mirroring the
// agentc_err_t taxonomy: callers can branch on Kind without parsing text.
type Kind string

const (
	KindOK                Kind = "ok"
	KindInvalidArg        Kind = "invalid_arg"
	KindNoMemory          Kind = "no_memory"
	KindNetwork           Kind = "network"
	KindTLS               Kind = "tls"
	KindTimeout           Kind = "timeout"
	KindDNS               Kind = "dns"
	KindHTTP              Kind = "http"
	KindNotInitialized    Kind = "not_initialized"
	KindBackend           Kind = "backend"
	KindIO                Kind = "io"
	KindNotImplemented    Kind = "not_implemented"
	KindNotFound          Kind = "not_found"
	KindNotConnected      Kind = "not_connected"
	KindProtocol          Kind = "protocol"
	KindParse             Kind = "parse"
	KindResponseTooLarge  Kind = "response_too_large"
	KindInvalidState      Kind = "invalid_state"
)

// Error wraps a Kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, &agentcerr.Error{Kind: KindTimeout}) match on Kind
// alone, ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind from err, or KindBackend if err isn't one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// Sentinel values for errors.Is comparisons against a bare Kind.
var (
	ErrNotFound       = New(KindNotFound, "not found")
	ErrNotConnected   = New(KindNotConnected, "not connected")
	ErrNotInitialized = New(KindNotInitialized, "not initialized")
	ErrTimeout        = New(KindTimeout, "timeout")
	ErrInvalidState   = New(KindInvalidState, "invalid state")
)
