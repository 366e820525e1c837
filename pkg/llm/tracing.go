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

package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/openagentc/agentc/pkg/llm"

// StartSpan starts a span around one Chat/ChatStream call. The span
// goes through whatever trace.TracerProvider the embedding application
// registered with otel.SetTracerProvider; with none registered,
// otel.Tracer falls back to a no-op provider, so a driver call here
// never pays tracing overhead unless the caller opted in.
func StartSpan(ctx context.Context, provider string, params Params, streaming bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm.chat", trace.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", params.Model),
		attribute.Bool("llm.streaming", streaming),
	))
}

// EndSpan records the outcome of a Chat/ChatStream call on span and
// ends it. Called via defer with the function's named return values,
// so it sees the final err/resp regardless of which return statement
// fired.
func EndSpan(span trace.Span, resp *Response, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp != nil {
		span.SetAttributes(
			attribute.Int("llm.tokens.input", resp.Usage.InputTokens),
			attribute.Int("llm.tokens.output", resp.Usage.OutputTokens),
			attribute.String("llm.finish_reason", string(resp.FinishReason)),
		)
	}
	span.SetStatus(codes.Ok, "success")
}
