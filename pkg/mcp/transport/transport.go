// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport implements the two wire transports an MCP client can
// speak: a stateless Streamable-HTTP request/response transport, and a
// stateful two-channel SSE transport with a persistent background reader.
package transport

import (
	"context"
	"net/url"
	"strings"

	"github.com/openagentc/agentc/pkg/httpclient"
)

// Transport carries one JSON-RPC request string to a server and returns
// its response string. request_id 0 marks a notification, which has no
// response.
type Transport interface {
	Request(ctx context.Context, jsonRPC string, requestID int, timeoutMs int) (string, error)
	Close() error
}

// NewForURL selects a transport by inspecting serverURL's path: a path
// ending in "/sse", "/sse/", or "/events" speaks SSE; anything else speaks
// Streamable-HTTP.
func NewForURL(serverURL, apiKey string, client *httpclient.Client) Transport {
	if isSSEURL(serverURL) {
		return NewSSE(serverURL, apiKey, client)
	}
	return NewHTTP(serverURL, apiKey, client)
}

func isSSEURL(serverURL string) bool {
	u, err := url.Parse(serverURL)
	path := serverURL
	if err == nil {
		path = u.Path
	}
	return strings.HasSuffix(path, "/sse") || strings.HasSuffix(path, "/sse/") || strings.HasSuffix(path, "/events")
}
