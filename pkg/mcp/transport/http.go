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

package transport

import (
	"context"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/httpclient"
)

// HTTPTransport is the stateless Streamable-HTTP transport: every request
// is an independent POST, the response body (if any) is the raw JSON-RPC
// reply.
type HTTPTransport struct {
	url    string
	apiKey string
	client *httpclient.Client
}

// NewHTTP builds a Streamable-HTTP transport against serverURL.
func NewHTTP(serverURL, apiKey string, client *httpclient.Client) *HTTPTransport {
	if client == nil {
		client = httpclient.New()
	}
	return &HTTPTransport{url: serverURL, apiKey: apiKey, client: client}
}

func (t *HTTPTransport) Request(ctx context.Context, jsonRPC string, requestID int, timeoutMs int) (string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json, text/event-stream",
	}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}

	resp, err := t.client.Do(ctx, &httpclient.Request{
		URL:       t.url,
		Method:    "POST",
		Headers:   headers,
		Body:      []byte(jsonRPC),
		TimeoutMs: timeoutMs,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Body) > 0 {
		return string(resp.Body), nil
	}
	if requestID == 0 {
		return "", nil
	}
	return "", agentcerr.New(agentcerr.KindProtocol, "empty response for request id %d", requestID)
}

func (t *HTTPTransport) Close() error { return nil }
