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

package agentc

import (
	"github.com/openagentc/agentc/pkg/agent"
	"github.com/openagentc/agentc/pkg/config"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/session"
)

// Re-exports of the most commonly used types, so simple programs can
// depend on just this package instead of importing every sub-package
// by hand.
type (
	Session     = session.Session
	Agent       = agent.Agent
	AgentConfig = agent.Config
	AgentResult = agent.Result
	LLMParams   = llm.Params
	LLMDriver   = llm.Driver
	Config      = config.Config
)

// Re-exports of the most commonly used constructors.
var (
	OpenSession = session.Open
	LoadConfig  = config.Load
)
