// Package ptc is the pluggable surface for programmatic tool calling:
// executing a model's tool_use blocks inside the gateway instead of bouncing
// them back to the client. The gateway core depends only on this interface;
// concrete sandboxes register themselves at startup. The default executor
// refuses all work, so a deployment without a sandbox behaves exactly like a
// plain translation gateway.
package ptc

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
)

// ErrDisabled reports that no sandbox is available for execution.
var ErrDisabled = errors.New("programmatic tool calling is disabled")

// Request is one tool invocation as the model emitted it.
type Request struct {
	// ToolUseID ties the eventual result back to the originating block.
	ToolUseID string
	// ToolName is the client-facing tool name (aliases already restored).
	ToolName string
	Input    json.RawMessage
	Timeout  time.Duration
}

// Result is spliced into the conversation as a tool_result block.
type Result struct {
	Content string
	IsError bool
	Elapsed time.Duration
}

// Status is one executor's health snapshot, reported on /health/ptc.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Executor runs tool calls somewhere safe to do so.
type Executor interface {
	Name() string
	Execute(ctx context.Context, req Request) (*Result, error)
	Health(ctx context.Context) Status
}

var (
	mu        sync.RWMutex
	executors = map[string]Executor{}
)

func init() {
	Register(disabledExecutor{})
}

// Register adds or replaces an executor under its own name.
func Register(e Executor) {
	mu.Lock()
	defer mu.Unlock()
	executors[e.Name()] = e
}

// Get returns a registered executor by name.
func Get(name string) (Executor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := executors[name]
	return e, ok
}

// Default picks the executor requests should use: the configured one when
// PTC is enabled and registered, the disabled executor otherwise.
func Default() Executor {
	mu.RLock()
	defer mu.RUnlock()
	if config.PTCEnabled {
		if e, ok := executors[config.PTCExecutor]; ok {
			return e
		}
	}
	return executors[disabledName]
}

// HealthSnapshot reports every registered executor, sorted by name.
func HealthSnapshot(ctx context.Context) []Status {
	mu.RLock()
	defer mu.RUnlock()
	statuses := make([]Status, 0, len(executors))
	for _, e := range executors {
		statuses = append(statuses, e.Health(ctx))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

const disabledName = "disabled"

// disabledExecutor is the always-registered fallback: healthy, but refuses
// every execution.
type disabledExecutor struct{}

func (disabledExecutor) Name() string { return disabledName }

func (disabledExecutor) Execute(ctx context.Context, req Request) (*Result, error) {
	return nil, errors.WithStack(ErrDisabled)
}

func (disabledExecutor) Health(ctx context.Context) Status {
	return Status{Name: disabledName, Healthy: true, Detail: "execution disabled"}
}
