// Package tools implements the refinement tools (clarify, decompose,
// estimate, prioritize, checklist) behind one execution contract.
package tools

import (
	"context"
	"time"
)

// ToolType identifies a tool in the registry.
type ToolType string

const (
	TypeDecompose  ToolType = "decompose"
	TypeEstimate   ToolType = "estimate"
	TypePrioritize ToolType = "prioritize"
	TypeClarify    ToolType = "clarify"
	TypeChecklist  ToolType = "checklist"
)

// AllTypes returns every tool type in registration order.
func AllTypes() []ToolType {
	return []ToolType{TypeClarify, TypeDecompose, TypeEstimate, TypePrioritize, TypeChecklist}
}

// Valid reports whether t names a known tool.
func (t ToolType) Valid() bool {
	for _, v := range AllTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// Config describes a tool. Only Enabled changes after construction.
type Config struct {
	Type        ToolType      `json:"type"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Enabled     bool          `json:"enabled"`
	Retry       bool          `json:"retry"`
	MaxRetries  int           `json:"max_retries"`
	Timeout     time.Duration `json:"timeout"`
	Priority    int           `json:"priority"`
	Tags        []string      `json:"tags,omitempty"`
}

// HasTag reports whether the config carries tag.
func (c Config) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ExecutionContext identifies who a tool runs for.
type ExecutionContext struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	// Model overrides the service's primary model for this execution.
	Model string `json:"model,omitempty"`
}

// Result is the outcome of one execution. A tool always returns one and
// never lets a failure escape as a panic.
type Result struct {
	Success       bool          `json:"success"`
	Data          any           `json:"data,omitempty"`
	Error         string        `json:"error,omitempty"`
	Err           error         `json:"-"`
	ExecutionTime time.Duration `json:"execution_time"`
	ToolType      ToolType      `json:"tool_type"`
}

// Output returns the typed data of a successful result.
func Output[T any](r *Result) (T, bool) {
	var zero T
	if r == nil || !r.Success {
		return zero, false
	}
	switch v := r.Data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	return zero, false
}

// Statistics counts executions of one tool.
type Statistics struct {
	TotalExecutions      int64         `json:"total_executions"`
	SuccessfulExecutions int64         `json:"successful_executions"`
	FailedExecutions     int64         `json:"failed_executions"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	LastExecutionTime    time.Time     `json:"last_execution_time,omitempty"`
	LastError            string        `json:"last_error,omitempty"`
}

// Tool is the uniform contract every refinement tool implements.
type Tool interface {
	Config() Config
	Execute(ctx context.Context, input any, ectx ExecutionContext) *Result
	Statistics() Statistics
	ResetStatistics()
	SetEnabled(enabled bool)
}
