// Package memory implements the Memory Store capability (C3): the
// procedural-workflow and lesson tiers the planner, reuse gate, and
// learner read and write. Collaborator data (chunks, structured facts,
// conversations) is not part of this package.
package memory

import "time"

// PlanStep is one (agent_name, input_template) pair in a Plan.
type PlanStep struct {
	Agent string                 `json:"agent"`
	Input map[string]interface{} `json:"input"`
}

// Plan is an ordered sequence of PlanStep, length 1..N.
type Plan []PlanStep

// ProceduralWorkflow is a previously successful plan, keyed by the
// embedding of the goal that produced it.
type ProceduralWorkflow struct {
	WorkflowID       string    `json:"workflow_id"`
	TriggerEmbedding []float32 `json:"trigger_embedding"`
	TriggerPattern   string    `json:"trigger_pattern,omitempty"`
	Plan             Plan      `json:"plan"`
	ResultKeys       []string  `json:"result_keys"`
	UsageCount       int       `json:"usage_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LessonStatus is the outcome a Lesson records.
type LessonStatus string

const (
	LessonSuccess LessonStatus = "success"
	LessonFail    LessonStatus = "fail"
)

// Lesson is an append-only (goal, agent) fragment: either a known-good
// parameter set or a failure pattern plus recommended fix.
type Lesson struct {
	LessonID         string                 `json:"lesson_id"`
	TriggerEmbedding []float32              `json:"trigger_embedding"`
	GoalText         string                 `json:"goal_text"`
	AgentName        string                 `json:"agent_name"`
	Status           LessonStatus           `json:"status"`
	ErrorSnippet     string                 `json:"error_snippet,omitempty"`
	FixSummary       string                 `json:"fix_summary,omitempty"`
	WorkingParams    map[string]interface{} `json:"working_params,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ScoredWorkflow pairs a ProceduralWorkflow with its similarity score
// against a query vector.
type ScoredWorkflow struct {
	Workflow ProceduralWorkflow
	Score    float64
}

// ScoredLesson pairs a Lesson with its similarity score.
type ScoredLesson struct {
	Lesson Lesson
	Score  float64
}
