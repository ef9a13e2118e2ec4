package models

import "time"

// LLMStatus tells how the summary text was obtained.
type LLMStatus string

const (
	LLMSuccess  LLMStatus = "success"
	LLMError    LLMStatus = "error"
	LLMFallback LLMStatus = "fallback"
)

// ValidationResult is the outcome of summary validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// LLMRunResult carries the summary and its provenance.
type LLMRunResult struct {
	Summary       string           `json:"summary"`
	PromptName    string           `json:"prompt_name"`
	PromptVersion int              `json:"prompt_version"`
	Provider      string           `json:"provider,omitempty"`
	Model         string           `json:"model,omitempty"`
	Latency       time.Duration    `json:"latency"`
	Status        LLMStatus        `json:"status"`
	Validation    ValidationResult `json:"validation"`
	Sanitized     bool             `json:"sanitized"`
	Error         string           `json:"error,omitempty"`
}
