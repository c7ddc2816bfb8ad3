package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const schemaVersion = "1.0"

// RunState is the persisted execution-state document. Field names follow the
// on-disk JSON schema shared with the operator tooling that inspects these
// files.
type RunState struct {
	Version  string   `json:"version"`
	Metadata Metadata `json:"metadata"`
	Progress Progress `json:"progress"`
	Accounts Accounts `json:"accounts"`
}

type Metadata struct {
	Project     string    `json:"project"`
	Environment string    `json:"environment"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"startedAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type Progress struct {
	Total        int `json:"total"`
	Processed    int `json:"processed"`
	CurrentIndex int `json:"currentIndex"`
}

type Accounts struct {
	Processed []ProcessedAccount `json:"processed"`
	Pending   []string           `json:"pending"`
}

type ProcessedAccount struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	Error          string    `json:"error,omitempty"`
	ProcessedAt    time.Time `json:"processedAt"`
}

// CorruptionError means the state file could not be parsed at all. Resume is
// impossible; the file is left in place for inspection.
type CorruptionError struct {
	Path  string
	cause error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state file %s is corrupted: %v", e.Path, e.cause)
}

func (e *CorruptionError) Unwrap() error { return e.cause }

// SchemaError names the first field that failed structural validation.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("state schema invalid: %s %s", e.Field, e.Reason)
}

// Validate checks the structural invariants a loaded state must satisfy
// before it can be resumed.
func (s *RunState) Validate() error {
	if s.Version == "" {
		return &SchemaError{Field: "version", Reason: "is missing"}
	}
	if s.Metadata.Project == "" {
		return &SchemaError{Field: "metadata.project", Reason: "is missing"}
	}
	if s.Metadata.Environment == "" {
		return &SchemaError{Field: "metadata.environment", Reason: "is missing"}
	}
	if s.Progress.Total < 0 {
		return &SchemaError{Field: "progress.total", Reason: "must not be negative"}
	}
	if s.Progress.Processed < 0 {
		return &SchemaError{Field: "progress.processed", Reason: "must not be negative"}
	}
	if s.Progress.CurrentIndex < 0 {
		return &SchemaError{Field: "progress.currentIndex", Reason: "must not be negative"}
	}
	if s.Accounts.Processed == nil {
		return &SchemaError{Field: "accounts.processed", Reason: "is missing"}
	}
	if s.Accounts.Pending == nil {
		return &SchemaError{Field: "accounts.pending", Reason: "is missing"}
	}
	if s.Progress.Processed != len(s.Accounts.Processed) {
		return &SchemaError{
			Field:  "progress.processed",
			Reason: fmt.Sprintf("is %d but accounts.processed holds %d entries", s.Progress.Processed, len(s.Accounts.Processed)),
		}
	}

	return nil
}

// Load reads and validates a persisted run state. Parse failures yield a
// CorruptionError; structural violations yield a SchemaError.
func Load(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var loaded RunState
	if err := json.Unmarshal(data, &loaded); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "document"
			}
			return nil, &SchemaError{Field: field, Reason: "has the wrong type"}
		}
		return nil, &CorruptionError{Path: path, cause: err}
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	return &loaded, nil
}
