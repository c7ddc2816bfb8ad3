// Package state persists batch-run progress to a single JSON file, one
// atomic checkpoint per processed candidate.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
	"github.com/billingops/account-rescue-cli/internal/redact"
)

const (
	stateFileMode = 0o600
	stateDirMode  = 0o700

	fileTimestampLayout = "20060102-150405"
)

var projectNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type StoreConfig struct {
	Project     string
	Environment string
	// Mode distinguishes live runs from dry runs in the persisted metadata.
	Mode  string
	Dir   string
	Clock ports.Clock
	Log   zerolog.Logger
}

// Store is the file-backed RunStateStore. One Store owns one state file;
// writes are serialized by an internal mutex, and each save goes through a
// uniquely named temp file so interrupted runs never leave a torn document.
type Store struct {
	project     string
	environment string
	mode        string
	dir         string
	clock       ports.Clock
	log         zerolog.Logger

	mu    sync.Mutex
	path  string
	state *RunState
}

var _ ports.RunStateStore = (*Store)(nil)

func NewStore(cfg StoreConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, fmt.Errorf("state store: project is required")
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		return nil, fmt.Errorf("state store: environment is required")
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Mode == "" {
		cfg.Mode = "live"
	}

	return &Store{
		project:     cfg.Project,
		environment: cfg.Environment,
		mode:        cfg.Mode,
		dir:         filepath.Clean(cfg.Dir),
		clock:       cfg.Clock,
		log:         cfg.Log,
	}, nil
}

// Initialize creates the run state for a fresh candidate list and performs
// the first atomic save. The file path is derived from the project name and
// the run start timestamp.
func (s *Store) Initialize(candidates []domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	pending := make([]string, 0, len(candidates))
	for _, id := range candidates {
		pending = append(pending, string(id))
	}

	s.state = &RunState{
		Version: schemaVersion,
		Metadata: Metadata{
			Project:     s.project,
			Environment: s.environment,
			Mode:        s.mode,
			StartedAt:   now,
			LastUpdated: now,
		},
		Progress: Progress{Total: len(candidates)},
		Accounts: Accounts{
			Processed: []ProcessedAccount{},
			Pending:   pending,
		},
	}
	s.path = filepath.Join(s.dir, stateFileName(s.project, now))

	if err := s.save(); err != nil {
		return fmt.Errorf("write initial state: %w", err)
	}

	return nil
}

// MarkProcessed records one candidate outcome and checkpoints the file. The
// bookkeeping error (unknown or already-processed id) is returned; a storage
// failure is logged as a warning and swallowed so the batch keeps going.
func (s *Store) MarkProcessed(id domain.AccountID, outcome domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return fmt.Errorf("state store is not initialized")
	}

	idx := -1
	for i, pending := range s.state.Accounts.Pending {
		if pending == string(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("account %s is not pending in this run", id)
	}

	now := s.clock.Now()
	s.state.Accounts.Pending = append(s.state.Accounts.Pending[:idx], s.state.Accounts.Pending[idx+1:]...)
	s.state.Accounts.Processed = append(s.state.Accounts.Processed, ProcessedAccount{
		ID:             string(id),
		Status:         string(outcome.Status),
		SubscriptionID: outcome.SubscriptionID,
		Error:          redact.Sanitize(outcome.Error),
		ProcessedAt:    now,
	})
	s.state.Progress.Processed++
	s.state.Progress.CurrentIndex++
	s.state.Metadata.LastUpdated = now

	if err := s.save(); err != nil {
		s.log.Warn().Err(err).Str("account", string(id)).Msg("state checkpoint failed, continuing")
	}

	return nil
}

// ResumeFrom adopts a previously loaded state document, replacing the
// pending/processed bookkeeping but keeping its original total.
func (s *Store) ResumeFrom(loaded *RunState, path string) error {
	if loaded == nil {
		return fmt.Errorf("resume state is nil")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = loaded
	s.path = path

	return nil
}

func (s *Store) PendingIDs() []domain.AccountID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil
	}

	ids := make([]domain.AccountID, 0, len(s.state.Accounts.Pending))
	for _, id := range s.state.Accounts.Pending {
		ids = append(ids, domain.AccountID(id))
	}
	return ids
}

func (s *Store) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return 0
	}
	return s.state.Progress.Processed
}

func (s *Store) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return 0
	}
	return s.state.Progress.Total
}

// Path returns the state file location, empty before Initialize/ResumeFrom.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Cleanup removes the state file after a fully successful run, along with any
// orphaned temp files from interrupted saves. Failures are warnings; a stale
// file never blocks completion.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("could not remove state file")
		}
	}

	orphans, err := filepath.Glob(filepath.Join(s.dir, tempFilePattern(s.project)))
	if err != nil {
		return nil
	}
	for _, orphan := range orphans {
		if err := os.Remove(orphan); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", orphan).Msg("could not remove orphaned temp file")
		}
	}

	return nil
}

// save writes the document to a temp file unique to this process and moment,
// then renames it over the target. Rename is the only step assumed atomic.
func (s *Store) save() error {
	if err := os.MkdirAll(s.dir, stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tempPath := filepath.Join(s.dir, fmt.Sprintf(".%s.%d-%d.tmp",
		filepath.Base(s.path), os.Getpid(), s.clock.Now().UnixNano()))

	if err := os.WriteFile(tempPath, data, stateFileMode); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// FindLatest returns the most recently modified state file for a project in
// dir, or "" when no resumable run exists.
func FindLatest(dir, project string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, sanitizeProject(project)+"-rescue-state-*.json"))
	if err != nil {
		return "", fmt.Errorf("scan state directory: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}

	latest := ""
	var latestMod int64
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest = match
			latestMod = mod
		}
	}

	return latest, nil
}

func stateFileName(project string, now time.Time) string {
	return fmt.Sprintf("%s-rescue-state-%s.json", sanitizeProject(project), now.Format(fileTimestampLayout))
}

func tempFilePattern(project string) string {
	return "." + sanitizeProject(project) + "-rescue-state-*.tmp"
}

func sanitizeProject(project string) string {
	return projectNamePattern.ReplaceAllString(project, "-")
}
