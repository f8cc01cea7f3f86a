// Package session orchestrates one operator's import: upload, selection,
// validation and import, in that order.
//
// A Session guards its state with a mutex that is never held across a gateway
// call. Each validate or import call takes a generation number; a response is
// applied only if no newer call, Cancel or Reset happened in the meantime, so
// the last call always wins and stale responses are dropped with ErrDiscarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/metrics"
)

var (
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrEmptySelection    = errors.New("empty selection")
	ErrUnknownKey        = errors.New("unknown entry key")
	ErrDiscarded         = errors.New("result superseded by a newer call, cancel or reset")
)

// Gateway is the part of the backend a session drives.
type Gateway interface {
	ValidateUsers(ctx context.Context, batch []core.User) (core.ImportResult, error)
	ImportUsers(ctx context.Context, batch []core.User) (core.ImportResult, error)
}

// Entry is one parsed record tracked by a session.
type Entry struct {
	Key  string    `json:"key"`
	Row  int       `json:"row"` // 1-based position in the uploaded file
	User core.User `json:"user"`
}

// Options configures a Session.
type Options struct {
	Limits core.UploadLimits
	Logger *slog.Logger
	NewKey func() string // entry key generator, uuid by default
}

// Session is a single import workflow. It is safe for concurrent use.
type Session struct {
	id      string
	gateway Gateway
	limits  core.UploadLimits
	logger  *slog.Logger
	newKey  func() string

	mu         sync.Mutex
	stage      Stage
	processing bool
	generation uint64
	fileName   string
	entries    []Entry
	index      map[string]int
	selected   map[string]bool
	batchKeys  []string // keys of the last validated batch, in batch order
	validation *core.ImportResult
	imported   *core.ImportResult
	lastErr    error
}

// New creates a session in the Uploading stage.
func New(gateway Gateway, opts Options) *Session {
	s := &Session{
		id:      uuid.NewString(),
		gateway: gateway,
		limits:  opts.Limits,
		logger:  opts.Logger,
		newKey:  opts.NewKey,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newKey == nil {
		s.newKey = uuid.NewString
	}
	s.logger = s.logger.With("session_id", s.id)
	s.resetLocked()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Upload checks, parses and loads a file. Only allowed in Uploading. On
// success every entry is selected and the session moves to Selecting; on
// failure no batch is kept and the error is recorded.
func (s *Session) Upload(fileName string, data []byte) error {
	s.mu.Lock()
	if s.stage != StageUploading {
		s.mu.Unlock()
		return fmt.Errorf("upload in stage %s: %w", s.stage, ErrInvalidTransition)
	}
	gen := s.generation
	s.mu.Unlock()

	users, err := s.parse(fileName, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.stage != StageUploading {
		return ErrDiscarded
	}
	if err != nil {
		s.lastErr = err
		s.logger.Info("upload rejected", "file", fileName, "error", err)
		return err
	}

	s.fileName = fileName
	s.entries = make([]Entry, len(users))
	s.index = make(map[string]int, len(users))
	s.selected = make(map[string]bool, len(users))
	for i, u := range users {
		key := s.newKey()
		s.entries[i] = Entry{Key: key, Row: i + 1, User: u}
		s.index[key] = i
		s.selected[key] = true
	}
	s.lastErr = nil
	s.setStage(StageSelecting, len(users))
	return nil
}

func (s *Session) parse(fileName string, data []byte) ([]core.User, error) {
	if err := core.CheckUpload(fileName, int64(len(data)), s.limits); err != nil {
		metrics.ObserveUploadRejection(rejectionReason(err))
		return nil, err
	}
	users, err := core.ParseUsers(string(data))
	if err != nil {
		metrics.ObserveUploadRejection(rejectionReason(err))
		return nil, err
	}
	return users, nil
}

// Filter selects exactly the entries whose first name, last name or email
// contains term, ignoring case. An empty term selects everything. It returns
// the visible entries in file order.
func (s *Session) Filter(term string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canChangeSelection(); err != nil {
		return nil, err
	}

	term = strings.ToLower(strings.TrimSpace(term))
	visible := make([]Entry, 0, len(s.entries))
	selected := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		if term == "" || matches(e.User, term) {
			visible = append(visible, e)
			selected[e.Key] = true
		}
	}

	s.selected = selected
	s.selectionChanged()
	return visible, nil
}

// Select replaces the selection with keys. Every key must belong to the
// uploaded batch; on error the selection is unchanged.
func (s *Session) Select(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canChangeSelection(); err != nil {
		return err
	}

	selected := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := s.index[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		selected[k] = true
	}

	s.selected = selected
	s.selectionChanged()
	return nil
}

// Validate sends the selected entries to the gateway.
//
// Allowed from Selecting, from Validating (superseding an outstanding call)
// and from Importing (re-validating). A clean result moves to Importing with
// the validated entries as the import batch; failures return to Selecting
// with the failed rows kept. A transport error returns to Selecting and is
// recorded.
func (s *Session) Validate(ctx context.Context) (core.ImportResult, error) {
	s.mu.Lock()
	switch s.stage {
	case StageSelecting, StageValidating, StageImporting:
	default:
		s.mu.Unlock()
		return core.ImportResult{}, fmt.Errorf("validate in stage %s: %w", s.stage, ErrInvalidTransition)
	}

	keys := s.selectedKeysLocked()
	if len(keys) == 0 {
		s.mu.Unlock()
		return core.ImportResult{}, ErrEmptySelection
	}

	batch := s.usersLocked(keys)
	s.generation++
	gen := s.generation
	s.processing = true
	s.validation = nil
	s.lastErr = nil
	s.setStage(StageValidating, len(batch))
	s.mu.Unlock()

	result, err := s.gateway.ValidateUsers(ctx, batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		metrics.ObserveStage("validate", metrics.OutcomeDiscarded, 0, 0)
		s.logger.Debug("validation result discarded", "generation", gen)
		return core.ImportResult{}, ErrDiscarded
	}
	s.processing = false

	if err != nil {
		metrics.ObserveStage("validate", metrics.OutcomeTransportError, 0, 0)
		s.lastErr = err
		s.setStage(StageSelecting, len(batch))
		return core.ImportResult{}, err
	}

	s.validation = &result
	s.batchKeys = keys
	if result.Clean() {
		metrics.ObserveStage("validate", metrics.OutcomeClean, len(result.Successful), 0)
		s.setStage(StageImporting, len(batch))
	} else {
		metrics.ObserveStage("validate", metrics.OutcomeFailures, len(result.Successful), len(result.Failed))
		s.setStage(StageSelecting, len(batch))
	}
	return result, nil
}

// Import commits the validated batch. Only allowed in Importing. Any answer
// from the backend, including one reporting validation failures, completes
// the session. A transport error keeps the session in Importing.
func (s *Session) Import(ctx context.Context) (core.ImportResult, error) {
	s.mu.Lock()
	if s.stage != StageImporting {
		s.mu.Unlock()
		return core.ImportResult{}, fmt.Errorf("import in stage %s: %w", s.stage, ErrInvalidTransition)
	}

	batch := s.usersLocked(s.batchKeys)
	s.generation++
	gen := s.generation
	s.processing = true
	s.lastErr = nil
	s.logger.Info("import started", "stage", s.stage, "rows", len(batch))
	s.mu.Unlock()

	result, err := s.gateway.ImportUsers(ctx, batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		metrics.ObserveStage("import", metrics.OutcomeDiscarded, 0, 0)
		s.logger.Debug("import result discarded", "generation", gen)
		return core.ImportResult{}, ErrDiscarded
	}
	s.processing = false

	if err != nil {
		metrics.ObserveStage("import", metrics.OutcomeTransportError, 0, 0)
		s.lastErr = err
		s.logger.Warn("import failed", "error", err)
		return core.ImportResult{}, err
	}

	outcome := metrics.OutcomeClean
	if !result.Clean() {
		outcome = metrics.OutcomeFailures
	}
	metrics.ObserveStage("import", outcome, len(result.Successful), len(result.Failed))

	s.imported = &result
	s.setStage(StageCompleted, len(batch))
	return result, nil
}

// Cancel abandons the outstanding validate or import call. The call itself
// keeps running but its result is discarded. A cancelled validation returns
// to Selecting. Cancel reports whether there was anything to cancel.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.processing {
		return false
	}

	s.generation++
	s.processing = false
	if s.stage == StageValidating {
		s.setStage(StageSelecting, 0)
	}
	s.logger.Info("call cancelled", "stage", s.stage)
	return true
}

// Reset clears the batch, selection, results and error and returns to
// Uploading. Any outstanding call is discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.resetLocked()
	s.logger.Info("session reset")
}

// SourceRow maps a row position from the last validation result back to the
// entry's row in the uploaded file.
func (s *Session) SourceRow(resultRow int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resultRow < 1 || resultRow > len(s.batchKeys) {
		return 0, false
	}
	i, ok := s.index[s.batchKeys[resultRow-1]]
	if !ok {
		return 0, false
	}
	return s.entries[i].Row, true
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		Stage:      s.stage,
		Processing: s.processing,
		FileName:   s.fileName,
		Entries:    append([]Entry(nil), s.entries...),
		Selected:   s.selectedKeysLocked(),
		Validation: copyResult(s.validation),
		Import:     copyResult(s.imported),
	}
	if s.lastErr != nil {
		msg := core.MapError(s.lastErr)
		snap.LastError = msg.Message
		snap.LastErrorCode = msg.Code
	}
	return snap
}

func (s *Session) resetLocked() {
	s.stage = StageUploading
	s.processing = false
	s.fileName = ""
	s.entries = nil
	s.index = make(map[string]int)
	s.selected = make(map[string]bool)
	s.batchKeys = nil
	s.validation = nil
	s.imported = nil
	s.lastErr = nil
}

func (s *Session) canChangeSelection() error {
	if s.processing {
		return fmt.Errorf("selection change while a call is outstanding: %w", ErrInvalidTransition)
	}
	switch s.stage {
	case StageSelecting, StageValidating, StageImporting:
		return nil
	default:
		return fmt.Errorf("selection change in stage %s: %w", s.stage, ErrInvalidTransition)
	}
}

// selectionChanged drops an eligible validation; the new selection must be
// validated again before it can be imported.
func (s *Session) selectionChanged() {
	if s.stage == StageImporting || s.stage == StageValidating {
		s.validation = nil
		s.batchKeys = nil
		s.setStage(StageSelecting, len(s.selected))
	}
}

func (s *Session) selectedKeysLocked() []string {
	keys := make([]string, 0, len(s.selected))
	for _, e := range s.entries {
		if s.selected[e.Key] {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func (s *Session) usersLocked(keys []string) []core.User {
	users := make([]core.User, len(keys))
	for i, k := range keys {
		users[i] = s.entries[s.index[k]].User
	}
	return users
}

func (s *Session) setStage(stage Stage, rows int) {
	if s.stage == stage {
		return
	}
	s.logger.Info("stage changed", "from", s.stage, "stage", stage, "rows", rows)
	s.stage = stage
}

func matches(u core.User, term string) bool {
	return strings.Contains(strings.ToLower(u.FirstName), term) ||
		strings.Contains(strings.ToLower(u.LastName), term) ||
		strings.Contains(strings.ToLower(u.Email), term)
}

func rejectionReason(err error) string {
	var parseErr *core.ParseError
	switch {
	case errors.Is(err, core.ErrSizeLimitExceeded):
		return "size_limit"
	case errors.Is(err, core.ErrUnsupportedExtension):
		return "extension"
	case errors.Is(err, core.ErrNoFile):
		return "no_file"
	case errors.As(err, &parseErr):
		return parseErr.Kind.String()
	default:
		return "other"
	}
}

func copyResult(r *core.ImportResult) *core.ImportResult {
	if r == nil {
		return nil
	}
	c := core.ImportResult{
		Successful:     append([]core.User{}, r.Successful...),
		Failed:         append([]core.RowError{}, r.Failed...),
		TotalProcessed: r.TotalProcessed,
	}
	return &c
}
