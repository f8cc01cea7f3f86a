package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/userimport/internal/core"
)

const sample = `firstName,lastName,email,phoneNumber,address,birthDate,status
John,Doe,john@example.com,,,,active
Jane,,not-an-email,,,,
Ada,Lovelace,ada@example.com,,,,inactive
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeGateway validates with the real pipeline. When gate is set, each call
// blocks until a value is sent on it.
type fakeGateway struct {
	pipeline *core.Pipeline
	gate     chan struct{}
	err      error

	mu       sync.Mutex
	batches  [][]core.User
	imported int
}

func newFakeGateway() *fakeGateway {
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return &fakeGateway{pipeline: core.NewPipeline(core.NewValidator(core.WithClock(clock)))}
}

func (g *fakeGateway) wait(ctx context.Context) error {
	if g.gate == nil {
		return nil
	}
	select {
	case <-g.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGateway) ValidateUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	g.mu.Lock()
	g.batches = append(g.batches, batch)
	g.mu.Unlock()

	if err := g.wait(ctx); err != nil {
		return core.ImportResult{}, err
	}
	if g.err != nil {
		return core.ImportResult{}, g.err
	}
	return g.pipeline.Validate(batch), nil
}

func (g *fakeGateway) ImportUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	if err := g.wait(ctx); err != nil {
		return core.ImportResult{}, err
	}
	if g.err != nil {
		return core.ImportResult{}, g.err
	}
	n := 0
	result := g.pipeline.Import(batch, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
	g.mu.Lock()
	g.imported += len(result.Successful)
	g.mu.Unlock()
	return result, nil
}

func (g *fakeGateway) lastBatch() []core.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batches[len(g.batches)-1]
}

func newSession(g Gateway) *Session {
	n := 0
	return New(g, Options{
		Limits: core.UploadLimits{MaxSize: 1 << 20, AcceptedExtensions: []string{".csv"}},
		Logger: discard,
		NewKey: func() string {
			n++
			return fmt.Sprintf("k%d", n)
		},
	})
}

func uploaded(t *testing.T, g Gateway) *Session {
	t.Helper()
	s := newSession(g)
	require.NoError(t, s.Upload("users.csv", []byte(sample)))
	return s
}

func TestUpload_SelectsEverything(t *testing.T) {
	s := uploaded(t, newFakeGateway())

	snap := s.Snapshot()
	assert.Equal(t, StageSelecting, snap.Stage)
	assert.Equal(t, "users.csv", snap.FileName)
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, []string{"k1", "k2", "k3"}, snap.Selected)
	assert.Equal(t, 3, snap.Entries[2].Row)
	assert.Equal(t, "Ada", snap.Entries[2].User.FirstName)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     string
		wantCode string
	}{
		{"wrong extension", "users.txt", sample, "FILE005"},
		{"no file", "", sample, "FILE004"},
		{"too many fields", "users.csv", "firstName,lastName\nJohn,Doe,extra\n", "FILE003"},
		{"unbalanced quote", "users.csv", "firstName,lastName\n\"John,Doe\n", "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(newFakeGateway())

			err := s.Upload(tt.fileName, []byte(tt.data))
			require.Error(t, err)

			snap := s.Snapshot()
			assert.Equal(t, StageUploading, snap.Stage)
			assert.Empty(t, snap.Entries)
			assert.Equal(t, tt.wantCode, snap.LastErrorCode)
		})
	}
}

func TestUpload_SizeLimit(t *testing.T) {
	s := New(newFakeGateway(), Options{
		Limits: core.UploadLimits{MaxSize: 10, AcceptedExtensions: []string{".csv"}},
		Logger: discard,
	})

	err := s.Upload("users.csv", []byte(sample))
	assert.ErrorIs(t, err, core.ErrSizeLimitExceeded)
}

func TestUpload_OnlyFromUploading(t *testing.T) {
	s := uploaded(t, newFakeGateway())
	assert.ErrorIs(t, s.Upload("users.csv", []byte(sample)), ErrInvalidTransition)
}

func TestFilter(t *testing.T) {
	s := uploaded(t, newFakeGateway())

	visible, err := s.Filter("LOVE")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "k3", visible[0].Key)
	assert.Equal(t, []string{"k3"}, s.Snapshot().Selected)

	visible, err = s.Filter("")
	require.NoError(t, err)
	assert.Len(t, visible, 3)
	assert.Len(t, s.Snapshot().Selected, 3)
}

func TestSelect_UnknownKeyLeavesSelection(t *testing.T) {
	s := uploaded(t, newFakeGateway())

	err := s.Select([]string{"k1", "nope"})
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, []string{"k1", "k2", "k3"}, s.Snapshot().Selected)
}

func TestValidate_EmptySelection(t *testing.T) {
	s := uploaded(t, newFakeGateway())
	require.NoError(t, s.Select(nil))

	_, err := s.Validate(context.Background())
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, StageSelecting, s.Snapshot().Stage)
}

func TestValidate_FailuresReturnToSelecting(t *testing.T) {
	s := uploaded(t, newFakeGateway())

	result, err := s.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalProcessed)
	require.Len(t, result.Failed, 1)

	snap := s.Snapshot()
	assert.Equal(t, StageSelecting, snap.Stage)
	assert.False(t, snap.Processing)
	require.NotNil(t, snap.Validation)
	assert.Len(t, snap.Validation.Failed, 1)

	row, ok := s.SourceRow(result.Failed[0].Row)
	require.True(t, ok)
	assert.Equal(t, 2, row)
}

func TestValidate_SourceRowFollowsSelection(t *testing.T) {
	s := uploaded(t, newFakeGateway())
	require.NoError(t, s.Select([]string{"k2", "k3"}))

	result, err := s.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Row)

	row, ok := s.SourceRow(1)
	require.True(t, ok)
	assert.Equal(t, 2, row, "batch row 1 is file row 2")

	_, ok = s.SourceRow(3)
	assert.False(t, ok)
}

func TestFullWorkflow(t *testing.T) {
	g := newFakeGateway()
	s := uploaded(t, g)
	ctx := context.Background()

	require.NoError(t, s.Select([]string{"k1", "k3"}))

	result, err := s.Validate(ctx)
	require.NoError(t, err)
	require.True(t, result.Clean())
	assert.Equal(t, StageImporting, s.Snapshot().Stage)

	imported, err := s.Import(ctx)
	require.NoError(t, err)
	assert.True(t, imported.Committed())
	assert.Equal(t, 2, g.imported)

	snap := s.Snapshot()
	assert.Equal(t, StageCompleted, snap.Stage)
	require.NotNil(t, snap.Import)
	assert.Equal(t, "id-1", snap.Import.Successful[0].ID)

	_, err = s.Validate(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestImport_RequiresCleanValidation(t *testing.T) {
	s := uploaded(t, newFakeGateway())

	_, err := s.Import(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Validate(context.Background())
	require.NoError(t, err)
	_, err = s.Import(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition, "failed rows block import")
}

func TestSelectionChangeDropsValidation(t *testing.T) {
	s := uploaded(t, newFakeGateway())
	require.NoError(t, s.Select([]string{"k1"}))

	_, err := s.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, StageImporting, s.Snapshot().Stage)

	require.NoError(t, s.Select([]string{"k1", "k3"}))

	snap := s.Snapshot()
	assert.Equal(t, StageSelecting, snap.Stage)
	assert.Nil(t, snap.Validation)
	_, err = s.Import(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidate_TransportErrorIsRecorded(t *testing.T) {
	g := newFakeGateway()
	s := uploaded(t, g)
	g.err = fmt.Errorf("dial: %w", context.DeadlineExceeded)

	_, err := s.Validate(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StageSelecting, snap.Stage)
	assert.False(t, snap.Processing)
	assert.Equal(t, "UPL005", snap.LastErrorCode)
}

func TestImport_TransportErrorStaysImporting(t *testing.T) {
	g := newFakeGateway()
	s := uploaded(t, g)
	require.NoError(t, s.Select([]string{"k1"}))
	_, err := s.Validate(context.Background())
	require.NoError(t, err)

	g.err = context.Canceled
	_, err = s.Import(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageImporting, s.Snapshot().Stage)

	g.err = nil
	_, err = s.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, s.Snapshot().Stage)
}

func TestValidate_NewerCallSupersedes(t *testing.T) {
	g := newFakeGateway()
	g.gate = make(chan struct{})
	s := uploaded(t, g)

	first := make(chan error, 1)
	go func() {
		_, err := s.Validate(context.Background())
		first <- err
	}()
	require.Eventually(t, func() bool { return s.Snapshot().Processing }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := s.Validate(context.Background())
		second <- err
	}()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.batches) == 2
	}, time.Second, time.Millisecond)

	g.gate <- struct{}{}
	g.gate <- struct{}{}

	results := []error{<-first, <-second}
	assert.Contains(t, results, ErrDiscarded)
	assert.Contains(t, results, nil)
	assert.False(t, s.Snapshot().Processing)
}

func TestCancel_DiscardsOutstandingValidation(t *testing.T) {
	g := newFakeGateway()
	g.gate = make(chan struct{})
	s := uploaded(t, g)

	done := make(chan error, 1)
	go func() {
		_, err := s.Validate(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return s.Snapshot().Processing }, time.Second, time.Millisecond)

	assert.True(t, s.Cancel())
	snap := s.Snapshot()
	assert.False(t, snap.Processing)
	assert.Equal(t, StageSelecting, snap.Stage)

	g.gate <- struct{}{}
	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Nil(t, s.Snapshot().Validation)
	assert.False(t, s.Cancel(), "nothing left to cancel")
}

func TestReset_DiscardsOutstandingImport(t *testing.T) {
	g := newFakeGateway()
	s := uploaded(t, g)
	require.NoError(t, s.Select([]string{"k1"}))
	_, err := s.Validate(context.Background())
	require.NoError(t, err)

	g.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Import(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return s.Snapshot().Processing }, time.Second, time.Millisecond)

	s.Reset()
	g.gate <- struct{}{}
	assert.ErrorIs(t, <-done, ErrDiscarded)

	snap := s.Snapshot()
	assert.Equal(t, StageUploading, snap.Stage)
	assert.Empty(t, snap.Entries)
	assert.Nil(t, snap.Import)
	assert.Empty(t, snap.LastError)
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := uploaded(t, newFakeGateway())

	snap := s.Snapshot()
	snap.Entries[0].User.FirstName = "Changed"

	assert.Equal(t, "John", s.Snapshot().Entries[0].User.FirstName)
}

func TestValidate_SendsSelectionInFileOrder(t *testing.T) {
	g := newFakeGateway()
	s := uploaded(t, g)
	require.NoError(t, s.Select([]string{"k3", "k1"}))

	_, err := s.Validate(context.Background())
	require.NoError(t, err)

	batch := g.lastBatch()
	require.Len(t, batch, 2)
	assert.Equal(t, "John", batch[0].FirstName)
	assert.Equal(t, "Ada", batch[1].FirstName)
}
