package backend

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JonMunkholm/userimport/internal/config"
	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/rpc"
	"github.com/JonMunkholm/userimport/internal/store"
)

func newMemory() *store.Memory {
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return store.NewMemory(core.NewPipeline(core.NewValidator(core.WithClock(clock))), store.WithClock(clock))
}

func goodBatch() []core.User {
	return []core.User{
		{FirstName: "John", LastName: "Doe", Email: "john@example.com", Status: core.StatusActive},
		{FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"},
	}
}

func mixedBatch() []core.User {
	return []core.User{
		{FirstName: "John", LastName: "Doe", Email: "john@example.com"},
		{FirstName: "Jane", Email: "bad-email"},
	}
}

// gatewayContract runs the behaviour both variants must share.
func gatewayContract(t *testing.T, g Gateway) {
	ctx := context.Background()

	t.Run("validate reports failing rows", func(t *testing.T) {
		result, err := g.ValidateUsers(ctx, mixedBatch())
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalProcessed)
		require.Len(t, result.Successful, 1)
		assert.Equal(t, "John", result.Successful[0].FirstName)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, 2, result.Failed[0].Row)
		assert.Equal(t, []string{core.MsgLastNameRequired, core.MsgEmailInvalid}, result.Failed[0].Errors)
	})

	t.Run("import of failing batch assigns nothing", func(t *testing.T) {
		result, err := g.ImportUsers(ctx, mixedBatch())
		require.NoError(t, err)
		assert.False(t, result.Clean())
		for _, u := range result.Successful {
			assert.Empty(t, u.ID)
		}
	})

	t.Run("import commits and lookups find records", func(t *testing.T) {
		result, err := g.ImportUsers(ctx, goodBatch())
		require.NoError(t, err)
		require.True(t, result.Committed())
		require.Len(t, result.Successful, 2)
		assert.NotEqual(t, result.Successful[0].ID, result.Successful[1].ID)

		byID, err := g.GetUserByID(ctx, result.Successful[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "john@example.com", byID.Email)

		byEmail, err := g.GetUserByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, result.Successful[1].ID, byEmail.ID)

		all, err := g.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		_, err := g.GetUserByID(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "Not found", te.Message())
	})

	validations := []struct {
		name  string
		batch []core.User
	}{
		{
			name:  "record with no fields keeps its row",
			batch: []core.User{{}, {FirstName: "Jane", Email: "bad-email"}},
		},
		{
			name: "blank record between valid ones",
			batch: []core.User{
				{FirstName: "John", LastName: "Doe", Email: "john@example.com"},
				{},
				{FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"},
			},
		},
		{
			name: "whitespace-only fields",
			batch: []core.User{
				{FirstName: "   ", LastName: "Doe", Email: " john@example.com "},
				{FirstName: " Jane ", LastName: "Roe", Email: "jane@example.com", PhoneNumber: "  "},
			},
		},
		{
			name: "quoted commas and quotes",
			batch: []core.User{
				{FirstName: "John", LastName: "Doe, Jr.", Email: "john@example.com", Address: `1 Main St, Apt "B"`},
			},
		},
		{
			name:  "empty batch",
			batch: []core.User{},
		},
	}
	for _, tt := range validations {
		t.Run("validate "+tt.name, func(t *testing.T) {
			want := newMemory().Validate(tt.batch)

			got, err := g.ValidateUsers(ctx, tt.batch)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("import of blank record assigns nothing", func(t *testing.T) {
		result, err := g.ImportUsers(ctx, []core.User{
			{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"},
			{},
		})
		require.NoError(t, err)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, 2, result.Failed[0].Row)
		assert.False(t, result.Committed())

		_, err = g.GetUserByEmail(ctx, "ann@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("import keeps quoted commas", func(t *testing.T) {
		result, err := g.ImportUsers(ctx, []core.User{
			{FirstName: "Sam", LastName: "Poe, Sr.", Email: "sam@example.com", Address: "2 Elm St, Unit 4"},
		})
		require.NoError(t, err)
		require.True(t, result.Committed())
		assert.Equal(t, "Poe, Sr.", result.Successful[0].LastName)

		stored, err := g.GetUserByID(ctx, result.Successful[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "2 Elm St, Unit 4", stored.Address)
	})

	t.Run("import of empty batch", func(t *testing.T) {
		result, err := g.ImportUsers(ctx, []core.User{})
		require.NoError(t, err)
		assert.True(t, result.Clean())
		assert.Empty(t, result.Successful)
		assert.Equal(t, 0, result.TotalProcessed)
	})
}

func TestLocal_Contract(t *testing.T) {
	gatewayContract(t, NewLocal(newMemory(), 0))
}

func TestRemote_Contract(t *testing.T) {
	gatewayContract(t, newRemote(t, rpc.NewServer(newMemory())))
}

func TestLocal_LatencyHonoursContext(t *testing.T) {
	l := NewLocal(newMemory(), time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.ValidateUsers(ctx, goodBatch())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, codes.DeadlineExceeded, te.Code)
	assert.Equal(t, "gRPC error: 4", te.Message())
}

func TestLocal_LatencyIsApplied(t *testing.T) {
	l := NewLocal(newMemory(), 20*time.Millisecond)

	start := time.Now()
	_, err := l.ValidateUsers(context.Background(), goodBatch())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

// usersOmitted answers uploads without the committed records.
type usersOmitted struct {
	*rpc.Server
}

func (s usersOmitted) UploadUserData(ctx context.Context, in *rpc.UploadUserDataRequest) (*rpc.UploadUserDataResponse, error) {
	resp, err := s.Server.UploadUserData(ctx, in)
	if err != nil {
		return nil, err
	}
	resp.Users = nil
	return resp, nil
}

func TestRemote_ImportFallsBackToEmailLookup(t *testing.T) {
	g := newRemote(t, usersOmitted{rpc.NewServer(newMemory())})

	result, err := g.ImportUsers(context.Background(), goodBatch())
	require.NoError(t, err)
	require.True(t, result.Committed())
	assert.Equal(t, "john@example.com", result.Successful[0].Email)
	assert.Equal(t, "jane@example.com", result.Successful[1].Email)
}

func TestRemote_EmailFallbackGivesSharedEmailsDistinctIDs(t *testing.T) {
	st := newMemory()
	g := newRemote(t, usersOmitted{rpc.NewServer(st)})

	batch := []core.User{
		{FirstName: "Ann", LastName: "Lee", Email: "same@example.com"},
		{FirstName: "Bob", LastName: "Lee", Email: "SAME@example.com"},
	}
	result, err := g.ImportUsers(context.Background(), batch)
	require.NoError(t, err)
	require.True(t, result.Committed())
	require.Len(t, result.Successful, 2)

	assert.Equal(t, "Ann", result.Successful[0].FirstName)
	assert.Equal(t, "Bob", result.Successful[1].FirstName)
	assert.NotEqual(t, result.Successful[0].ID, result.Successful[1].ID)

	stored := st.All()
	require.Len(t, stored, 2)
	assert.Equal(t, stored[0].ID, result.Successful[0].ID)
	assert.Equal(t, stored[1].ID, result.Successful[1].ID)
}

// rowDropper reports one row fewer than it was sent.
type rowDropper struct {
	*rpc.Server
}

func (s rowDropper) ValidateUserData(ctx context.Context, in *rpc.ValidateUserDataRequest) (*rpc.ValidateUserDataResponse, error) {
	resp, err := s.Server.ValidateUserData(ctx, in)
	if err != nil {
		return nil, err
	}
	resp.Errors = nil
	resp.IsValid = true
	resp.TotalRows--
	return resp, nil
}

func TestRemote_RowCountMismatchIsTransportError(t *testing.T) {
	g := newRemote(t, rowDropper{rpc.NewServer(newMemory())})

	_, err := g.ValidateUsers(context.Background(), mixedBatch())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindUnknown, te.Kind)

	_, err = g.ImportUsers(context.Background(), mixedBatch())
	assert.ErrorAs(t, err, &te)
}

// slowServer delays validation past the client's timeout.
type slowServer struct {
	*rpc.Server
}

func (s slowServer) ValidateUserData(ctx context.Context, in *rpc.ValidateUserDataRequest) (*rpc.ValidateUserDataResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
	}
	return s.Server.ValidateUserData(ctx, in)
}

func TestRemote_TimeoutIsUnknownFour(t *testing.T) {
	g := newRemote(t, slowServer{rpc.NewServer(newMemory())}, WithTimeout(20*time.Millisecond))

	_, err := g.ValidateUsers(context.Background(), goodBatch())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindUnknown, te.Kind)
	assert.Equal(t, "gRPC error: 4", te.Message())
}

func TestValidationResult_RejectsOutOfRangeRows(t *testing.T) {
	_, err := validationResult(goodBatch(), &rpc.ValidateUserDataResponse{
		Errors:    []rpc.ValidationError{{Row: 7, Errors: []string{"x"}}},
		TotalRows: 2,
	})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Unknown error", te.Message())
}

func TestInstrument_PassesThrough(t *testing.T) {
	g := Instrument(NewLocal(newMemory(), 0), VariantLocal)

	result, err := g.ImportUsers(context.Background(), goodBatch())
	require.NoError(t, err)
	assert.True(t, result.Committed())

	_, err = g.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNew_SelectsLocal(t *testing.T) {
	cfg := &config.Config{
		Backend: config.BackendConfig{UseLocal: true},
		Upload:  config.UploadConfig{ValidationRules: "lenient"},
	}

	g, closeFn, err := New(cfg, discard)
	require.NoError(t, err)
	defer closeFn()

	result, err := g.ValidateUsers(context.Background(), goodBatch())
	require.NoError(t, err)
	assert.Len(t, result.Failed, 2, "lenient rules require phone, address and birth date")
}

func TestNew_RejectsUnknownRuleSet(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendConfig{UseLocal: true}, Upload: config.UploadConfig{ValidationRules: "loose"}}

	_, _, err := New(cfg, discard)
	assert.Error(t, err)
}

func newRemote(t *testing.T, srv rpc.UserServiceServer, opts ...RemoteOption) *Remote {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := rpc.NewGRPCServer(srv, discard)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := rpc.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	opts = append([]RemoteOption{WithLogger(discard), WithRetry(fastRetry(2))}, opts...)
	return NewRemote(rpc.NewClient(conn), opts...)
}
