package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/rpc"
)

// batchFileName is the name sent with re-serialized batches.
const batchFileName = "users.csv"

// Remote is the gateway backed by the gRPC user service.
type Remote struct {
	client  *rpc.Client
	timeout time.Duration
	retry   RetryConfig
	logger  *slog.Logger
}

// RemoteOption configures a Remote gateway.
type RemoteOption func(*Remote)

// WithTimeout bounds each remote call. Zero leaves only the caller's deadline.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.timeout = d }
}

// WithRetry sets the retry strategy for read-only calls.
func WithRetry(cfg RetryConfig) RemoteOption {
	return func(r *Remote) { r.retry = cfg }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger }
}

// NewRemote creates a Remote gateway using client.
func NewRemote(client *rpc.Client, opts ...RemoteOption) *Remote {
	r := &Remote{
		client: client,
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateUsers sends the batch as CSV and maps the service's answer back to
// an ImportResult. Rows the service does not list as failed are successful.
func (r *Remote) ValidateUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	content, err := core.EncodeUsers(batch)
	if err != nil {
		return core.ImportResult{}, FromError(err)
	}

	ctx, cancel := r.callContext(ctx)
	defer cancel()

	resp, err := r.client.ValidateUserData(ctx, &rpc.ValidateUserDataRequest{
		FileContent:      content,
		OriginalFileName: batchFileName,
	})
	if err != nil {
		return core.ImportResult{}, FromError(err)
	}

	return validationResult(batch, resp)
}

// ImportUsers re-validates the batch remotely and uploads it only when every
// row passes. A failing validation is returned as the result with no upload.
func (r *Remote) ImportUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	validation, err := r.ValidateUsers(ctx, batch)
	if err != nil {
		return core.ImportResult{}, err
	}
	if !validation.Clean() {
		return validation, nil
	}

	content, err := core.EncodeUsers(batch)
	if err != nil {
		return core.ImportResult{}, FromError(err)
	}

	callCtx, cancel := r.callContext(ctx)
	resp, err := r.client.UploadUserData(callCtx, &rpc.UploadUserDataRequest{
		FileContent:      content,
		OriginalFileName: batchFileName,
	})
	cancel()
	if err != nil {
		return core.ImportResult{}, FromError(err)
	}

	r.logger.Debug("batch uploaded",
		slog.String("file_id", resp.FileID),
		slog.String("message", resp.Message),
		slog.Int("rows", len(batch)),
	)

	if int(resp.TotalRows) != len(batch) {
		return core.ImportResult{}, protocolError("service committed %d rows for a batch of %d", resp.TotalRows, len(batch))
	}

	committed, err := r.committedUsers(ctx, batch, resp)
	if err != nil {
		return core.ImportResult{}, err
	}

	return core.ImportResult{
		Successful:     committed,
		Failed:         make([]core.RowError, 0),
		TotalProcessed: len(batch),
	}, nil
}

// committedUsers pairs each batch record with the identity the service gave
// it. Records come from the upload response by position or, when the service
// did not return them, from the stored users with a matching email.
func (r *Remote) committedUsers(ctx context.Context, batch []core.User, resp *rpc.UploadUserDataResponse) ([]core.User, error) {
	committed := make([]core.User, len(batch))

	switch {
	case len(resp.Users) == len(batch):
		for i, w := range resp.Users {
			committed[i] = withIdentity(batch[i], w.ToCore())
		}
	case len(resp.Users) > 0:
		return nil, protocolError("service returned %d users for a batch of %d", len(resp.Users), len(batch))
	default:
		all, err := r.GetAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		// Walking the batch backwards, each record claims the newest stored
		// user with its email that no later record took.
		claimed := make(map[int]bool, len(batch))
		for i := len(batch) - 1; i >= 0; i-- {
			idx := latestUnclaimed(all, batch[i].Email, claimed)
			if idx < 0 {
				return nil, protocolError("no committed user for row %d", i+1)
			}
			claimed[idx] = true
			committed[i] = withIdentity(batch[i], all[idx])
		}
	}

	seen := make(map[string]bool, len(committed))
	for i, u := range committed {
		if u.ID == "" || seen[u.ID] {
			return nil, protocolError("row %d has a missing or repeated id %q", i+1, u.ID)
		}
		seen[u.ID] = true
	}
	return committed, nil
}

func latestUnclaimed(users []core.User, email string, claimed map[int]bool) int {
	email = strings.TrimSpace(email)
	for i := len(users) - 1; i >= 0; i-- {
		if !claimed[i] && strings.EqualFold(strings.TrimSpace(users[i].Email), email) {
			return i
		}
	}
	return -1
}

func withIdentity(u, stored core.User) core.User {
	u.ID = stored.ID
	u.CreatedAt = stored.CreatedAt
	return u
}

func protocolError(format string, args ...any) *TransportError {
	return &TransportError{Kind: KindUnknown, Err: fmt.Errorf(format, args...)}
}

func (r *Remote) GetAllUsers(ctx context.Context) ([]core.User, error) {
	return doRetry(ctx, r.retry, r.logger, "GetAllUsers", func(ctx context.Context) ([]core.User, error) {
		ctx, cancel := r.callContext(ctx)
		defer cancel()

		resp, err := r.client.GetAllUsers(ctx, &rpc.GetAllUsersRequest{})
		if err != nil {
			return nil, err
		}
		users := make([]core.User, len(resp.Users))
		for i, w := range resp.Users {
			users[i] = w.ToCore()
		}
		return users, nil
	})
}

func (r *Remote) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return doRetry(ctx, r.retry, r.logger, "GetUserById", func(ctx context.Context) (core.User, error) {
		ctx, cancel := r.callContext(ctx)
		defer cancel()

		resp, err := r.client.GetUserById(ctx, &rpc.GetUserByIdRequest{ID: id})
		return userFromResponse(resp, err)
	})
}

func (r *Remote) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return doRetry(ctx, r.retry, r.logger, "GetUserByEmail", func(ctx context.Context) (core.User, error) {
		ctx, cancel := r.callContext(ctx)
		defer cancel()

		resp, err := r.client.GetUserByEmail(ctx, &rpc.GetUserByEmailRequest{Email: email})
		return userFromResponse(resp, err)
	})
}

func (r *Remote) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func userFromResponse(resp *rpc.GetUserResponse, err error) (core.User, error) {
	if err != nil {
		return core.User{}, err
	}
	if resp.User == nil {
		return core.User{}, notFound()
	}
	return resp.User.ToCore(), nil
}

// validationResult rebuilds an ImportResult from the service's row errors.
// A row count that differs from the batch, or row numbers outside it, are a
// protocol violation: row positions could no longer be trusted.
func validationResult(batch []core.User, resp *rpc.ValidateUserDataResponse) (core.ImportResult, error) {
	if int(resp.TotalRows) != len(batch) {
		return core.ImportResult{}, protocolError("service parsed %d rows from a batch of %d", resp.TotalRows, len(batch))
	}

	failed := rpc.RowErrors(resp.Errors)
	sort.Slice(failed, func(i, j int) bool { return failed[i].Row < failed[j].Row })

	bad := make(map[int]bool, len(failed))
	for _, f := range failed {
		if f.Row < 1 || f.Row > len(batch) || bad[f.Row] {
			return core.ImportResult{}, protocolError("service reported row %d for a batch of %d", f.Row, len(batch))
		}
		bad[f.Row] = true
	}

	successful := make([]core.User, 0, len(batch)-len(failed))
	for i, u := range batch {
		if !bad[i+1] {
			successful = append(successful, u)
		}
	}

	return core.ImportResult{
		Successful:     successful,
		Failed:         failed,
		TotalProcessed: len(batch),
	}, nil
}
