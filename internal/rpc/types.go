// Package rpc implements the userimport.v1.UserService wire protocol.
//
// Messages are plain Go structs carried by a JSON codec registered with grpc
// under the content-subtype "json". Field names follow the service's proto
// definition so any client speaking grpc+json can call it.
package rpc

import (
	"time"

	"github.com/JonMunkholm/userimport/internal/core"
)

// User is the wire form of a committed user record.
type User struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	BirthDate   string `json:"birthDate,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"` // RFC 3339
}

// ValidationError lists the defects of one row of an uploaded file.
type ValidationError struct {
	Row    int32    `json:"row"`
	Errors []string `json:"errors"`
}

type ValidateUserDataRequest struct {
	FileContent      []byte `json:"fileContent"`
	OriginalFileName string `json:"originalFileName"`
}

// ValidateUserDataResponse reports the row errors of an uploaded file.
// TotalRows is the number of records the service parsed from it.
type ValidateUserDataResponse struct {
	IsValid   bool              `json:"isValid"`
	Errors    []ValidationError `json:"errors"`
	Message   string            `json:"message"`
	TotalRows int32             `json:"totalRows"`
}

type UploadUserDataRequest struct {
	FileContent      []byte `json:"fileContent"`
	OriginalFileName string `json:"originalFileName"`
}

// UploadUserDataResponse reports a committed upload. Users carries the
// committed records in file order; older servers may omit it.
type UploadUserDataResponse struct {
	FileID    string `json:"fileId"`
	Message   string `json:"message"`
	Users     []User `json:"users,omitempty"`
	TotalRows int32  `json:"totalRows"`
}

type GetUserByIdRequest struct {
	ID string `json:"id"`
}

type GetUserByEmailRequest struct {
	Email string `json:"email"`
}

type GetUserResponse struct {
	User *User `json:"user"`
}

type GetAllUsersRequest struct{}

type GetAllUsersResponse struct {
	Users []User `json:"users"`
}

// FromCore converts a core record to its wire form.
func FromCore(u core.User) User {
	w := User{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		BirthDate:   u.BirthDate,
		Status:      string(u.Status),
	}
	if !u.CreatedAt.IsZero() {
		w.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return w
}

// ToCore converts a wire record to a core record. An unparseable createdAt
// is dropped rather than failing the call.
func (w User) ToCore() core.User {
	u := core.User{
		ID:          w.ID,
		FirstName:   w.FirstName,
		LastName:    w.LastName,
		Email:       w.Email,
		PhoneNumber: w.PhoneNumber,
		Address:     w.Address,
		BirthDate:   w.BirthDate,
		Status:      core.Status(w.Status),
	}
	if w.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
			u.CreatedAt = t
		}
	}
	return u
}

// RowErrors converts wire validation errors into core row errors.
func RowErrors(errs []ValidationError) []core.RowError {
	out := make([]core.RowError, 0, len(errs))
	for _, e := range errs {
		out = append(out, core.RowError{Row: int(e.Row), Errors: e.Errors})
	}
	return out
}

func validationErrors(failed []core.RowError) []ValidationError {
	out := make([]ValidationError, 0, len(failed))
	for _, f := range failed {
		out = append(out, ValidationError{Row: int32(f.Row), Errors: f.Errors})
	}
	return out
}

func (x *ValidateUserDataRequest) GetFileContent() []byte {
	if x != nil {
		return x.FileContent
	}
	return nil
}

func (x *ValidateUserDataRequest) GetOriginalFileName() string {
	if x != nil {
		return x.OriginalFileName
	}
	return ""
}

func (x *UploadUserDataRequest) GetFileContent() []byte {
	if x != nil {
		return x.FileContent
	}
	return nil
}

func (x *UploadUserDataRequest) GetOriginalFileName() string {
	if x != nil {
		return x.OriginalFileName
	}
	return ""
}

func (x *GetUserByIdRequest) GetID() string {
	if x != nil {
		return x.ID
	}
	return ""
}

func (x *GetUserByEmailRequest) GetEmail() string {
	if x != nil {
		return x.Email
	}
	return ""
}
