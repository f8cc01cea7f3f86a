package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type selfDescribing struct{}

func (selfDescribing) Error() string { return "rpc failure" }

func (selfDescribing) UserMessage() UserMessage {
	return UserMessage{Message: "Not found", Action: "Check the id", Code: "RPC001"}
}

func TestMapError(t *testing.T) {
	_, tooMany := ParseUsers("firstName,lastName\nJohn,Doe,extra")
	_, malformed := ParseUsers("firstName\n\"open")

	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{"nil error returns empty", nil, "", ""},
		{
			name:        "size limit uses its own text",
			err:         fmt.Errorf("upload: %w", &SizeLimitError{Size: 10, Limit: 5 * 1024 * 1024}),
			wantCode:    "FILE001",
			wantMessage: "File size cannot exceed 5.000MB",
		},
		{"malformed csv", malformed, "FILE002", "File is not a valid CSV"},
		{"too many fields", tooMany, "FILE003", "Too many fields: expected 2 fields but parsed 3"},
		{"no file", ErrNoFile, "FILE004", "No file was selected"},
		{
			name:        "unsupported extension",
			err:         &ExtensionError{FileName: "a.txt", Accepted: []string{".csv"}},
			wantCode:    "FILE005",
			wantMessage: "Please upload a file with one of these extensions: .csv",
		},
		{"validation failed", fmt.Errorf("run: %w", ErrValidationFailed), "VAL001", "Some records failed validation"},
		{"user facing error wins", fmt.Errorf("lookup: %w", selfDescribing{}), "RPC001", "Not found"},
		{"session pattern", errors.New("session: invalid stage transition"), "SES001", "This action is not allowed at the current step"},
		{"case insensitive pattern", errors.New("EMPTY SELECTION"), "SES002", "No records are selected"},
		{"context timeout", context.DeadlineExceeded, "UPL005", "Request timed out"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000", "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t,
		"No file was selected (Code: FILE004). Please select a CSV file to upload",
		FormatUserError(ErrNoFile))
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.False(t, IsUserFacing(errors.New("boom")))
	assert.True(t, IsUserFacing(ErrNoFile))
}

func TestNewUserError(t *testing.T) {
	assert.Nil(t, NewUserError(nil))

	ue := NewUserError(ErrNoFile)
	assert.Equal(t, "No file was selected", ue.Error())
	assert.Equal(t, "FILE004", ue.User.Code)
	assert.True(t, errors.Is(ue, ErrNoFile))
}
