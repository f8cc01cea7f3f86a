package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When operators hit an error they can quote the code, which points straight at
// the stage that rejected the file.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Size limit: File size cannot exceed N.NNNMB
//	          Action: Split the file into smaller files
//	          Match: errors.Is(err, ErrSizeLimitExceeded)
//
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Action: Check for unbalanced quotes and a header row
//	          Match: *ParseError with Kind Malformed
//
//	FILE003 - Too many fields: Too many fields: expected N fields but parsed M
//	          Action: Remove the extra values or add the missing header
//	          Match: *ParseError with Kind TooManyFields
//
//	FILE004 - No file: No file was selected
//	          Match: errors.Is(err, ErrNoFile)
//
//	FILE005 - Extension: Please upload a file with one of these extensions: ...
//	          Match: errors.Is(err, ErrUnsupportedExtension)
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Some records failed validation
//	         Match: errors.Is(err, ErrValidationFailed)
//
// # Backend Errors (RPC000-RPC099)
//
// Transport errors carry their own message through the UserFacing interface:
//
//	RPC000 - Unknown error / gRPC error: N
//	RPC001 - Not found
//	RPC002 - Internal server error
//	RPC003 - Backend unavailable or timed out
//
// # Session Errors (SES001-SES099)
//
// Matched by message pattern since the session package sits above core:
//
//	SES001 - Action is not allowed at this step       ("invalid stage transition")
//	SES002 - No records are selected                  ("empty selection")
//	SES003 - Selection refers to an unknown record    ("unknown entry key")
//	SES004 - Result arrived after the step was cancelled ("superseded")
//	SES005 - Import session not found                 ("session not found")
//	SES006 - Too many import sessions are open        ("too many active sessions")
//
// # Request Errors (UPL002-UPL005)
//
//	UPL002 - System busy                 ("too many concurrent uploads")
//	UPL004 - Request cancelled           ("context canceled")
//	UPL005 - Request timeout             ("context deadline exceeded")
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application logs
// for the original technical error when users report ERR000.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// UserFacing is implemented by errors that know their own user message.
// MapError consults it before any other rule.
type UserFacing interface {
	UserMessage() UserMessage
}

// typedMatchers map the core error types, checked in order.
var typedMatchers = []func(error) (UserMessage, bool){
	func(err error) (UserMessage, bool) {
		var sizeErr *SizeLimitError
		if !errors.As(err, &sizeErr) {
			return UserMessage{}, false
		}
		return UserMessage{
			Message: sizeErr.Error(),
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		}, true
	},
	func(err error) (UserMessage, bool) {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			return UserMessage{}, false
		}
		if parseErr.Kind == TooManyFields {
			return UserMessage{
				Message: fmt.Sprintf("Too many fields: expected %d fields but parsed %d", parseErr.Expected, parseErr.Got),
				Action:  fmt.Sprintf("Remove the extra values on line %d or add the missing header", parseErr.Line),
				Code:    "FILE003",
			}, true
		}
		return UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check for unbalanced quotes and make sure the first line is a header row",
			Code:    "FILE002",
		}, true
	},
	func(err error) (UserMessage, bool) {
		if !errors.Is(err, ErrNoFile) {
			return UserMessage{}, false
		}
		return UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		}, true
	},
	func(err error) (UserMessage, bool) {
		var extErr *ExtensionError
		if !errors.As(err, &extErr) {
			return UserMessage{}, false
		}
		return UserMessage{
			Message: extErr.Error(),
			Action:  "Save the file in an accepted format and try again",
			Code:    "FILE005",
		}, true
	},
	func(err error) (UserMessage, bool) {
		if !errors.Is(err, ErrValidationFailed) {
			return UserMessage{}, false
		}
		return UserMessage{
			Message: "Some records failed validation",
			Action:  "Fix or deselect the listed rows and validate again",
			Code:    "VAL001",
		}, true
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid stage transition",
		msg: UserMessage{
			Message: "This action is not allowed at the current step",
			Action:  "Finish or reset the current step first",
			Code:    "SES001",
		},
	},
	{
		pattern: "empty selection",
		msg: UserMessage{
			Message: "No records are selected",
			Action:  "Select at least one record and try again",
			Code:    "SES002",
		},
	},
	{
		pattern: "unknown entry key",
		msg: UserMessage{
			Message: "The selection refers to a record that is not in this upload",
			Action:  "Refresh the record list and select again",
			Code:    "SES003",
		},
	},
	{
		pattern: "superseded",
		msg: UserMessage{
			Message: "The result arrived after the step was cancelled or restarted",
			Action:  "Run the step again if you still need it",
			Code:    "SES004",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have been closed. Please start a new import",
			Code:    "SES005",
		},
	},
	{
		pattern: "too many active sessions",
		msg: UserMessage{
			Message: "Too many import sessions are open",
			Action:  "Close an unused session or try again later",
			Code:    "SES006",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Errors implementing UserFacing answer for themselves. Core error types are
// matched with errors.Is/As, and anything else falls back to case-insensitive
// text patterns. If nothing matches, the ERR000 fallback is returned.
//
// Example:
//
//	_, err := core.ParseUsers("firstName,lastName\nJohn,Doe,extra")
//	msg := core.MapError(err)
//	// msg.Code == "FILE003"
//	// msg.Message == "Too many fields: expected 2 fields but parsed 3"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var uf UserFacing
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}

	for _, match := range typedMatchers {
		if msg, ok := match(err); ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
