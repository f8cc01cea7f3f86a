package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Upload rejection sentinels. Match with errors.Is.
var (
	ErrSizeLimitExceeded    = errors.New("file size limit exceeded")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrNoFile               = errors.New("no file provided")
	ErrValidationFailed     = errors.New("validation failed")

	errMissingHeader = errors.New("missing header row")
)

// ParseErrorKind classifies a structural parse failure.
type ParseErrorKind int

const (
	// Malformed covers anything the CSV reader rejects and input without a header.
	Malformed ParseErrorKind = iota
	// TooManyFields means a row has more populated fields than the header.
	TooManyFields
)

func (k ParseErrorKind) String() string {
	switch k {
	case TooManyFields:
		return "too_many_fields"
	default:
		return "malformed"
	}
}

// ParseError is returned by ParseRows and ParseUsers. No partial batch
// accompanies it.
type ParseError struct {
	Kind     ParseErrorKind
	Line     int // 1-based line in the source text, 0 if unknown
	Expected int // header field count (TooManyFields only)
	Got      int // populated field count (TooManyFields only)
	Err      error
}

func (e *ParseError) Error() string {
	if e.Kind == TooManyFields {
		return fmt.Sprintf("Too many fields: expected %d fields but parsed %d (line %d)", e.Expected, e.Got, e.Line)
	}
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SizeLimitError reports an upload larger than the configured maximum.
type SizeLimitError struct {
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("File size cannot exceed %.3fMB", float64(e.Limit)/1024/1024)
}

func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimitExceeded
}

// ExtensionError reports an upload whose name does not end in an accepted extension.
type ExtensionError struct {
	FileName string
	Accepted []string
}

func (e *ExtensionError) Error() string {
	return "Please upload a file with one of these extensions: " + strings.Join(e.Accepted, ", ")
}

func (e *ExtensionError) Unwrap() error {
	return ErrUnsupportedExtension
}

// UploadLimits are the checks applied to a file before it is parsed.
type UploadLimits struct {
	MaxSize            int64    // bytes; 0 disables the check
	AcceptedExtensions []string // e.g. ".csv"; empty accepts any name
}

// CheckUpload validates a file's name and size against limits.
// Extension is checked first, so a wrong file type is reported even when it is also too big.
func CheckUpload(fileName string, size int64, limits UploadLimits) error {
	if strings.TrimSpace(fileName) == "" {
		return ErrNoFile
	}

	if len(limits.AcceptedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(fileName))
		accepted := false
		for _, a := range limits.AcceptedExtensions {
			if strings.EqualFold(a, ext) {
				accepted = true
				break
			}
		}
		if !accepted {
			return &ExtensionError{FileName: fileName, Accepted: limits.AcceptedExtensions}
		}
	}

	if limits.MaxSize > 0 && size > limits.MaxSize {
		return &SizeLimitError{Size: size, Limit: limits.MaxSize}
	}
	return nil
}
