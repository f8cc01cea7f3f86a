package session

import "github.com/JonMunkholm/userimport/internal/core"

// Stage is the step an import session is at.
type Stage int

const (
	StageUploading Stage = iota
	StageSelecting
	StageValidating
	StageImporting
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageUploading:
		return "uploading"
	case StageSelecting:
		return "selecting"
	case StageValidating:
		return "validating"
	case StageImporting:
		return "importing"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the stage by name in JSON.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID            string             `json:"id"`
	Stage         Stage              `json:"stage"`
	Processing    bool               `json:"processing"`
	FileName      string             `json:"fileName,omitempty"`
	Entries       []Entry            `json:"entries"`
	Selected      []string           `json:"selected"`
	Validation    *core.ImportResult `json:"validation,omitempty"`
	Import        *core.ImportResult `json:"import,omitempty"`
	LastError     string             `json:"lastError,omitempty"`
	LastErrorCode string             `json:"lastErrorCode,omitempty"`
}
