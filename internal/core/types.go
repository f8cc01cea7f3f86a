package core

import "time"

// Status is the account state carried by an imported user.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the enumerated statuses.
// The empty status is not valid; callers treat it as absent.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// User is one candidate record parsed from an upload.
//
// Optional fields use the empty string for "absent". Status keeps the raw
// input so an invalid value can be reported back to the operator. ID stays
// empty until an import assigns it, and CreatedAt is set by the store that
// committed the record.
type User struct {
	ID          string    `json:"id,omitempty"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Address     string    `json:"address,omitempty"`
	BirthDate   string    `json:"birthDate,omitempty"` // YYYY-MM-DD
	Status      Status    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// RowError lists the defects found on one record.
// Row is the 1-based position of the record within the batch it came from.
type RowError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

// ImportResult is the outcome of one validation or import stage.
//
// For a single stage TotalProcessed == len(Successful)+len(Failed), and the
// failed rows plus the implied successful rows partition 1..TotalProcessed.
type ImportResult struct {
	Successful     []User     `json:"successful"`
	Failed         []RowError `json:"failed"`
	TotalProcessed int        `json:"totalProcessed"`
}

// Clean reports whether no record failed.
func (r ImportResult) Clean() bool {
	return len(r.Failed) == 0
}

// Committed reports whether the result is clean and every record carries an id.
func (r ImportResult) Committed() bool {
	if !r.Clean() {
		return false
	}
	for _, u := range r.Successful {
		if u.ID == "" {
			return false
		}
	}
	return true
}

// FailedRows returns the set of row positions that failed.
func (r ImportResult) FailedRows() map[int]bool {
	rows := make(map[int]bool, len(r.Failed))
	for _, f := range r.Failed {
		rows[f.Row] = true
	}
	return rows
}
