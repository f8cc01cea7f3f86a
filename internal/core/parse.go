package core

// parse.go turns raw upload text into ordered rows and typed User records.
//
// Parsing is strict about structure: a row carrying more populated fields than
// the header is rejected outright instead of having its extra values dropped.
// Blank lines are skipped and never count as rows, so the position of a row in
// the returned slice is its RowPosition for every later stage.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Canonical field names, in the order the remote service expects them.
const (
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldEmail       = "email"
	FieldPhoneNumber = "phoneNumber"
	FieldAddress     = "address"
	FieldBirthDate   = "birthDate"
	FieldStatus      = "status"
)

// CanonicalHeader is the header row written when a batch is re-serialized.
var CanonicalHeader = []string{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldPhoneNumber,
	FieldAddress,
	FieldBirthDate,
	FieldStatus,
}

// headerAliases maps the display headers of exported spreadsheets onto the
// canonical field names.
var headerAliases = map[string]string{
	"First Name":   FieldFirstName,
	"Last Name":    FieldLastName,
	"Email":        FieldEmail,
	"Phone Number": FieldPhoneNumber,
	"Address":      FieldAddress,
	"Birth Date":   FieldBirthDate,
	"Status":       FieldStatus,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseRows parses delimited text into field-keyed rows in file order.
//
// The first non-blank line is the header. Header names are trimmed and display
// aliases are mapped to canonical names; unknown columns are kept as-is. Cell
// values are trimmed. Short rows yield empty values for the missing fields.
func ParseRows(text string) ([]map[string]string, error) {
	data := sanitizeUTF8(bytes.TrimPrefix([]byte(text), utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var header []string
	rows := make([]map[string]string, 0)

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformedError(err)
		}
		if isEmptyRow(record) {
			continue
		}

		if header == nil {
			header = normalizeHeader(record)
			continue
		}

		if populated := countPopulated(record); populated > len(header) {
			line, _ := r.FieldPos(0)
			return nil, &ParseError{
				Kind:     TooManyFields,
				Line:     line,
				Expected: len(header),
				Got:      populated,
			}
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, &ParseError{Kind: Malformed, Line: 1, Err: errMissingHeader}
	}
	return rows, nil
}

// ParseUsers parses delimited text into User records in file order.
func ParseUsers(text string) ([]User, error) {
	rows, err := ParseRows(text)
	if err != nil {
		return nil, err
	}

	users := make([]User, len(rows))
	for i, row := range rows {
		users[i] = UserFromRow(row)
	}
	return users, nil
}

// UserFromRow builds a User from a canonical field-keyed row.
// Fields missing from the row are left empty.
func UserFromRow(row map[string]string) User {
	return User{
		FirstName:   row[FieldFirstName],
		LastName:    row[FieldLastName],
		Email:       row[FieldEmail],
		PhoneNumber: row[FieldPhoneNumber],
		Address:     row[FieldAddress],
		BirthDate:   row[FieldBirthDate],
		Status:      Status(row[FieldStatus]),
	}
}

// rowColumn is the trailing column EncodeUsers adds to every record. It holds
// the 1-based row position, so a record whose fields are all empty is still a
// non-blank line and keeps its position when the text is parsed again.
const rowColumn = "row"

// EncodeUsers re-serializes a batch as CSV with CanonicalHeader and rowColumn
// first. Every record parses back through ParseUsers, in order and minus ids;
// surrounding whitespace is trimmed on the way back like any uploaded cell.
func EncodeUsers(users []User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append(append(make([]string, 0, len(CanonicalHeader)+1), CanonicalHeader...), rowColumn)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, u := range users {
		record := []string{
			u.FirstName,
			u.LastName,
			u.Email,
			u.PhoneNumber,
			u.Address,
			u.BirthDate,
			string(u.Status),
			strconv.Itoa(i + 1),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeHeader(record []string) []string {
	header := make([]string, len(record))
	for i, name := range record {
		name = strings.TrimSpace(name)
		if canonical, ok := headerAliases[name]; ok {
			name = canonical
		}
		header[i] = name
	}
	return header
}

func countPopulated(record []string) int {
	n := 0
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

func malformedError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Kind: Malformed, Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Kind: Malformed, Err: err}
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
