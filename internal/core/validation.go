package core

// validation.go provides field-level validation of candidate user records.
//
// Every rule runs independently and in a fixed order, so a record reports all
// of its defects at once and the messages always appear in the same sequence.
// The validator never fails: an empty defect list means the record is valid.

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Defect messages. The web API and CLI show these verbatim.
const (
	MsgFirstNameRequired = "First name is required"
	MsgLastNameRequired  = "Last name is required"
	MsgEmailRequired     = "Email is required"
	MsgEmailInvalid      = "Invalid email format"
	MsgPhoneRequired     = "Phone number is required"
	MsgPhoneInvalid      = "Invalid phone number format"
	MsgAddressRequired   = "Address is required"
	MsgBirthDateRequired = "Birth date is required"
	MsgBirthDateFormat   = "Birth date must be in YYYY-MM-DD format"
	MsgBirthDateCalendar = "Birth date is not a valid calendar date"
	MsgBirthDateFuture   = "Birth date cannot be in the future"
	MsgStatusInvalid     = "Status must be either active or inactive"
)

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern     = regexp.MustCompile(`^\+?[\d\s\-()]{10,}$`)
	birthDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

const dateLayout = "2006-01-02"

// RuleSet selects which optional fields are required.
type RuleSet string

const (
	// RulesStrict checks optional fields only when present.
	RulesStrict RuleSet = "strict"
	// RulesLenient additionally requires phone number, address and birth date.
	RulesLenient RuleSet = "lenient"
)

// ParseRuleSet converts a configuration value to a RuleSet.
func ParseRuleSet(s string) (RuleSet, error) {
	switch RuleSet(strings.ToLower(strings.TrimSpace(s))) {
	case RulesStrict, "":
		return RulesStrict, nil
	case RulesLenient:
		return RulesLenient, nil
	default:
		return "", fmt.Errorf("unknown validation rule set %q", s)
	}
}

// Validator checks one User at a time against a RuleSet.
// It holds no per-call state and is safe for concurrent use.
type Validator struct {
	rules RuleSet
	now   func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithRuleSet selects the rule set (default RulesStrict).
func WithRuleSet(rules RuleSet) ValidatorOption {
	return func(v *Validator) { v.rules = rules }
}

// WithClock overrides the source of "today" for the future-date check.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a Validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{rules: RulesStrict, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RuleSet returns the active rule set.
func (v *Validator) RuleSet() RuleSet {
	return v.rules
}

// Validate returns the defects of u in rule order. Nil means valid.
func (v *Validator) Validate(u User) []string {
	var defects []string
	add := func(msg string) {
		if msg != "" {
			defects = append(defects, msg)
		}
	}

	requireAll := v.rules == RulesLenient

	add(required(u.FirstName, MsgFirstNameRequired))
	add(required(u.LastName, MsgLastNameRequired))
	add(v.checkEmail(u.Email))
	add(v.checkPhone(u.PhoneNumber, requireAll))
	if requireAll {
		add(required(u.Address, MsgAddressRequired))
	}
	add(v.checkBirthDate(u.BirthDate, requireAll))
	add(v.checkStatus(u.Status))

	return defects
}

func required(value, msg string) string {
	if strings.TrimSpace(value) == "" {
		return msg
	}
	return ""
}

func (v *Validator) checkEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return MsgEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return MsgEmailInvalid
	}
	return ""
}

func (v *Validator) checkPhone(phone string, mustExist bool) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		if mustExist {
			return MsgPhoneRequired
		}
		return ""
	}
	if !phonePattern.MatchString(phone) {
		return MsgPhoneInvalid
	}
	return ""
}

func (v *Validator) checkBirthDate(raw string, mustExist bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if mustExist {
			return MsgBirthDateRequired
		}
		return ""
	}
	if !birthDatePattern.MatchString(raw) {
		return MsgBirthDateFormat
	}

	// time.Parse rejects out-of-range days such as 2023-02-30.
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return MsgBirthDateCalendar
	}

	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.After(today) {
		return MsgBirthDateFuture
	}
	return ""
}

func (v *Validator) checkStatus(s Status) string {
	if strings.TrimSpace(string(s)) == "" {
		return ""
	}
	if !s.Valid() {
		return MsgStatusInvalid
	}
	return ""
}
