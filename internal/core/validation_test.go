package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func validUser() User {
	return User{
		FirstName:   "John",
		LastName:    "Doe",
		Email:       "john@example.com",
		PhoneNumber: "+1234567890",
		Address:     "123 Main St",
		BirthDate:   "1990-01-01",
		Status:      StatusActive,
	}
}

func TestValidator_Strict(t *testing.T) {
	v := NewValidator(WithClock(fixedClock))

	tests := []struct {
		name   string
		mutate func(*User)
		want   []string
	}{
		{"valid user", func(*User) {}, nil},
		{"optional fields absent", func(u *User) {
			u.PhoneNumber, u.Address, u.BirthDate, u.Status = "", "", "", ""
		}, nil},
		{"blank first name", func(u *User) { u.FirstName = "   " }, []string{MsgFirstNameRequired}},
		{"missing last name", func(u *User) { u.LastName = "" }, []string{MsgLastNameRequired}},
		{"missing email", func(u *User) { u.Email = "" }, []string{MsgEmailRequired}},
		{"email without domain", func(u *User) { u.Email = "invalid@" }, []string{MsgEmailInvalid}},
		{"email with two ats", func(u *User) { u.Email = "a@b@c.com" }, []string{MsgEmailInvalid}},
		{"email with space", func(u *User) { u.Email = "a b@c.com" }, []string{MsgEmailInvalid}},
		{"minimal email", func(u *User) { u.Email = "a@b.com" }, nil},
		{"formatted phone", func(u *User) { u.PhoneNumber = "+1 (234) 567-8900" }, nil},
		{"short phone", func(u *User) { u.PhoneNumber = "123" }, []string{MsgPhoneInvalid}},
		{"phone with letters", func(u *User) { u.PhoneNumber = "abc1234567890" }, []string{MsgPhoneInvalid}},
		{"birth date wrong shape", func(u *User) { u.BirthDate = "01/01/1990" }, []string{MsgBirthDateFormat}},
		{"birth date feb 30", func(u *User) { u.BirthDate = "2023-02-30" }, []string{MsgBirthDateCalendar}},
		{"birth date day 31 in 30-day month", func(u *User) { u.BirthDate = "2023-04-31" }, []string{MsgBirthDateCalendar}},
		{"birth date leap day", func(u *User) { u.BirthDate = "2020-02-29" }, nil},
		{"birth date today", func(u *User) { u.BirthDate = "2024-01-01" }, nil},
		{"birth date tomorrow", func(u *User) { u.BirthDate = "2024-01-02" }, []string{MsgBirthDateFuture}},
		{"status capitalised", func(u *User) { u.Status = "Active" }, []string{MsgStatusInvalid}},
		{"status unknown", func(u *User) { u.Status = "weird" }, []string{MsgStatusInvalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUser()
			tt.mutate(&u)
			assert.Equal(t, tt.want, v.Validate(u))
		})
	}
}

func TestValidator_Lenient(t *testing.T) {
	v := NewValidator(WithRuleSet(RulesLenient), WithClock(fixedClock))

	u := validUser()
	assert.Empty(t, v.Validate(u))

	u.PhoneNumber, u.Address, u.BirthDate = "", "", ""
	assert.Equal(t, []string{MsgPhoneRequired, MsgAddressRequired, MsgBirthDateRequired}, v.Validate(u))

	u = validUser()
	u.PhoneNumber = "123"
	assert.Equal(t, []string{MsgPhoneInvalid}, v.Validate(u), "format checks match strict")
}

func TestValidator_RuleOrder(t *testing.T) {
	v := NewValidator(WithClock(fixedClock))

	got := v.Validate(User{
		FirstName:   "",
		LastName:    "",
		Email:       "bad",
		PhoneNumber: "1",
		BirthDate:   "3000-01-01",
		Status:      "nope",
	})

	assert.Equal(t, []string{
		MsgFirstNameRequired,
		MsgLastNameRequired,
		MsgEmailInvalid,
		MsgPhoneInvalid,
		MsgBirthDateFuture,
		MsgStatusInvalid,
	}, got)
}

func TestValidator_IsPure(t *testing.T) {
	v := NewValidator(WithClock(fixedClock))
	u := User{FirstName: "Jane", Email: "bad-email"}

	first := v.Validate(u)
	second := v.Validate(u)
	assert.Equal(t, first, second)
	assert.Equal(t, User{FirstName: "Jane", Email: "bad-email"}, u)
}

func TestParseRuleSet(t *testing.T) {
	tests := []struct {
		in      string
		want    RuleSet
		wantErr bool
	}{
		{"", RulesStrict, false},
		{"strict", RulesStrict, false},
		{" Lenient ", RulesLenient, false},
		{"loose", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRuleSet(tt.in)
		if tt.wantErr {
			require.Error(t, err, "ParseRuleSet(%q)", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
