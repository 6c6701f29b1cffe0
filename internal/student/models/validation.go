package models

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Document field names, as they appear in JSON bodies and stored documents.
const (
	FieldUID        = "uid"
	FieldName       = "name"
	FieldEmail      = "email"
	FieldDepartment = "department"
	FieldYear       = "year"
	FieldCreatedAt  = "createdAt"
	FieldRollNumber = "rollNumber"
	FieldIsResident = "isResident"
	FieldBlock      = "block"
	FieldRoomNumber = "roomNumber"
	FieldGender     = "gender"
)

// ImmutableFields may never appear in a profile update, in reporting order.
var ImmutableFields = []string{FieldUID, FieldEmail, FieldName, FieldDepartment, FieldYear, FieldCreatedAt}

var fourDigits = regexp.MustCompile(`^\d{4}$`)

// rule pairs a value with the predicate it must satisfy. Every rule in a list
// is evaluated; failures accumulate in list order.
type rule[T any] struct {
	value   T
	check   func(T) bool
	message string
}

func evaluate[T any](rules []rule[T]) []string {
	var errs []string
	for _, r := range rules {
		if !r.check(r.value) {
			errs = append(errs, r.message)
		}
	}
	return errs
}

// ValidationResult reports every violated rule.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// LoginData is the identity-derived record checked before first persistence.
type LoginData struct {
	UID        string
	Name       string
	Email      string
	Department string
	Year       string
}

// ValidateLoginData checks uid, name, email, department and year, in that order.
func ValidateLoginData(d LoginData) ValidationResult {
	errs := evaluate([]rule[string]{
		{d.UID, nonEmpty, "Valid UID is required"},
		{d.Name, nonBlank, "Valid name is required"},
		{d.Email, func(v string) bool { return strings.Contains(v, "@") }, "Valid email is required"},
		{d.Department, nonEmpty, "Valid department is required"},
		{d.Year, fourDigits.MatchString, "Valid year (4 digits) is required"},
	})
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// UpdateResult is the outcome of ValidateProfileUpdate. Sanitized is filled
// even when IsValid is false; callers must check IsValid before persisting.
type UpdateResult struct {
	IsValid   bool
	Errors    []string
	Sanitized ProfileUpdate
}

// ValidateProfileUpdate checks a proposed update decoded from JSON. Absent
// fields are not errors; only present fields with bad values are. The input
// map is not modified.
func ValidateProfileUpdate(fields map[string]any) UpdateResult {
	var errs []string

	for _, name := range ImmutableFields {
		if _, ok := fields[name]; ok {
			errs = append(errs, fmt.Sprintf("Field '%s' cannot be updated", name))
		}
	}

	var present []rule[any]
	addIfPresent := func(name string, check func(any) bool, message string) {
		if v, ok := fields[name]; ok {
			present = append(present, rule[any]{v, check, message})
		}
	}
	addIfPresent(FieldRollNumber, nullOr(isNonBlankString), "Roll number must be a non-empty string")
	addIfPresent(FieldIsResident, nullOr(oneOf(ResidentYes, ResidentNo)), `isResident must be either "Yes" or "No"`)
	addIfPresent(FieldGender, nullOr(oneOf(GenderMale, GenderFemale, GenderOther)), `Gender must be "Male", "Female", or "Other"`)
	// A day scholar's block and room are cleared below, so their values are
	// not checked.
	if fields[FieldIsResident] != ResidentNo {
		addIfPresent(FieldBlock, nullOr(isString), "Block must be a string")
		addIfPresent(FieldRoomNumber, nullOr(isString), "Room number must be a string")
	}
	errs = append(errs, evaluate(present)...)

	sanitized := ProfileUpdate{
		RollNumber: optionalFrom(fields, FieldRollNumber),
		IsResident: optionalFrom(fields, FieldIsResident),
		Block:      optionalFrom(fields, FieldBlock),
		RoomNumber: optionalFrom(fields, FieldRoomNumber),
		Gender:     optionalFrom(fields, FieldGender),
	}

	switch fields[FieldIsResident] {
	case ResidentNo:
		sanitized.Block = Null()
		sanitized.RoomNumber = Null()
	case ResidentYes:
		errs = append(errs, evaluate([]rule[any]{
			{fields[FieldBlock], isNonBlankString, "Block is required for residents"},
			{fields[FieldRoomNumber], isNonBlankString, "Room number is required for residents"},
		})...)
	}

	return UpdateResult{IsValid: len(errs) == 0, Errors: errs, Sanitized: sanitized}
}

// optionalFrom lifts a present string or null into an Optional. Values of any
// other type are left unset; their rule has already failed.
func optionalFrom(fields map[string]any, name string) Optional {
	v, ok := fields[name]
	if !ok {
		return Optional{}
	}
	switch s := v.(type) {
	case nil:
		return Null()
	case string:
		return Some(s)
	default:
		return Optional{}
	}
}

func nonEmpty(v string) bool {
	return v != ""
}

func nonBlank(v string) bool {
	return strings.TrimSpace(v) != ""
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isNonBlankString(v any) bool {
	s, ok := v.(string)
	return ok && nonBlank(s)
}

func nullOr(check func(any) bool) func(any) bool {
	return func(v any) bool {
		return v == nil || check(v)
	}
}

func oneOf(allowed ...string) func(any) bool {
	return func(v any) bool {
		s, ok := v.(string)
		return ok && slices.Contains(allowed, s)
	}
}
