package domain

import "errors"

var (
	// ErrStudentNotFound is returned by lookups for a student code that has
	// no record.
	ErrStudentNotFound = errors.New("student not found")

	// ErrDuplicateStudentCode is returned when creating a student whose code
	// is already taken.
	ErrDuplicateStudentCode = errors.New("student_code already exists")
)
