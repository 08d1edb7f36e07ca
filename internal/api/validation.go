package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/abolsttar/school-management/internal/domain"
)

// validateStudent checks a student payload and returns the normalized
// student code (trimmed and uppercased).
func validateStudent(req StudentRequest) (string, error) {
	if req.FirstName == "" {
		return "", fmt.Errorf("first_name is required")
	}
	if len(req.FirstName) > 100 {
		return "", fmt.Errorf("first_name must be at most 100 characters")
	}
	if req.LastName == "" {
		return "", fmt.Errorf("last_name is required")
	}
	if len(req.LastName) > 100 {
		return "", fmt.Errorf("last_name must be at most 100 characters")
	}

	code := strings.ToUpper(strings.TrimSpace(req.StudentCode))
	if code == "" {
		return "", fmt.Errorf("student_code is required")
	}
	if len(code) > 50 {
		return "", fmt.Errorf("student_code must be at most 50 characters")
	}

	if len(req.GradeLevel) > 20 {
		return "", fmt.Errorf("grade_level must be at most 20 characters")
	}
	if len(req.Phone) > 20 {
		return "", fmt.Errorf("phone must be at most 20 characters")
	}
	if len(req.ClassName) > 50 {
		return "", fmt.Errorf("class_name must be at most 50 characters")
	}
	if req.Email != "" {
		if err := validateEmail(req.Email); err != nil {
			return "", err
		}
	}

	return code, nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return fmt.Errorf("email is not a valid address")
	}
	return nil
}

func validateMarkAttendance(req MarkAttendanceRequest) error {
	if req.Code() == "" {
		return fmt.Errorf("student_code is required")
	}
	if err := validateDate(req.Date); err != nil {
		return err
	}
	if !domain.ValidStatus(domain.AttendanceStatus(req.Status)) {
		return fmt.Errorf("status must be one of present, absent, late")
	}
	if len(req.Note) > 500 {
		return fmt.Errorf("note must be at most 500 characters")
	}
	if len(req.RecordedBy) > 100 {
		return fmt.Errorf("recorded_by must be at most 100 characters")
	}
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("date must be in YYYY-MM-DD format")
	}
	return nil
}
