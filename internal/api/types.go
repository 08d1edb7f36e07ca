package api

import (
	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/usage"
)

// StudentRequest is the body of POST /students and PUT /students/{code}.
type StudentRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	StudentCode string `json:"student_code"`
	GradeLevel  string `json:"grade_level,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
}

// MarkAttendanceRequest is the body of POST /attendance/mark. The original
// clients send the code under either field name; student_code wins when both
// are present.
type MarkAttendanceRequest struct {
	StudentID   string `json:"student_id,omitempty"`
	StudentCode string `json:"student_code,omitempty"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	RecordedBy  string `json:"recorded_by,omitempty"`
}

// Code returns the student code, preferring student_code over student_id.
func (r MarkAttendanceRequest) Code() string {
	if r.StudentCode != "" {
		return r.StudentCode
	}
	return r.StudentID
}

// SlowestResponse is the /stats/slowest view.
type SlowestResponse struct {
	SlowestEndpoints []usage.EndpointLatency `json:"slowest_endpoints"`
}

// RecentResponse is the /stats/recent view.
type RecentResponse struct {
	RecentRequests []domain.RequestStat `json:"recent_requests"`
}

type ReadinessResponse struct {
	Ready bool `json:"ready"`
	Mongo bool `json:"mongo"`
	Redis bool `json:"redis"`
}

// HealthResponse is the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
