package domain

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
)

// ValidStatus reports whether s is one of the recognized attendance states.
func ValidStatus(s AttendanceStatus) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// AttendanceRecord is one student's attendance for one calendar day.
// Exactly one record exists per (StudentID, Date); marking the same day
// again overwrites the previous record.
type AttendanceRecord struct {
	ID         string           `bson:"_id" json:"id"`
	StudentID  string           `bson:"student_id" json:"student_id"`
	Date       string           `bson:"date" json:"date"` // YYYY-MM-DD
	Status     AttendanceStatus `bson:"status" json:"status"`
	Note       string           `bson:"note,omitempty" json:"note,omitempty"`
	RecordedBy string           `bson:"recorded_by,omitempty" json:"recorded_by,omitempty"`
}
