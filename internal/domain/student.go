package domain

// Student is a student record. The student code doubles as the document ID,
// so codes are unique by construction.
type Student struct {
	Code       string `bson:"_id" json:"student_code"`
	FirstName  string `bson:"first_name" json:"first_name"`
	LastName   string `bson:"last_name" json:"last_name"`
	GradeLevel string `bson:"grade_level,omitempty" json:"grade_level,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email      string `bson:"email,omitempty" json:"email,omitempty"`
	ClassName  string `bson:"class_name,omitempty" json:"class_name,omitempty"`
}
