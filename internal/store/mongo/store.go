// Package mongo implements the student and attendance store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abolsttar/school-management/internal/domain"
)

const (
	studentsCollection   = "students"
	attendanceCollection = "attendance"
)

// Store persists students and attendance records. Every operation runs under
// the configured per-operation timeout.
type Store struct {
	db        *mongo.Database
	opTimeout time.Duration
}

func New(db *mongo.Database, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

// EnsureIndexes creates the unique (student_id, date) index on attendance.
// The index backs the one-record-per-student-per-day invariant.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.Collection(attendanceCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create attendance index: %w", err)
	}
	return nil
}

// CreateStudent inserts a new student. The student code is the document ID,
// so a duplicate code fails the insert.
func (s *Store) CreateStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.Collection(studentsCollection).InsertOne(ctx, student)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Student{}, domain.ErrDuplicateStudentCode
		}
		return domain.Student{}, fmt.Errorf("insert student: %w", err)
	}
	return student, nil
}

func (s *Store) GetStudent(ctx context.Context, code string) (domain.Student, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var student domain.Student
	err := s.db.Collection(studentsCollection).FindOne(ctx, bson.M{"_id": code}).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Student{}, domain.ErrStudentNotFound
		}
		return domain.Student{}, fmt.Errorf("find student: %w", err)
	}
	return student, nil
}

// ListStudents returns all students sorted by last name.
func (s *Store) ListStudents(ctx context.Context) ([]domain.Student, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cursor, err := s.db.Collection(studentsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "last_name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer cursor.Close(ctx)

	students := []domain.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// UpdateStudent replaces the mutable fields of an existing student and
// returns the stored record.
func (s *Store) UpdateStudent(ctx context.Context, code string, student domain.Student) (domain.Student, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"first_name":  student.FirstName,
		"last_name":   student.LastName,
		"grade_level": student.GradeLevel,
		"phone":       student.Phone,
		"email":       student.Email,
		"class_name":  student.ClassName,
	}}
	_, err := s.db.Collection(studentsCollection).UpdateOne(ctx, bson.M{"_id": code}, update)
	if err != nil {
		return domain.Student{}, fmt.Errorf("update student: %w", err)
	}

	var stored domain.Student
	err = s.db.Collection(studentsCollection).FindOne(ctx, bson.M{"_id": code}).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Student{}, domain.ErrStudentNotFound
		}
		return domain.Student{}, fmt.Errorf("find student: %w", err)
	}
	return stored, nil
}

func (s *Store) DeleteStudent(ctx context.Context, code string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.db.Collection(studentsCollection).DeleteOne(ctx, bson.M{"_id": code})
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrStudentNotFound
	}
	return nil
}

// MarkAttendance upserts the record for (student_id, date) and returns the
// stored state. Re-marking the same day overwrites status, note and
// recorded_by while keeping the record ID.
func (s *Store) MarkAttendance(ctx context.Context, record domain.AttendanceRecord) (domain.AttendanceRecord, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	filter := bson.M{"student_id": record.StudentID, "date": record.Date}
	update := bson.M{
		"$set": bson.M{
			"student_id":  record.StudentID,
			"date":        record.Date,
			"status":      record.Status,
			"note":        record.Note,
			"recorded_by": record.RecordedBy,
		},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}

	coll := s.db.Collection(attendanceCollection)
	if _, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("upsert attendance: %w", err)
	}

	var stored domain.AttendanceRecord
	if err := coll.FindOne(ctx, filter).Decode(&stored); err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("find attendance: %w", err)
	}
	return stored, nil
}

// ListAttendance returns records matching the optional date and student
// filters, oldest date first.
func (s *Store) ListAttendance(ctx context.Context, date, studentID string) ([]domain.AttendanceRecord, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	filter := bson.M{}
	if date != "" {
		filter["date"] = date
	}
	if studentID != "" {
		filter["student_id"] = studentID
	}

	cursor, err := s.db.Collection(attendanceCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer cursor.Close(ctx)

	records := []domain.AttendanceRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode attendance: %w", err)
	}
	return records, nil
}

// Ping checks database reachability for the health and readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}
