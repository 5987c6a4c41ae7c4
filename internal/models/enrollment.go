package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// EnrollmentStatus represents the lifecycle state of an admission cycle.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
)

// EnrollmentRole is the role the student holds inside the course.
type EnrollmentRole string

const (
	EnrollmentRoleStudent EnrollmentRole = "STUDENT"
	EnrollmentRoleTA      EnrollmentRole = "TA"
)

// EnrollMethod records who initiated the admission.
type EnrollMethod string

const (
	EnrollMethodSelf    EnrollMethod = "SELF"
	EnrollMethodAdmin   EnrollMethod = "ADMIN"
	EnrollMethodTeacher EnrollMethod = "TEACHER"
)

// ParseEnrollmentStatus normalises and validates a status value.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, error) {
	s := EnrollmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected,
		EnrollmentStatusCancelled, EnrollmentStatusDropped, EnrollmentStatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("unknown enrollment status %q", raw)
}

// ParseEnrollmentRole normalises and validates a role value.
func ParseEnrollmentRole(raw string) (EnrollmentRole, error) {
	r := EnrollmentRole(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case EnrollmentRoleStudent, EnrollmentRoleTA:
		return r, nil
	}
	return "", fmt.Errorf("unknown enrollment role %q", raw)
}

// ParseEnrollMethod normalises and validates a method value.
func ParseEnrollMethod(raw string) (EnrollMethod, error) {
	m := EnrollMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case EnrollMethodSelf, EnrollMethodAdmin, EnrollMethodTeacher:
		return m, nil
	}
	return "", fmt.Errorf("unknown enroll method %q", raw)
}

// transitions is the single source of truth for legal status edges.
// Creation (including a re-enroll reset) is modelled separately: a new
// cycle may only begin with PENDING or APPROVED, and only from a
// re-enrollable prior state.
var transitions = map[EnrollmentStatus]map[EnrollmentStatus]bool{
	EnrollmentStatusPending: {
		EnrollmentStatusApproved:  true,
		EnrollmentStatusRejected:  true,
		EnrollmentStatusCancelled: true,
	},
	EnrollmentStatusApproved: {
		EnrollmentStatusCancelled: true,
		EnrollmentStatusDropped:   true,
		EnrollmentStatusCompleted: true,
	},
	EnrollmentStatusRejected:  {},
	EnrollmentStatusCancelled: {},
	EnrollmentStatusDropped:   {},
	EnrollmentStatusCompleted: {},
}

// CanTransition reports whether from → to is a legal in-place edge.
func (s EnrollmentStatus) CanTransition(to EnrollmentStatus) bool {
	return transitions[s][to]
}

// IsTerminal reports whether the status permanently closes the
// (student, course) pair.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusDropped || s == EnrollmentStatusCompleted
}

// IsReEnrollable reports whether a new admission cycle may begin from
// this prior status.
func (s EnrollmentStatus) IsReEnrollable() bool {
	return s == EnrollmentStatusRejected || s == EnrollmentStatusCancelled
}

// IsActive reports whether the status holds a live claim on the
// (student, course) pair.
func (s EnrollmentStatus) IsActive() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// ValidInitialStatus reports whether the status may open an admission cycle.
func ValidInitialStatus(s EnrollmentStatus) bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// Progress carries denormalized completion counters. They are owned by
// the content-delivery collaborators; this engine only reads them.
type Progress struct {
	LessonsTotal         int `db:"lessons_total" json:"lessons_total"`
	LessonsCompleted     int `db:"lessons_completed" json:"lessons_completed"`
	QuizzesTotal         int `db:"quizzes_total" json:"quizzes_total"`
	QuizzesCompleted     int `db:"quizzes_completed" json:"quizzes_completed"`
	AssignmentsTotal     int `db:"assignments_total" json:"assignments_total"`
	AssignmentsCompleted int `db:"assignments_completed" json:"assignments_completed"`
	AttendanceTotal      int `db:"attendance_total" json:"attendance_total"`
	AttendancePresent    int `db:"attendance_present" json:"attendance_present"`
}

// Enrollment is one logical admission cycle for a (student, course) pair.
// The pair is protected by a unique index; a re-enroll resets the row in
// place rather than inserting a second one.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	Role      EnrollmentRole   `db:"role" json:"role"`
	Method    EnrollMethod     `db:"method" json:"method"`
	Note      string           `db:"note" json:"note,omitempty"`

	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	RespondedBy *string    `db:"responded_by" json:"responded_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DroppedAt   *time.Time `db:"dropped_at" json:"dropped_at,omitempty"`
	FinalGrade  *float64   `db:"final_grade" json:"final_grade,omitempty"`

	Progress

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with display fields.
type EnrollmentDetail struct {
	Enrollment
	StudentName     string `db:"student_name" json:"student_name"`
	StudentUsername string `db:"student_username" json:"student_username"`
	CourseTitle     string `db:"course_title" json:"course_title"`
	CourseCode      string `db:"course_code" json:"course_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Method    EnrollMethod
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StringArray re-exports pq.StringArray so callers outside the
// repository layer do not import the driver directly.
type StringArray = pq.StringArray
