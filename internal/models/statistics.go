package models

import "time"

// Quiz is a read-only catalog entry consumed by the statistics read path.
type Quiz struct {
	ID       string  `db:"id" json:"id"`
	CourseID string  `db:"course_id" json:"course_id"`
	Title    string  `db:"title" json:"title"`
	MaxScore float64 `db:"max_score" json:"max_score"`
}

// QuizAttempt is a student's attempt at a quiz.
type QuizAttempt struct {
	ID          string     `db:"id" json:"id"`
	QuizID      string     `db:"quiz_id" json:"quiz_id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	Score       float64    `db:"score" json:"score"`
	Status      string     `db:"status" json:"status"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
}

// Assignment is a read-only catalog entry consumed by the statistics read path.
type Assignment struct {
	ID       string  `db:"id" json:"id"`
	CourseID string  `db:"course_id" json:"course_id"`
	Title    string  `db:"title" json:"title"`
	MaxScore float64 `db:"max_score" json:"max_score"`
}

// Submission is a student's hand-in for an assignment.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Score        *float64   `db:"score" json:"score,omitempty"`
	Status       string     `db:"status" json:"status"`
	SubmittedAt  *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
}

// Submission and attempt states recognised by the aggregator.
const (
	AttemptStatusSubmitted    = "SUBMITTED"
	SubmissionStatusSubmitted = "SUBMITTED"
	SubmissionStatusGraded    = "GRADED"
)

// QuizResult is the best submitted attempt for one quiz.
type QuizResult struct {
	QuizID    string   `json:"quiz_id"`
	QuizTitle string   `json:"quiz_title"`
	MaxScore  float64  `json:"max_score"`
	Score     *float64 `json:"score,omitempty"`
	Attempted bool     `json:"attempted"`
}

// AssignmentResult is the latest submitted or graded submission for one
// assignment.
type AssignmentResult struct {
	AssignmentID    string   `json:"assignment_id"`
	AssignmentTitle string   `json:"assignment_title"`
	MaxScore        float64  `json:"max_score"`
	Score           *float64 `json:"score,omitempty"`
	Status          string   `json:"status,omitempty"`
	Submitted       bool     `json:"submitted"`
}

// EnrollmentStatistics is the completed-course report for one enrollment.
type EnrollmentStatistics struct {
	EnrollmentID      string             `json:"enrollment_id"`
	StudentID         string             `json:"student_id"`
	StudentName       string             `json:"student_name"`
	CourseID          string             `json:"course_id"`
	CourseTitle       string             `json:"course_title"`
	Status            EnrollmentStatus   `json:"status"`
	FinalGrade        *float64           `json:"final_grade,omitempty"`
	LessonsPercent    float64            `json:"lessons_percent"`
	AttendancePercent float64            `json:"attendance_percent"`
	Absences          int                `json:"absences"`
	QuizAverage       float64            `json:"quiz_average"`
	AssignmentAverage float64            `json:"assignment_average"`
	Quizzes           []QuizResult       `json:"quizzes"`
	Assignments       []AssignmentResult `json:"assignments"`
}
