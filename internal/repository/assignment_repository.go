package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/lms-enroll-api/internal/models"
)

// AssignmentRepository serves the statistics read path: assignment
// catalog entries and a student's submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByCourse returns all assignments of a course.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, title, max_score FROM assignments WHERE course_id = $1 ORDER BY title`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindSubmissionsByAssignmentsAndStudent returns the student's submitted
// or graded submissions against the given assignments.
func (r *AssignmentRepository) FindSubmissionsByAssignmentsAndStudent(ctx context.Context, assignmentIDs []string, studentID string) ([]models.Submission, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, assignment_id, student_id, score, status, submitted_at
        FROM submissions
        WHERE assignment_id = ANY($1) AND student_id = $2 AND status IN ($3, $4)`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, pq.Array(assignmentIDs), studentID,
		models.SubmissionStatusSubmitted, models.SubmissionStatusGraded); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}
