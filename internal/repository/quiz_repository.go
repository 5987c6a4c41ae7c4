package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/lms-enroll-api/internal/models"
)

// QuizRepository serves the statistics read path: quiz catalog entries
// and a student's attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// ListByCourse returns all quizzes of a course.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, max_score FROM quizzes WHERE course_id = $1 ORDER BY title`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// FindAttemptsByQuizzesAndStudent returns all submitted attempts the
// student made against the given quizzes.
func (r *QuizRepository) FindAttemptsByQuizzesAndStudent(ctx context.Context, quizIDs []string, studentID string) ([]models.QuizAttempt, error) {
	if len(quizIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, quiz_id, student_id, score, status, submitted_at
        FROM quiz_attempts
        WHERE quiz_id = ANY($1) AND student_id = $2 AND status = $3`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, pq.Array(quizIDs), studentID, models.AttemptStatusSubmitted); err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	return attempts, nil
}
