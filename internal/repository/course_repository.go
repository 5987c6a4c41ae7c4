package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/lms-enroll-api/internal/models"
)

// CourseRepository is the read-only course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, code, subject_id, status, capacity,
        enroll_requires_approval, enroll_password_hash, teacher_ids, end_date
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}
