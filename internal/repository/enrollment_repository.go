package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/lms-enroll-api/internal/models"
)

// Sentinel errors surfaced by conditional writes. The service layer maps
// them onto the domain error taxonomy.
var (
	// ErrCourseFull means the capacity guard rejected the insert.
	ErrCourseFull = errors.New("course capacity reached")
	// ErrDuplicatePair means the (student, course) unique index rejected
	// a second concurrent admission cycle.
	ErrDuplicatePair = errors.New("enrollment already exists for pair")
	// ErrStaleStatus means a guarded update lost the race: the row no
	// longer holds the status the caller observed.
	ErrStaleStatus = errors.New("enrollment status changed concurrently")
)

const enrollmentColumns = `id, student_id, course_id, status, role, method, note,
	responded_at, responded_by, completed_at, dropped_at, final_grade,
	lessons_total, lessons_completed, quizzes_total, quizzes_completed,
	assignments_total, assignments_completed, attendance_total, attendance_present,
	created_at, updated_at`

// EnrollmentRepository handles persistence of admission cycles.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("e.method = $%d", len(args)+1))
		args = append(args, filter.Method)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"updated_at":   "e.updated_at",
		"status":       "e.status",
		"student_name": "s.full_name",
		"course_title": "c.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.*, s.full_name AS student_name, s.username AS student_username,
        c.title AS course_title, c.code AS course_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and course display fields.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.*, s.full_name AS student_name, s.username AS student_username,
        c.title AS course_title, c.code AS course_code
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByPair returns the admission cycle for a (student, course) pair.
// The pair is unique, so at most one row exists; ORDER BY keeps the
// lookup deterministic should the constraint ever be relaxed.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND course_id = $2
        ORDER BY created_at DESC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts a new admission cycle. The whole check-then-insert runs
// under a per-course advisory lock so the capacity count and the insert
// are atomic against concurrent creates. A nil capacity disables the
// guard. Returns ErrCourseFull or ErrDuplicatePair on the losing side.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment, capacity *int) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockCourse(ctx, tx, enrollment.CourseID); err != nil {
		return err
	}

	if capacity != nil {
		var approved int
		const countQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
		if err := tx.GetContext(ctx, &approved, countQuery, enrollment.CourseID, models.EnrollmentStatusApproved); err != nil {
			return fmt.Errorf("count approved enrollments: %w", err)
		}
		if approved >= *capacity {
			return ErrCourseFull
		}
	}

	const query = `INSERT INTO enrollments (id, student_id, course_id, status, role, method, note, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :role, :method, :note, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePair
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// ReopenCycle resets a rejected or cancelled cycle in place, starting a
// new admission cycle for the same pair. The UPDATE is guarded on the
// re-enrollable statuses so two concurrent re-enrolls cannot both win,
// and the capacity guard applies when the cycle reopens as APPROVED.
func (r *EnrollmentRepository) ReopenCycle(ctx context.Context, id string, status models.EnrollmentStatus, role models.EnrollmentRole, method models.EnrollMethod, note string, capacity *int, courseID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reopen cycle: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockCourse(ctx, tx, courseID); err != nil {
		return err
	}

	if capacity != nil && status == models.EnrollmentStatusApproved {
		var approved int
		const countQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
		if err := tx.GetContext(ctx, &approved, countQuery, courseID, models.EnrollmentStatusApproved); err != nil {
			return fmt.Errorf("count approved enrollments: %w", err)
		}
		if approved >= *capacity {
			return ErrCourseFull
		}
	}

	const query = `UPDATE enrollments SET status = $2, role = $3, method = $4, note = $5,
        responded_at = NULL, responded_by = NULL, completed_at = NULL, dropped_at = NULL,
        final_grade = NULL, updated_at = $6
        WHERE id = $1 AND status IN ($7, $8)`
	res, err := tx.ExecContext(ctx, query, id, status, role, method, note, time.Now().UTC(),
		models.EnrollmentStatusRejected, models.EnrollmentStatusCancelled)
	if err != nil {
		return fmt.Errorf("reopen cycle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen cycle rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleStatus
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reopen cycle: %w", err)
	}
	return nil
}

// Update writes back mutable fields, guarded on the status the caller
// observed. Zero rows means the row moved underneath us.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment, priorStatus models.EnrollmentStatus) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = $2, role = $3, note = $4,
        responded_at = $5, responded_by = $6, completed_at = $7, dropped_at = $8,
        final_grade = $9, updated_at = $10
        WHERE id = $1 AND status = $11`
	res, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.Status, enrollment.Role, enrollment.Note,
		enrollment.RespondedAt, enrollment.RespondedBy, enrollment.CompletedAt,
		enrollment.DroppedAt, enrollment.FinalGrade, enrollment.UpdatedAt, priorStatus)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// HasCompletedForSubject reports whether the student completed any
// course offering of the given subject. Used by the prerequisite check.
func (r *EnrollmentRepository) HasCompletedForSubject(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND c.subject_id = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID, models.EnrollmentStatusCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check completed enrollment: %w", err)
	}
	return true, nil
}

// lockCourse serialises capacity-sensitive writes per course for the
// duration of the transaction.
func lockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, courseID); err != nil {
		return fmt.Errorf("lock course: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
