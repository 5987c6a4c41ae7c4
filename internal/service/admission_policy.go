package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/lms-enroll-api/internal/models"
	appErrors "github.com/campuskit/lms-enroll-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type completionReader interface {
	HasCompletedForSubject(ctx context.Context, studentID, subjectID string) (bool, error)
}

// PasswordVerifier compares a plaintext enrollment password with the
// stored hash.
type PasswordVerifier interface {
	Compare(plain, hash string) bool
}

// BcryptVerifier verifies enrollment passwords with bcrypt.
type BcryptVerifier struct{}

// Compare implements PasswordVerifier.
func (BcryptVerifier) Compare(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// AdmissionRequest is the candidate admission the policy evaluates.
type AdmissionRequest struct {
	StudentID       string
	CourseID        string
	Method          models.EnrollMethod
	Password        string
	RequestedStatus *models.EnrollmentStatus
	RequestedRole   *models.EnrollmentRole
	Note            string
}

// AdmissionDecision is the policy outcome. It carries the resolved
// student and course so callers do not repeat the lookups; it never
// touches storage itself.
type AdmissionDecision struct {
	Status  models.EnrollmentStatus
	Role    models.EnrollmentRole
	Method  models.EnrollMethod
	Note    string
	Student *models.Student
	Course  *models.Course
}

// AdmissionPolicy decides whether a candidate may join a course and at
// what initial status. It is pure over its injected readers.
type AdmissionPolicy struct {
	students    studentReader
	courses     courseReader
	subjects    subjectReader
	completions completionReader
	passwords   PasswordVerifier
}

// NewAdmissionPolicy constructs the policy engine.
func NewAdmissionPolicy(students studentReader, courses courseReader, subjects subjectReader, completions completionReader, passwords PasswordVerifier) *AdmissionPolicy {
	if passwords == nil {
		passwords = BcryptVerifier{}
	}
	return &AdmissionPolicy{students: students, courses: courses, subjects: subjects, completions: completions, passwords: passwords}
}

// Evaluate runs the admission checks in order, short-circuiting on the
// first failure.
func (p *AdmissionPolicy) Evaluate(ctx context.Context, req AdmissionRequest) (*AdmissionDecision, error) {
	student, err := p.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	course, err := p.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status != models.CourseStatusOngoing {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "course is not open for enrollment")
	}

	if err := p.checkPrerequisites(ctx, student.ID, course, req.Method); err != nil {
		return nil, err
	}

	if course.EnrollPasswordHash != nil && *course.EnrollPasswordHash != "" && req.Method == models.EnrollMethodSelf {
		if req.Password == "" {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, "enrollment password required")
		}
		if !p.passwords.Compare(req.Password, *course.EnrollPasswordHash) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid enrollment password")
		}
	}

	status := models.EnrollmentStatusApproved
	if course.EnrollRequiresApproval {
		status = models.EnrollmentStatusPending
	}
	if req.RequestedStatus != nil {
		status = *req.RequestedStatus
	}
	if !models.ValidInitialStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("status %s is not a valid initial enrollment status", status))
	}

	role := models.EnrollmentRoleStudent
	if req.RequestedRole != nil {
		role = *req.RequestedRole
	}

	return &AdmissionDecision{
		Status:  status,
		Role:    role,
		Method:  req.Method,
		Note:    req.Note,
		Student: student,
		Course:  course,
	}, nil
}

// checkPrerequisites requires a completed enrollment for every
// prerequisite subject of the course's subject. The visited set guards
// against self-references and duplicate edges in the subject graph.
func (p *AdmissionPolicy) checkPrerequisites(ctx context.Context, studentID string, course *models.Course, method models.EnrollMethod) error {
	if course.SubjectID == "" {
		return nil
	}
	subject, err := p.subjects.FindByID(ctx, course.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	visited := map[string]bool{subject.ID: true}
	for _, prereqID := range subject.Prerequisites {
		if visited[prereqID] {
			continue
		}
		visited[prereqID] = true

		completed, err := p.completions.HasCompletedForSubject(ctx, studentID, prereqID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisites")
		}
		if completed {
			continue
		}

		name := prereqID
		if prereq, err := p.subjects.FindByID(ctx, prereqID); err == nil {
			name = prereq.Name
		}
		if method == models.EnrollMethodSelf {
			return appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("you have not completed the prerequisite subject %s", name))
		}
		return appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("the student has not completed the prerequisite subject %s", name))
	}
	return nil
}
