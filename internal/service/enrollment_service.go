package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/lms-enroll-api/internal/models"
	"github.com/campuskit/lms-enroll-api/internal/repository"
	appErrors "github.com/campuskit/lms-enroll-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment, capacity *int) error
	ReopenCycle(ctx context.Context, id string, status models.EnrollmentStatus, role models.EnrollmentRole, method models.EnrollMethod, note string, capacity *int, courseID string) error
	Update(ctx context.Context, enrollment *models.Enrollment, priorStatus models.EnrollmentStatus) error
}

type throttleStore interface {
	IncrDaily(ctx context.Context, studentID string, now time.Time) (int64, error)
}

// Notifier delivers status-change messages best-effort. Implementations
// must never block the caller on delivery.
type Notifier interface {
	Send(ctx context.Context, n models.Notification)
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   string
	Role models.UserRole
}

// CreateEnrollmentRequest describes an admission attempt.
type CreateEnrollmentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Method    string `json:"method" validate:"required"`
	Password  string `json:"password,omitempty"`
	Note      string `json:"note,omitempty"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
}

// UpdateEnrollmentRequest describes a staff-side enrollment update.
type UpdateEnrollmentRequest struct {
	Status      *string  `json:"status,omitempty"`
	Role        *string  `json:"role,omitempty"`
	FinalGrade  *float64 `json:"final_grade,omitempty"`
	Note        *string  `json:"note,omitempty"`
	RespondedBy *string  `json:"responded_by,omitempty"`
}

// KickRequest describes a staff-initiated forced removal.
type KickRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// EnrollmentOptions carries the data-driven policy windows.
type EnrollmentOptions struct {
	// Cooldown is the minimum wait between a cancelled/rejected cycle and
	// the next self-enrollment attempt for the same pair.
	Cooldown time.Duration
	// DailySelfEnrollLimit caps self-enrollment attempts per student per
	// UTC day. Zero disables the throttle.
	DailySelfEnrollLimit int
}

// EnrollmentService orchestrates the full enrollment lifecycle: it asks
// the admission policy for a decision, performs the guarded state
// mutation, and fires best-effort notifications after the write.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	policy    *AdmissionPolicy
	throttle  throttleStore
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      EnrollmentOptions
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, policy *AdmissionPolicy, throttle throttleStore, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts EnrollmentOptions) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Minute
	}
	return &EnrollmentService{
		repo:      repo,
		courses:   courses,
		policy:    policy,
		throttle:  throttle,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata. Students are
// restricted to their own records.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, actor Actor) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment with display fields. Students may only view
// their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor Actor) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role == models.RoleStudent && detail.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return detail, nil
}

// Create runs the admission policy and opens a new admission cycle,
// either by inserting a fresh record or by resetting a re-enrollable one.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	method, err := models.ParseEnrollMethod(req.Method)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, err.Error())
	}
	admission := AdmissionRequest{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Method:    method,
		Password:  req.Password,
		Note:      req.Note,
	}
	if req.Status != "" {
		status, err := models.ParseEnrollmentStatus(req.Status)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, err.Error())
		}
		admission.RequestedStatus = &status
	}
	if req.Role != "" {
		role, err := models.ParseEnrollmentRole(req.Role)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, err.Error())
		}
		admission.RequestedRole = &role
	}

	decision, err := s.policy.Evaluate(ctx, admission)
	if err != nil {
		s.observeAdmission("denied")
		return nil, err
	}

	existing, err := s.repo.FindByPair(ctx, req.StudentID, req.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up enrollment")
	}

	var enrollmentID string
	switch {
	case existing == nil:
		if err := s.applyThrottle(ctx, req.StudentID, method); err != nil {
			s.observeAdmission("throttled")
			return nil, err
		}
		enrollment := &models.Enrollment{
			StudentID: req.StudentID,
			CourseID:  req.CourseID,
			Status:    decision.Status,
			Role:      decision.Role,
			Method:    decision.Method,
			Note:      decision.Note,
		}
		if err := s.repo.Create(ctx, enrollment, decision.Course.Capacity); err != nil {
			switch {
			case errors.Is(err, repository.ErrCourseFull):
				s.observeAdmission("course_full")
				return nil, appErrors.Clone(appErrors.ErrBadRequest, "course is full")
			case errors.Is(err, repository.ErrDuplicatePair):
				s.observeAdmission("conflict")
				return nil, appErrors.Clone(appErrors.ErrConflict, "an enrollment for this student and course already exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		enrollmentID = enrollment.ID

	case existing.Status.IsReEnrollable():
		if method == models.EnrollMethodSelf {
			if err := s.checkCooldown(existing); err != nil {
				s.observeAdmission("cooldown")
				return nil, err
			}
		}
		if err := s.applyThrottle(ctx, req.StudentID, method); err != nil {
			s.observeAdmission("throttled")
			return nil, err
		}
		err := s.repo.ReopenCycle(ctx, existing.ID, decision.Status, decision.Role, decision.Method, decision.Note, decision.Course.Capacity, req.CourseID)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrCourseFull):
				s.observeAdmission("course_full")
				return nil, appErrors.Clone(appErrors.ErrBadRequest, "course is full")
			case errors.Is(err, repository.ErrStaleStatus):
				s.observeAdmission("conflict")
				return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently, please retry")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-enroll")
		}
		enrollmentID = existing.ID

	default:
		s.observeAdmission("conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(existing.Status, method))
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}

	s.observeAdmission(strings.ToLower(string(decision.Status)))
	s.notifyAdmission(ctx, detail, decision)
	return detail, nil
}

// Update applies a staff-side change: status, role, final grade, note,
// responded-by. Transition timestamps are derived, never set directly.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest, actor Actor) (*models.EnrollmentDetail, error) {
	enrollment, course, err := s.loadForMutation(ctx, id)
	if err != nil {
		return nil, err
	}

	priorStatus := enrollment.Status
	now := s.now()

	if req.Status != nil {
		status, err := models.ParseEnrollmentStatus(*req.Status)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, err.Error())
		}
		if status != priorStatus {
			if !priorStatus.CanTransition(status) {
				return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("cannot change enrollment from %s to %s", priorStatus, status))
			}
			enrollment.Status = status
			switch status {
			case models.EnrollmentStatusApproved, models.EnrollmentStatusRejected:
				enrollment.RespondedAt = &now
				if req.RespondedBy != nil {
					enrollment.RespondedBy = req.RespondedBy
				}
			case models.EnrollmentStatusCompleted:
				enrollment.CompletedAt = &now
			case models.EnrollmentStatusDropped:
				enrollment.DroppedAt = &now
			}
		}
	}
	if req.Role != nil {
		role, err := models.ParseEnrollmentRole(*req.Role)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, err.Error())
		}
		enrollment.Role = role
	}
	if req.FinalGrade != nil {
		enrollment.FinalGrade = req.FinalGrade
	}
	if req.Note != nil {
		enrollment.Note = *req.Note
	}

	if err := s.repo.Update(ctx, enrollment, priorStatus); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently, please retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}

	if enrollment.Status != priorStatus {
		s.notifyStatusChange(ctx, detail, course, actor)
	}
	return detail, nil
}

// SelfCancel lets the owning student withdraw a pending or approved
// enrollment.
func (s *EnrollmentService) SelfCancel(ctx context.Context, id, studentID string) (*models.EnrollmentDetail, error) {
	enrollment, _, err := s.loadForMutation(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	priorStatus := enrollment.Status
	if !priorStatus.CanTransition(models.EnrollmentStatusCancelled) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, cancelRefusalMessage(priorStatus))
	}

	enrollment.Status = models.EnrollmentStatusCancelled
	if err := s.repo.Update(ctx, enrollment, priorStatus); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently, please retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Kick force-drops an approved student. Only admins or teachers of the
// course may kick; the reason is appended to the audit note.
func (s *EnrollmentService) Kick(ctx context.Context, id string, req KickRequest, actor Actor) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid kick payload")
	}

	enrollment, course, err := s.loadForKick(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role != models.RoleAdmin && !course.HasTeacher(actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins or teachers of this course may remove students")
	}

	priorStatus := enrollment.Status
	if priorStatus != models.EnrollmentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("only approved enrollments can be dropped, current status is %s", priorStatus))
	}

	now := s.now()
	line := fmt.Sprintf("[%s] dropped by %s: %s", now.Format("2006-01-02 15:04"), actor.ID, req.Reason)
	if enrollment.Note != "" {
		enrollment.Note = enrollment.Note + "\n" + line
	} else {
		enrollment.Note = line
	}
	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.DroppedAt = &now

	if err := s.repo.Update(ctx, enrollment, priorStatus); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently, please retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}

	s.notifier.Send(ctx, models.Notification{
		RecipientID: detail.StudentID,
		Title:       fmt.Sprintf("Removed from %s", detail.CourseTitle),
		Message:     fmt.Sprintf("You were removed from %s. Reason: %s", detail.CourseTitle, req.Reason),
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
	})
	return detail, nil
}

// loadForMutation loads the enrollment and enforces the shared
// course-active guards used by Update and SelfCancel.
func (s *EnrollmentService) loadForMutation(ctx context.Context, id string) (*models.Enrollment, *models.Course, error) {
	enrollment, course, err := s.loadForKick(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if course.Status == models.CourseStatusCompleted {
		return nil, nil, appErrors.Clone(appErrors.ErrBadRequest, "course is already completed")
	}
	if course.Expired(s.now()) {
		return nil, nil, appErrors.Clone(appErrors.ErrBadRequest, "course has ended")
	}
	return enrollment, course, nil
}

func (s *EnrollmentService) loadForKick(ctx context.Context, id string) (*models.Enrollment, *models.Course, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return enrollment, course, nil
}

// checkCooldown enforces the re-enrollment wait window measured from the
// prior cycle's last update.
func (s *EnrollmentService) checkCooldown(existing *models.Enrollment) error {
	since := existing.UpdatedAt
	if since.IsZero() {
		since = existing.CreatedAt
	}
	elapsed := s.now().Sub(since)
	if elapsed >= s.opts.Cooldown {
		return nil
	}
	remaining := int(math.Ceil((s.opts.Cooldown - elapsed).Seconds()))
	return appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("please wait %d seconds before enrolling again", remaining))
}

// applyThrottle counts self-enrollment attempts against the daily limit.
// Staff-initiated enrollments bypass it, and a throttle-store outage
// fails open: anti-abuse must not take admission down with it.
func (s *EnrollmentService) applyThrottle(ctx context.Context, studentID string, method models.EnrollMethod) error {
	if method != models.EnrollMethodSelf || s.opts.DailySelfEnrollLimit <= 0 || s.throttle == nil {
		return nil
	}
	count, err := s.throttle.IncrDaily(ctx, studentID, s.now())
	if err != nil {
		s.logger.Warn("enrollment throttle unavailable", zap.String("student_id", studentID), zap.Error(err))
		return nil
	}
	if count > int64(s.opts.DailySelfEnrollLimit) {
		return appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("daily enrollment limit of %d reached, try again tomorrow", s.opts.DailySelfEnrollLimit))
	}
	return nil
}

func (s *EnrollmentService) notifyAdmission(ctx context.Context, detail *models.EnrollmentDetail, decision *AdmissionDecision) {
	switch {
	case decision.Method != models.EnrollMethodSelf:
		actorRole := models.RoleAdmin
		if decision.Method == models.EnrollMethodTeacher {
			actorRole = models.RoleTeacher
		}
		verb := "enrolled in"
		if detail.Status == models.EnrollmentStatusPending {
			verb = "registered for"
		}
		s.notifier.Send(ctx, models.Notification{
			RecipientID: detail.StudentID,
			Title:       fmt.Sprintf("Enrollment in %s", detail.CourseTitle),
			Message:     fmt.Sprintf("You have been %s %s.", verb, detail.CourseTitle),
			ActorRole:   actorRole,
		})
	case detail.Status == models.EnrollmentStatusPending:
		for _, teacherID := range decision.Course.TeacherIDs {
			s.notifier.Send(ctx, models.Notification{
				RecipientID: teacherID,
				Title:       fmt.Sprintf("Pending enrollment for %s", detail.CourseTitle),
				Message:     fmt.Sprintf("%s requested to join %s and awaits approval.", detail.StudentName, detail.CourseTitle),
				ActorID:     detail.StudentID,
				ActorRole:   models.RoleStudent,
			})
		}
	}
}

func (s *EnrollmentService) notifyStatusChange(ctx context.Context, detail *models.EnrollmentDetail, course *models.Course, actor Actor) {
	var title, message string
	switch detail.Status {
	case models.EnrollmentStatusApproved:
		title = fmt.Sprintf("Enrollment approved: %s", course.Title)
		message = fmt.Sprintf("Your enrollment in %s has been approved.", course.Title)
	case models.EnrollmentStatusRejected:
		title = fmt.Sprintf("Enrollment rejected: %s", course.Title)
		message = fmt.Sprintf("Your enrollment request for %s has been rejected.", course.Title)
	case models.EnrollmentStatusCompleted:
		title = fmt.Sprintf("Course completed: %s", course.Title)
		message = fmt.Sprintf("Congratulations, you completed %s.", course.Title)
	default:
		return
	}
	s.notifier.Send(ctx, models.Notification{
		RecipientID: detail.StudentID,
		Title:       title,
		Message:     message,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
	})
}

func (s *EnrollmentService) observeAdmission(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveAdmission(outcome)
	}
}

// conflictMessage phrases the duplicate-admission refusal per prior
// status and actor kind.
func conflictMessage(prior models.EnrollmentStatus, method models.EnrollMethod) string {
	self := method == models.EnrollMethodSelf
	switch prior {
	case models.EnrollmentStatusPending:
		if self {
			return "you already have a pending enrollment request for this course"
		}
		return "the student already has a pending enrollment request for this course"
	case models.EnrollmentStatusApproved:
		if self {
			return "you are already enrolled in this course"
		}
		return "the student is already enrolled in this course"
	case models.EnrollmentStatusDropped:
		if self {
			return "you were removed from this course and cannot re-enroll in it"
		}
		return "the student was removed from this course and cannot be re-enrolled in it"
	case models.EnrollmentStatusCompleted:
		if self {
			return "you have already completed this course"
		}
		return "the student has already completed this course"
	}
	return "an enrollment for this student and course already exists"
}

// cancelRefusalMessage explains why a self-cancel is refused.
func cancelRefusalMessage(status models.EnrollmentStatus) string {
	switch status {
	case models.EnrollmentStatusCompleted:
		return "this course is already completed and can no longer be cancelled"
	case models.EnrollmentStatusDropped:
		return "you were removed from this course by staff"
	case models.EnrollmentStatusRejected:
		return "your enrollment request was already rejected"
	case models.EnrollmentStatusCancelled:
		return "this enrollment is already cancelled"
	}
	return fmt.Sprintf("enrollment in status %s cannot be cancelled", status)
}
