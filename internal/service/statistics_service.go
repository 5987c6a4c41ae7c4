package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/campuskit/lms-enroll-api/internal/models"
	appErrors "github.com/campuskit/lms-enroll-api/pkg/errors"
	"github.com/campuskit/lms-enroll-api/pkg/export"
)

type quizReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	FindAttemptsByQuizzesAndStudent(ctx context.Context, quizIDs []string, studentID string) ([]models.QuizAttempt, error)
}

type assignmentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	FindSubmissionsByAssignmentsAndStudent(ctx context.Context, assignmentIDs []string, studentID string) ([]models.Submission, error)
}

type enrollmentDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// StatisticsService is the read-only consumer that joins enrollment
// state with quiz and assignment collaborators once a course completed.
type StatisticsService struct {
	enrollments enrollmentDetailReader
	courses     courseReader
	quizzes     quizReader
	assignments assignmentReader
	logger      *zap.Logger
}

// NewStatisticsService constructs StatisticsService.
func NewStatisticsService(enrollments enrollmentDetailReader, courses courseReader, quizzes quizReader, assignments assignmentReader, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{enrollments: enrollments, courses: courses, quizzes: quizzes, assignments: assignments, logger: logger}
}

// Get builds the statistics report for one enrollment.
func (s *StatisticsService) Get(ctx context.Context, enrollmentID string, actor Actor) (*models.EnrollmentStatistics, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	course, err := s.courses.FindByID(ctx, detail.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if !course.HasTeacher(actor.ID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this course")
		}
	case models.RoleStudent:
		if detail.StudentID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own statistics")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}

	if course.Status != models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "statistics are available once the course is completed")
	}

	quizResults, quizAverage, err := s.quizResults(ctx, detail)
	if err != nil {
		return nil, err
	}
	assignmentResults, assignmentAverage, err := s.assignmentResults(ctx, detail)
	if err != nil {
		return nil, err
	}

	stats := &models.EnrollmentStatistics{
		EnrollmentID:      detail.ID,
		StudentID:         detail.StudentID,
		StudentName:       detail.StudentName,
		CourseID:          detail.CourseID,
		CourseTitle:       detail.CourseTitle,
		Status:            detail.Status,
		FinalGrade:        detail.FinalGrade,
		LessonsPercent:    percent(detail.LessonsCompleted, detail.LessonsTotal),
		AttendancePercent: percent(detail.AttendancePresent, detail.AttendanceTotal),
		Absences:          detail.AttendanceTotal - detail.AttendancePresent,
		QuizAverage:       quizAverage,
		AssignmentAverage: assignmentAverage,
		Quizzes:           quizResults,
		Assignments:       assignmentResults,
	}
	return stats, nil
}

// ExportPDF renders the statistics report as a PDF document.
func (s *StatisticsService) ExportPDF(ctx context.Context, enrollmentID string, actor Actor) ([]byte, string, error) {
	stats, err := s.Get(ctx, enrollmentID, actor)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Metric", "Value"},
		Rows: []map[string]string{
			{"Metric": "Student", "Value": stats.StudentName},
			{"Metric": "Course", "Value": stats.CourseTitle},
			{"Metric": "Status", "Value": string(stats.Status)},
			{"Metric": "Lessons", "Value": fmt.Sprintf("%.1f%%", stats.LessonsPercent)},
			{"Metric": "Attendance", "Value": fmt.Sprintf("%.1f%%", stats.AttendancePercent)},
			{"Metric": "Absences", "Value": strconv.Itoa(stats.Absences)},
			{"Metric": "Quiz average", "Value": fmt.Sprintf("%.1f%%", stats.QuizAverage)},
			{"Metric": "Assignment average", "Value": fmt.Sprintf("%.1f%%", stats.AssignmentAverage)},
		},
	}
	if stats.FinalGrade != nil {
		dataset.Rows = append(dataset.Rows, map[string]string{"Metric": "Final grade", "Value": fmt.Sprintf("%.2f", *stats.FinalGrade)})
	}

	pdf, err := export.NewPDFExporter().Render(dataset, fmt.Sprintf("Enrollment report - %s", stats.CourseTitle))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statistics report")
	}
	filename := fmt.Sprintf("enrollment-%s-report.pdf", stats.EnrollmentID)
	return pdf, filename, nil
}

// quizResults selects the highest-scoring submitted attempt per quiz.
func (s *StatisticsService) quizResults(ctx context.Context, detail *models.EnrollmentDetail) ([]models.QuizResult, float64, error) {
	quizzes, err := s.quizzes.ListByCourse(ctx, detail.CourseID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quizzes")
	}
	if len(quizzes) == 0 {
		return nil, 0, nil
	}

	ids := make([]string, len(quizzes))
	for i, q := range quizzes {
		ids[i] = q.ID
	}
	attempts, err := s.quizzes.FindAttemptsByQuizzesAndStudent(ctx, ids, detail.StudentID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz attempts")
	}

	best := make(map[string]models.QuizAttempt, len(attempts))
	for _, attempt := range attempts {
		current, ok := best[attempt.QuizID]
		if !ok || attempt.Score > current.Score {
			best[attempt.QuizID] = attempt
		}
	}

	results := make([]models.QuizResult, 0, len(quizzes))
	var sum float64
	var scored int
	for _, quiz := range quizzes {
		result := models.QuizResult{QuizID: quiz.ID, QuizTitle: quiz.Title, MaxScore: quiz.MaxScore}
		if attempt, ok := best[quiz.ID]; ok {
			score := attempt.Score
			result.Score = &score
			result.Attempted = true
			if quiz.MaxScore > 0 {
				sum += score / quiz.MaxScore * 100
				scored++
			}
		}
		results = append(results, result)
	}

	var average float64
	if scored > 0 {
		average = sum / float64(scored)
	}
	return results, average, nil
}

// assignmentResults selects the latest submitted or graded submission
// per assignment.
func (s *StatisticsService) assignmentResults(ctx context.Context, detail *models.EnrollmentDetail) ([]models.AssignmentResult, float64, error) {
	assignments, err := s.assignments.ListByCourse(ctx, detail.CourseID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if len(assignments) == 0 {
		return nil, 0, nil
	}

	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.ID
	}
	submissions, err := s.assignments.FindSubmissionsByAssignmentsAndStudent(ctx, ids, detail.StudentID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	latest := make(map[string]models.Submission, len(submissions))
	for _, submission := range submissions {
		current, ok := latest[submission.AssignmentID]
		if !ok || laterSubmission(submission, current) {
			latest[submission.AssignmentID] = submission
		}
	}

	results := make([]models.AssignmentResult, 0, len(assignments))
	var sum float64
	var scored int
	for _, assignment := range assignments {
		result := models.AssignmentResult{AssignmentID: assignment.ID, AssignmentTitle: assignment.Title, MaxScore: assignment.MaxScore}
		if submission, ok := latest[assignment.ID]; ok {
			result.Submitted = true
			result.Status = submission.Status
			if submission.Score != nil {
				score := *submission.Score
				result.Score = &score
				if assignment.MaxScore > 0 {
					sum += score / assignment.MaxScore * 100
					scored++
				}
			}
		}
		results = append(results, result)
	}

	var average float64
	if scored > 0 {
		average = sum / float64(scored)
	}
	return results, average, nil
}

func laterSubmission(candidate, current models.Submission) bool {
	if candidate.SubmittedAt == nil {
		return false
	}
	if current.SubmittedAt == nil {
		return true
	}
	return candidate.SubmittedAt.After(*current.SubmittedAt)
}

// percent divides guarded against a zero denominator.
func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
