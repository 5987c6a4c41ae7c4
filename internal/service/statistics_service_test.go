package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/lms-enroll-api/internal/models"
	appErrors "github.com/campuskit/lms-enroll-api/pkg/errors"
)

type mockQuizReader struct {
	quizzes  []models.Quiz
	attempts []models.QuizAttempt
}

func (m *mockQuizReader) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	return m.quizzes, nil
}

func (m *mockQuizReader) FindAttemptsByQuizzesAndStudent(ctx context.Context, quizIDs []string, studentID string) ([]models.QuizAttempt, error) {
	return m.attempts, nil
}

type mockAssignmentReader struct {
	assignments []models.Assignment
	submissions []models.Submission
}

func (m *mockAssignmentReader) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	return m.assignments, nil
}

func (m *mockAssignmentReader) FindSubmissionsByAssignmentsAndStudent(ctx context.Context, assignmentIDs []string, studentID string) ([]models.Submission, error) {
	return m.submissions, nil
}

func newStatisticsFixture(enrollment models.Enrollment, course models.Course, quizzes *mockQuizReader, assignments *mockAssignmentReader) *StatisticsService {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]models.Enrollment{enrollment.ID: enrollment},
		students:    map[string]models.Student{enrollment.StudentID: {ID: enrollment.StudentID, Username: "jdoe", FullName: "Jane Doe"}},
		courses:     map[string]models.Course{course.ID: course},
	}
	courses := &mockCourseReader{courses: map[string]models.Course{course.ID: course}}
	if quizzes == nil {
		quizzes = &mockQuizReader{}
	}
	if assignments == nil {
		assignments = &mockAssignmentReader{}
	}
	return NewStatisticsService(repo, courses, quizzes, assignments, zap.NewNop())
}

func completedCourse() models.Course {
	return models.Course{ID: "crs-1", Title: "Algebra I", Code: "ALG-101", Status: models.CourseStatusCompleted, TeacherIDs: models.StringArray{"tea-1"}}
}

func completedEnrollment() models.Enrollment {
	return models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1",
		Status: models.EnrollmentStatusCompleted,
		Progress: models.Progress{
			LessonsTotal: 10, LessonsCompleted: 8,
			AttendanceTotal: 20, AttendancePresent: 18,
		},
	}
}

func TestStatisticsServiceGet(t *testing.T) {
	submittedAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	later := submittedAt.Add(48 * time.Hour)
	low, high := 40.0, 70.0
	quizzes := &mockQuizReader{
		quizzes: []models.Quiz{
			{ID: "q1", CourseID: "crs-1", Title: "Quiz 1", MaxScore: 100},
			{ID: "q2", CourseID: "crs-1", Title: "Quiz 2", MaxScore: 50},
		},
		attempts: []models.QuizAttempt{
			{ID: "a1", QuizID: "q1", StudentID: "stu-1", Score: 60, Status: models.AttemptStatusSubmitted},
			{ID: "a2", QuizID: "q1", StudentID: "stu-1", Score: 80, Status: models.AttemptStatusSubmitted},
			{ID: "a3", QuizID: "q2", StudentID: "stu-1", Score: 30, Status: models.AttemptStatusSubmitted},
		},
	}
	assignments := &mockAssignmentReader{
		assignments: []models.Assignment{
			{ID: "as1", CourseID: "crs-1", Title: "Essay", MaxScore: 100},
		},
		submissions: []models.Submission{
			{ID: "s1", AssignmentID: "as1", StudentID: "stu-1", Score: &low, Status: models.SubmissionStatusGraded, SubmittedAt: &submittedAt},
			{ID: "s2", AssignmentID: "as1", StudentID: "stu-1", Score: &high, Status: models.SubmissionStatusGraded, SubmittedAt: &later},
		},
	}
	svc := newStatisticsFixture(completedEnrollment(), completedCourse(), quizzes, assignments)

	stats, err := svc.Get(context.Background(), "enr-1", Actor{ID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stats.StudentName)
	assert.InDelta(t, 80.0, stats.LessonsPercent, 0.01)
	assert.InDelta(t, 90.0, stats.AttendancePercent, 0.01)
	assert.Equal(t, 2, stats.Absences)

	// best attempt per quiz: 80/100 and 30/50 average to 70%
	assert.InDelta(t, 70.0, stats.QuizAverage, 0.01)
	require.Len(t, stats.Quizzes, 2)
	require.NotNil(t, stats.Quizzes[0].Score)
	assert.Equal(t, 80.0, *stats.Quizzes[0].Score)

	// latest submission wins for assignments
	assert.InDelta(t, 70.0, stats.AssignmentAverage, 0.01)
	require.Len(t, stats.Assignments, 1)
	require.NotNil(t, stats.Assignments[0].Score)
	assert.Equal(t, 70.0, *stats.Assignments[0].Score)
}

func TestStatisticsServiceGetZeroDenominators(t *testing.T) {
	enrollment := completedEnrollment()
	enrollment.Progress = models.Progress{}
	svc := newStatisticsFixture(enrollment, completedCourse(), nil, nil)

	stats, err := svc.Get(context.Background(), "enr-1", Actor{ID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Zero(t, stats.LessonsPercent)
	assert.Zero(t, stats.AttendancePercent)
	assert.Zero(t, stats.QuizAverage)
	assert.Zero(t, stats.AssignmentAverage)
	assert.Empty(t, stats.Quizzes)
	assert.Empty(t, stats.Assignments)
}

func TestStatisticsServiceGetCourseNotCompleted(t *testing.T) {
	course := completedCourse()
	course.Status = models.CourseStatusOngoing
	svc := newStatisticsFixture(completedEnrollment(), course, nil, nil)

	_, err := svc.Get(context.Background(), "enr-1", Actor{ID: "stu-1", Role: models.RoleStudent})
	require.Error(t, err)
	appErr := err.(*appErrors.Error)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "statistics are available once the course is completed", appErr.Message)
}

func TestStatisticsServiceGetAuthorization(t *testing.T) {
	svc := newStatisticsFixture(completedEnrollment(), completedCourse(), nil, nil)

	_, err := svc.Get(context.Background(), "enr-1", Actor{ID: "stu-2", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, "you may only view your own statistics", err.(*appErrors.Error).Message)

	_, err = svc.Get(context.Background(), "enr-1", Actor{ID: "tea-9", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, "you do not teach this course", err.(*appErrors.Error).Message)

	_, err = svc.Get(context.Background(), "enr-1", Actor{ID: "tea-1", Role: models.RoleTeacher})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "enr-1", Actor{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
}

func TestStatisticsServiceGetUnscoredQuizzesExcluded(t *testing.T) {
	quizzes := &mockQuizReader{
		quizzes: []models.Quiz{
			{ID: "q1", CourseID: "crs-1", Title: "Quiz 1", MaxScore: 100},
			{ID: "q2", CourseID: "crs-1", Title: "Quiz 2", MaxScore: 100},
		},
		attempts: []models.QuizAttempt{
			{ID: "a1", QuizID: "q1", StudentID: "stu-1", Score: 90, Status: models.AttemptStatusSubmitted},
		},
	}
	svc := newStatisticsFixture(completedEnrollment(), completedCourse(), quizzes, nil)

	stats, err := svc.Get(context.Background(), "enr-1", Actor{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	// unattempted quizzes do not drag the average down
	assert.InDelta(t, 90.0, stats.QuizAverage, 0.01)
	require.Len(t, stats.Quizzes, 2)
	assert.True(t, stats.Quizzes[0].Attempted)
	assert.False(t, stats.Quizzes[1].Attempted)
	assert.Nil(t, stats.Quizzes[1].Score)
}

func TestStatisticsServiceExportPDF(t *testing.T) {
	svc := newStatisticsFixture(completedEnrollment(), completedCourse(), nil, nil)

	payload, filename, err := svc.ExportPDF(context.Background(), "enr-1", Actor{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "enrollment-enr-1-report.pdf", filename)
	assert.NotEmpty(t, payload)
}
