package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/lms-enroll-api/internal/models"
)

func TestEnrollmentServiceExportRoster(t *testing.T) {
	fx := newEnrollmentFixture(baseStudents(), baseCourses(), baseSubjects(), nil, EnrollmentOptions{})
	grade := 91.25
	fx.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1",
		Status: models.EnrollmentStatusCompleted, Role: models.EnrollmentRoleStudent, Method: models.EnrollMethodSelf,
		FinalGrade: &grade,
	}

	data, err := fx.svc.ExportRoster(context.Background(), models.EnrollmentFilter{}, Actor{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Student,Username,Course,Code,Status,Role,Method,Grade,Enrolled", lines[0])
	assert.Contains(t, lines[1], "Jane Doe")
	assert.Contains(t, lines[1], "ALG-101")
	assert.Contains(t, lines[1], "COMPLETED")
	assert.Contains(t, lines[1], "91.25")
}

func TestEnrollmentServiceExportRosterScopesStudents(t *testing.T) {
	fx := newEnrollmentFixture(baseStudents(), baseCourses(), baseSubjects(), nil, EnrollmentOptions{})
	fx.repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", Status: models.EnrollmentStatusApproved}
	fx.repo.enrollments["enr-2"] = models.Enrollment{ID: "enr-2", StudentID: "stu-2", CourseID: "crs-1", Status: models.EnrollmentStatusApproved}

	data, err := fx.svc.ExportRoster(context.Background(), models.EnrollmentFilter{}, Actor{ID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
}
