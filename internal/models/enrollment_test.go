package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentStatusTransitions(t *testing.T) {
	cases := []struct {
		from    EnrollmentStatus
		to      EnrollmentStatus
		allowed bool
	}{
		{EnrollmentStatusPending, EnrollmentStatusApproved, true},
		{EnrollmentStatusPending, EnrollmentStatusRejected, true},
		{EnrollmentStatusPending, EnrollmentStatusCancelled, true},
		{EnrollmentStatusPending, EnrollmentStatusCompleted, false},
		{EnrollmentStatusPending, EnrollmentStatusDropped, false},
		{EnrollmentStatusApproved, EnrollmentStatusCancelled, true},
		{EnrollmentStatusApproved, EnrollmentStatusDropped, true},
		{EnrollmentStatusApproved, EnrollmentStatusCompleted, true},
		{EnrollmentStatusApproved, EnrollmentStatusRejected, false},
		{EnrollmentStatusApproved, EnrollmentStatusPending, false},
		{EnrollmentStatusRejected, EnrollmentStatusApproved, false},
		{EnrollmentStatusCancelled, EnrollmentStatusApproved, false},
		{EnrollmentStatusDropped, EnrollmentStatusApproved, false},
		{EnrollmentStatusCompleted, EnrollmentStatusApproved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestEnrollmentStatusClassification(t *testing.T) {
	assert.True(t, EnrollmentStatusDropped.IsTerminal())
	assert.True(t, EnrollmentStatusCompleted.IsTerminal())
	assert.False(t, EnrollmentStatusRejected.IsTerminal())
	assert.False(t, EnrollmentStatusCancelled.IsTerminal())

	assert.True(t, EnrollmentStatusRejected.IsReEnrollable())
	assert.True(t, EnrollmentStatusCancelled.IsReEnrollable())
	assert.False(t, EnrollmentStatusDropped.IsReEnrollable())
	assert.False(t, EnrollmentStatusApproved.IsReEnrollable())

	assert.True(t, EnrollmentStatusPending.IsActive())
	assert.True(t, EnrollmentStatusApproved.IsActive())
	assert.False(t, EnrollmentStatusCancelled.IsActive())

	assert.True(t, ValidInitialStatus(EnrollmentStatusPending))
	assert.True(t, ValidInitialStatus(EnrollmentStatusApproved))
	assert.False(t, ValidInitialStatus(EnrollmentStatusDropped))
	assert.False(t, ValidInitialStatus(EnrollmentStatusRejected))
}

func TestParseEnrollmentStatus(t *testing.T) {
	status, err := ParseEnrollmentStatus(" approved ")
	require.NoError(t, err)
	assert.Equal(t, EnrollmentStatusApproved, status)

	_, err = ParseEnrollmentStatus("ENROLLED")
	require.Error(t, err)
}

func TestParseEnrollMethod(t *testing.T) {
	method, err := ParseEnrollMethod("self")
	require.NoError(t, err)
	assert.Equal(t, EnrollMethodSelf, method)

	_, err = ParseEnrollMethod("API")
	require.Error(t, err)
}

func TestParseEnrollmentRole(t *testing.T) {
	role, err := ParseEnrollmentRole("ta")
	require.NoError(t, err)
	assert.Equal(t, EnrollmentRoleTA, role)

	_, err = ParseEnrollmentRole("ASSISTANT")
	require.Error(t, err)
}

func TestCourseHelpers(t *testing.T) {
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	course := Course{TeacherIDs: StringArray{"tea-1", "tea-2"}, EndDate: &end}

	assert.True(t, course.HasTeacher("tea-2"))
	assert.False(t, course.HasTeacher("tea-9"))

	assert.False(t, course.Expired(end.Add(-time.Hour)))
	assert.True(t, course.Expired(end))
	assert.True(t, course.Expired(end.Add(time.Hour)))

	open := Course{}
	assert.False(t, open.Expired(time.Now()))
}
