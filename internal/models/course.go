package models

import "time"

// CourseStatus is the publication state of a course offering.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "DRAFT"
	CourseStatusOngoing   CourseStatus = "ONGOING"
	CourseStatusCompleted CourseStatus = "COMPLETED"
)

// Course is a read-only catalog entry. The enrollment engine never
// mutates courses; it only consults them for admission guards.
type Course struct {
	ID                     string       `db:"id" json:"id"`
	Title                  string       `db:"title" json:"title"`
	Code                   string       `db:"code" json:"code"`
	SubjectID              string       `db:"subject_id" json:"subject_id"`
	Status                 CourseStatus `db:"status" json:"status"`
	Capacity               *int         `db:"capacity" json:"capacity,omitempty"`
	EnrollRequiresApproval bool         `db:"enroll_requires_approval" json:"enroll_requires_approval"`
	EnrollPasswordHash     *string      `db:"enroll_password_hash" json:"-"`
	TeacherIDs             StringArray  `db:"teacher_ids" json:"teacher_ids"`
	EndDate                *time.Time   `db:"end_date" json:"end_date,omitempty"`
}

// HasTeacher reports whether the given user teaches this course.
func (c *Course) HasTeacher(userID string) bool {
	for _, id := range c.TeacherIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Expired reports whether the course end date has passed.
func (c *Course) Expired(now time.Time) bool {
	return c.EndDate != nil && !c.EndDate.After(now)
}
