package models

// Student is a read-only directory entry referenced by enrollments.
type Student struct {
	ID       string   `db:"id" json:"id"`
	Username string   `db:"username" json:"username"`
	FullName string   `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
}
