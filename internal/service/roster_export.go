package service

import (
	"context"
	"fmt"

	"github.com/campuskit/lms-enroll-api/internal/models"
	appErrors "github.com/campuskit/lms-enroll-api/pkg/errors"
	"github.com/campuskit/lms-enroll-api/pkg/export"
)

// ExportRoster renders the filtered enrollment list as CSV.
func (s *EnrollmentService) ExportRoster(ctx context.Context, filter models.EnrollmentFilter, actor Actor) ([]byte, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	filter.Page = 1
	filter.PageSize = 100

	var rows []map[string]string
	for {
		enrollments, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
		}
		for _, e := range enrollments {
			row := map[string]string{
				"Student":  e.StudentName,
				"Username": e.StudentUsername,
				"Course":   e.CourseTitle,
				"Code":     e.CourseCode,
				"Status":   string(e.Status),
				"Role":     string(e.Role),
				"Method":   string(e.Method),
				"Enrolled": e.CreatedAt.Format("2006-01-02"),
			}
			if e.FinalGrade != nil {
				row["Grade"] = fmt.Sprintf("%.2f", *e.FinalGrade)
			}
			rows = append(rows, row)
		}
		if filter.Page*filter.PageSize >= total || len(enrollments) == 0 {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Username", "Course", "Code", "Status", "Role", "Method", "Grade", "Enrolled"},
		Rows:    rows,
	}
	data, err := export.NewCSVExporter().Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}
	return data, nil
}
