package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/class-enrollment/internal/projection"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// EnrollmentViews loads the inputs of the enrollment projection and hands
// them to the pure join functions in package projection.
type EnrollmentViews struct {
	classes     *repository.ClassRepo
	enrollments *repository.EnrollmentRepo
	users       *repository.UserRepo
}

func NewEnrollmentViews(classes *repository.ClassRepo, enrollments *repository.EnrollmentRepo, users *repository.UserRepo) *EnrollmentViews {
	return &EnrollmentViews{classes: classes, enrollments: enrollments, users: users}
}

// ByStudent returns one row per class the student enrolled in, newest
// enrollment first.
func (v *EnrollmentViews) ByStudent(ctx context.Context, email string) ([]projection.EnrolledClass, error) {
	records, err := v.enrollments.ListByUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	classes, err := v.classes.GetByIDs(ctx, projection.ClassIDs(records))
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	users, err := v.users.GetByEmails(ctx, projection.InstructorEmails(classes))
	if err != nil {
		return nil, fmt.Errorf("load instructors: %w", err)
	}
	return projection.StudentEnrollments(records, classes, users), nil
}

// ByClass returns the earliest enrollment of a class joined to the class
// and its instructor.  repository.ErrNotFound is returned when nobody has
// enrolled or either join is missing.
func (v *EnrollmentViews) ByClass(ctx context.Context, classID string) (projection.ClassEnrollment, error) {
	rec, err := v.enrollments.FirstByClass(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return projection.ClassEnrollment{}, err
		}
		return projection.ClassEnrollment{}, fmt.Errorf("find enrollment: %w", err)
	}
	classes, err := v.classes.GetByIDs(ctx, []string{classID})
	if err != nil {
		return projection.ClassEnrollment{}, fmt.Errorf("load class: %w", err)
	}
	users, err := v.users.GetByEmails(ctx, projection.InstructorEmails(classes))
	if err != nil {
		return projection.ClassEnrollment{}, fmt.Errorf("load instructor: %w", err)
	}
	detail, ok := projection.ClassEnrollmentDetail(rec, classID, classes, users)
	if !ok {
		return projection.ClassEnrollment{}, repository.ErrNotFound
	}
	return detail, nil
}
