package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/projection"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Leaderboard ranks classes and instructors by enrollment.
type Leaderboard struct {
	classes *repository.ClassRepo
	users   *repository.UserRepo
	limit   int
}

// NewLeaderboard returns a Leaderboard of at most limit entries; a
// non-positive limit means projection.DefaultLimit.
func NewLeaderboard(classes *repository.ClassRepo, users *repository.UserRepo, limit int) *Leaderboard {
	if limit <= 0 {
		limit = projection.DefaultLimit
	}
	return &Leaderboard{classes: classes, users: users, limit: limit}
}

// PopularClasses returns classes of any status with the most enrollments.
func (l *Leaderboard) PopularClasses(ctx context.Context) ([]model.ClassOffering, error) {
	classes, err := l.classes.TopByEnrollment(ctx, l.limit)
	if err != nil {
		return nil, fmt.Errorf("top classes: %w", err)
	}
	return classes, nil
}

// PopularInstructors sums enrollments per instructor and ranks users who
// currently hold the instructor role.
func (l *Leaderboard) PopularInstructors(ctx context.Context) ([]projection.PopularInstructor, error) {
	totals, err := l.classes.EnrollmentTotalsByInstructor(ctx)
	if err != nil {
		return nil, fmt.Errorf("instructor totals: %w", err)
	}
	emails := make([]string, 0, len(totals))
	for _, t := range totals {
		emails = append(emails, t.InstructorEmail)
	}
	users, err := l.users.GetByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("load instructors: %w", err)
	}
	return projection.RankInstructors(totals, users, l.limit), nil
}
