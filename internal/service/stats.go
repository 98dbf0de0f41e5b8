package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// AdminStats is the dashboard summary for admins.
type AdminStats struct {
	ApprovedClasses int `json:"approvedClasses"`
	PendingClasses  int `json:"pendingClasses"`
	Instructors     int `json:"instructors"`
	TotalClasses    int `json:"totalClasses"`
	TotalEnrolled   int `json:"totalEnrolled"`
}

// Stats computes AdminStats.
type Stats struct {
	classes     *repository.ClassRepo
	users       *repository.UserRepo
	enrollments *repository.EnrollmentRepo
}

func NewStats(classes *repository.ClassRepo, users *repository.UserRepo, enrollments *repository.EnrollmentRepo) *Stats {
	return &Stats{classes: classes, users: users, enrollments: enrollments}
}

func (s *Stats) Summary(ctx context.Context) (AdminStats, error) {
	var out AdminStats
	var err error
	if out.ApprovedClasses, err = s.classes.CountByStatus(ctx, model.ClassApproved); err != nil {
		return AdminStats{}, fmt.Errorf("count approved: %w", err)
	}
	if out.PendingClasses, err = s.classes.CountByStatus(ctx, model.ClassPending); err != nil {
		return AdminStats{}, fmt.Errorf("count pending: %w", err)
	}
	if out.TotalClasses, err = s.classes.CountByStatus(ctx, ""); err != nil {
		return AdminStats{}, fmt.Errorf("count classes: %w", err)
	}
	if out.Instructors, err = s.users.CountByRole(ctx, model.RoleInstructor); err != nil {
		return AdminStats{}, fmt.Errorf("count instructors: %w", err)
	}
	if out.TotalEnrolled, err = s.enrollments.Count(ctx); err != nil {
		return AdminStats{}, fmt.Errorf("count enrollments: %w", err)
	}
	return out, nil
}
