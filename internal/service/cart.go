package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// CartService manages the classes a student selected before checkout.
type CartService struct {
	classes     *repository.ClassRepo
	carts       *repository.CartRepo
	enrollments *repository.EnrollmentRepo
}

func NewCartService(classes *repository.ClassRepo, carts *repository.CartRepo, enrollments *repository.EnrollmentRepo) *CartService {
	return &CartService{classes: classes, carts: carts, enrollments: enrollments}
}

// Add puts a class in the student's cart.  It fails with
// repository.ErrNotFound for unknown classes, ErrAlreadyEnrolled when the
// student already paid for the class and ErrAlreadyInCart on a repeat.
func (s *CartService) Add(ctx context.Context, email, classID string) error {
	classID = strings.TrimSpace(classID)
	if email == "" || classID == "" {
		return fmt.Errorf("%w: class id is required", ErrInvalidRequest)
	}
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		return err
	}
	enrolled, err := s.enrollments.HasClass(ctx, email, classID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled {
		return ErrAlreadyEnrolled
	}
	if err := s.carts.Add(ctx, model.CartEntry{UserEmail: email, ClassID: classID}); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAlreadyInCart
		}
		return fmt.Errorf("add to cart: %w", err)
	}
	return nil
}

// List returns the classes in the student's cart.
func (s *CartService) List(ctx context.Context, email string) ([]model.ClassOffering, error) {
	return s.carts.ListClassesByUser(ctx, email)
}

// Remove drops one class from the cart and reports how many rows went.
func (s *CartService) Remove(ctx context.Context, email, classID string) (int64, error) {
	return s.carts.Remove(ctx, email, classID)
}
