// Package service holds the enrollment workflows that span more than one
// repository: settlement, cart management, projections, leaderboards and
// instructor approval.
package service

import "errors"

var (
	// ErrInvalidRequest marks input rejected before any write.  Handlers
	// map it to 400.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPaymentNotConfirmed is returned for receipts whose status is not
	// "succeeded".
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	// ErrAlreadyEnrolled is returned when a student adds a class they
	// already paid for.
	ErrAlreadyEnrolled = errors.New("already enrolled")
	// ErrAlreadyInCart is returned when the class is already in the cart.
	ErrAlreadyInCart = errors.New("already in cart")
)
