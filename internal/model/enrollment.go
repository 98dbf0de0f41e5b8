package model

import "time"

// EnrollmentRecord is the immutable audit row written by one settlement.
// It is stored in the `enrollments` table with one `enrollment_classes`
// row per class ID.
type EnrollmentRecord struct {
	ID            string    `json:"id"`
	UserEmail     string    `json:"userEmail"`
	ClassIDs      []string  `json:"classIds"`
	TransactionID string    `json:"transactionId"`
	EnrolledAt    time.Time `json:"enrolledAt"`
}
