package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Class lifecycle states.  New and edited classes start as pending until an
// admin approves or rejects them.
const (
	ClassPending  = "pending"
	ClassApproved = "approved"
	ClassRejected = "rejected"
)

// ClassOffering is a purchasable class in the catalog.  It corresponds to a
// row in the `classes` table.  AvailableSeats and TotalEnrolled are the two
// counters moved by settlement; everything else is edited by instructors
// and admins.
//
// Fields:
//  ID                – UUID primary key.
//  InstructorEmail   – email of the owning instructor (join key into users).
//  InstructorName    – display name captured when the class was created.
//  Name              – class title.
//  Image             – cover image URL.
//  Price             – price in the store currency.
//  AvailableSeats    – seats left; never negative.
//  TotalEnrolled     – number of settled enrollments.
//  Status            – pending, approved or rejected.
//  Reason            – admin feedback for the last status change.
type ClassOffering struct {
	ID                string          `json:"id"`
	InstructorEmail   string          `json:"instructorEmail"`
	InstructorName    string          `json:"instructorName"`
	Name              string          `json:"name"`
	Image             string          `json:"image"`
	Description       string          `json:"description"`
	CourseDescription string          `json:"courseDescription"`
	Resources         string          `json:"resources"`
	VideoLink         string          `json:"videoLink"`
	Price             decimal.Decimal `json:"price"`
	AvailableSeats    int             `json:"availableSeats"`
	TotalEnrolled     int             `json:"totalEnrolled"`
	Status            string          `json:"status"`
	Reason            string          `json:"reason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// InstructorTotal is the sum of TotalEnrolled over every class owned by
// one instructor email.
type InstructorTotal struct {
	InstructorEmail string
	TotalEnrolled   int64
}
