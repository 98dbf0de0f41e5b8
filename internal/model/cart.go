package model

import "time"

// CartEntry is a class a user selected but has not paid for yet.  The pair
// (UserEmail, ClassID) is unique.
type CartEntry struct {
	UserEmail string    `json:"userEmail"`
	ClassID   string    `json:"classId"`
	AddedAt   time.Time `json:"addedAt"`
}
