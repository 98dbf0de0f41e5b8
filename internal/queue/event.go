// Package queue defines message payloads exchanged over the message broker
// along with the publisher and background consumer that move them.
package queue

// EnrollmentSettledQueue is the durable queue carrying settlement events.
const EnrollmentSettledQueue = "enrollment.settled"

// EnrollmentSettledEvent is published after a settlement commits.  It
// carries enough for downstream consumers to log, notify or trigger
// analytics without querying the primary database.
type EnrollmentSettledEvent struct {
	EnrollmentID  string   `json:"enrollment_id"`
	TransactionID string   `json:"transaction_id"`
	UserEmail     string   `json:"user_email"`
	ClassIDs      []string `json:"class_ids"`
	Amount        string   `json:"amount"`
	Currency      string   `json:"currency"`
	CartRemoved   int64    `json:"cart_removed"`
	SettledAt     string   `json:"settled_at"`
}
