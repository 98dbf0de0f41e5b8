// Package projection joins enrollment records, classes and users into the
// read models served by the enrollment and leaderboard endpoints.  The
// functions here are pure: callers load the inputs and pass them in, and
// every join key is spelled out.
package projection

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// EnrolledClass is one row of a student's enrollment view: one purchased
// class joined to its catalog entry and instructor.
type EnrolledClass struct {
	ClassID           string          `json:"classId"`
	EnrollmentDate    time.Time       `json:"enrollmentDate"`
	ClassName         string          `json:"className"`
	ClassImage        string          `json:"classImage"`
	Price             decimal.Decimal `json:"price"`
	InstructorName    string          `json:"instructorName"`
	InstructorEmail   string          `json:"instructorEmail"`
	CourseDescription string          `json:"courseDescription"`
	Resources         string          `json:"resources"`
}

// ClassEnrollment is the per-class detail view.
type ClassEnrollment struct {
	EnrollmentID    string          `json:"enrollmentId"`
	ClassID         string          `json:"classId"`
	StudentEmail    string          `json:"studentEmail"`
	EnrollmentDate  time.Time       `json:"enrollmentDate"`
	ClassName       string          `json:"className"`
	ClassImage      string          `json:"classImage"`
	Price           decimal.Decimal `json:"price"`
	InstructorName  string          `json:"instructorName"`
	InstructorEmail string          `json:"instructorEmail"`
	VideoLink       string          `json:"videoLink"`
}

// ClassIDs flattens the class IDs of every record, dropping duplicates.
func ClassIDs(records []model.EnrollmentRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range records {
		for _, id := range rec.ClassIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// InstructorEmails returns the distinct instructor emails of classes.
func InstructorEmails(classes map[string]model.ClassOffering) []string {
	seen := make(map[string]struct{}, len(classes))
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		email := strings.ToLower(c.InstructorEmail)
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// StudentEnrollments unwinds records into one row per class.  A class ID
// missing from classes drops its row; an instructor missing from users
// leaves InstructorName empty.  Rows are ordered by enrollment date,
// newest first, then by class ID.
func StudentEnrollments(records []model.EnrollmentRecord, classes map[string]model.ClassOffering, users map[string]model.User) []EnrolledClass {
	rows := make([]EnrolledClass, 0)
	for _, rec := range records {
		for _, classID := range rec.ClassIDs {
			c, ok := classes[classID]
			if !ok {
				continue
			}
			row := EnrolledClass{
				ClassID:           c.ID,
				EnrollmentDate:    rec.EnrolledAt,
				ClassName:         c.Name,
				ClassImage:        c.Image,
				Price:             c.Price,
				InstructorEmail:   c.InstructorEmail,
				CourseDescription: c.CourseDescription,
				Resources:         c.Resources,
			}
			if u, ok := users[strings.ToLower(c.InstructorEmail)]; ok {
				row.InstructorName = u.Name
			}
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].EnrollmentDate.Equal(rows[j].EnrollmentDate) {
			return rows[i].EnrollmentDate.After(rows[j].EnrollmentDate)
		}
		return rows[i].ClassID < rows[j].ClassID
	})
	return rows
}

// ClassEnrollmentDetail joins one record to the class and its instructor.
// Both joins are required; false is returned when either side is missing
// or the record does not contain classID.
func ClassEnrollmentDetail(rec model.EnrollmentRecord, classID string, classes map[string]model.ClassOffering, users map[string]model.User) (ClassEnrollment, bool) {
	found := false
	for _, id := range rec.ClassIDs {
		if id == classID {
			found = true
			break
		}
	}
	if !found {
		return ClassEnrollment{}, false
	}
	c, ok := classes[classID]
	if !ok {
		return ClassEnrollment{}, false
	}
	u, ok := users[strings.ToLower(c.InstructorEmail)]
	if !ok {
		return ClassEnrollment{}, false
	}
	return ClassEnrollment{
		EnrollmentID:    rec.ID,
		ClassID:         c.ID,
		StudentEmail:    rec.UserEmail,
		EnrollmentDate:  rec.EnrolledAt,
		ClassName:       c.Name,
		ClassImage:      c.Image,
		Price:           c.Price,
		InstructorName:  u.Name,
		InstructorEmail: u.Email,
		VideoLink:       c.VideoLink,
	}, true
}
