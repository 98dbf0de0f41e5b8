package projection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/model"
)

func catalog() map[string]model.ClassOffering {
	return map[string]model.ClassOffering{
		"go":   {ID: "go", Name: "Go", InstructorEmail: "ann@example.com", Price: decimal.NewFromInt(30), Resources: "slides"},
		"rust": {ID: "rust", Name: "Rust", InstructorEmail: "bob@example.com", Price: decimal.NewFromInt(40)},
	}
}

func people() map[string]model.User {
	return map[string]model.User{
		"ann@example.com": {Email: "ann@example.com", Name: "Ann", Role: model.RoleInstructor},
	}
}

func TestStudentEnrollmentsOneRowPerClass(t *testing.T) {
	t.Parallel()
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.EnrollmentRecord{
		{ID: "e1", UserEmail: "s@example.com", ClassIDs: []string{"rust", "go"}, EnrolledAt: when},
	}

	rows := StudentEnrollments(records, catalog(), people())
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].ClassID != "go" || rows[1].ClassID != "rust" {
		t.Errorf("order = [%s %s], want [go rust]", rows[0].ClassID, rows[1].ClassID)
	}
	for _, r := range rows {
		if !r.EnrollmentDate.Equal(when) {
			t.Errorf("%s: enrollmentDate = %v, want %v", r.ClassID, r.EnrollmentDate, when)
		}
	}
	if rows[0].InstructorName != "Ann" || rows[0].Resources != "slides" {
		t.Errorf("go row = %+v", rows[0])
	}
	if rows[1].InstructorName != "" {
		t.Errorf("rust instructorName = %q, want empty for unknown instructor", rows[1].InstructorName)
	}
}

func TestStudentEnrollmentsDropsDeletedClassesAndSortsByDate(t *testing.T) {
	t.Parallel()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	records := []model.EnrollmentRecord{
		{ID: "e1", ClassIDs: []string{"go", "gone"}, EnrolledAt: older},
		{ID: "e2", ClassIDs: []string{"rust"}, EnrolledAt: newer},
	}
	rows := StudentEnrollments(records, catalog(), people())
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].ClassID != "rust" {
		t.Errorf("first row = %s, want newest (rust)", rows[0].ClassID)
	}
}

func TestClassEnrollmentDetailRequiresBothJoins(t *testing.T) {
	t.Parallel()
	rec := model.EnrollmentRecord{ID: "e1", UserEmail: "s@example.com", ClassIDs: []string{"go", "rust"}}

	got, ok := ClassEnrollmentDetail(rec, "go", catalog(), people())
	if !ok {
		t.Fatal("go detail not found")
	}
	if got.InstructorName != "Ann" || got.StudentEmail != "s@example.com" {
		t.Errorf("detail = %+v", got)
	}
	if _, ok := ClassEnrollmentDetail(rec, "rust", catalog(), people()); ok {
		t.Error("rust detail found without an instructor user")
	}
	if _, ok := ClassEnrollmentDetail(rec, "python", catalog(), people()); ok {
		t.Error("detail found for a class the record does not contain")
	}
}

func TestClassIDsAndInstructorEmails(t *testing.T) {
	t.Parallel()
	ids := ClassIDs([]model.EnrollmentRecord{{ClassIDs: []string{"a", "b"}}, {ClassIDs: []string{"b", "c"}}})
	if len(ids) != 3 {
		t.Errorf("ClassIDs = %v, want 3 distinct", ids)
	}
	emails := InstructorEmails(catalog())
	if len(emails) != 2 || emails[0] != "ann@example.com" {
		t.Errorf("InstructorEmails = %v", emails)
	}
}

func TestRankInstructors(t *testing.T) {
	t.Parallel()
	users := map[string]model.User{}
	var totals []model.InstructorTotal
	for i, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		email := name + "@example.com"
		users[email] = model.User{Email: email, Name: name, Role: model.RoleInstructor}
		totals = append(totals, model.InstructorTotal{InstructorEmail: email, TotalEnrolled: int64(i)})
	}
	// demoted instructor with the largest total
	users["h@example.com"] = model.User{Email: "h@example.com", Role: model.RoleStudent}
	totals = append(totals, model.InstructorTotal{InstructorEmail: "ghost@example.com", TotalEnrolled: 100})

	got := RankInstructors(totals, users, 6)
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].TotalEnrolled < got[i].TotalEnrolled {
			t.Fatalf("not sorted desc at %d: %+v", i, got)
		}
	}
	for _, p := range got {
		if p.Instructor.Email == "h@example.com" || p.Instructor.Email == "ghost@example.com" {
			t.Errorf("non-instructor %s ranked", p.Instructor.Email)
		}
	}
	if got[0].Instructor.Email != "g@example.com" {
		t.Errorf("top = %s, want g@example.com", got[0].Instructor.Email)
	}
}
