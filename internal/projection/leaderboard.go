package projection

import (
	"sort"
	"strings"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// DefaultLimit is the leaderboard size used when none is configured.
const DefaultLimit = 6

// PopularInstructor is one entry of the instructor leaderboard.
type PopularInstructor struct {
	Instructor    model.User `json:"instructor"`
	TotalEnrolled int64      `json:"totalEnrolled"`
}

// RankInstructors joins per-instructor totals to users and keeps only
// users whose role is instructor.  Groups with no matching user are
// dropped.  The result is sorted by TotalEnrolled descending and cut to
// limit entries.
func RankInstructors(totals []model.InstructorTotal, users map[string]model.User, limit int) []PopularInstructor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]PopularInstructor, 0, len(totals))
	for _, t := range totals {
		u, ok := users[strings.ToLower(t.InstructorEmail)]
		if !ok || u.Role != model.RoleInstructor {
			continue
		}
		out = append(out, PopularInstructor{Instructor: u, TotalEnrolled: t.TotalEnrolled})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalEnrolled != out[j].TotalEnrolled {
			return out[i].TotalEnrolled > out[j].TotalEnrolled
		}
		return out[i].Instructor.Email < out[j].Instructor.Email
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
