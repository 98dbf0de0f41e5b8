package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/class-enrollment/internal/config"
	"github.com/iliyamo/class-enrollment/internal/middleware"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/router"
)

type classList struct {
	Items []model.ClassOffering `json:"items"`
}

type boardList struct {
	Items []struct {
		Instructor model.User `json:"instructor"`
	} `json:"items"`
}

func contains(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}

func TestClassDetailAndEdit(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	a.addUser(t, "teach@example.com", "Tina", model.RoleInstructor)
	a.addUser(t, "olga@example.com", "Olga", model.RoleInstructor)
	a.addClass(t, "c1", "teach@example.com", 5)
	owner := token(t, "teach@example.com", model.RoleInstructor)
	other := token(t, "olga@example.com", model.RoleInstructor)
	admin := token(t, "root@example.com", model.RoleAdmin)

	rec := a.do(t, http.MethodGet, "/v1/classes/c1", "", nil)
	var one struct {
		Item model.ClassOffering `json:"item"`
	}
	decode(t, rec, &one)
	if rec.Code != http.StatusOK || one.Item.ID != "c1" {
		t.Fatalf("detail = %d %+v", rec.Code, one.Item)
	}
	if rec := a.do(t, http.MethodGet, "/v1/classes/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown detail = %d", rec.Code)
	}

	edit := map[string]interface{}{"name": "Advanced Go", "price": "30.00", "availableSeats": 8, "totalEnrolled": 50}
	tests := []struct {
		name string
		tok  string
		path string
		body interface{}
		want int
	}{
		{"student", token(t, "sam@example.com", model.RoleStudent), "/v1/classes/c1", edit, http.StatusForbidden},
		{"not owner", other, "/v1/classes/c1", edit, http.StatusForbidden},
		{"unknown class", owner, "/v1/classes/ghost", edit, http.StatusNotFound},
		{"no name", owner, "/v1/classes/c1", map[string]interface{}{"availableSeats": 2}, http.StatusBadRequest},
		{"negative seats", owner, "/v1/classes/c1", map[string]interface{}{"name": "x", "availableSeats": -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := a.do(t, http.MethodPut, tt.path, tt.tok, tt.body); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}
	if got := a.purger.take(); len(got) != 0 {
		t.Fatalf("failed edits purged %v", got)
	}

	rec = a.do(t, http.MethodPut, "/v1/classes/c1", owner, edit)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit = %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &one)
	if one.Item.Name != "Advanced Go" || one.Item.Status != model.ClassPending || one.Item.AvailableSeats != 8 ||
		one.Item.TotalEnrolled != 0 || one.Item.InstructorEmail != "teach@example.com" {
		t.Fatalf("edited = %+v", one.Item)
	}
	if got := a.purger.take(); !contains(got, "/v1/classes") || !contains(got, "/v1/enrollment-projection/class/c1") {
		t.Fatalf("purged after edit = %v", got)
	}
	if rec := a.do(t, http.MethodGet, "/v1/classes/c1", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("pending class is public: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPut, "/v1/classes/c1", admin, edit); rec.Code != http.StatusOK {
		t.Fatalf("admin edit = %d", rec.Code)
	}

	var mine classList
	rec = a.do(t, http.MethodGet, "/v1/instructor/classes", owner, nil)
	decode(t, rec, &mine)
	if rec.Code != http.StatusOK || len(mine.Items) != 1 || mine.Items[0].Status != model.ClassPending {
		t.Fatalf("own classes = %d %+v", rec.Code, mine.Items)
	}
	rec = a.do(t, http.MethodGet, "/v1/instructor/classes", other, nil)
	decode(t, rec, &mine)
	if len(mine.Items) != 0 {
		t.Fatalf("other instructor sees %+v", mine.Items)
	}
}

func TestAdminClassQueue(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	a.addClass(t, "live", "teach@example.com", 5)
	instructor := token(t, "teach@example.com", model.RoleInstructor)
	admin := token(t, "root@example.com", model.RoleAdmin)

	if rec := a.do(t, http.MethodPost, "/v1/classes", instructor, map[string]interface{}{"name": "Draft", "availableSeats": 3}); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	for query, want := range map[string]int{"": 2, "?status=pending": 1, "?status=approved": 1, "?status=rejected": 0} {
		rec := a.do(t, http.MethodGet, "/v1/admin/classes"+query, admin, nil)
		var list classList
		decode(t, rec, &list)
		if rec.Code != http.StatusOK || len(list.Items) != want {
			t.Errorf("classes%s = %d, %d items, want %d", query, rec.Code, len(list.Items), want)
		}
	}
	if rec := a.do(t, http.MethodGet, "/v1/admin/classes?status=bogus", admin, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodGet, "/v1/admin/classes", instructor, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("instructor on admin queue = %d", rec.Code)
	}
}

func TestApplicationStatusAndInstructors(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	a.addUser(t, "sam@example.com", "Sam", model.RoleStudent)
	student := token(t, "sam@example.com", model.RoleStudent)
	admin := token(t, "root@example.com", model.RoleAdmin)

	if rec := a.do(t, http.MethodGet, "/v1/applications/sam@example.com", student, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status before applying = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPost, "/v1/applications", student, map[string]string{"name": "Sam", "experience": "5 years"}); rec.Code != http.StatusCreated {
		t.Fatalf("apply = %d %s", rec.Code, rec.Body.String())
	}

	rec := a.do(t, http.MethodGet, "/v1/applications/sam@example.com", student, nil)
	var app struct {
		Item model.InstructorApplication `json:"item"`
	}
	decode(t, rec, &app)
	if rec.Code != http.StatusOK || app.Item.Status != model.ApplicationPending {
		t.Fatalf("own status = %d %+v", rec.Code, app.Item)
	}
	if rec := a.do(t, http.MethodGet, "/v1/applications/sam@example.com", token(t, "eve@example.com", model.RoleStudent), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign status = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodGet, "/v1/applications/sam@example.com", admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}

	var queue struct {
		Items []model.InstructorApplication `json:"items"`
	}
	rec = a.do(t, http.MethodGet, "/v1/admin/applications?status=pending", admin, nil)
	decode(t, rec, &queue)
	if rec.Code != http.StatusOK || len(queue.Items) != 1 || queue.Items[0].ID != app.Item.ID {
		t.Fatalf("pending queue = %d %+v", rec.Code, queue.Items)
	}
	if rec := a.do(t, http.MethodGet, "/v1/admin/applications?status=maybe", admin, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d", rec.Code)
	}

	var instructors struct {
		Items []model.User `json:"items"`
	}
	rec = a.do(t, http.MethodGet, "/v1/instructors", "", nil)
	decode(t, rec, &instructors)
	if len(instructors.Items) != 0 {
		t.Fatalf("instructors before approval = %+v", instructors.Items)
	}

	path := "/v1/admin/applications/" + app.Item.ID + "/status"
	if rec := a.do(t, http.MethodPatch, path, admin, map[string]string{"status": model.ApplicationApproved}); rec.Code != http.StatusOK {
		t.Fatalf("approve = %d", rec.Code)
	}
	if got := a.purger.take(); !contains(got, "/v1/leaderboard/instructors") {
		t.Fatalf("purged after approval = %v", got)
	}
	rec = a.do(t, http.MethodGet, "/v1/instructors", "", nil)
	decode(t, rec, &instructors)
	if len(instructors.Items) != 1 || instructors.Items[0].Email != "sam@example.com" {
		t.Fatalf("instructors after approval = %+v", instructors.Items)
	}
	rec = a.do(t, http.MethodGet, "/v1/admin/applications?status=pending", admin, nil)
	decode(t, rec, &queue)
	if len(queue.Items) != 0 {
		t.Fatalf("pending queue after approval = %+v", queue.Items)
	}
}

func TestDemotedInstructorLeavesLeaderboard(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	a.addUser(t, "teach@example.com", "Tina", model.RoleInstructor)
	a.addClass(t, "c1", "teach@example.com", 5)
	admin := token(t, "root@example.com", model.RoleAdmin)

	var board boardList
	decode(t, a.do(t, http.MethodGet, "/v1/leaderboard/instructors", "", nil), &board)
	if len(board.Items) != 1 {
		t.Fatalf("board before demotion = %+v", board.Items)
	}

	tests := []struct {
		name  string
		tok   string
		email string
		role  string
		want  int
	}{
		{"not admin", token(t, "teach@example.com", model.RoleInstructor), "teach@example.com", model.RoleStudent, http.StatusForbidden},
		{"unknown role", admin, "teach@example.com", "wizard", http.StatusBadRequest},
		{"unknown user", admin, "ghost@example.com", model.RoleStudent, http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := a.do(t, http.MethodPatch, "/v1/admin/users/"+tt.email+"/role", tt.tok, map[string]string{"role": tt.role})
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}

	rec := a.do(t, http.MethodPatch, "/v1/admin/users/teach@example.com/role", admin, map[string]string{"role": model.RoleStudent})
	if rec.Code != http.StatusOK {
		t.Fatalf("demote = %d %s", rec.Code, rec.Body.String())
	}
	if got := a.purger.take(); !contains(got, "/v1/leaderboard/instructors") {
		t.Fatalf("purged after demotion = %v", got)
	}
	decode(t, a.do(t, http.MethodGet, "/v1/leaderboard/instructors", "", nil), &board)
	if len(board.Items) != 0 {
		t.Fatalf("demoted instructor still ranked: %+v", board.Items)
	}
}

// TestDemotionPurgesCachedLeaderboard runs the demotion through the Redis
// response cache and expects the next read to miss.
func TestDemotionPurgesCachedLeaderboard(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.CacheConfig{
		Enabled: true,
		TTL:     time.Minute,
		Prefix:  "test-handler-cache-" + time.Now().Format("150405.000000"),
		Methods: map[string]bool{http.MethodGet: true},
	}
	a := newAPIWith(t, router.Options{JWTSecret: secret, Cache: cfg, Redis: rdb},
		middleware.NewCachePurger(cfg, rdb, zerolog.Nop()))
	a.addUser(t, "teach@example.com", "Tina", model.RoleInstructor)
	a.addClass(t, "c1", "teach@example.com", 5)

	for _, want := range []string{"MISS", "HIT"} {
		rec := a.do(t, http.MethodGet, "/v1/leaderboard/instructors", "", nil)
		if got := rec.Header().Get("X-Cache"); got != want {
			t.Fatalf("X-Cache = %q, want %q", got, want)
		}
	}

	admin := token(t, "root@example.com", model.RoleAdmin)
	if rec := a.do(t, http.MethodPatch, "/v1/admin/users/teach@example.com/role", admin, map[string]string{"role": model.RoleStudent}); rec.Code != http.StatusOK {
		t.Fatalf("demote = %d", rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/v1/leaderboard/instructors", "", nil)
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("X-Cache after demotion = %q", got)
	}
	var board boardList
	decode(t, rec, &board)
	if len(board.Items) != 0 {
		t.Fatalf("demoted instructor still ranked: %+v", board.Items)
	}
}

// TestHandlerErrorsUseRequestLogger checks that a failing handler logs
// through the request-scoped zerolog logger, tagged with the request id.
func TestHandlerErrorsUseRequestLogger(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	var buf bytes.Buffer
	a.e.Use(middleware.RequestLogger(zerolog.New(&buf)))
	_ = a.db.Close()

	rec := a.do(t, http.MethodGet, "/v1/leaderboard/classes", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	reqID := rec.Header().Get("X-Request-Id")
	if reqID == "" {
		t.Fatal("no request id header")
	}

	var handlerLine, accessLine map[string]interface{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("log line %q: %v", sc.Text(), err)
		}
		switch entry["message"] {
		case "popular classes":
			handlerLine = entry
		case "request":
			accessLine = entry
		}
	}
	if handlerLine == nil || accessLine == nil {
		t.Fatalf("log = %s", buf.String())
	}
	if handlerLine["level"] != "error" || handlerLine["request_id"] != reqID || accessLine["request_id"] != reqID {
		t.Errorf("handler=%v access=%v", handlerLine, accessLine)
	}
	if msg, _ := handlerLine["error"].(string); !strings.Contains(msg, "closed") {
		t.Errorf("error field = %v", handlerLine["error"])
	}
}
