package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/logging"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository/memstore"
	"github.com/iliyamo/room-reservation/internal/scheduler"
	"github.com/iliyamo/room-reservation/internal/utils"
)

const secret = "handler-secret"

var now = time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)

func TestParseTime(t *testing.T) {
	plusOne := time.FixedZone("UTC+1", 3600)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-01-01T10:00:00Z", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2025-01-01T10:00:00+02:00", time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), true},
		{"2025-01-01T10:00", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"2025-01-01 10:00:30", time.Date(2025, 1, 1, 9, 0, 30, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"tomorrow", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := parseTime(tc.in, plusOne)
		if (err == nil) != tc.ok {
			t.Errorf("parseTime(%q) err = %v", tc.in, err)
			continue
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Errorf("parseTime(%q) = %s, want %s", tc.in, got, tc.want)
		}
		if tc.ok && got.Location() != time.UTC {
			t.Errorf("parseTime(%q) not in UTC", tc.in)
		}
	}
}

func TestParseDuration(t *testing.T) {
	for in, want := range map[string]time.Duration{"90m": 90 * time.Minute, "60": time.Hour, "1h30m": 90 * time.Minute} {
		if got, err := parseDuration(in); err != nil || got != want {
			t.Errorf("parseDuration(%q) = %s, %v", in, got, err)
		}
	}
	if got, err := parseDuration("10080"); err != nil || got != maxSearchDuration {
		t.Errorf("parseDuration(a week of minutes) = %s, %v", got, err)
	}
	for _, in := range []string{"0", "-5", "-1h", "soon", "10081", "200000000", "9223372036854775807", "169h"} {
		if _, err := parseDuration(in); err == nil {
			t.Errorf("parseDuration(%q) accepted", in)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[scheduler.Kind]int{
		scheduler.KindValidation:        http.StatusBadRequest,
		scheduler.KindForbidden:         http.StatusForbidden,
		scheduler.KindNotFound:          http.StatusNotFound,
		scheduler.KindConflict:          http.StatusConflict,
		scheduler.KindInvalidState:      http.StatusConflict,
		scheduler.KindInvalidTransition: http.StatusConflict,
		scheduler.KindBusy:              http.StatusServiceUnavailable,
		scheduler.KindUnknown:           http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := statusFor(k); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", k, got, want)
		}
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = writeError(c, logging.Discard(), errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "3306") {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = writeError(c, logging.Discard(), &scheduler.Error{Kind: scheduler.KindBusy, Msg: "lock wait"})
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("busy: got %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

// api is a running HTTP surface over an in-memory store.
type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	dir := memstore.NewDirectory(
		model.Room{ID: 101, Name: "101", Sector: "A", Capacity: 10, IsAvailable: true},
		model.Room{ID: 102, Name: "102", Sector: "A", Capacity: 40, IsAvailable: true},
		model.Room{ID: 301, Name: "301", Sector: "C", Capacity: 60, IsAvailable: false},
	)
	s := scheduler.New(dir, memstore.NewStore(), scheduler.Options{
		Clock:  func() time.Time { return now },
		Logger: logging.Discard(),
	})
	rooms := NewRoomHandler(s, time.UTC, logging.Discard())
	res := NewReservationHandler(s, time.UTC, logging.Discard())

	e := echo.New()
	g := e.Group("/v1", middleware.JWTAuth(secret))
	g.GET("/rooms", rooms.ListRooms)
	g.GET("/rooms/available", rooms.Available)
	g.GET("/rooms/:id", rooms.GetRoom)
	g.POST("/reservations/validate", res.Validate)
	g.POST("/reservations", res.Create)
	g.GET("/reservations", res.List)
	g.GET("/reservations/:id", res.Get)
	g.PUT("/reservations/:id", res.Update, middleware.RequireRole(model.RoleAdmin))
	g.PATCH("/reservations/:id/status", res.SetStatus, middleware.RequireRole(model.RoleAdmin))
	g.DELETE("/reservations/:id", res.Cancel)
	return &api{t: t, e: e}
}

func (a *api) do(who model.Actor, method, path, body string, out interface{}) int {
	a.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if who.UserID != 0 {
		tok, err := utils.NewAccessToken(secret, who.UserID, who.Role, time.Hour)
		if err != nil {
			a.t.Fatal(err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

var (
	admin = model.Actor{UserID: 1, Role: model.RoleAdmin}
	alice = model.Actor{UserID: 10, Role: model.RoleStudent}
	bob   = model.Actor{UserID: 11, Role: model.RoleProfessor}
)

type errorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields"`
	Conflicts []uint64          `json:"conflicts"`
}

func TestBookingApprovalFlow(t *testing.T) {
	a := newAPI(t)

	var first, second model.Reservation
	if code := a.do(alice, http.MethodPost, "/v1/reservations",
		`{"room_id":101,"start":"2025-01-01T10:00:00Z","end":"2025-01-01T12:00:00Z","purpose":"seminar"}`, &first); code != http.StatusCreated {
		t.Fatalf("create first: %d", code)
	}
	if first.Status != model.StatusPending || first.UserID != alice.UserID {
		t.Fatalf("first = %+v", first)
	}
	if code := a.do(bob, http.MethodPost, "/v1/reservations",
		`{"room_id":101,"start":"2025-01-01T11:00","end":"2025-01-01T13:00","purpose":"lab"}`, &second); code != http.StatusCreated {
		t.Fatalf("overlapping pending create: %d", code)
	}

	if code := a.do(alice, http.MethodPatch, "/v1/reservations/1/status", `{"status":"Approved"}`, nil); code != http.StatusForbidden {
		t.Fatalf("student approve: %d", code)
	}

	var approval scheduler.Approval
	if code := a.do(admin, http.MethodPatch, "/v1/reservations/1/status", `{"status":"approved"}`, &approval); code != http.StatusOK {
		t.Fatalf("approve: %d", code)
	}
	if approval.Approved.Status != model.StatusApproved || len(approval.AutoRejected) != 1 || approval.AutoRejected[0].ID != second.ID {
		t.Fatalf("approval = %+v", approval)
	}

	var again errorBody
	if code := a.do(admin, http.MethodPatch, "/v1/reservations/2/status", `{"status":"Approved"}`, &again); code != http.StatusConflict || again.Error != "invalid_state" {
		t.Fatalf("approve rejected: %d %+v", code, again)
	}

	var clash errorBody
	code := a.do(bob, http.MethodPost, "/v1/reservations",
		`{"room_id":101,"start":"2025-01-01T11:30:00Z","end":"2025-01-01T12:30:00Z","purpose":"retry"}`, &clash)
	if code != http.StatusConflict || clash.Error != "conflict" || len(clash.Conflicts) != 1 || clash.Conflicts[0] != first.ID {
		t.Fatalf("conflicting create: %d %+v", code, clash)
	}

	var touching model.Reservation
	if code := a.do(bob, http.MethodPost, "/v1/reservations",
		`{"room_id":101,"start":"2025-01-01T12:00:00Z","end":"2025-01-01T13:00:00Z","purpose":"after"}`, &touching); code != http.StatusCreated {
		t.Fatalf("touching create: %d", code)
	}

	if code := a.do(bob, http.MethodGet, "/v1/reservations/1", "", nil); code != http.StatusForbidden {
		t.Fatalf("bob reads alice's reservation: %d", code)
	}
	var got model.Reservation
	if code := a.do(bob, http.MethodGet, "/v1/reservations/2", "", &got); code != http.StatusOK || got.Status != model.StatusRejected {
		t.Fatalf("bob reads own: %d %+v", code, got)
	}

	var back errorBody
	if code := a.do(admin, http.MethodPatch, "/v1/reservations/1/status", `{"status":"Pending"}`, &back); code != http.StatusConflict || back.Error != "invalid_transition" {
		t.Fatalf("back to pending: %d %+v", code, back)
	}

	var cancelled model.Reservation
	if code := a.do(alice, http.MethodDelete, "/v1/reservations/1", "", &cancelled); code != http.StatusOK || cancelled.Status != model.StatusCancelled {
		t.Fatalf("cancel: %d %+v", code, cancelled)
	}
}

func TestCreateValidation(t *testing.T) {
	a := newAPI(t)
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing room", `{"start":"2025-01-01T10:00:00Z","end":"2025-01-01T11:00:00Z","purpose":"x"}`, "room_id"},
		{"bad start", `{"room_id":101,"start":"noon","end":"2025-01-01T11:00:00Z","purpose":"x"}`, "start"},
		{"empty purpose", `{"room_id":101,"start":"2025-01-01T10:00:00Z","end":"2025-01-01T11:00:00Z","purpose":" "}`, "purpose"},
	}
	for _, tc := range cases {
		var body errorBody
		code := a.do(alice, http.MethodPost, "/v1/reservations", tc.body, &body)
		if code != http.StatusBadRequest || body.Error != "validation" {
			t.Errorf("%s: %d %+v", tc.name, code, body)
			continue
		}
		if _, ok := body.Fields[tc.field]; !ok {
			t.Errorf("%s: fields = %v, want %q", tc.name, body.Fields, tc.field)
		}
	}

	var long errorBody
	body := `{"room_id":101,"start":"2025-01-01T10:00:00Z","end":"2025-01-01T11:00:00Z","purpose":"` + strings.Repeat("x", 501) + `"}`
	if code := a.do(alice, http.MethodPost, "/v1/reservations", body, &long); code != http.StatusBadRequest || long.Fields["purpose"] == "" {
		t.Errorf("over-long purpose: %d %+v", code, long)
	}

	if code := a.do(alice, http.MethodPost, "/v1/reservations", `{"room_id":`, nil); code != http.StatusBadRequest {
		t.Errorf("malformed json: %d", code)
	}
	if code := a.do(model.Actor{}, http.MethodPost, "/v1/reservations", `{}`, nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous: %d", code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	a := newAPI(t)
	var ok map[string]bool
	if code := a.do(alice, http.MethodPost, "/v1/reservations/validate",
		`{"room_id":101,"start":"2025-01-01T10:00:00Z","end":"2025-01-01T11:00:00Z"}`, &ok); code != http.StatusOK || !ok["ok"] {
		t.Fatalf("validate: %d %v", code, ok)
	}
	var body errorBody
	if code := a.do(alice, http.MethodPost, "/v1/reservations/validate",
		`{"room_id":101,"start":"2025-01-01T11:00:00Z","end":"2025-01-01T10:00:00Z"}`, &body); code != http.StatusBadRequest {
		t.Fatalf("reversed window: %d %+v", code, body)
	}
	if code := a.do(alice, http.MethodPost, "/v1/reservations/validate",
		`{"room_id":301,"start":"2025-01-01T10:00:00Z","end":"2025-01-01T11:00:00Z"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("room under maintenance: %d", code)
	}
}

func TestRoomsAndAvailability(t *testing.T) {
	a := newAPI(t)

	var listed struct {
		Rooms []model.Room `json:"rooms"`
	}
	if code := a.do(alice, http.MethodGet, "/v1/rooms?includeUnavailable=true", "", &listed); code != http.StatusOK || len(listed.Rooms) != 2 {
		t.Fatalf("student list: %d %+v", code, listed)
	}
	if code := a.do(admin, http.MethodGet, "/v1/rooms?includeUnavailable=true", "", &listed); code != http.StatusOK || len(listed.Rooms) != 3 {
		t.Fatalf("admin list: %d %+v", code, listed)
	}
	if code := a.do(alice, http.MethodGet, "/v1/rooms?minCapacity=many", "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad minCapacity: %d", code)
	}

	var room model.Room
	if code := a.do(alice, http.MethodGet, "/v1/rooms/102", "", &room); code != http.StatusOK || room.Capacity != 40 {
		t.Fatalf("get room: %d %+v", code, room)
	}
	if code := a.do(alice, http.MethodGet, "/v1/rooms/999", "", nil); code != http.StatusNotFound {
		t.Fatalf("missing room: %d", code)
	}

	if code := a.do(alice, http.MethodPost, "/v1/reservations",
		`{"room_id":101,"start":"2025-01-01T10:00:00Z","end":"2025-01-01T12:00:00Z","purpose":"seminar"}`, nil); code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}
	if code := a.do(admin, http.MethodPatch, "/v1/reservations/1/status", `{"status":"Approved"}`, nil); code != http.StatusOK {
		t.Fatalf("approve: %d", code)
	}

	var avail struct {
		Rooms []model.Room `json:"rooms"`
	}
	if code := a.do(bob, http.MethodGet, "/v1/rooms/available?start=2025-01-01T11:00:00Z&duration=30", "", &avail); code != http.StatusOK {
		t.Fatalf("available: %d", code)
	}
	if len(avail.Rooms) != 1 || avail.Rooms[0].ID != 102 {
		t.Fatalf("available rooms = %+v", avail.Rooms)
	}
	if code := a.do(bob, http.MethodGet, "/v1/rooms/available?start=2025-01-01T12:00:00Z&end=2025-01-01T13:00:00Z&sector=A", "", &avail); code != http.StatusOK || len(avail.Rooms) != 2 {
		t.Fatalf("touching window: %d %+v", code, avail.Rooms)
	}
	if code := a.do(bob, http.MethodGet, "/v1/rooms/available?start=2025-01-01T12:00:00Z", "", nil); code != http.StatusBadRequest {
		t.Fatalf("missing end: %d", code)
	}
	var huge errorBody
	if code := a.do(bob, http.MethodGet, "/v1/rooms/available?start=2025-01-01T12:00:00Z&duration=200000000", "", &huge); code != http.StatusBadRequest || huge.Fields["duration"] == "" {
		t.Fatalf("huge duration: %d %+v", code, huge)
	}
}

func TestListAndUpdate(t *testing.T) {
	a := newAPI(t)
	for _, who := range []model.Actor{alice, alice, bob} {
		if code := a.do(who, http.MethodPost, "/v1/reservations",
			`{"room_id":102,"start":"2025-01-02T09:00:00Z","end":"2025-01-02T10:00:00Z","purpose":"study"}`, nil); code != http.StatusCreated {
			t.Fatalf("create: %d", code)
		}
	}

	var page struct {
		Items    []model.Reservation `json:"items"`
		Total    int                 `json:"total"`
		Page     int                 `json:"page"`
		PageSize int                 `json:"pageSize"`
	}
	if code := a.do(alice, http.MethodGet, "/v1/reservations?user_id=11", "", &page); code != http.StatusOK || page.Total != 2 {
		t.Fatalf("alice list: %d %+v", code, page)
	}
	for _, r := range page.Items {
		if r.UserID != alice.UserID {
			t.Fatalf("alice sees %+v", r)
		}
	}
	if code := a.do(admin, http.MethodGet, "/v1/reservations?status=pending&page=1&pageSize=2", "", &page); code != http.StatusOK {
		t.Fatalf("admin list: %d", code)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.PageSize != 2 {
		t.Fatalf("admin page = %+v", page)
	}
	if code := a.do(admin, http.MethodGet, "/v1/reservations?page=461168601842738790", "", &page); code != http.StatusOK || page.Total != 3 || len(page.Items) != 0 {
		t.Fatalf("far page: %d %+v", code, page)
	}
	if code := a.do(admin, http.MethodGet, "/v1/reservations?status=done", "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad status: %d", code)
	}

	var body errorBody
	if code := a.do(admin, http.MethodPut, "/v1/reservations/1", `{"purpose":"exam"}`, &body); code != http.StatusBadRequest || body.Fields["room_id"] == "" {
		t.Fatalf("update without room: %d %+v", code, body)
	}
	var moved model.Reservation
	if code := a.do(admin, http.MethodPut, "/v1/reservations/1",
		`{"room_id":101,"start":"2025-01-02T14:00:00Z","end":"2025-01-02T15:30:00Z","purpose":"exam"}`, &moved); code != http.StatusOK {
		t.Fatalf("update: %d", code)
	}
	if moved.RoomID != 101 || moved.Purpose != "exam" || !moved.End.Equal(time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)) {
		t.Fatalf("moved = %+v", moved)
	}
	if code := a.do(alice, http.MethodPut, "/v1/reservations/1", `{"room_id":101}`, nil); code != http.StatusForbidden {
		t.Fatalf("student update: %d", code)
	}
	if code := a.do(admin, http.MethodPut, "/v1/reservations/99", `{"room_id":101,"purpose":"x"}`, nil); code != http.StatusNotFound {
		t.Fatalf("update missing: %d", code)
	}
}
