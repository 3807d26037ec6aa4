package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edustream/liveclass/internal/adapters/rtc"
	"github.com/edustream/liveclass/internal/adapters/signal"
	"github.com/edustream/liveclass/internal/adapters/store/memory"
	"github.com/edustream/liveclass/internal/app"
	"github.com/edustream/liveclass/internal/app/orch"
	"github.com/edustream/liveclass/internal/config"
	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var jwtSecret = []byte("test-jwt-secret")

type fixture struct {
	srv   *httptest.Server
	orch  *orch.Orchestrator
	store *memory.Store
	// skew shifts the server clock forward.
	skew atomic.Int64
}

func newFixture(t *testing.T, health func(context.Context) error) *fixture {
	t.Helper()
	store, err := memory.FromSeed(config.Seed{
		Users: []config.SeedUser{
			{ID: "1", Username: "root", Role: "admin"},
			{ID: "2", Username: "tmason", FirstName: "Tara", LastName: "Mason", Role: "teacher"},
			{ID: "3", Username: "sli", Role: "student"},
		},
		Schedules:   []config.SeedSchedule{{ID: "s1", Room: "room_a", Course: "101", Teacher: "2"}},
		Enrollments: []config.SeedAccess{{Student: "3", Course: "101", Status: "completed"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Mode: "test", Secret: "cookie-secret"}
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Access:   app.AccessGate{Authorizer: store},
		Policy:   app.DropPolicy{},
	}
	ice, err := rtc.NewWebRTCConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{orch: o, store: store}
	auth := &Authenticator{Secret: jwtSecret, Identities: store, AllowedOrigins: []string{"https://app.edustream.example"}}
	auth.now = func() time.Time { return time.Now().Add(time.Duration(f.skew.Load())) }
	r := SetupRouter(context.Background(), cfg, Deps{
		Orch:   o,
		Signal: signal.NewSignalWSController(o, nil, signal.Options{SendBuffer: 16}),
		Auth:   auth,
		ICE:    ice,
		Health: health,
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func token(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func userToken(t *testing.T, id any) string {
	return token(t, jwt.MapClaims{"user_id": id, "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, jwtSecret)
}

func (f *fixture) do(t *testing.T, method, path, tok string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) dial(t *testing.T, room, tok string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/signal/" + room + "?token=" + tok
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readType(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	if err := ws.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func (f *fixture) waitMembers(t *testing.T, room domain.RoomID, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count := 0
		if r, ok := f.orch.Rooms.Get(room); ok {
			count = r.MemberCount()
		}
		if count == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members", room, n)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	if resp := f.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	down := newFixture(t, func(context.Context) error { return errors.New("db down") })
	if resp := down.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t, nil)
	expired := token(t, jwt.MapClaims{"user_id": "3", "exp": time.Now().Add(-time.Minute).Unix()}, jwt.SigningMethodHS256, jwtSecret)
	noExp := token(t, jwt.MapClaims{"user_id": "3"}, jwt.SigningMethodHS256, jwtSecret)
	wrongKey := token(t, jwt.MapClaims{"user_id": "3", "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, []byte("other"))
	noClaim := token(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, jwtSecret)

	tests := []struct {
		name string
		tok  string
		want int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"no exp", noExp, http.StatusUnauthorized},
		{"wrong key", wrongKey, http.StatusUnauthorized},
		{"no user_id", noClaim, http.StatusUnauthorized},
		{"unknown user", userToken(t, "42"), http.StatusUnauthorized},
		{"string id", userToken(t, "3"), http.StatusOK},
		{"numeric id", userToken(t, 3), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := f.do(t, http.MethodGet, "/api/ice-servers", tt.tok); resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	a := &Authenticator{Secret: jwtSecret}
	none := token(t, jwt.MapClaims{"user_id": "3", "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)
	if _, _, err := a.ParseToken(none); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
}

func TestSessionCookieRemembersUser(t *testing.T) {
	f := newFixture(t, nil)
	first := f.do(t, http.MethodGet, "/api/ice-servers", userToken(t, "3"))
	cookies := first.Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/ice-servers", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	decode(t, resp, &body)
	if len(body.ICEServers) != 1 || body.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("body = %+v", body)
	}
}

func TestAdminOnly(t *testing.T) {
	f := newFixture(t, nil)
	if resp := f.do(t, http.MethodGet, "/api/rooms", userToken(t, "3")); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/rooms", userToken(t, "1")); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/rooms/bad%20room/members", userToken(t, "1")); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad room status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/rooms/room_x", userToken(t, "1")); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing room status = %d", resp.StatusCode)
	}
}

func TestWebSocketRequiresAuth(t *testing.T) {
	f := newFixture(t, nil)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/signal/room_a"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}
}

func TestAdminSeesAndEndsRoom(t *testing.T) {
	f := newFixture(t, nil)
	admin := userToken(t, "1")

	teacher := f.dial(t, "room_a", userToken(t, "2"))
	f.waitMembers(t, "room_a", 1)
	student := f.dial(t, "room_a", userToken(t, "3"))
	joined := readType(t, teacher)
	if joined["type"] != "user-joined" || joined["username"] != "sli" {
		t.Fatalf("joined = %v", joined)
	}

	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/rooms", admin), &list)
	if len(list.Rooms) != 1 || list.Rooms[0].ID != "room_a" || list.Rooms[0].MemberCount != 2 {
		t.Fatalf("rooms = %+v", list.Rooms)
	}

	var members struct {
		Members []core.MemberDTO `json:"members"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/rooms/room_a/members", admin), &members)
	if len(members.Members) != 2 {
		t.Fatalf("members = %+v", members.Members)
	}

	resp := f.do(t, http.MethodDelete, "/api/rooms/room_a", admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d", resp.StatusCode)
	}
	for _, ws := range []*websocket.Conn{teacher, student} {
		if m := readType(t, ws); m["type"] != "session-ended" {
			t.Fatalf("got %v", m)
		}
	}
	if _, ok := f.orch.Rooms.Get("room_a"); ok {
		t.Fatal("room still registered")
	}
}

func TestAdminKick(t *testing.T) {
	f := newFixture(t, nil)
	admin := userToken(t, "1")

	teacher := f.dial(t, "room_a", userToken(t, "2"))
	f.waitMembers(t, "room_a", 1)
	f.dial(t, "room_a", userToken(t, "3"))
	if m := readType(t, teacher); m["type"] != "user-joined" {
		t.Fatalf("got %v", m)
	}

	room, ok := f.orch.Rooms.Get("room_a")
	if !ok {
		t.Fatal("room missing")
	}
	var sid core.SessionID
	for _, m := range room.MembersSnapshot() {
		if m.ID == "3" {
			sid = m.SID
		}
	}
	if sid == "" {
		t.Fatal("student session not registered")
	}
	if resp := f.do(t, http.MethodDelete, "/api/rooms/room_b/members/"+string(sid), admin); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("wrong room status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/rooms/room_a/members/"+string(sid), admin); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("kick status = %d", resp.StatusCode)
	}
	left := readType(t, teacher)
	if left["type"] != "user-left" || left["user_id"] != "3" {
		t.Fatalf("left = %v", left)
	}
	f.waitMembers(t, "room_a", 1)
}

func TestDeniedStudentNeverJoins(t *testing.T) {
	f := newFixture(t, nil)
	f.store.AddUser(domain.User{ID: "9", Username: "walkin", Role: domain.RoleStudent})

	teacher := f.dial(t, "room_a", userToken(t, "2"))
	f.waitMembers(t, "room_a", 1)

	ws := f.dial(t, "room_a", userToken(t, "9"))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v", err)
	}

	if err := teacher.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	if m := readType(t, teacher); m["type"] != "pong" {
		t.Fatalf("teacher got %v", m)
	}
}

func TestParseTokenKeepsLargeNumericIDs(t *testing.T) {
	a := &Authenticator{Secret: jwtSecret}
	id, exp, err := a.ParseToken(userToken(t, int64(9007199254740993)))
	if err != nil {
		t.Fatal(err)
	}
	if id != "9007199254740993" {
		t.Fatalf("id = %s", id)
	}
	if exp.Before(time.Now()) {
		t.Fatalf("exp = %v", exp)
	}
	if _, _, err := a.ParseToken(userToken(t, 3.5)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("fractional id: err = %v", err)
	}
}

// cookieFrom authenticates once with tok and returns the session cookies.
func (f *fixture) cookieFrom(t *testing.T, tok string) []*http.Cookie {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/api/ice-servers", tok)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}
	for _, c := range cookies {
		if c.SameSite != http.SameSiteStrictMode || c.MaxAge <= 0 || c.MaxAge > 120 {
			t.Fatalf("cookie %s: samesite=%v maxage=%d", c.Name, c.SameSite, c.MaxAge)
		}
	}
	return cookies
}

func (f *fixture) withCookies(t *testing.T, path string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func cookieHeader(cookies []*http.Cookie) http.Header {
	h := http.Header{}
	for _, c := range cookies {
		h.Add("Cookie", c.Name+"="+c.Value)
	}
	return h
}

func TestSessionCookieExpiresWithToken(t *testing.T) {
	f := newFixture(t, nil)
	tok := token(t, jwt.MapClaims{"user_id": "3", "exp": time.Now().Add(time.Minute).Unix()}, jwt.SigningMethodHS256, jwtSecret)
	cookies := f.cookieFrom(t, tok)

	if resp := f.withCookies(t, "/api/ice-servers", cookies); resp.StatusCode != http.StatusOK {
		t.Fatalf("fresh cookie status = %d", resp.StatusCode)
	}

	f.skew.Store(int64(2 * time.Minute))

	if resp := f.do(t, http.MethodGet, "/api/ice-servers", tok); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token status = %d", resp.StatusCode)
	}
	if resp := f.withCookies(t, "/api/ice-servers", cookies); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired cookie status = %d", resp.StatusCode)
	}

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/signal/room_a"
	_, resp, err := websocket.DefaultDialer.Dial(url, cookieHeader(cookies))
	if err == nil {
		t.Fatal("dial with expired cookie succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}
	if _, ok := f.orch.Rooms.Get("room_a"); ok {
		t.Fatal("expired cookie joined a room")
	}
}

func TestCookieHandshakeOrigin(t *testing.T) {
	f := newFixture(t, nil)
	cookies := f.cookieFrom(t, token(t, jwt.MapClaims{"user_id": "3", "exp": time.Now().Add(time.Minute).Unix()}, jwt.SigningMethodHS256, jwtSecret))
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/signal/room_a"

	h := cookieHeader(cookies)
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, h)
	if err == nil {
		t.Fatal("cross-site cookie handshake succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %v", resp)
	}
	if _, ok := f.orch.Rooms.Get("room_a"); ok {
		t.Fatal("cross-site handshake joined a room")
	}

	for _, origin := range []string{f.srv.URL, "https://app.edustream.example"} {
		h := cookieHeader(cookies)
		h.Set("Origin", origin)
		ws, _, err := websocket.DefaultDialer.Dial(url, h)
		if err != nil {
			t.Fatalf("origin %s: %v", origin, err)
		}
		_ = ws.Close()
	}

	// A token in the URL is not ambient, so any origin may use it.
	h = http.Header{}
	h.Set("Origin", "https://evil.example")
	ws, _, err := websocket.DefaultDialer.Dial(url+"?token="+userToken(t, "3"), h)
	if err != nil {
		t.Fatalf("token handshake: %v", err)
	}
	_ = ws.Close()
}
