package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/neuropath/rtcore/internal/appointment"
	"github.com/neuropath/rtcore/internal/auth"
	"github.com/neuropath/rtcore/internal/call"
	"github.com/neuropath/rtcore/internal/chat"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/presence"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/registry"
	"github.com/neuropath/rtcore/internal/storage"

	"github.com/pion/webrtc/v4"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	verifier *auth.JWTVerifier
	logs     *LogBuffer
}

type stubSocket struct{}

func (stubSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}
func (stubSocket) Shutdown() {}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := registry.New(0)
	tracker := presence.New(reg)
	reg.OnChange(tracker.Handle)
	calls := call.NewManager(reg, nil, time.Second)
	t.Cleanup(calls.Close)

	store := storage.NewMemory()
	verifier := auth.NewJWTVerifier("0123456789abcdef-test", "")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	logs := NewLogBuffer(16)

	s := New(Deps{
		Socket:            stubSocket{},
		Verifier:          verifier,
		Appointments:      appointment.NewService(store, reg, nil),
		Chat:              chat.NewRelay(store, reg, nil, 0),
		Presence:          tracker,
		Connections:       reg,
		Calls:             calls,
		Store:             store,
		Logs:              logs,
		ICEServers:        []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}},
		AdminPasswordHash: string(hash),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, verifier: verifier, logs: logs}
}

func (e *testEnv) token(userID string, role model.Role) string {
	e.t.Helper()
	tok, err := e.verifier.Sign(auth.Identity{UserID: userID, Role: role}, time.Minute)
	if err != nil {
		e.t.Fatalf("sign: %v", err)
	}
	return tok
}

// do sends a request as token and decodes a JSON reply into out when non-nil.
func (e *testEnv) do(method, path, token string, body, out any) int {
	e.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		e.t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			e.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestBookRespondAndChatOverREST(t *testing.T) {
	e := newTestEnv(t)
	pat := e.token("pat", model.RolePatient)
	neu := e.token("neu", model.RoleNeurologist)

	var a model.Appointment
	code := e.do(http.MethodPost, "/api/appointments", pat, bookRequest{NeurologistID: "neu", Date: "2025-03-14", Time: "14:30"}, &a)
	if code != http.StatusCreated || a.Status != model.StatusPending {
		t.Fatalf("book = %d %+v", code, a)
	}

	t.Run("neurologist cannot book", func(t *testing.T) {
		var ep proto.ErrorPayload
		if code := e.do(http.MethodPost, "/api/appointments", neu, bookRequest{NeurologistID: "x", Date: "d", Time: "t"}, &ep); code != http.StatusForbidden {
			t.Fatalf("code = %d", code)
		}
	})

	t.Run("patient cannot respond", func(t *testing.T) {
		var ep proto.ErrorPayload
		code := e.do(http.MethodPost, "/api/appointments/"+a.ID+"/respond", pat, respondRequest{Accept: true}, &ep)
		if code != http.StatusConflict || ep.Code != model.CodeInvalidTransition {
			t.Fatalf("respond = %d %+v", code, ep)
		}
	})

	var confirmed model.Appointment
	if code := e.do(http.MethodPost, "/api/appointments/"+a.ID+"/respond", neu, respondRequest{Accept: true}, &confirmed); code != http.StatusOK || confirmed.Status != model.StatusConfirmed {
		t.Fatalf("respond = %d %+v", code, confirmed)
	}

	for i := 0; i < 3; i++ {
		var m model.ChatMessage
		code := e.do(http.MethodPost, "/api/appointments/"+a.ID+"/messages", pat, messageRequest{Content: fmt.Sprintf("m%d", i)}, &m)
		if code != http.StatusCreated {
			t.Fatalf("send = %d", code)
		}
	}
	var history []model.ChatMessage
	if code := e.do(http.MethodGet, "/api/appointments/"+a.ID+"/messages?limit=2", neu, nil, &history); code != http.StatusOK {
		t.Fatalf("history = %d", code)
	}
	if len(history) != 2 || history[0].Content != "m1" || history[1].Content != "m2" {
		t.Fatalf("history = %+v", history)
	}

	var list []model.Appointment
	e.do(http.MethodGet, "/api/appointments", neu, nil, &list)
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("list = %+v", list)
	}

	var ep proto.ErrorPayload
	if code := e.do(http.MethodGet, "/api/appointments/"+a.ID, e.token("eve", model.RolePatient), nil, &ep); code != http.StatusForbidden {
		t.Fatalf("outsider get = %d", code)
	}
	if code := e.do(http.MethodGet, "/api/appointments/nope", pat, nil, &ep); code != http.StatusNotFound || ep.Code != model.CodeNotFound {
		t.Fatalf("missing get = %d %+v", code, ep)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	e := newTestEnv(t)
	if code := e.do(http.MethodGet, "/api/appointments", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("code = %d", code)
	}
	if code := e.do(http.MethodGet, "/api/appointments", "not-a-jwt", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("code = %d", code)
	}
}

func TestICEServersAndPresence(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token("pat", model.RolePatient)

	var ice struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	e.do(http.MethodGet, "/api/ice-servers", tok, nil, &ice)
	if len(ice.ICEServers) != 1 || ice.ICEServers[0].URLs[0] != "stun:stun.example.org:3478" {
		t.Fatalf("ice = %+v", ice)
	}

	var p proto.PresencePayload
	e.do(http.MethodGet, "/api/presence/neu", tok, nil, &p)
	if p.UserID != "neu" || p.Online {
		t.Fatalf("presence = %+v", p)
	}
}

func TestAdminAuth(t *testing.T) {
	e := newTestEnv(t)

	get := func(user, pass string) int {
		req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/admin/connections", nil)
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("", ""); code != http.StatusUnauthorized {
		t.Fatalf("no auth = %d", code)
	}
	if code := get("admin", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", code)
	}
	if code := get("admin", "s3cret"); code != http.StatusOK {
		t.Fatalf("admin = %d", code)
	}
}

func TestAdminLogs(t *testing.T) {
	e := newTestEnv(t)
	fmt.Fprintf(e.logs, "first\nsecond\npart")

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/admin/logs", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var entries []LogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[1].Msg != "second" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestHealthDocsAndOpenAPI(t *testing.T) {
	e := newTestEnv(t)

	var health map[string]any
	if code := e.do(http.MethodGet, "/healthz", "", nil, &health); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("health = %d %v", code, health)
	}

	var doc map[string]any
	if code := e.do(http.MethodGet, "/api/openapi.json", "", nil, &doc); code != http.StatusOK {
		t.Fatalf("openapi = %d", code)
	}
	if paths, _ := doc["paths"].(map[string]any); paths["/api/appointments"] == nil {
		t.Fatalf("openapi paths = %v", doc["paths"])
	}

	resp, err := http.Get(e.srv.URL + "/docs/events")
	if err != nil {
		t.Fatalf("docs: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "webrtc:offer") {
		t.Fatalf("docs = %d", resp.StatusCode)
	}

	if code := e.do(http.MethodGet, "/ws", "", nil, nil); code != http.StatusTeapot {
		t.Fatalf("/ws not routed to socket: %d", code)
	}
}
