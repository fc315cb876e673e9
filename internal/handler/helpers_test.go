package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/database"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (b *recordingBroadcaster) Broadcast(msg websocket.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func (b *recordingBroadcaster) has(msgType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.msgs {
		if m.Type == msgType {
			return true
		}
	}
	return false
}

type testEnv struct {
	students   *store.StudentStore
	teachers   *store.TeacherStore
	groups     *store.GroupStore
	semesters  *store.SemesterStore
	awards     *store.AwardStore
	badges     *store.BadgeStore
	settings   *store.SettingsStore
	meetings   *store.MeetingStore
	attendance *store.AttendanceStore
	peers      *store.PeerStore
	snapshots  *store.SnapshotStore
	backups    *store.BackupStore
	bc         *recordingBroadcaster
	logger     *slog.Logger
}

func setupHandlerTestDB(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		students:   store.NewStudentStore(db),
		teachers:   store.NewTeacherStore(db),
		groups:     store.NewGroupStore(db),
		semesters:  store.NewSemesterStore(db),
		awards:     store.NewAwardStore(db),
		badges:     store.NewBadgeStore(db),
		settings:   store.NewSettingsStore(db),
		meetings:   store.NewMeetingStore(db),
		attendance: store.NewAttendanceStore(db),
		peers:      store.NewPeerStore(db),
		snapshots:  store.NewSnapshotStore(db),
		backups:    store.NewBackupStore(db),
		bc:         &recordingBroadcaster{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// call runs h with a JSON body, the given identity and path values given
// as name, value pairs.
func call(t *testing.T, h http.HandlerFunc, method, target string, body any, who *auth.AuthContext, path ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(path); i += 2 {
		req.SetPathValue(path[i], path[i+1])
	}
	if who != nil {
		req = req.WithContext(auth.WithAuth(req.Context(), *who))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func asStudent(id string) *auth.AuthContext {
	return &auth.AuthContext{UserID: id, Role: auth.RoleStudent}
}

func asTeacher(id string) *auth.AuthContext {
	return &auth.AuthContext{UserID: id, Role: auth.RoleTeacher}
}
