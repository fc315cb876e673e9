package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/classpoints/internal/database"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

type testEnv struct {
	manager  *Manager
	s3       *mockS3Client
	students *store.StudentStore
	backups  *store.BackupStore
}

func setupManager(t *testing.T, cb StatusCallback) testEnv {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bs := store.NewBackupStore(db)
	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "correct horse",
	}, store.NewSnapshotStore(db), bs, slog.Default(), cb)
	mock := newMockS3()
	m.client = mock

	return testEnv{manager: m, s3: mock, students: store.NewStudentStore(db), backups: bs}
}

func TestManagerStateLifecycle(t *testing.T) {
	m := NewManager(Config{}, nil, nil, slog.Default(), nil)
	if m.Status().State != StateDisabled || m.Enabled() {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// bucket without passphrase stays disabled
	m2 := NewManager(Config{S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"}}, nil, nil, slog.Default(), nil)
	if m2.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m2.Status().State, StateDisabled)
	}

	m3 := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "p",
	}, nil, nil, slog.Default(), nil)
	if m3.Status().State != StateIdle || !m3.Enabled() {
		t.Errorf("state = %q, want %q", m3.Status().State, StateIdle)
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	var states []State
	var mu sync.Mutex
	env := setupManager(t, func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	env.students.Create("Ana", "ana@example.com", "hash", nil)

	rec, err := env.manager.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if rec.Status != model.BackupStatusCompleted || rec.SizeBytes == 0 {
		t.Errorf("record = %+v", rec)
	}

	data, ok := env.s3.objects[rec.ObjectKey]
	if !ok {
		t.Fatalf("object %q not uploaded", rec.ObjectKey)
	}
	if bytes.Contains(data, []byte("ana@example.com")) {
		t.Error("uploaded snapshot is not encrypted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != StateRunning || states[1] != StateIdle {
		t.Errorf("states = %v, want [running idle]", states)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	env := setupManager(t, nil)
	env.s3.putErr = errors.New("bucket gone")

	if _, err := env.manager.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if env.manager.Status().State != StateError {
		t.Errorf("state = %q, want %q", env.manager.Status().State, StateError)
	}
	list, _ := env.backups.List(10)
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Errorf("records = %+v", list)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	env := setupManager(t, nil)
	st, _ := env.students.Create("Ana", "ana@example.com", "hash", nil)

	rec, err := env.manager.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}

	env.students.Delete(st.ID)
	env.students.Create("Bob", "bob@example.com", "hash", nil)

	if err := env.manager.Restore(context.Background(), rec.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	all, _ := env.students.List("")
	if len(all) != 1 || all[0].ID != st.ID {
		t.Errorf("students after restore = %+v", all)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	env := setupManager(t, nil)
	rec, _ := env.manager.RunNow(context.Background())

	env.manager.cfg.Passphrase = "something else"
	if err := env.manager.Restore(context.Background(), rec.ID); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("err = %v, want ErrWrongPassphrase", err)
	}
}

func TestRestoreUnknownBackup(t *testing.T) {
	env := setupManager(t, nil)
	if err := env.manager.Restore(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCleanupRemovesExpiredObjects(t *testing.T) {
	env := setupManager(t, nil)
	rec, _ := env.manager.RunNow(context.Background())

	// nothing is old enough yet
	if err := env.manager.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := env.s3.objects[rec.ObjectKey]; !ok {
		t.Fatal("fresh snapshot was removed")
	}

	env.manager.cfg.RetentionDays = -1
	if err := env.manager.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := env.s3.objects[rec.ObjectKey]; ok {
		t.Error("expired snapshot still in bucket")
	}
	if got, _ := env.backups.GetByID(rec.ID); got != nil {
		t.Error("expired record still listed")
	}
}

func TestManagerStopSafety(t *testing.T) {
	env := setupManager(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	env.manager.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	env.manager.Stop()

	// double stop should not panic
	env.manager.Stop()
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, slog.Default(), nil)

	m.Start(context.Background())
	m.Stop()

	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
	if err := m.Cleanup(context.Background()); err != nil {
		t.Errorf("cleanup on disabled manager: %v", err)
	}
}
