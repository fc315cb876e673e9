package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/middleware"
)

type fakeMailer struct {
	to    string
	token string
	sent  int
}

func (m *fakeMailer) Configured() bool { return true }

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, name, token string, ttl time.Duration) error {
	m.to = to
	m.token = token
	m.sent++
	return nil
}

func newTestAuthHandler(env *testEnv, mailer Mailer, domain string) *AuthHandler {
	issuer := auth.NewIssuer("test-signing-key", "classpoints", time.Hour)
	return NewAuthHandler(env.students, env.teachers, issuer, mailer, AuthConfig{StudentEmailDomain: domain}, env.logger)
}

func TestStudentSignupAndLogin(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestAuthHandler(env, nil, "school.example")

	rec := call(t, h.StudentSignup, "POST", "/api/auth/students/signup",
		map[string]string{"name": "Ana", "email": "Ana@School.Example", "password": "secret1"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	var signup loginResponse
	decodeBody(t, rec, &signup)
	if signup.Token == "" || signup.Role != auth.RoleStudent {
		t.Errorf("signup response = %+v", signup)
	}

	st, _ := env.students.GetByEmail("ana@school.example")
	if st == nil {
		t.Fatal("student not stored with lower-cased email")
	}

	rec = call(t, h.StudentLogin, "POST", "/api/auth/students/login",
		map[string]string{"email": "ana@school.example", "password": "secret1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookieName && c.Value != "" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("login did not set the token cookie")
	}

	rec = call(t, h.StudentLogin, "POST", "/api/auth/students/login",
		map[string]string{"email": "ana@school.example", "password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}
}

func TestStudentSignupRejectsOtherDomain(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestAuthHandler(env, nil, "school.example")

	rec := call(t, h.StudentSignup, "POST", "/api/auth/students/signup",
		map[string]string{"name": "Bo", "email": "bo@gmail.com", "password": "secret1"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStudentSignupDuplicateEmail(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestAuthHandler(env, nil, "")
	body := map[string]string{"name": "Ana", "email": "ana@x.example", "password": "secret1"}

	if rec := call(t, h.StudentSignup, "POST", "/", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first signup status = %d", rec.Code)
	}
	if rec := call(t, h.StudentSignup, "POST", "/", body, nil); rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestAuthHandler(env, nil, "")

	rec := call(t, h.StudentSignup, "POST", "/", map[string]string{"email": "a@b.example", "password": "secret1"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "name is required" {
		t.Errorf("error = %q", body["error"])
	}

	rec = call(t, h.StudentSignup, "POST", "/", "{not json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

func TestLegacyPasswordUpgradedOnLogin(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestAuthHandler(env, nil, "")

	teacher, err := env.teachers.Create("old@school.example", "Old", "plaintext", false)
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}

	rec := call(t, h.TeacherLogin, "POST", "/", map[string]string{"email": "old@school.example", "password": "plaintext"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, _ := env.teachers.GetByID(teacher.ID)
	if !strings.HasPrefix(got.PasswordHash, "$2") {
		t.Errorf("password not rehashed: %q", got.PasswordHash)
	}

	rec = call(t, h.TeacherLogin, "POST", "/", map[string]string{"email": "old@school.example", "password": "plaintext"}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("second login status = %d", rec.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := setupHandlerTestDB(t)
	mailer := &fakeMailer{}
	h := newTestAuthHandler(env, mailer, "")

	hash, _ := auth.HashPassword("before1")
	if _, err := env.students.Create("Cy", "cy@school.example", hash, nil); err != nil {
		t.Fatalf("create student: %v", err)
	}

	rec := call(t, h.RequestReset, "POST", "/", map[string]string{"email": "CY@school.example"}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("request status = %d", rec.Code)
	}
	if mailer.sent != 1 || mailer.to != "cy@school.example" || mailer.token == "" {
		t.Fatalf("mailer = %+v", mailer)
	}

	rec = call(t, h.RequestReset, "POST", "/", map[string]string{"email": "nobody@school.example"}, nil)
	if rec.Code != http.StatusAccepted || mailer.sent != 1 {
		t.Errorf("unknown email: status %d, sent %d", rec.Code, mailer.sent)
	}

	rec = call(t, h.ConfirmReset, "POST", "/", map[string]string{"token": mailer.token, "password": "after12"}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = call(t, h.StudentLogin, "POST", "/", map[string]string{"email": "cy@school.example", "password": "after12"}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password status = %d", rec.Code)
	}

	rec = call(t, h.ConfirmReset, "POST", "/", map[string]string{"token": mailer.token, "password": "again12"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused token status = %d, want 400", rec.Code)
	}
}

func TestMe(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestAuthHandler(env, nil, "")

	st, _ := env.students.Create("Di", "di@school.example", "x", nil)
	rec := call(t, h.Me, "GET", "/api/me", nil, asStudent(st.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response leaks password hash")
	}

	rec = call(t, h.Me, "GET", "/api/me", nil, asStudent("gone"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing account status = %d, want 401", rec.Code)
	}
}
