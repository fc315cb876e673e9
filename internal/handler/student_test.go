package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/model"
)

func newTestStudentHandler(env *testEnv) *StudentHandler {
	return NewStudentHandler(env.students, env.groups, env.semesters, env.awards, env.bc, env.logger)
}

func TestCreateStudentReturnsTemporaryPassword(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestStudentHandler(env)

	rec := call(t, h.Create, "POST", "/", map[string]string{"name": "Ana", "email": "ANA@school.example"}, asTeacher("t1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Student           model.Student `json:"student"`
		TemporaryPassword string        `json:"temporary_password"`
	}
	decodeBody(t, rec, &resp)
	if resp.TemporaryPassword == "" || resp.Student.Email != "ana@school.example" {
		t.Fatalf("resp = %+v", resp)
	}

	stored, _ := env.students.GetByID(resp.Student.ID)
	if ok, _ := auth.CheckPassword(stored.PasswordHash, resp.TemporaryPassword); !ok {
		t.Error("temporary password does not match the stored hash")
	}

	rec = call(t, h.Create, "POST", "/", map[string]any{"name": "Ben", "email": "ben@school.example", "semester_id": "missing"}, asTeacher("t1"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown semester status = %d, want 400", rec.Code)
	}
}

func TestUpdateStudent(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newTestStudentHandler(env)

	st, _ := env.students.Create("Ana", "ana@school.example", "x", nil)
	g, _ := env.groups.Create("Owls", nil)

	body := map[string]any{"name": "Ana B", "group_id": g.ID, "version": st.Version}
	rec := call(t, h.Update, "PUT", "/", body, asTeacher("t1"), "id", st.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got model.Student
	decodeBody(t, rec, &got)
	if got.Name != "Ana B" || !got.InGroup(g.ID) || got.Version != st.Version+1 {
		t.Errorf("student = %+v", got)
	}

	rec = call(t, h.Update, "PUT", "/", body, asTeacher("t1"), "id", st.ID)
	if rec.Code != http.StatusConflict {
		t.Errorf("stale version status = %d, want 409", rec.Code)
	}

	body = map[string]any{"name": "Ana", "group_id": "nope", "version": got.Version}
	rec = call(t, h.Update, "PUT", "/", body, asTeacher("t1"), "id", st.ID)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown group status = %d, want 400", rec.Code)
	}
}

func TestDeleteGroupUngroupsMembers(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := NewGroupHandler(env.groups, env.bc, env.logger)

	g, _ := env.groups.Create("Owls", nil)
	st, _ := env.students.Create("Ana", "ana@school.example", "x", nil)
	env.students.Update(st.ID, st.Version, st.Name, &g.ID, nil)

	rec := call(t, h.Delete, "DELETE", "/", nil, asTeacher("t1"), "id", g.ID)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	got, _ := env.students.GetByID(st.ID)
	if got.HasGroup() {
		t.Errorf("student still in deleted group: %v", *got.GroupID)
	}
}

func TestTeacherDeleteGuards(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := NewTeacherHandler(env.teachers, env.logger)

	admin, _ := env.teachers.Create("admin@school.example", "Admin", "x", true)
	other, _ := env.teachers.Create("t@school.example", "T", "x", false)

	if rec := call(t, h.Delete, "DELETE", "/", nil, asTeacher(other.ID), "id", other.ID); rec.Code != http.StatusBadRequest {
		t.Errorf("self delete status = %d, want 400", rec.Code)
	}
	if rec := call(t, h.Delete, "DELETE", "/", nil, asTeacher(other.ID), "id", admin.ID); rec.Code != http.StatusForbidden {
		t.Errorf("super admin delete status = %d, want 403", rec.Code)
	}
	if rec := call(t, h.Delete, "DELETE", "/", nil, asTeacher(admin.ID), "id", other.ID); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

func TestSettingsPartialUpdate(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := NewSettingsHandler(env.settings, env.bc, env.logger)

	rec := call(t, h.Update, "PUT", "/", map[string]any{"bingo_hints_enabled": true}, asTeacher("t1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var app model.AppSettings
	decodeBody(t, rec, &app)
	want := model.DefaultAppSettings()
	want.BingoHintsEnabled = true
	if app != want {
		t.Errorf("settings = %+v, want %+v", app, want)
	}

	rec = call(t, h.Update, "PUT", "/", map[string]any{"badge_points": -5}, asTeacher("t1"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative badge points status = %d, want 400", rec.Code)
	}
}
