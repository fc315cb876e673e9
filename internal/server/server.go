package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/backup"
	"github.com/dukerupert/classpoints/internal/config"
	"github.com/dukerupert/classpoints/internal/email"
	"github.com/dukerupert/classpoints/internal/handler"
	"github.com/dukerupert/classpoints/internal/middleware"
	"github.com/dukerupert/classpoints/internal/store"
	ws "github.com/dukerupert/classpoints/internal/websocket"
)

type Server struct {
	db          *sqlx.DB
	hub         *ws.Hub
	relay       *ws.Relay
	issuer      *auth.Issuer
	origins     []string
	authH       *handler.AuthHandler
	studentH    *handler.StudentHandler
	groupH      *handler.GroupHandler
	semesterH   *handler.SemesterHandler
	teacherH    *handler.TeacherHandler
	meetingH    *handler.MeetingHandler
	streakH     *handler.StreakHandler
	awardH      *handler.AwardHandler
	peerH       *handler.PeerHandler
	bingoH      *handler.BingoHandler
	settingsH   *handler.SettingsHandler
	backupH     *handler.BackupHandler
	teachers    *store.TeacherStore
	rateLimiter *middleware.RateLimiter
	backupMgr   *backup.Manager
	logger      *slog.Logger
}

// New wires stores, handlers and background services. When Redis is
// configured every broadcast goes through the relay so other instances
// see it too.
func New(db *sqlx.DB, cfg *config.Config, emailClient *email.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	var relay *ws.Relay
	var broadcaster ws.Broadcaster = hub
	if cfg.Redis.Addr != "" {
		relay = ws.NewRelay(hub, ws.NewRedisClient(cfg.Redis.Addr), cfg.Redis.Channel, logger.With("component", "relay"))
		broadcaster = relay
	}

	studentStore := store.NewStudentStore(db)
	teacherStore := store.NewTeacherStore(db)
	groupStore := store.NewGroupStore(db)
	semesterStore := store.NewSemesterStore(db)
	meetingStore := store.NewMeetingStore(db)
	attendanceStore := store.NewAttendanceStore(db)
	awardStore := store.NewAwardStore(db)
	badgeStore := store.NewBadgeStore(db)
	peerStore := store.NewPeerStore(db)
	settingsStore := store.NewSettingsStore(db)
	snapshotStore := store.NewSnapshotStore(db)
	backupStore := store.NewBackupStore(db)

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		RetentionDays: cfg.Backup.RetentionDays,
	}
	backupMgr := backup.NewManager(backupCfg, snapshotStore, backupStore, logger.With("component", "backup"), func(s backup.Status) {
		broadcaster.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	issuer := auth.NewIssuer(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL.Duration)
	baseURL := cfg.BaseURLOrDefault()
	authCfg := handler.AuthConfig{
		StudentEmailDomain: cfg.Auth.StudentEmailDomain,
		ResetTTL:           cfg.Auth.ResetTokenTTL.Duration,
		SecureCookies:      strings.HasPrefix(baseURL, "https://"),
	}

	return &Server{
		db:          db,
		hub:         hub,
		relay:       relay,
		issuer:      issuer,
		origins:     originPatterns(baseURL),
		authH:       handler.NewAuthHandler(studentStore, teacherStore, issuer, emailClient, authCfg, logger.With("component", "auth")),
		studentH:    handler.NewStudentHandler(studentStore, groupStore, semesterStore, awardStore, broadcaster, logger.With("component", "student")),
		groupH:      handler.NewGroupHandler(groupStore, broadcaster, logger.With("component", "group")),
		semesterH:   handler.NewSemesterHandler(semesterStore, broadcaster, logger.With("component", "semester")),
		teacherH:    handler.NewTeacherHandler(teacherStore, logger.With("component", "teacher")),
		meetingH:    handler.NewMeetingHandler(meetingStore, attendanceStore, studentStore, broadcaster, logger.With("component", "meeting")),
		streakH:     handler.NewStreakHandler(studentStore, meetingStore, attendanceStore, settingsStore, cfg.Location(), broadcaster, logger.With("component", "streak")),
		awardH:      handler.NewAwardHandler(awardStore, badgeStore, studentStore, groupStore, settingsStore, broadcaster, logger.With("component", "award")),
		peerH:       handler.NewPeerHandler(peerStore, studentStore, groupStore, broadcaster, logger.With("component", "peer")),
		bingoH:      handler.NewBingoHandler(studentStore, settingsStore, broadcaster, logger.With("component", "bingo")),
		settingsH:   handler.NewSettingsHandler(settingsStore, broadcaster, logger.With("component", "settings")),
		backupH:     handler.NewBackupHandler(snapshotStore, backupStore, backupMgr, broadcaster, logger.With("component", "backup")),
		teachers:    teacherStore,
		rateLimiter: middleware.NewRateLimiter(),
		backupMgr:   backupMgr,
		logger:      logger,
	}
}

// originPatterns allows websocket connections from the public host.
func originPatterns(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the snapshot manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// Relay returns the Redis relay, or nil when Redis is not configured.
func (s *Server) Relay() *ws.Relay {
	return s.relay
}

// TeacherStore is used at start-up to bootstrap the super admin.
func (s *Server) TeacherStore() *store.TeacherStore {
	return s.teachers
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Public auth routes
	mux.Handle("POST /api/auth/students/signup", s.rateLimited(s.authH.StudentSignup))
	mux.Handle("POST /api/auth/students/login", s.rateLimited(s.authH.StudentLogin))
	mux.Handle("POST /api/auth/teachers/login", s.rateLimited(s.authH.TeacherLogin))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.Handle("POST /api/auth/reset/request", s.rateLimited(s.authH.RequestReset))
	mux.Handle("POST /api/auth/reset/confirm", s.rateLimited(s.authH.ConfirmReset))
	mux.Handle("GET /api/auth/me", s.authed(s.authH.Me))

	s.registerTeacherRoutes(mux)
	s.registerStudentRoutes(mux)

	// Either role
	mux.Handle("GET /api/settings", s.authed(s.settingsH.Get))
	mux.Handle("GET /api/leaderboard/students", s.authed(s.awardH.StudentLeaderboard))
	mux.Handle("GET /api/leaderboard/groups", s.authed(s.awardH.GroupLeaderboard))
	mux.Handle("GET /api/badges", s.authed(s.awardH.ListBadges))
	mux.Handle("GET /api/groups", s.authed(s.groupH.List))
	mux.Handle("GET /api/semesters", s.authed(s.semesterH.List))
	mux.Handle("GET /ws", s.authed(ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.origins)))

	// Metrics wraps the mux directly so r.Pattern is visible after routing.
	return middleware.RequestLogger(s.logger.With("component", "http"))(middleware.Metrics(mux))
}

func (s *Server) registerTeacherRoutes(mux *http.ServeMux) {
	// Roster
	mux.Handle("GET /api/students", s.teacher(s.studentH.List))
	mux.Handle("POST /api/students", s.teacher(s.studentH.Create))
	mux.Handle("GET /api/students/{id}", s.teacher(s.studentH.Get))
	mux.Handle("PUT /api/students/{id}", s.teacher(s.studentH.Update))
	mux.Handle("DELETE /api/students/{id}", s.teacher(s.studentH.Delete))
	mux.Handle("POST /api/students/{id}/password", s.teacher(s.studentH.ResetPassword))
	mux.Handle("PUT /api/students/{id}/badges/{badge_id}", s.teacher(s.awardH.ToggleBadge))
	mux.Handle("GET /api/students/{id}/streaks", s.teacher(s.streakH.ForStudent))
	mux.Handle("PUT /api/students/{id}/bingo", s.teacher(s.bingoH.SaveFor))

	mux.Handle("POST /api/groups", s.teacher(s.groupH.Create))
	mux.Handle("PUT /api/groups/{id}", s.teacher(s.groupH.Rename))
	mux.Handle("DELETE /api/groups/{id}", s.teacher(s.groupH.Delete))

	mux.Handle("POST /api/semesters", s.teacher(s.semesterH.Create))
	mux.Handle("POST /api/semesters/{id}/activate", s.teacher(s.semesterH.Activate))
	mux.Handle("DELETE /api/semesters/{id}", s.teacher(s.semesterH.Delete))

	mux.Handle("GET /api/teachers", s.teacher(s.teacherH.List))
	mux.Handle("POST /api/teachers", s.teacher(s.teacherH.Create))
	mux.Handle("POST /api/teachers/{id}/password", s.teacher(s.teacherH.ResetPassword))
	mux.Handle("DELETE /api/teachers/{id}", s.teacher(s.teacherH.Delete))

	// Meetings and attendance
	mux.Handle("GET /api/meetings", s.teacher(s.meetingH.List))
	mux.Handle("POST /api/meetings", s.teacher(s.meetingH.Create))
	mux.Handle("POST /api/meetings/series", s.teacher(s.meetingH.CreateSeries))
	mux.Handle("PUT /api/meetings/{id}", s.teacher(s.meetingH.Update))
	mux.Handle("DELETE /api/meetings/{id}", s.teacher(s.meetingH.Delete))
	mux.Handle("GET /api/meetings/{id}/attendance", s.teacher(s.meetingH.Attendance))
	mux.Handle("PUT /api/meetings/{id}/attendance/{student_id}", s.teacher(s.meetingH.Mark))
	mux.Handle("DELETE /api/meetings/{id}/attendance/{student_id}", s.teacher(s.meetingH.Clear))

	// Awards and badges
	mux.Handle("GET /api/awards", s.teacher(s.awardH.List))
	mux.Handle("POST /api/awards", s.teacher(s.awardH.Grant))
	mux.Handle("POST /api/badges", s.teacher(s.awardH.CreateBadge))
	mux.Handle("PUT /api/badges/{id}", s.teacher(s.awardH.UpdateBadge))
	mux.Handle("DELETE /api/badges/{id}", s.teacher(s.awardH.DeleteBadge))

	// Peer events
	mux.Handle("GET /api/peer-events", s.teacher(s.peerH.ListEvents))
	mux.Handle("POST /api/peer-events", s.teacher(s.peerH.CreateEvent))
	mux.Handle("PUT /api/peer-events/{id}", s.teacher(s.peerH.UpdateEvent))
	mux.Handle("DELETE /api/peer-events/{id}", s.teacher(s.peerH.DeleteEvent))
	mux.Handle("GET /api/peer-awards", s.teacher(s.peerH.ListAwards))

	mux.Handle("PUT /api/settings", s.teacher(s.settingsH.Update))

	// Backup
	mux.Handle("GET /api/backup/export", s.teacher(s.backupH.Export))
	mux.Handle("POST /api/backup/import", s.teacher(s.backupH.Import))
	mux.Handle("GET /api/backup/status", s.teacher(s.backupH.Status))
	mux.Handle("GET /api/backup/snapshots", s.teacher(s.backupH.ListSnapshots))
	mux.Handle("POST /api/backup/snapshots", s.teacher(s.backupH.CreateSnapshot))
	mux.Handle("POST /api/backup/snapshots/{id}/restore", s.teacher(s.backupH.RestoreSnapshot))
}

func (s *Server) registerStudentRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/me/streaks", s.student(s.streakH.Mine))
	mux.Handle("GET /api/me/peer-events", s.student(s.peerH.MyEvents))
	mux.Handle("GET /api/me/peer-events/{id}", s.student(s.peerH.MyEvent))
	mux.Handle("POST /api/me/peer-events/{id}/allocations", s.student(s.peerH.Allocate))
	mux.Handle("GET /api/me/bingo", s.student(s.bingoH.Mine))
	mux.Handle("PUT /api/me/bingo", s.student(s.bingoH.SaveMine))
	mux.Handle("POST /api/me/bingo/matches", s.student(s.bingoH.Match))
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.issuer)(h)
}

func (s *Server) teacher(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.issuer)(middleware.RequireTeacher(h))
}

func (s *Server) student(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.issuer)(middleware.RequireStudent(h))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check: database", "error", err)
		status["status"], status["database"] = "degraded", "unreachable"
		code = http.StatusServiceUnavailable
	}
	if s.relay != nil {
		status["redis"] = "ok"
		if err := s.relay.Ping(ctx); err != nil {
			s.logger.Warn("health check: redis", "error", err)
			status["status"], status["redis"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
