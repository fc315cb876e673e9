package store

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

// SnapshotStore exports and restores whole collections.
type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Export reads every collection in one read transaction.
func (s *SnapshotStore) Export() (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	err := withTx(s.db, func(tx *sqlx.Tx) error {
		var students []model.Student
		if err := sel(tx, &students, `SELECT `+studentCols+` FROM students ORDER BY name ASC, id ASC`); err != nil {
			return fmt.Errorf("export students: %w", err)
		}
		snap.Students = make([]model.StudentRecord, 0, len(students))
		for _, st := range students {
			snap.Students = append(snap.Students, model.StudentRecord{Student: st, PasswordHash: st.PasswordHash})
		}

		var teachers []model.Teacher
		if err := sel(tx, &teachers, `SELECT `+teacherCols+` FROM teachers ORDER BY email ASC`); err != nil {
			return fmt.Errorf("export teachers: %w", err)
		}
		snap.Teachers = make([]model.TeacherRecord, 0, len(teachers))
		for _, t := range teachers {
			snap.Teachers = append(snap.Teachers, model.TeacherRecord{Teacher: t, PasswordHash: t.PasswordHash})
		}

		var events []model.PeerEvent
		if err := sel(tx, &events, `SELECT `+peerEventCols+` FROM peer_events ORDER BY created_at ASC, id ASC`); err != nil {
			return fmt.Errorf("export peer events: %w", err)
		}
		snap.PeerEvents = make([]model.PeerEventRecord, 0, len(events))
		for _, e := range events {
			snap.PeerEvents = append(snap.PeerEvents, model.PeerEventRecord{PeerEvent: e})
		}

		snap.Groups = []model.Group{}
		snap.Awards = []model.Award{}
		snap.Badges = []model.BadgeDef{}
		snap.Meetings = []model.Meeting{}
		snap.Attendance = []model.AttendanceRecord{}
		snap.PeerAwards = []model.PeerAward{}
		snap.Semesters = []model.Semester{}
		queries := []struct {
			dest  any
			query string
		}{
			{&snap.Groups, `SELECT ` + groupCols + ` FROM student_groups ORDER BY name ASC, id ASC`},
			{&snap.Awards, `SELECT ` + awardCols + ` FROM awards ORDER BY ts DESC, id DESC`},
			{&snap.Badges, `SELECT ` + badgeCols + ` FROM badges ORDER BY title ASC`},
			{&snap.Meetings, `SELECT ` + meetingCols + ` FROM meetings ORDER BY meeting_date ASC, meeting_time ASC, id ASC`},
			{&snap.Attendance, `SELECT ` + attendanceCols + ` FROM attendance ORDER BY meeting_id ASC, student_id ASC`},
			{&snap.PeerAwards, `SELECT ` + peerAwardCols + ` FROM peer_awards ORDER BY ts DESC, id DESC`},
			{&snap.Semesters, `SELECT ` + semesterCols + ` FROM semesters ORDER BY created_at ASC, id ASC`},
		}
		for _, q := range queries {
			if err := sel(tx, q.dest, q.query); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replaces every collection present in snap inside one transaction.
// Collections absent from the document are left as they are.
func (s *SnapshotStore) Import(snap *model.Snapshot) error {
	snap.Normalize()
	ts := now()

	return withTx(s.db, func(tx *sqlx.Tx) error {
		if snap.Semesters != nil {
			if err := replace(tx, "semesters", len(snap.Semesters), func(i int) error {
				r := snap.Semesters[i]
				_, err := exec(tx, `INSERT INTO semesters (id, name, active, created_at) VALUES (?, ?, ?, ?)`,
					idOr(r.ID), r.Name, r.Active, timeOr(r.CreatedAt, ts))
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Groups != nil {
			if err := replace(tx, "student_groups", len(snap.Groups), func(i int) error {
				g := snap.Groups[i]
				_, err := exec(tx,
					`INSERT INTO student_groups (id, name, points, semester_id, version, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					idOr(g.ID), g.Name, g.Points, g.SemesterID, versionOr(g.Version), timeOr(g.CreatedAt, ts), ts)
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Students != nil {
			if err := replace(tx, "students", len(snap.Students), func(i int) error {
				st := snap.Students[i]
				_, err := exec(tx,
					`INSERT INTO students (id, name, email, password_hash, group_id, points, badges, bingo, bingo_matches,
					 last_week_rewarded, semester_id, version, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					idOr(st.ID), st.Name, strings.ToLower(strings.TrimSpace(st.Email)), st.PasswordHash,
					st.GroupID, st.Points, st.Badges, st.Bingo, st.BingoMatches, st.LastWeekRewarded,
					st.SemesterID, versionOr(st.Version), timeOr(st.CreatedAt, ts), ts)
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Teachers != nil {
			if err := replace(tx, "teachers", len(snap.Teachers), func(i int) error {
				t := snap.Teachers[i]
				_, err := exec(tx,
					`INSERT INTO teachers (id, email, name, password_hash, super_admin, version, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					idOr(t.ID), strings.ToLower(strings.TrimSpace(t.Email)), t.Name, t.PasswordHash, t.SuperAdmin,
					versionOr(t.Version), timeOr(t.CreatedAt, ts), ts)
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Badges != nil {
			if err := replace(tx, "badges", len(snap.Badges), func(i int) error {
				b := snap.Badges[i]
				_, err := exec(tx,
					`INSERT INTO badges (id, title, image, requirement, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					idOr(b.ID), b.Title, b.Image, b.Requirement, versionOr(b.Version), timeOr(b.CreatedAt, ts), ts)
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Meetings != nil {
			if err := replace(tx, "meetings", len(snap.Meetings), func(i int) error {
				m := snap.Meetings[i]
				_, err := exec(tx,
					`INSERT INTO meetings (id, meeting_date, meeting_time, title, type, semester_id, created_by, version, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					idOr(m.ID), m.Date, m.Time, m.Title, m.Type, m.SemesterID, m.CreatedBy,
					versionOr(m.Version), timeOr(m.CreatedAt, ts), ts)
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Attendance != nil {
			if err := replace(tx, "attendance", len(snap.Attendance), func(i int) error {
				a := snap.Attendance[i]
				_, err := exec(tx,
					`INSERT INTO attendance (id, meeting_id, student_id, present, streak_freeze, marked_at)
					 VALUES (?, ?, ?, ?, ?, ?)
					 ON CONFLICT (meeting_id, student_id) DO UPDATE SET
					   present = excluded.present, streak_freeze = excluded.streak_freeze, marked_at = excluded.marked_at`,
					idOr(a.ID), a.MeetingID, a.StudentID, a.Present, a.StreakFreeze, timeOr(a.MarkedAt, ts))
				return err
			}); err != nil {
				return err
			}
		}

		if snap.Awards != nil {
			if err := replace(tx, "awards", len(snap.Awards), func(i int) error {
				a := snap.Awards[i]
				a.ID = idOr(a.ID)
				a.TS = timeOr(a.TS, ts)
				return insertAward(tx, a)
			}); err != nil {
				return err
			}
			if err := trimAwards(tx); err != nil {
				return err
			}
		}

		if snap.PeerEvents != nil {
			if err := replace(tx, "peer_events", len(snap.PeerEvents), func(i int) error {
				e := snap.PeerEvents[i]
				_, err := exec(tx,
					`INSERT INTO peer_events (id, title, description, budget, active, recipient_scope, version, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					idOr(e.ID), e.Title, e.Description, e.Budget, e.Active, e.Scope(),
					versionOr(e.Version), timeOr(e.CreatedAt, ts), ts)
				return err
			}); err != nil {
				return err
			}
		}

		if snap.PeerAwards != nil {
			if err := replace(tx, "peer_awards", len(snap.PeerAwards), func(i int) error {
				pa := snap.PeerAwards[i]
				pa.ID = idOr(pa.ID)
				pa.TS = timeOr(pa.TS, ts)
				return insertPeerAward(tx, pa)
			}); err != nil {
				return err
			}
			// the lock table follows the ledger it guards
			if _, err := exec(tx, `DELETE FROM peer_submissions`); err != nil {
				return fmt.Errorf("clear peer submissions: %w", err)
			}
			seen := make(map[[2]string]bool)
			for _, pa := range snap.PeerAwards {
				key := [2]string{pa.EventID, pa.FromStudentID}
				if seen[key] {
					continue
				}
				seen[key] = true
				if _, err := exec(tx,
					`INSERT INTO peer_submissions (event_id, student_id, ts) VALUES (?, ?, ?)`,
					pa.EventID, pa.FromStudentID, timeOr(pa.TS, ts),
				); err != nil {
					return fmt.Errorf("restore peer submission: %w", err)
				}
			}
		}

		return nil
	})
}

// replace empties table and inserts n rows through insert.
func replace(tx *sqlx.Tx, table string, n int, insert func(i int) error) error {
	if _, err := exec(tx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for i := 0; i < n; i++ {
		if err := insert(i); err != nil {
			return fmt.Errorf("import %s row %d: %w", table, i, err)
		}
	}
	return nil
}

func idOr(id string) string {
	if id == "" {
		return newID()
	}
	return id
}

func versionOr(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
