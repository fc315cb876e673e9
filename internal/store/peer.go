package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/peer"
)

const (
	peerEventCols = `id, title, description, budget, active, recipient_scope, version, created_at, updated_at`
	peerAwardCols = `id, ts, from_student_id, event_id, event_title, target, target_id, amount, total_amount, reason, recipients`
)

type PeerStore struct {
	db *sqlx.DB
}

func NewPeerStore(db *sqlx.DB) *PeerStore {
	return &PeerStore{db: db}
}

// --- Peer events ---

func (s *PeerStore) CreateEvent(e model.PeerEvent) (*model.PeerEvent, error) {
	id := newID()
	ts := now()
	_, err := exec(s.db,
		`INSERT INTO peer_events (id, title, description, budget, active, recipient_scope, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.Title, e.Description, e.Budget, e.Active, e.RecipientScope, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert peer event: %w", err)
	}
	return s.GetEvent(id)
}

func (s *PeerStore) GetEvent(id string) (*model.PeerEvent, error) {
	var e model.PeerEvent
	err := get(s.db, &e, `SELECT `+peerEventCols+` FROM peer_events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get peer event: %w", err)
	}
	return &e, nil
}

// ListEvents returns events newest first; activeOnly filters inactive ones.
func (s *PeerStore) ListEvents(activeOnly bool) ([]model.PeerEvent, error) {
	var events []model.PeerEvent
	var err error
	if activeOnly {
		err = sel(s.db, &events, `SELECT `+peerEventCols+` FROM peer_events WHERE active = ? ORDER BY created_at DESC, id ASC`, true)
	} else {
		err = sel(s.db, &events, `SELECT `+peerEventCols+` FROM peer_events ORDER BY created_at DESC, id ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list peer events: %w", err)
	}
	return events, nil
}

func (s *PeerStore) UpdateEvent(id string, version int, e model.PeerEvent) (*model.PeerEvent, error) {
	res, err := exec(s.db,
		`UPDATE peer_events SET title = ?, description = ?, budget = ?, active = ?, recipient_scope = ?,
		 version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		e.Title, e.Description, e.Budget, e.Active, e.RecipientScope, now(), id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("update peer event: %w", err)
	}
	if err := versioned(s.db, "peer_events", id, res); err != nil {
		return nil, err
	}
	return s.GetEvent(id)
}

// DeleteEvent removes the event definition. Awards already given stay in
// the ledgers.
func (s *PeerStore) DeleteEvent(id string) error {
	res, err := exec(s.db, `DELETE FROM peer_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete peer event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Peer awards ---

func (s *PeerStore) ListAwards() ([]model.PeerAward, error) {
	var awards []model.PeerAward
	if err := sel(s.db, &awards, `SELECT `+peerAwardCols+` FROM peer_awards ORDER BY ts DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list peer awards: %w", err)
	}
	return awards, nil
}

// AwardsFrom returns what studentID gave in eventID.
func (s *PeerStore) AwardsFrom(eventID, studentID string) ([]model.PeerAward, error) {
	var awards []model.PeerAward
	err := sel(s.db, &awards,
		`SELECT `+peerAwardCols+` FROM peer_awards WHERE event_id = ? AND from_student_id = ? ORDER BY ts ASC, id ASC`,
		eventID, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list peer awards from student: %w", err)
	}
	return awards, nil
}

// Submitted reports whether studentID already allocated points in eventID.
func (s *PeerStore) Submitted(eventID, studentID string) (bool, error) {
	var n int
	err := get(s.db, &n,
		`SELECT COUNT(*) FROM peer_submissions WHERE event_id = ? AND student_id = ?`,
		eventID, studentID,
	)
	if err != nil {
		return false, fmt.Errorf("check peer submission: %w", err)
	}
	return n > 0, nil
}

// SubmittedEvents returns the ids of events studentID has completed.
func (s *PeerStore) SubmittedEvents(studentID string) (map[string]bool, error) {
	var ids []string
	if err := sel(s.db, &ids, `SELECT event_id FROM peer_submissions WHERE student_id = ?`, studentID); err != nil {
		return nil, fmt.Errorf("list peer submissions: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Apply writes an accepted allocation: the submission row that locks the
// event for the student, the award and peer award rows, and the point
// changes. A second submission for the same event fails with
// ErrEventLocked and writes nothing.
func (s *PeerStore) Apply(alloc *peer.Allocation) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		_, err := exec(tx,
			`INSERT INTO peer_submissions (event_id, student_id, ts) VALUES (?, ?, ?)`,
			alloc.EventID, alloc.StudentID, now(),
		)
		if isUniqueViolation(err) {
			return ErrEventLocked
		}
		if err != nil {
			return fmt.Errorf("insert peer submission: %w", err)
		}

		for id, delta := range alloc.StudentDeltas {
			if err := adjustPoints(tx, model.TargetStudent, id, delta); err != nil {
				return err
			}
		}
		for id, delta := range alloc.GroupDeltas {
			if err := adjustPoints(tx, model.TargetGroup, id, delta); err != nil {
				return err
			}
		}
		for _, a := range alloc.Awards {
			if err := insertAward(tx, a); err != nil {
				return err
			}
		}
		for _, pa := range alloc.PeerAwards {
			if err := insertPeerAward(tx, pa); err != nil {
				return err
			}
		}
		return trimAwards(tx)
	})
}

func insertPeerAward(e sqlx.Ext, pa model.PeerAward) error {
	_, err := exec(e,
		`INSERT INTO peer_awards (`+peerAwardCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pa.ID, pa.TS, pa.FromStudentID, pa.EventID, pa.EventTitle, pa.Target, pa.TargetID,
		pa.Amount, pa.TotalAmount, pa.Reason, pa.Recipients,
	)
	if err != nil {
		return fmt.Errorf("insert peer award: %w", err)
	}
	return nil
}
