package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/classpoints/internal/backup"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

// Imports can carry a whole school year of ledgers.
const maxImportBytes = 32 << 20

type BackupHandler struct {
	snapshots *store.SnapshotStore
	backups   *store.BackupStore
	manager   *backup.Manager
	notifier
	logger *slog.Logger
}

func NewBackupHandler(snaps *store.SnapshotStore, bs *store.BackupStore, mgr *backup.Manager, b websocket.Broadcaster, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		snapshots: snaps,
		backups:   bs,
		manager:   mgr,
		notifier:  notifier{b},
		logger:    logger,
	}
}

// Export streams the whole classroom as one JSON document.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Export()
	if err != nil {
		storeError(w, h.logger, "export", err)
		return
	}
	filename := "classpoints-" + time.Now().UTC().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, snap)
}

// Import replaces every collection present in the document, in one
// transaction. Collections absent from the document are left alone.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	var snap model.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup document")
		return
	}
	if err := h.snapshots.Import(&snap); err != nil {
		storeError(w, h.logger, "import", err)
		return
	}
	h.logger.Info("backup document imported",
		"students", len(snap.Students),
		"awards", len(snap.Awards),
		"meetings", len(snap.Meetings),
	)
	h.broadcast("backup", "restored", "", nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.manager.Status()
	total, err := h.backups.TotalSize()
	if err != nil {
		storeError(w, h.logger, "backups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":     h.manager.Enabled(),
		"status":      status,
		"total_bytes": total,
	})
}

func (h *BackupHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	records, err := h.backups.List(intQuery(r, "limit", 50))
	if err != nil {
		storeError(w, h.logger, "backups", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(records))
}

func (h *BackupHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	record, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.backupError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *BackupHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Restore(r.Context(), id); err != nil {
		h.backupError(w, err)
		return
	}
	h.broadcast("backup", "restored", id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *BackupHandler) backupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, backup.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backup.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backup.ErrWrongPassphrase):
		writeError(w, http.StatusUnprocessableEntity, "snapshot cannot be decrypted with the configured passphrase")
	default:
		h.logger.Error("backup operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup operation failed")
	}
}
