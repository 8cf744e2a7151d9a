package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/sync/queue"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/sync/scheduler"
)

// DrainScheduler is the part of the scheduler the API drives.
type DrainScheduler interface {
	SetOwner(ownerID string)
	Owner() string
	SetOnlineStatus(ctx context.Context, isOnline bool)
	TriggerDrain(ctx context.Context, trigger scheduler.Trigger) bool
	DrainNow(ctx context.Context) (syncpkg.DrainResult, bool)
	GetStatus(ctx context.Context) scheduler.SchedulerStatus
}

// SyncHandler exposes the pending queue and the drain scheduler.
type SyncHandler struct {
	queue     *queue.Queue
	scheduler DrainScheduler
	// ctx outlives requests; drains started from the API keep running after
	// the response is written.
	ctx context.Context
}

// NewSyncHandler creates a SyncHandler. ctx bounds background drains.
func NewSyncHandler(ctx context.Context, q *queue.Queue, s DrainScheduler) *SyncHandler {
	return &SyncHandler{queue: q, scheduler: s, ctx: ctx}
}

// Register mounts the sync routes on r.
func (h *SyncHandler) Register(r *mux.Router) {
	r.HandleFunc("/session", h.SetSession).Methods(http.MethodPut)
	r.HandleFunc("/pending", h.Enqueue).Methods(http.MethodPost)
	r.HandleFunc("/pending", h.ListPending).Methods(http.MethodGet)
	r.HandleFunc("/pending/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/pending/dead", h.DeadLetters).Methods(http.MethodGet)
	r.HandleFunc("/pending/dead/retry", h.RetryDeadLetters).Methods(http.MethodPost)
	r.HandleFunc("/pending/{localId}", h.Dequeue).Methods(http.MethodDelete)
	r.HandleFunc("/sync/drain", h.Drain).Methods(http.MethodPost)
	r.HandleFunc("/sync/trigger", h.Trigger).Methods(http.MethodPost)
	r.HandleFunc("/sync/online", h.SetOnline).Methods(http.MethodPut)
	r.HandleFunc("/sync/status", h.Status).Methods(http.MethodGet)
}

// SetSession handles PUT /session. An empty user id signs out.
func (h *SyncHandler) SetSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.scheduler.SetOwner(req.UserID)
	if req.UserID != "" {
		h.scheduler.TriggerDrain(h.ctx, scheduler.TriggerMount)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": req.UserID})
}

// Enqueue handles POST /pending. The session user is stamped onto the
// payload when the caller did not set one.
func (h *SyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type models.PendingType     `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	if _, ok := req.Data[models.FieldUserID]; !ok {
		owner := h.scheduler.Owner()
		if owner == "" {
			writeError(w, errors.New(errors.ErrInvalid, "no signed-in user"))
			return
		}
		req.Data[models.FieldUserID] = owner
	}

	localID, err := h.queue.Enqueue(r.Context(), req.Type, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"localId": localID})
}

// ListPending handles GET /pending?owner=. Without owner every item is
// returned.
func (h *SyncHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	var (
		items []models.PendingItem
		err   error
	)
	if owner := r.URL.Query().Get("owner"); owner != "" {
		items, err = h.queue.ListOwner(r.Context(), owner)
	} else {
		items, err = h.queue.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

// Dequeue handles DELETE /pending/{localId}.
func (h *SyncHandler) Dequeue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Dequeue(r.Context(), mux.Vars(r)["localId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /pending/stats.
func (h *SyncHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DeadLetters handles GET /pending/dead.
func (h *SyncHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	dead, err := h.queue.DeadLetters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": dead, "count": len(dead)})
}

// RetryDeadLetters handles POST /pending/dead/retry?owner=. Requeued items
// get a fresh retry budget.
func (h *SyncHandler) RetryDeadLetters(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = h.scheduler.Owner()
	}
	n, err := h.queue.RetryDeadLetters(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if n > 0 {
		h.scheduler.TriggerDrain(h.ctx, scheduler.TriggerManual)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requeued": n})
}

// Drain handles POST /sync/drain and waits for the drain to finish.
func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	result, ok := h.scheduler.DrainNow(r.Context())
	if !ok {
		writeError(w, errors.New(errors.ErrSyncInProgress, "drain not started: offline, signed out or already draining"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Trigger handles POST /sync/trigger. The drain runs in the background;
// accepted reports whether one was started.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Trigger scheduler.Trigger `json:"trigger"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Trigger == "" {
		req.Trigger = scheduler.TriggerManual
	}
	if !req.Trigger.Valid() {
		writeError(w, errors.Newf(errors.ErrInvalid, "unknown trigger %q", req.Trigger))
		return
	}
	accepted := h.scheduler.TriggerDrain(h.ctx, req.Trigger)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": accepted})
}

// SetOnline handles PUT /sync/online. Coming back online starts a drain.
func (h *SyncHandler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.scheduler.SetOnlineStatus(h.ctx, req.Online)
	writeJSON(w, http.StatusOK, map[string]interface{}{"online": req.Online})
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.GetStatus(r.Context()))
}
