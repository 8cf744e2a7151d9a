package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/records"
)

// RecordsHandler writes meal and gym records through the local-first
// record service.
type RecordsHandler struct {
	service  *records.Service
	gyms     *records.GymCache
	migrator *records.Migrator
	owner    func() string
}

// NewRecordsHandler creates a RecordsHandler. migrator may be nil.
func NewRecordsHandler(service *records.Service, gyms *records.GymCache, migrator *records.Migrator, owner func() string) *RecordsHandler {
	return &RecordsHandler{service: service, gyms: gyms, migrator: migrator, owner: owner}
}

// Register mounts the record routes on r.
func (h *RecordsHandler) Register(r *mux.Router) {
	r.HandleFunc("/meals", h.SaveMeal).Methods(http.MethodPost)
	r.HandleFunc("/meals/{clientId}", h.DeleteMeal).Methods(http.MethodDelete)
	r.HandleFunc("/gyms", h.SaveGym).Methods(http.MethodPost)
	r.HandleFunc("/gyms/months/{month}", h.GymMonth).Methods(http.MethodGet)
	r.HandleFunc("/gyms/{date}", h.GymRecord).Methods(http.MethodGet)
	r.HandleFunc("/gyms/{date}", h.DeleteGym).Methods(http.MethodDelete)
	r.HandleFunc("/migrate", h.Migrate).Methods(http.MethodPost)
}

func (h *RecordsHandler) requireOwner(w http.ResponseWriter) (string, bool) {
	owner := h.owner()
	if owner == "" {
		writeError(w, errors.New(errors.ErrInvalid, "no signed-in user"))
		return "", false
	}
	return owner, true
}

// SaveMeal handles POST /meals.
func (h *RecordsHandler) SaveMeal(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w)
	if !ok {
		return
	}
	var in records.MealInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	localID, err := h.service.SaveMeal(r.Context(), owner, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"localId": localID})
}

// DeleteMeal handles DELETE /meals/{clientId}?image=<path>.
func (h *RecordsHandler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w)
	if !ok {
		return
	}
	err := h.service.DeleteMeal(r.Context(), owner, mux.Vars(r)["clientId"], r.URL.Query().Get("image"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveGym handles POST /gyms.
func (h *RecordsHandler) SaveGym(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w)
	if !ok {
		return
	}
	var req struct {
		Date      string            `json:"date"`
		Exercises []models.Exercise `json:"exercises"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.service.SaveGym(r.Context(), owner, req.Date, req.Exercises)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GymMonth handles GET /gyms/months/{month}.
func (h *RecordsHandler) GymMonth(w http.ResponseWriter, r *http.Request) {
	headers, err := h.gyms.MonthHeaders(r.Context(), mux.Vars(r)["month"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

// GymRecord handles GET /gyms/{date}.
func (h *RecordsHandler) GymRecord(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	rec, ok, err := h.gyms.Record(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errors.Newf(errors.ErrNotFound, "no gym record on %s", date))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteGym handles DELETE /gyms/{date}.
func (h *RecordsHandler) DeleteGym(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w)
	if !ok {
		return
	}
	if err := h.service.DeleteGym(r.Context(), owner, mux.Vars(r)["date"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Migrate handles POST /migrate, uploading legacy local records once.
func (h *RecordsHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	if h.migrator == nil {
		writeError(w, errors.New(errors.ErrSyncNotConfigured, "remote backend is not configured"))
		return
	}
	owner, ok := h.requireOwner(w)
	if !ok {
		return
	}
	report, err := h.migrator.MigrateUser(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
