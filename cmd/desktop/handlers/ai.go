package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/services"
)

// Analyzer runs the model-backed analyses.
type Analyzer interface {
	InBody(ctx context.Context, image string) (models.AnalysisResult, error)
	Checkup(ctx context.Context, images []string) (models.AnalysisResult, error)
	DietFeedback(ctx context.Context, data models.NutritionData, profile *models.UserProfile) (models.AnalysisResult, error)
}

// CheckupSubmitter stores checkup sheets for server-side analysis.
type CheckupSubmitter interface {
	SubmitCheckup(ctx context.Context, ownerID string, images [][]byte) (services.CheckupSubmission, error)
}

// AIHandler handles analysis requests. Either dependency may be nil when
// it is not configured.
type AIHandler struct {
	analyzer Analyzer
	checkups CheckupSubmitter
	owner    func() string
}

// NewAIHandler creates an AIHandler. owner returns the signed-in user.
func NewAIHandler(analyzer Analyzer, checkups CheckupSubmitter, owner func() string) *AIHandler {
	return &AIHandler{analyzer: analyzer, checkups: checkups, owner: owner}
}

// Register mounts the analysis routes on r.
func (h *AIHandler) Register(r *mux.Router) {
	r.HandleFunc("/analysis/inbody", h.InBody).Methods(http.MethodPost)
	r.HandleFunc("/analysis/checkup", h.Checkup).Methods(http.MethodPost)
	r.HandleFunc("/analysis/diet", h.Diet).Methods(http.MethodPost)
	r.HandleFunc("/checkups", h.SubmitCheckup).Methods(http.MethodPost)
}

func (h *AIHandler) requireAnalyzer(w http.ResponseWriter) bool {
	if h.analyzer == nil {
		writeError(w, errors.New(errors.ErrAINotConfigured, "analysis gateway is not configured"))
		return false
	}
	return true
}

// InBody handles POST /analysis/inbody.
func (h *AIHandler) InBody(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalyzer(w) {
		return
	}
	var req struct {
		Image string `json:"image"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Image == "" {
		writeError(w, errors.New(errors.ErrImageEmpty, "image is required"))
		return
	}
	result, err := h.analyzer.InBody(r.Context(), req.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Checkup handles POST /analysis/checkup, analyzing sheets on the device
// without storing them.
func (h *AIHandler) Checkup(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalyzer(w) {
		return
	}
	var req struct {
		Images []string `json:"images"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.analyzer.Checkup(r.Context(), req.Images)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Diet handles POST /analysis/diet.
func (h *AIHandler) Diet(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalyzer(w) {
		return
	}
	var req struct {
		Data    models.NutritionData `json:"nutritionData"`
		Profile *models.UserProfile  `json:"userProfile"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.analyzer.DietFeedback(r.Context(), req.Data, req.Profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SubmitCheckup handles POST /checkups with data URI images.
func (h *AIHandler) SubmitCheckup(w http.ResponseWriter, r *http.Request) {
	if h.checkups == nil {
		writeError(w, errors.New(errors.ErrSyncNotConfigured, "remote backend is not configured"))
		return
	}
	var req struct {
		Images []string `json:"images"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sources := make([][]byte, 0, len(req.Images))
	for _, img := range req.Images {
		_, data, err := media.ParseDataURI(img)
		if err != nil {
			writeError(w, err)
			return
		}
		sources = append(sources, data)
	}

	sub, err := h.checkups.SubmitCheckup(r.Context(), h.owner(), sources)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
