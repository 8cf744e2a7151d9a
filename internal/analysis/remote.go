package analysis

import (
	"context"
	stderrors "errors"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
)

const invalidImage = "invalid_image"

// CheckupFunction is the edge function that analyzes an uploaded checkup
// record server-side.
const CheckupFunction = "analyze-health-checkup"

// Invoker calls a backend edge function.
type Invoker interface {
	Invoke(ctx context.Context, name string, body, out interface{}) error
}

// CheckupRequest starts server-side analysis of a stored checkup record.
type CheckupRequest struct {
	RecordID  string   `json:"recordId"`
	ImageURLs []string `json:"imageUrls"`
}

// CheckupResponse is the edge function's reply.
type CheckupResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// RequestCheckupAnalysis asks the backend to analyze a checkup record whose
// images are already in the health-checkups bucket. The record status is
// updated by the backend; callers observe it through the change feed.
func RequestCheckupAnalysis(ctx context.Context, fn Invoker, req CheckupRequest) (CheckupResponse, error) {
	if req.RecordID == "" || len(req.ImageURLs) == 0 {
		return CheckupResponse{}, errors.New(errors.ErrInvalid, "record id and image paths are required")
	}
	var resp CheckupResponse
	if err := fn.Invoke(ctx, CheckupFunction, req, &resp); err != nil {
		var apiErr *supabase.Error
		if stderrors.As(err, &apiErr) && apiErr.Code == invalidImage {
			return CheckupResponse{Error: invalidImage, Message: apiErr.Message},
				errors.Wrap(errors.ErrAINotHealthCheckup, "uploaded image is not a health checkup sheet", err)
		}
		return CheckupResponse{}, err
	}
	if resp.Error == invalidImage {
		return resp, errors.New(errors.ErrAINotHealthCheckup, resp.Message)
	}
	return resp, nil
}
