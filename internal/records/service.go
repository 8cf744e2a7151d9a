package records

import (
	"context"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/sync/queue"
)

// MealInput is a meal the user logged.
type MealInput struct {
	Date          string      `json:"date"`
	MealType      string      `json:"meal_type"`
	Foods         interface{} `json:"foods"`
	TotalCalories float64     `json:"total_calories"`
	// ImageURL is a storage path, a URL or an inline data URI. Inline
	// images are uploaded when the meal syncs.
	ImageURL string `json:"image_url,omitempty"`
}

// ImageDeleter removes an uploaded image pair.
type ImageDeleter interface {
	Delete(ctx context.Context, bucket, originalPath string) error
}

// Service writes records locally first and leaves the remote write to the
// sync engine.
type Service struct {
	queue   *queue.Queue
	gyms    *GymCache
	backend Backend
	images  ImageDeleter
	now     func() time.Time
}

// NewService creates a Service. backend and images may be nil when the
// app runs without a remote backend; deletes are then local only.
func NewService(q *queue.Queue, gyms *GymCache, backend Backend, images ImageDeleter) *Service {
	return &Service{queue: q, gyms: gyms, backend: backend, images: images, now: time.Now}
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// SaveMeal queues a meal for sync and returns its local id.
func (s *Service) SaveMeal(ctx context.Context, ownerID string, in MealInput) (string, error) {
	if ownerID == "" {
		return "", errors.New(errors.ErrInvalid, "owner id is required")
	}
	if !validDate(in.Date) {
		return "", errors.Newf(errors.ErrValidation, "meal date %q is not YYYY-MM-DD", in.Date)
	}
	if in.MealType == "" {
		return "", errors.New(errors.ErrValidation, "meal type is required")
	}

	data := map[string]interface{}{
		models.FieldUserID: ownerID,
		"date":             in.Date,
		"meal_type":        in.MealType,
		"foods":            in.Foods,
		"total_calories":   in.TotalCalories,
	}
	if in.ImageURL != "" {
		data["image_url"] = in.ImageURL
	}
	return s.queue.Enqueue(ctx, models.PendingMealRecord, data)
}

// SaveGym writes the day's gym record to the local cache and queues it
// for sync.
func (s *Service) SaveGym(ctx context.Context, ownerID, date string, exercises []models.Exercise) (models.GymRecordFull, error) {
	if ownerID == "" {
		return models.GymRecordFull{}, errors.New(errors.ErrInvalid, "owner id is required")
	}
	if !validDate(date) {
		return models.GymRecordFull{}, errors.Newf(errors.ErrValidation, "gym date %q is not YYYY-MM-DD", date)
	}
	if exercises == nil {
		exercises = []models.Exercise{}
	}

	localID, err := s.queue.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{
		models.FieldUserID: ownerID,
		"date":             date,
		"exercises":        exercises,
	})
	if err != nil {
		return models.GymRecordFull{}, err
	}

	rec := models.GymRecordFull{
		ID:        localID,
		LocalID:   localID,
		Date:      date,
		Exercises: exercises,
		CreatedAt: s.now().UTC(),
	}
	if err := s.gyms.Put(ctx, rec); err != nil {
		// The queued write still reaches the server; the change feed
		// repopulates the cache.
		logging.Warn("Failed to cache gym record", map[string]interface{}{
			"date":  date,
			"error": err.Error(),
		})
	}
	return rec, nil
}

// DeleteMeal removes a meal. A meal that never left the queue is simply
// dequeued; otherwise the remote row is deleted and its image removed on
// a best-effort basis.
func (s *Service) DeleteMeal(ctx context.Context, ownerID, clientID, imagePath string) error {
	pending, err := s.queue.IsPending(ctx, clientID)
	if err != nil {
		return err
	}
	if pending {
		return s.queue.Dequeue(ctx, clientID)
	}

	if s.backend == nil {
		return errors.New(errors.ErrSyncNotConfigured, "meal is synced and no backend is configured")
	}
	if err := s.backend.DeleteRow(ctx, models.TableMealRecords, ownerID, clientID); err != nil {
		return err
	}
	s.deleteImage(ctx, media.BucketFoodLogs, imagePath)
	return nil
}

// DeleteGym removes the day's gym record from the cache, the queue and
// the backend.
func (s *Service) DeleteGym(ctx context.Context, ownerID, date string) error {
	rec, ok, err := s.gyms.Record(ctx, date)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf(errors.ErrNotFound, "no gym record on %s", date)
	}

	clientID := rec.LocalID
	if clientID == "" {
		clientID = rec.ID
	}
	pending, err := s.queue.IsPending(ctx, clientID)
	if err != nil {
		return err
	}

	if pending {
		if err := s.queue.Dequeue(ctx, clientID); err != nil {
			return err
		}
	} else if s.backend != nil {
		if err := s.backend.DeleteRow(ctx, models.TableGymRecords, ownerID, clientID); err != nil {
			return err
		}
	}

	for _, ex := range rec.Exercises {
		s.deleteImage(ctx, media.BucketGymPhotos, ex.ImageURL)
	}
	return s.gyms.Remove(ctx, date)
}

func (s *Service) deleteImage(ctx context.Context, bucket, path string) {
	if s.images == nil || path == "" || media.IsInlineImage(path) {
		return
	}
	if err := s.images.Delete(ctx, bucket, path); err != nil {
		logging.Warn("Failed to delete record image", map[string]interface{}{
			"bucket": bucket,
			"path":   path,
			"error":  err.Error(),
		})
	}
}
