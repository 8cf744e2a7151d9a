package models

import (
	"time"
)

// Remote table names.
const (
	TableMealRecords = "meal_records"
	TableGymRecords  = "gym_records"
)

// MealRecordRow is the meal_records row upserted on (user_id, client_id).
type MealRecordRow struct {
	UserID        string      `json:"user_id"`
	ClientID      string      `json:"client_id"`
	Date          string      `json:"date"`
	MealType      string      `json:"meal_type"`
	ImageURL      *string     `json:"image_url"`
	Foods         interface{} `json:"foods"`
	TotalCalories float64     `json:"total_calories"`
}

// NewMealRecordRow builds the remote row for a queued meal item. imagePath
// is the storage path to record, nil when the meal has no image.
func NewMealRecordRow(ownerID string, item PendingItem, imagePath *string) MealRecordRow {
	return MealRecordRow{
		UserID:        ownerID,
		ClientID:      item.LocalID,
		Date:          item.String("date"),
		MealType:      item.String("meal_type"),
		ImageURL:      imagePath,
		Foods:         item.Data["foods"],
		TotalCalories: Number(item.Data["total_calories"]),
	}
}

// GymRecordRow is the gym_records row upserted on (user_id, client_id).
type GymRecordRow struct {
	UserID    string      `json:"user_id"`
	ClientID  string      `json:"client_id"`
	Date      string      `json:"date"`
	Exercises interface{} `json:"exercises"`
}

// NewGymRecordRow builds the remote row for a queued gym item.
func NewGymRecordRow(ownerID string, item PendingItem) GymRecordRow {
	return GymRecordRow{
		UserID:    ownerID,
		ClientID:  item.LocalID,
		Date:      item.String("date"),
		Exercises: item.Data["exercises"],
	}
}

// ExerciseSet is one set of an exercise.
type ExerciseSet struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

// Exercise is one exercise within a gym record.
type Exercise struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Sets     []ExerciseSet `json:"sets"`
	ImageURL string        `json:"imageUrl,omitempty"`
}

// GymRecordFull is the source of truth for one day's exercise log.
type GymRecordFull struct {
	ID        string     `json:"id"`
	LocalID   string     `json:"localId,omitempty"`
	Date      string     `json:"date"`
	Exercises []Exercise `json:"exercises"`
	CreatedAt time.Time  `json:"created_at"`
}

// GymRecordHeader is the list-view projection of a GymRecordFull.
type GymRecordHeader struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	ExerciseCount int       `json:"exerciseCount"`
	CreatedAt     time.Time `json:"created_at"`
}

// Header derives the list-view projection.
func (r GymRecordFull) Header() GymRecordHeader {
	return GymRecordHeader{
		ID:            r.ID,
		Date:          r.Date,
		ExerciseCount: len(r.Exercises),
		CreatedAt:     r.CreatedAt,
	}
}

// Month returns the YYYY-MM bucket of the record's date.
func (r GymRecordFull) Month() string {
	if len(r.Date) < 7 {
		return ""
	}
	return r.Date[:7]
}

// MealRecord is a legacy locally-stored meal entry.
type MealRecord struct {
	ID            string      `json:"id"`
	Date          string      `json:"date"`
	MealType      string      `json:"meal_type"`
	ImageURL      *string     `json:"image_url,omitempty"`
	Foods         interface{} `json:"foods"`
	TotalCalories float64     `json:"total_calories"`
}

// TableHealthRecords holds uploaded health checkup sheets.
const TableHealthRecords = "health_records"

// HealthRecordStatus tracks a checkup record through server-side analysis.
type HealthRecordStatus string

const (
	HealthRecordUploading     HealthRecordStatus = "uploading"
	HealthRecordAnalyzing     HealthRecordStatus = "analyzing"
	HealthRecordPendingReview HealthRecordStatus = "pending_review"
	HealthRecordCompleted     HealthRecordStatus = "completed"
)

// HealthRecord is a health_records row.
type HealthRecord struct {
	ID           string             `json:"id,omitempty"`
	UserID       string             `json:"user_id"`
	RawImageURLs []string           `json:"raw_image_urls"`
	Status       HealthRecordStatus `json:"status"`
	CreatedAt    *time.Time         `json:"created_at,omitempty"`
}
