// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

// =====================================================
// PendingItem Tests
// =====================================================

// TestPendingItem_jsonShape verifies the persisted field names.
func TestPendingItem_jsonShape(t *testing.T) {
	item := PendingItem{
		LocalID:    "1700000000000_abc",
		Type:       PendingMealRecord,
		Data:       map[string]interface{}{"user_id": "u1"},
		CreatedAt:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		RetryCount: 2,
	}

	raw, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"localId", "type", "data", "createdAt", "retryCount"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("missing JSON field %q in %s", key, raw)
		}
	}
}

// TestPendingItem_legacyDecode verifies queue entries written with an ISO
// timestamp decode.
func TestPendingItem_legacyDecode(t *testing.T) {
	raw := `{"localId":"1_x","type":"gym_record","data":{"user_id":"u1","date":"2024-01-15"},"createdAt":"2024-01-15T09:30:00.000Z","retryCount":1}`

	var item PendingItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if item.OwnerID() != "u1" || item.Type != PendingGymRecord || item.RetryCount != 1 {
		t.Errorf("decoded = %+v", item)
	}
}

// TestPendingItem_Clone verifies the clone's map is independent.
func TestPendingItem_Clone(t *testing.T) {
	item := PendingItem{Data: map[string]interface{}{"a": "1"}}
	clone := item.Clone()
	clone.Data["a"] = "2"

	if item.Data["a"] != "1" {
		t.Error("Clone() shares Data with the original")
	}
}

// TestPendingType_Valid verifies known types.
func TestPendingType_Valid(t *testing.T) {
	if !PendingMealRecord.Valid() || !PendingGymRecord.Valid() {
		t.Error("known types should be valid")
	}
	if PendingType("water_record").Valid() {
		t.Error("unknown type should be invalid")
	}
}

// TestNumber verifies numeric coercion.
func TestNumber(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{float64(1.5), 1.5},
		{int(3), 3},
		{int64(4), 4},
		{json.Number("5.5"), 5.5},
		{"6", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := Number(tt.in); got != tt.want {
			t.Errorf("Number(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =====================================================
// Record Row Tests
// =====================================================

// TestNewMealRecordRow verifies payload fields map onto the row.
func TestNewMealRecordRow(t *testing.T) {
	path := "u1/1_x.jpg"
	item := PendingItem{
		LocalID: "1_x",
		Data: map[string]interface{}{
			"date":           "2024-01-15",
			"meal_type":      "lunch",
			"foods":          []interface{}{"rice"},
			"total_calories": float64(650),
		},
	}

	row := NewMealRecordRow("u1", item, &path)
	if row.UserID != "u1" || row.ClientID != "1_x" || row.Date != "2024-01-15" ||
		row.MealType != "lunch" || row.TotalCalories != 650 || *row.ImageURL != path {
		t.Errorf("row = %+v", row)
	}

	raw, _ := json.Marshal(NewMealRecordRow("u1", item, nil))
	var generic map[string]interface{}
	json.Unmarshal(raw, &generic)
	if v, ok := generic["image_url"]; !ok || v != nil {
		t.Errorf("image_url should serialize as null, got %v", generic["image_url"])
	}
}

// TestGymRecordFull_Header verifies the derived projection.
func TestGymRecordFull_Header(t *testing.T) {
	created := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	full := GymRecordFull{
		ID:        "r1",
		Date:      "2024-01-15",
		Exercises: []Exercise{{ID: "e1"}, {ID: "e2"}},
		CreatedAt: created,
	}

	h := full.Header()
	if h.ID != "r1" || h.Date != "2024-01-15" || h.ExerciseCount != 2 || !h.CreatedAt.Equal(created) {
		t.Errorf("Header() = %+v", h)
	}
	if full.Month() != "2024-01" {
		t.Errorf("Month() = %q", full.Month())
	}
	if (GymRecordFull{Date: "bad"}).Month() != "" {
		t.Error("Month() of short date should be empty")
	}
}

// =====================================================
// Analysis Result Tests
// =====================================================

// TestAnalysisResult_tagged verifies only the matching payload serializes.
func TestAnalysisResult_tagged(t *testing.T) {
	w := 65.5
	res := AnalysisResult{
		SchemaVersion: AnalysisSchemaVersion,
		Kind:          AnalysisInBody,
		InBody:        &InBodyResult{Date: "2024-01-15", Weight: &w},
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var generic map[string]interface{}
	json.Unmarshal(raw, &generic)
	if generic["kind"] != "inbody" || generic["schema_version"] != float64(1) {
		t.Errorf("tag fields = %v", generic)
	}
	if _, ok := generic["health_checkup"]; ok {
		t.Error("unset payload should be omitted")
	}
}
