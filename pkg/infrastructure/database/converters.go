package database

import (
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get time from map (Firestore returns time.Time)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// --- Metadata Converters ---

// MetadataToFirestore flattens a record into the photo document's metadata
// map. Null fields are written as nil so a re-extraction clears stale values.
func MetadataToFirestore(rec metadata.Record) map[string]interface{} {
	switch m := rec.(type) {
	case *metadata.ExerciseMetadata:
		out := map[string]interface{}{
			"exercise_type":    derefString(m.ExerciseType),
			"duration_minutes": derefInt(m.DurationMinutes),
			"time_period":      nil,
			"intensity":        nil,
			"confidence_score": m.ConfidenceScore,
			"extracted_at":     m.ExtractedAt,
		}
		if m.TimePeriod != nil {
			out["time_period"] = string(*m.TimePeriod)
		}
		if m.Intensity != nil {
			out["intensity"] = string(*m.Intensity)
		}
		return out
	case *metadata.DietMetadata:
		ingredients := m.MainIngredients
		if ingredients == nil {
			ingredients = []string{}
		}
		return map[string]interface{}{
			"food_name":          derefString(m.FoodName),
			"main_ingredients":   ingredients,
			"estimated_calories": derefInt(m.EstimatedCalories),
			"confidence_score":   m.ConfidenceScore,
			"extracted_at":       m.ExtractedAt,
		}
	}
	return map[string]interface{}{}
}

// --- Photo Converters ---

func FirestoreToPhoto(id string, m map[string]interface{}) *types.PhotoRecord {
	p := &types.PhotoRecord{
		PhotoId:        getString(m, "photo_id"),
		UserId:         getString(m, "user_id"),
		ImageRef:       getString(m, "image_ref"),
		Domain:         getString(m, "domain"),
		AnalysisStatus: types.AnalysisStatus(getString(m, "analysis_status")),
		UploadedAt:     getTime(m, "uploaded_at"),
	}
	if md, ok := m["metadata"].(map[string]interface{}); ok {
		p.Metadata = md
	}
	// Documents written by the client use the doc key as the photo id
	if p.PhotoId == "" {
		p.PhotoId = id
	}
	return p
}

func derefString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func derefInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}
