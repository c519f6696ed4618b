// Package routine holds the practice routine data model and the
// normalization of loosely-typed stored routine documents into the
// render-ready structure the session runtime consumes.
package routine

import "encoding/json"

// ResourceType classifies an attached resource by its URL shape.
type ResourceType string

const (
	ResourceYouTube ResourceType = "youtube"
	ResourcePDF     ResourceType = "pdf"
	ResourceAudio   ResourceType = "audio"
	ResourceLink    ResourceType = "link"
	ResourceFile    ResourceType = "file"
)

// RawRoutine mirrors a stored routine document. Field types are loose on
// purpose: the editor UI cannot guarantee clean data, so durations arrive as
// strings or numbers and resources as an array or a single bare object.
type RawRoutine struct {
	RoutineID   string          `json:"routineId"`
	Name        string          `json:"name"`
	FocusBlocks []RawFocusBlock `json:"focusBlocks"`
}

type RawFocusBlock struct {
	BlockID       string        `json:"blockId"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	TotalDuration any           `json:"totalDuration"`
	Exercises     []RawExercise `json:"exercises"`
}

type RawExercise struct {
	ExerciseID string          `json:"exerciseId"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Notes      string          `json:"notes"`
	Duration   any             `json:"duration"`
	Tempo      any             `json:"tempo"`
	Resources  json.RawMessage `json:"resources"`
}

type RawResource struct {
	ResourceID string `json:"resourceId"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	Link       string `json:"link"`
	Href       string `json:"href"`
	Name       string `json:"name"`
	Title      string `json:"title"`
}

// Routine is the normalized, render-ready form. All durations are positive
// integers and every resource carries an inferred type.
type Routine struct {
	ID          string
	Name        string
	FocusBlocks []FocusBlock
}

type FocusBlock struct {
	ID                string
	Name              string
	Description       string
	TotalDurationMins int
	Exercises         []Exercise
}

type Exercise struct {
	ID           string
	Name         string
	Category     string
	Notes        string
	DurationMins int
	TempoBPM     int // 0 when the routine carries no tempo
	Resources    []Resource
}

type Resource struct {
	ID   string
	Type ResourceType
	URL  string
	Name string
}

// TotalExercises counts exercises across all focus blocks.
func (r Routine) TotalExercises() int {
	n := 0
	for _, b := range r.FocusBlocks {
		n += len(b.Exercises)
	}
	return n
}
