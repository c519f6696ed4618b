package routine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultDurationMins is substituted when a stored exercise duration is
// missing, non-numeric, or non-positive.
const DefaultDurationMins = 5

// Normalize transforms a stored routine document into the render-ready form.
// Pure: no I/O, no side effects, safe to call repeatedly. Malformed fields
// are resolved by defaulting, never by returning an error.
func Normalize(raw RawRoutine) Routine {
	name := raw.Name
	if name == "" {
		name = "Practice Session"
	}

	blocks := make([]FocusBlock, 0, len(raw.FocusBlocks))
	for i, b := range raw.FocusBlocks {
		blocks = append(blocks, normalizeBlock(b, i))
	}

	return Routine{
		ID:          raw.RoutineID,
		Name:        name,
		FocusBlocks: blocks,
	}
}

func normalizeBlock(b RawFocusBlock, idx int) FocusBlock {
	id := b.BlockID
	if id == "" {
		id = strconv.Itoa(idx)
	}
	name := b.Name
	if name == "" {
		name = fmt.Sprintf("Focus Block %d", idx+1)
	}

	total, _ := positiveInt(b.TotalDuration)

	exercises := make([]Exercise, 0, len(b.Exercises))
	for j, ex := range b.Exercises {
		exercises = append(exercises, normalizeExercise(ex, idx, j))
	}

	return FocusBlock{
		ID:                id,
		Name:              name,
		Description:       b.Description,
		TotalDurationMins: total,
		Exercises:         exercises,
	}
}

func normalizeExercise(ex RawExercise, blockIdx, exIdx int) Exercise {
	name := ex.Name
	if name == "" {
		name = "Exercise"
	}
	category := ex.Category
	if category == "" {
		category = "Technique"
	}

	// Exercise identity must be stable and distinct: the timer uses it to
	// detect "different exercise, reset the clock".
	id := ex.ExerciseID
	if id == "" {
		id = ex.ID
	}
	if id == "" {
		id = fmt.Sprintf("%s#%d.%d", name, blockIdx, exIdx)
	}

	durationMins, ok := positiveInt(ex.Duration)
	if !ok {
		durationMins = DefaultDurationMins
	}

	tempo, _ := positiveInt(ex.Tempo)

	return Exercise{
		ID:           id,
		Name:         name,
		Category:     category,
		Notes:        ex.Notes,
		DurationMins: durationMins,
		TempoBPM:     tempo,
		Resources:    parseResources(ex.Resources),
	}
}

// parseResources accepts either an array of resource-like objects or a
// single bare object (older documents stored one resource unwrapped).
// Entries without a resolvable URL are dropped silently.
func parseResources(raw json.RawMessage) []Resource {
	if len(raw) == 0 {
		return nil
	}

	var entries []RawResource
	if err := json.Unmarshal(raw, &entries); err != nil {
		var single RawResource
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		entries = []RawResource{single}
	}

	out := make([]Resource, 0, len(entries))
	for _, r := range entries {
		url := resourceURL(r)
		if url == "" {
			continue
		}
		out = append(out, normalizeResource(r, url))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resourceURL(r RawResource) string {
	if r.URL != "" {
		return r.URL
	}
	if r.Link != "" {
		return r.Link
	}
	return r.Href
}

func normalizeResource(r RawResource, url string) Resource {
	// The stored type field is not trusted; the URL decides.
	typ := GuessResourceType(url)

	name := r.Name
	if name == "" {
		name = r.Title
	}
	if name == "" {
		name = defaultResourceName(typ)
	}

	return Resource{
		ID:   r.ResourceID,
		Type: typ,
		URL:  url,
		Name: name,
	}
}

// GuessResourceType infers a resource's type from its URL, case-insensitively.
func GuessResourceType(url string) ResourceType {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be"):
		return ResourceYouTube
	case strings.HasSuffix(u, ".pdf"):
		return ResourcePDF
	case strings.HasSuffix(u, ".mp3") || strings.HasSuffix(u, ".wav") || strings.HasSuffix(u, ".m4a"):
		return ResourceAudio
	case strings.HasPrefix(u, "http"):
		return ResourceLink
	default:
		return ResourceFile
	}
}

func defaultResourceName(typ ResourceType) string {
	switch typ {
	case ResourceYouTube:
		return "YouTube video"
	case ResourcePDF:
		return "PDF"
	case ResourceAudio:
		return "Audio"
	default:
		return "Link"
	}
}

// positiveInt coerces a loosely-typed numeric field (JSON number, numeric
// string, or integer) into a positive int. Returns false when the value is
// missing, non-numeric, or non-positive.
func positiveInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	// Fractional values below one would truncate to zero, which the
	// normalized model never carries.
	if int(f) <= 0 {
		return 0, false
	}
	return int(f), true
}
