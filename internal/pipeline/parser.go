package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"animatevdo-backend/internal/models"
)

// ErrScriptUnparseable reports that no scenes could be extracted from the
// model output. Callers choose the fallback; see DefaultScript.
var ErrScriptUnparseable = errors.New("script output unparseable")

// Narration pacing used to estimate scene durations the model did not supply.
const wordsPerMinute = 130.0

// ParseScript turns raw model output into a structured script. It tries
// strict JSON first (markdown fences stripped), then a line-based scene
// split. Best effort: it returns ErrScriptUnparseable rather than a
// partially empty script when nothing usable is found.
func ParseScript(raw string) (*models.ScriptContent, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty output", ErrScriptUnparseable)
	}

	if script, ok := parseJSONScript(cleaned); ok {
		return script, nil
	}
	if script, ok := parseTextScript(cleaned); ok {
		return script, nil
	}
	return nil, fmt.Errorf("%w: no scenes found", ErrScriptUnparseable)
}

// DefaultScript is the deliberate single-scene fallback used when generation
// output cannot be parsed at all. One generic scene narrating the topic.
func DefaultScript(topic string) *models.ScriptContent {
	narration := fmt.Sprintf("Today we explore the story of %s. Join us as the tale unfolds.", topic)
	scenes := []models.Scene{{
		SceneNumber:       1,
		Narration:         narration,
		VisualDescription: fmt.Sprintf("An establishing shot introducing %s", topic),
	}}
	return finalizeScript(fmt.Sprintf("The Story of %s", topic), scenes)
}

type scriptWire struct {
	Title  string      `json:"title"`
	Scenes []sceneWire `json:"scenes"`
}

type sceneWire struct {
	SceneNumber       int     `json:"scene_number"`
	Narration         string  `json:"narration"`
	VisualDescription string  `json:"visual_description"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

func parseJSONScript(cleaned string) (*models.ScriptContent, bool) {
	// Some models emit a bare scene array instead of the wrapper object.
	if strings.HasPrefix(cleaned, "[") {
		cleaned = `{"scenes":` + cleaned + `}`
	}

	var wire scriptWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, false
	}

	scenes := make([]models.Scene, 0, len(wire.Scenes))
	for _, s := range wire.Scenes {
		if strings.TrimSpace(s.Narration) == "" {
			continue
		}
		scenes = append(scenes, models.Scene{
			SceneNumber:       s.SceneNumber,
			Narration:         strings.TrimSpace(s.Narration),
			VisualDescription: strings.TrimSpace(s.VisualDescription),
			DurationSeconds:   s.DurationSeconds,
		})
	}
	if len(scenes) == 0 {
		return nil, false
	}
	return finalizeScript(wire.Title, scenes), true
}

var (
	sceneHeaderRe = regexp.MustCompile(`(?i)^\s*scene\s*(\d+)\s*[:.\-]?\s*(.*)$`)
	titleLineRe   = regexp.MustCompile(`(?i)^\s*title\s*[:\-]\s*(.+)$`)
	visualLineRe  = regexp.MustCompile(`(?i)^\s*visual\s*[:\-]\s*(.+)$`)
)

// parseTextScript handles free-text output: "Scene N:" headers when present,
// otherwise each paragraph becomes a scene.
func parseTextScript(cleaned string) (*models.ScriptContent, bool) {
	lines := strings.Split(cleaned, "\n")

	title := ""
	var scenes []models.Scene
	var current *models.Scene

	flush := func() {
		if current != nil && strings.TrimSpace(current.Narration) != "" {
			current.Narration = strings.TrimSpace(current.Narration)
			scenes = append(scenes, *current)
		}
		current = nil
	}

	sawHeader := false
	for _, line := range lines {
		if m := titleLineRe.FindStringSubmatch(line); m != nil && title == "" {
			title = strings.TrimSpace(m[1])
			continue
		}
		if m := sceneHeaderRe.FindStringSubmatch(line); m != nil {
			sawHeader = true
			flush()
			current = &models.Scene{Narration: strings.TrimSpace(m[2])}
			continue
		}
		if current != nil {
			if m := visualLineRe.FindStringSubmatch(line); m != nil {
				current.VisualDescription = strings.TrimSpace(m[1])
				continue
			}
			current.Narration = strings.TrimSpace(current.Narration + " " + strings.TrimSpace(line))
		}
	}
	flush()

	if !sawHeader {
		scenes = scenesFromParagraphs(cleaned, title)
	}
	if len(scenes) == 0 {
		return nil, false
	}
	return finalizeScript(title, scenes), true
}

func scenesFromParagraphs(cleaned, title string) []models.Scene {
	var scenes []models.Scene
	for _, para := range strings.Split(cleaned, "\n\n") {
		para = strings.TrimSpace(strings.ReplaceAll(para, "\n", " "))
		if para == "" || para == title || titleLineRe.MatchString(para) {
			continue
		}
		if len(strings.Fields(para)) < 3 {
			continue
		}
		scenes = append(scenes, models.Scene{Narration: para})
	}
	return scenes
}

// finalizeScript numbers scenes, fills in estimated durations, and computes
// cumulative start times. Output order follows input order.
func finalizeScript(title string, scenes []models.Scene) *models.ScriptContent {
	var elapsed float64
	for i := range scenes {
		if scenes[i].SceneNumber == 0 {
			scenes[i].SceneNumber = i + 1
		}
		if scenes[i].DurationSeconds <= 0 {
			scenes[i].DurationSeconds = estimateDuration(scenes[i].Narration)
		}
		scenes[i].StartTime = elapsed
		elapsed += scenes[i].DurationSeconds
	}
	if title == "" {
		title = "Untitled Story"
	}
	return &models.ScriptContent{
		Title:         title,
		Scenes:        scenes,
		TotalDuration: elapsed,
	}
}

func estimateDuration(narration string) float64 {
	words := len(strings.Fields(narration))
	return float64(words) / wordsPerMinute * 60.0
}

// stripFences removes a wrapping ```json ... ``` markdown fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
