package models

import "strings"

// Structured stage outputs stored in stage_results.content. Each stage has a
// fixed schema; later stages unmarshal the prior stage's content into these.

type ResearchContent struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Sources   []string `json:"sources"`
}

type Scene struct {
	SceneNumber       int     `json:"scene_number"`
	Narration         string  `json:"narration"`
	VisualDescription string  `json:"visual_description"`
	DurationSeconds   float64 `json:"duration_seconds"`
	StartTime         float64 `json:"start_time"`
}

type ScriptContent struct {
	Title         string  `json:"title"`
	Scenes        []Scene `json:"scenes"`
	TotalDuration float64 `json:"total_duration"`
}

type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type SceneVisual struct {
	SceneNumber int    `json:"scene_number"`
	ImageURL    string `json:"image_url"`
}

type CharactersContent struct {
	Characters   []Character   `json:"characters"`
	SceneVisuals []SceneVisual `json:"scene_visuals"`
	StyleGuide   string        `json:"style_guide"`
}

type AudioFile struct {
	SceneNumber     int     `json:"scene_number"`
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type AudioContent struct {
	Files         []AudioFile   `json:"files"`
	VoiceID       string        `json:"voice_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type RenderSettings struct {
	FPS        int    `json:"fps"`
	Transition string `json:"transition"`
}

type VideoContent struct {
	VideoURL        string         `json:"video_url"`
	DurationSeconds float64        `json:"duration_seconds"`
	Resolution      string         `json:"resolution"`
	RenderSettings  RenderSettings `json:"render_settings"`
}

// ErrorURLPrefix marks a fan-out item whose generation failed. The item keeps
// its slot in the output array; only its URL field carries the marker.
const ErrorURLPrefix = "ERROR:"

func IsErrorURL(url string) bool {
	return strings.HasPrefix(url, ErrorURLPrefix)
}
