package services

import (
	"fmt"
	"strings"

	"animatevdo-backend/internal/models"
)

// Fixed prompt templates for the LLM-backed stages. Both instruct the model
// to answer in the exact JSON shape the stage parses.

const scriptSystemPrompt = `You are a script writer for short animated YouTube story videos. ` +
	`Respond with JSON only, in exactly this shape: ` +
	`{"title": string, "scenes": [{"scene_number": number, "narration": string, "visual_description": string, "duration_seconds": number}]}. ` +
	`Write 4 to 6 scenes. Each scene's narration should run 10 to 20 seconds when read aloud. ` +
	`Use an engaging storytelling voice suitable for a general audience.`

func scriptUserPrompt(topic string, research *models.ResearchContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an animated story video script about: %s\n", topic)
	if research.Summary != "" {
		fmt.Fprintf(&b, "\nResearch summary:\n%s\n", research.Summary)
	}
	if len(research.KeyPoints) > 0 {
		b.WriteString("\nKey facts to weave into the story:\n")
		for _, point := range research.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}
	return b.String()
}

const characterSystemPrompt = `You design characters for short animated story videos. ` +
	`Respond with JSON only, in exactly this shape: ` +
	`{"characters": [{"name": string, "description": string}], "style_guide": string}. ` +
	`List at most 4 main characters with vivid visual descriptions an illustrator could draw from, ` +
	`and one style guide sentence that keeps every image in the video visually consistent.`

func characterUserPrompt(topic string, script *models.ScriptContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design the characters for an animated story titled %q about: %s\n\nScript narration:\n", script.Title, topic)
	for _, scene := range script.Scenes {
		fmt.Fprintf(&b, "Scene %d: %s\n", scene.SceneNumber, scene.Narration)
	}
	return b.String()
}
