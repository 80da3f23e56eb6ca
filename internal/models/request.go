package models

type CreateProjectRequest struct {
	Topic string `json:"topic" binding:"required" example:"space exploration"`
}

// RunStageRequest optionally overrides the prior-stage outputs a stage would
// otherwise load from the most recent completed stage results. Used by the
// dashboard for manual re-runs with edited inputs.
type RunStageRequest struct {
	Research   *ResearchContent   `json:"research,omitempty"`
	Script     *ScriptContent     `json:"script,omitempty"`
	Characters *CharactersContent `json:"characters,omitempty"`
	Audio      *AudioContent      `json:"audio,omitempty"`
}

type ErrorResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message,omitempty"`
	Code            string `json:"code,omitempty"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}
