package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animatevdo-backend/internal/config"
	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/pipeline"
	"animatevdo-backend/internal/providers"
	"animatevdo-backend/internal/services"
)

// testConfig keeps stage retries at one attempt so failure tests finish
// without sleeping through backoff delays.
func testConfig() *config.Config {
	return &config.Config{
		OpenAIScriptModel:    "gpt-4o-mini",
		OpenAIImageModel:     "dall-e-3",
		ElevenLabsVoiceID:    "voice-1",
		StageMaxRetries:      1,
		RecoveryRetryDelay:   5 * time.Minute,
		RecoveryMaxRetries:   3,
		StageTimeout:         10 * time.Minute,
		FreeTierProjectLimit: 3,
	}
}

type pipelineFixture struct {
	store     *fakeStore
	media     *fakeMedia
	locker    *fakeLocker
	scheduler *fakeScheduler
	publisher *fakePublisher
	research  *scriptedResearch
	llm       *scriptedLLM
	image     *scriptedImage
	speech    *scriptedSpeech
	video     *scriptedVideo
	cfg       *config.Config
	svc       *services.PipelineService
	project   *models.Project
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		store:     newFakeStore(),
		media:     newFakeMedia(),
		locker:    &fakeLocker{},
		scheduler: &fakeScheduler{},
		publisher: &fakePublisher{},
		research:  &scriptedResearch{},
		llm:       &scriptedLLM{},
		image:     &scriptedImage{},
		speech:    &scriptedSpeech{},
		video:     &scriptedVideo{},
		cfg:       testConfig(),
	}
	f.project = &models.Project{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Topic:        "the honeybee waggle dance",
		Status:       models.ProjectStatusCreated,
		CurrentStage: models.StageResearch,
	}
	f.store.addProject(f.project)
	f.svc = services.NewPipelineService(
		f.store, f.media, f.locker, f.scheduler, f.publisher,
		services.NewUsageService(f.store, logger.NewNop()),
		services.Providers{
			Research: f.research,
			Script:   f.llm,
			Image:    f.image,
			Speech:   f.speech,
			Video:    f.video,
		},
		f.cfg, logger.NewNop(),
	)
	return f
}

func threeSceneScript() *models.ScriptContent {
	return &models.ScriptContent{
		Title: "The Waggle Dance",
		Scenes: []models.Scene{
			{SceneNumber: 1, Narration: "Bees return to the hive.", VisualDescription: "a sunny meadow", DurationSeconds: 8, StartTime: 0},
			{SceneNumber: 2, Narration: "The dance encodes direction.", VisualDescription: "a glowing hive interior", DurationSeconds: 10, StartTime: 8},
			{SceneNumber: 3, Narration: "The swarm follows.", VisualDescription: "bees flying at dusk", DurationSeconds: 7, StartTime: 18},
		},
		TotalDuration: 25,
	}
}

func seedScript(f *pipelineFixture, script *models.ScriptContent) {
	payload, _ := json.Marshal(script)
	f.store.addCompletedResult(f.project.ID, models.StageScript, payload)
}

func apiErr(service string, status int) error {
	return providers.NewAPIError(service, status, []byte("upstream error"))
}

func TestRunStage_ResearchCompletes(t *testing.T) {
	f := newPipelineFixture()

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageResearch, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.StageStatusCompleted, result.Status)

	var content models.ResearchContent
	require.NoError(t, json.Unmarshal(result.Content, &content))
	assert.Contains(t, content.Summary, "honeybee")

	progress, _ := f.store.GetProgress(context.Background(), f.project.ID)
	assert.True(t, progress.Research)
	assert.Equal(t, models.StageScript, f.project.CurrentStage)
	assert.Equal(t, models.ProjectStatusInProgress, f.project.Status)

	require.Len(t, f.store.usage, 1)
	usage := f.store.usage[0]
	assert.Equal(t, models.ServiceSearch, usage.ServiceType)
	assert.Equal(t, "tavily-search", usage.Model)
	assert.True(t, usage.Success)
	assert.InDelta(t, 0.005, usage.Cost, 1e-9)

	assert.Equal(t, []string{"stage_started", "stage_completed"}, f.publisher.names())
	assert.Equal(t, 1, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestRunStage_RejectsWhenLockHeld(t *testing.T) {
	f := newPipelineFixture()
	f.locker.busy = true

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageResearch, nil)
	require.Error(t, err)
	svcErr, ok := pipeline.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ErrCodeStageAlreadyRunning, svcErr.Code)
	assert.False(t, svcErr.Retryable)

	assert.Empty(t, f.store.results)
	assert.Empty(t, f.publisher.names())
	assert.Equal(t, 0, f.research.calls)
}

func TestRunStage_NonRetryableFailureSkipsRecovery(t *testing.T) {
	f := newPipelineFixture()
	f.research.errs = []error{apiErr("tavily", 401)}

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageResearch, nil)
	require.Error(t, err)
	svcErr, ok := pipeline.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ErrCodeAPIKeyMissing, svcErr.Code)

	results := f.store.resultsFor(f.project.ID, models.StageResearch)
	require.Len(t, results, 1)
	assert.Equal(t, models.StageStatusFailed, results[0].Status)
	assert.Equal(t, "API_KEY_MISSING", results[0].ErrorCode.String)

	assert.Empty(t, f.store.recoveryEntries())
	assert.Empty(t, f.scheduler.tasks)
	assert.Equal(t, models.ProjectStatusFailed, f.project.Status)
	assert.Equal(t, []string{"stage_started", "stage_failed"}, f.publisher.names())

	require.Len(t, f.store.usage, 1)
	assert.False(t, f.store.usage[0].Success)
}

func TestRunStage_RetryableFailureQueuesRecovery(t *testing.T) {
	f := newPipelineFixture()
	f.research.errs = []error{apiErr("tavily", 500)}

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageResearch, nil)
	require.Error(t, err)
	svcErr, ok := pipeline.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ErrCodeAPIServiceDown, svcErr.Code)
	assert.True(t, svcErr.Retryable)

	entries := f.store.recoveryEntries()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, f.project.ID, entry.ProjectID)
	assert.Equal(t, models.StageResearch, entry.Stage)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, 3, entry.MaxRetries)
	assert.Equal(t, models.RecoveryStatusPending, entry.Status)
	assert.Equal(t, "API_SERVICE_DOWN", entry.LastErrorCode.String)
	assert.WithinDuration(t, time.Now().Add(f.cfg.RecoveryRetryDelay), entry.NextRetryAt, 5*time.Second)

	require.Len(t, f.scheduler.tasks, 1)
	assert.Equal(t, entry.ID, f.scheduler.tasks[0].entryID)
	assert.Equal(t, f.cfg.RecoveryRetryDelay, f.scheduler.tasks[0].delay)
}

// Uses the real one-second initial backoff, so this test takes about a
// second. It is the only one that exercises the in-process retry loop end
// to end through a stage.
func TestRunStage_RetriesTransientFailure(t *testing.T) {
	f := newPipelineFixture()
	f.cfg.StageMaxRetries = 2
	f.research.errs = []error{apiErr("tavily", 429)}

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageResearch, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StageStatusCompleted, result.Status)
	assert.Equal(t, 2, f.research.calls)

	require.Len(t, f.store.usage, 2)
	assert.False(t, f.store.usage[0].Success)
	assert.True(t, f.store.usage[1].Success)
	assert.Empty(t, f.store.recoveryEntries())
}

func TestRunStage_ScriptFallsBackToDefaultScene(t *testing.T) {
	f := newPipelineFixture()
	research, _ := json.Marshal(&models.ResearchContent{Summary: "bees dance"})
	f.store.addCompletedResult(f.project.ID, models.StageResearch, research)
	// Too short for even the paragraph fallback to make a scene of.
	f.llm.outputs = []string{"ok"}

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageScript, nil)
	require.NoError(t, err)

	var script models.ScriptContent
	require.NoError(t, json.Unmarshal(result.Content, &script))
	require.Len(t, script.Scenes, 1)
	assert.Contains(t, script.Scenes[0].Narration, f.project.Topic)
	assert.Greater(t, script.TotalDuration, 0.0)

	progress, _ := f.store.GetProgress(context.Background(), f.project.ID)
	assert.True(t, progress.Script)
}

func TestRunStage_ScriptRequiresResearchOutput(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageScript, nil)
	require.Error(t, err)
	svcErr, ok := pipeline.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ErrCodeMissingDependencies, svcErr.Code)
	assert.False(t, svcErr.Retryable)
	assert.Contains(t, svcErr.SuggestedAction, "research")

	assert.Equal(t, 0, f.llm.calls)
	assert.Empty(t, f.store.recoveryEntries())
}

func TestRunStage_CharactersPartialFailureKeepsSlots(t *testing.T) {
	f := newPipelineFixture()
	seedScript(f, threeSceneScript())
	f.llm.outputs = []string{`{"characters":[{"name":"Milo","description":"a curious honeybee"}],"style_guide":"Storybook watercolor"}`}
	f.image.fail = func(prompt string) error {
		if strings.Contains(prompt, "glowing hive interior") {
			return errors.New("request rejected by the safety system")
		}
		return nil
	}

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageCharacters, nil)
	require.NoError(t, err)

	var content models.CharactersContent
	require.NoError(t, json.Unmarshal(result.Content, &content))
	assert.Equal(t, "Storybook watercolor", content.StyleGuide)

	require.Len(t, content.Characters, 1)
	assert.Equal(t, "Milo", content.Characters[0].Name)
	assert.False(t, models.IsErrorURL(content.Characters[0].ImageURL))
	assert.Contains(t, content.Characters[0].ImageURL, "character_01.png")

	require.Len(t, content.SceneVisuals, 3)
	assert.Equal(t, 1, content.SceneVisuals[0].SceneNumber)
	assert.Contains(t, content.SceneVisuals[0].ImageURL, "scene_01.png")
	assert.Equal(t, "ERROR: image generation failed for scene 2", content.SceneVisuals[1].ImageURL)
	assert.Contains(t, content.SceneVisuals[2].ImageURL, "scene_03.png")

	// The stage still completes and advances.
	assert.Equal(t, models.StageStatusCompleted, result.Status)
	progress, _ := f.store.GetProgress(context.Background(), f.project.ID)
	assert.True(t, progress.Characters)
	assert.Equal(t, 4, f.image.calls)
}

func TestRunStage_CharactersFailsWhenEveryImageFails(t *testing.T) {
	f := newPipelineFixture()
	seedScript(f, threeSceneScript())
	f.llm.outputs = []string{`{"characters":[{"name":"Milo","description":"a curious honeybee"}],"style_guide":""}`}
	f.image.fail = func(string) error { return apiErr("openai", 401) }

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageCharacters, nil)
	require.Error(t, err)
	svcErr, ok := pipeline.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ErrCodeAPIKeyMissing, svcErr.Code)
	assert.False(t, svcErr.Retryable)
	assert.Empty(t, f.store.recoveryEntries())

	progress, _ := f.store.GetProgress(context.Background(), f.project.ID)
	assert.False(t, progress.Characters)
}

func TestRunStage_AudioPartialFailureKeepsSlots(t *testing.T) {
	f := newPipelineFixture()
	seedScript(f, threeSceneScript())
	f.speech.fail = func(text string) error {
		if strings.Contains(text, "encodes direction") {
			return providers.NewAPIError("elevenlabs", 404, []byte(`{"detail":{"status":"voice_not_found"}}`))
		}
		return nil
	}

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageAudio, nil)
	require.NoError(t, err)

	var content models.AudioContent
	require.NoError(t, json.Unmarshal(result.Content, &content))
	assert.Equal(t, "voice-1", content.VoiceID)
	require.Len(t, content.Files, 3)
	assert.Contains(t, content.Files[0].AudioURL, "scene_01.mp3")
	assert.Equal(t, "ERROR: narration synthesis failed for scene 2", content.Files[1].AudioURL)
	assert.Contains(t, content.Files[2].AudioURL, "scene_03.mp3")
	assert.Equal(t, 10.0, content.Files[1].DurationSeconds)

	assert.ElementsMatch(t, []string{"scene_01.mp3", "scene_03.mp3"}, f.media.uploads)
}

func TestRunStage_AudioUploadFailureMarksSlot(t *testing.T) {
	f := newPipelineFixture()
	seedScript(f, threeSceneScript())
	f.media.failFor["scene_02.mp3"] = errors.New("bucket quota exceeded")

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageAudio, nil)
	require.NoError(t, err)

	var content models.AudioContent
	require.NoError(t, json.Unmarshal(result.Content, &content))
	require.Len(t, content.Files, 3)
	assert.Equal(t, "ERROR: narration synthesis failed for scene 2", content.Files[1].AudioURL)
	assert.Contains(t, content.Files[0].AudioURL, "scene_01.mp3")
	assert.Equal(t, 3, f.speech.calls)
}

func TestRunStage_AudioRejectsEmptyScript(t *testing.T) {
	f := newPipelineFixture()
	seedScript(f, &models.ScriptContent{Title: "Empty", Scenes: nil})

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageAudio, nil)
	require.Error(t, err)
	svcErr, ok := pipeline.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ErrCodeInvalidProjectData, svcErr.Code)
	assert.Equal(t, 0, f.speech.calls)
}

func TestRunStage_VideoAssemblesRenderJob(t *testing.T) {
	f := newPipelineFixture()
	script := threeSceneScript()
	override := &models.RunStageRequest{
		Script: script,
		Characters: &models.CharactersContent{
			Characters: []models.Character{{Name: "Milo", ImageURL: "https://cdn.example.com/p/character_01.png"}},
			SceneVisuals: []models.SceneVisual{
				{SceneNumber: 1, ImageURL: "https://cdn.example.com/p/scene_01.png"},
				{SceneNumber: 2, ImageURL: "https://cdn.example.com/p/scene_02.png"},
				{SceneNumber: 3, ImageURL: "https://cdn.example.com/p/scene_03.png"},
			},
		},
		Audio: &models.AudioContent{
			Files: []models.AudioFile{
				{SceneNumber: 1, AudioURL: "https://cdn.example.com/p/scene_01.mp3"},
				{SceneNumber: 2, AudioURL: "https://cdn.example.com/p/scene_02.mp3"},
				{SceneNumber: 3, AudioURL: "https://cdn.example.com/p/scene_03.mp3"},
			},
		},
	}

	result, err := f.svc.RunStage(context.Background(), f.project, models.StageVideo, override)
	require.NoError(t, err)

	job := f.video.lastJob
	assert.Equal(t, "The Waggle Dance", job.Title)
	assert.Equal(t, "1920x1080", job.Resolution)
	assert.Equal(t, 30, job.FPS)
	assert.Equal(t, "fade", job.Transition)
	require.Len(t, job.Scenes, 3)
	assert.Equal(t, "https://cdn.example.com/p/scene_02.png", job.Scenes[1].ImageURL)
	assert.Equal(t, "https://cdn.example.com/p/scene_02.mp3", job.Scenes[1].AudioURL)
	assert.Equal(t, 10.0, job.Scenes[1].DurationSeconds)

	var content models.VideoContent
	require.NoError(t, json.Unmarshal(result.Content, &content))
	assert.Equal(t, "https://cdn.example.com/final.mp4", content.VideoURL)
	assert.Equal(t, "1920x1080", content.Resolution)
	assert.Equal(t, 30, content.RenderSettings.FPS)
	assert.Equal(t, "fade", content.RenderSettings.Transition)

	assert.Equal(t, models.ProjectStatusCompleted, f.project.Status)
	assert.Equal(t, []string{"stage_started", "stage_completed", "project_completed"}, f.publisher.names())

	require.Len(t, f.store.usage, 1)
	assert.Equal(t, models.ServiceVideo, f.store.usage[0].ServiceType)
	assert.InDelta(t, 0.05, f.store.usage[0].Cost, 1e-9)
}

func TestRunStage_VideoFallsBackToPortraitForFailedVisuals(t *testing.T) {
	f := newPipelineFixture()
	script := threeSceneScript()
	override := &models.RunStageRequest{
		Script: script,
		Characters: &models.CharactersContent{
			Characters: []models.Character{{Name: "Milo", ImageURL: "https://cdn.example.com/p/character_01.png"}},
			SceneVisuals: []models.SceneVisual{
				{SceneNumber: 1, ImageURL: "ERROR: image generation failed for scene 1"},
				{SceneNumber: 2, ImageURL: "https://cdn.example.com/p/scene_02.png"},
				{SceneNumber: 3, ImageURL: "https://cdn.example.com/p/scene_03.png"},
			},
		},
		Audio: &models.AudioContent{
			Files: []models.AudioFile{
				{SceneNumber: 1, AudioURL: "ERROR: narration synthesis failed for scene 1"},
				{SceneNumber: 2, AudioURL: "https://cdn.example.com/p/scene_02.mp3"},
				{SceneNumber: 3, AudioURL: "https://cdn.example.com/p/scene_03.mp3"},
			},
		},
	}

	_, err := f.svc.RunStage(context.Background(), f.project, models.StageVideo, override)
	require.NoError(t, err)

	job := f.video.lastJob
	require.Len(t, job.Scenes, 3)
	assert.Equal(t, "https://cdn.example.com/p/character_01.png", job.Scenes[0].ImageURL)
	assert.Empty(t, job.Scenes[0].AudioURL)
	assert.Equal(t, "https://cdn.example.com/p/scene_02.png", job.Scenes[1].ImageURL)
}
