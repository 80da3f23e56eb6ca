package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"animatevdo-backend/internal/config"
	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/pipeline"
	"animatevdo-backend/internal/providers"
	"animatevdo-backend/internal/providers/render"
	"animatevdo-backend/internal/supabase"
)

const (
	renderResolution   = "1920x1080"
	renderFPS          = 30
	renderTransition   = "fade"
	renderPollInterval = 5 * time.Second

	// Concurrent provider calls per fan-out stage.
	fanOutLimit = 4

	defaultStyleGuide = "Colorful 2D animation style with soft lighting and clean outlines"
)

// Default narration voice settings passed to every synthesis call.
var defaultVoiceSettings = models.VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75}

// PipelineService runs pipeline stages: it loads prior stage outputs, calls
// the stage's provider through the retry executor, persists the result,
// advances project state, and queues background recovery for retryable
// failures.
type PipelineService struct {
	store     Store
	media     MediaStore
	locker    StageLocker
	scheduler RecoveryScheduler
	realtime  EventPublisher
	usage     *UsageService
	providers Providers
	cfg       *config.Config
	log       *logger.Logger
}

func NewPipelineService(
	store Store,
	media MediaStore,
	locker StageLocker,
	scheduler RecoveryScheduler,
	realtime EventPublisher,
	usage *UsageService,
	providers Providers,
	cfg *config.Config,
	log *logger.Logger,
) *PipelineService {
	return &PipelineService{
		store:     store,
		media:     media,
		locker:    locker,
		scheduler: scheduler,
		realtime:  realtime,
		usage:     usage,
		providers: providers,
		cfg:       cfg,
		log:       log.With("component", "pipeline"),
	}
}

// RunStage is the pipeline entry point for API-driven runs. Synchronous: it
// returns only after the stage succeeded or finally failed, including all
// in-process retries. A duplicate invocation while the stage is running is
// rejected with STAGE_ALREADY_RUNNING.
func (s *PipelineService) RunStage(ctx context.Context, project *models.Project, stage models.Stage, override *models.RunStageRequest) (*models.StageResult, error) {
	return s.runStage(ctx, project, stage, override, true)
}

// runStage does the work for RunStage. The recovery drain calls it with
// queueRecovery false: its entry already tracks the retry budget, and a
// second entry per failed re-run would multiply the queue.
func (s *PipelineService) runStage(ctx context.Context, project *models.Project, stage models.Stage, override *models.RunStageRequest, queueRecovery bool) (*models.StageResult, error) {
	lockTTL := s.cfg.StageTimeout + time.Minute
	acquired, err := s.locker.AcquireStage(ctx, project.ID, stage, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire stage lock: %w", err)
	}
	if !acquired {
		return nil, &pipeline.ServiceError{
			Code:        pipeline.ErrCodeStageAlreadyRunning,
			Message:     fmt.Sprintf("stage %s is already running for project %s", stage, project.ID),
			UserMessage: "This stage is already running. Please wait for it to finish.",
			Retryable:   false,
		}
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locker.ReleaseStage(releaseCtx, project.ID, stage); err != nil {
			s.log.Warn("failed to release stage lock",
				"project_id", project.ID.String(), "stage", stage.String(), "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	log := s.log.With("project_id", project.ID.String(), "stage", stage.String())
	log.Info("stage started", "topic", project.Topic)

	if err := s.store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusInProgress); err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}
	s.publish(project.ID, "stage_started", supabase.StageStartedPayload(project.ID, stage))

	content, svcErr := s.executeStage(ctx, project, stage, override)
	if svcErr != nil {
		return s.finishFailed(ctx, project, stage, svcErr, queueRecovery, log)
	}
	return s.finishCompleted(ctx, project, stage, content, log)
}

func (s *PipelineService) executeStage(ctx context.Context, project *models.Project, stage models.Stage, override *models.RunStageRequest) (interface{}, *pipeline.ServiceError) {
	if override == nil {
		override = &models.RunStageRequest{}
	}
	switch stage {
	case models.StageResearch:
		return s.runResearch(ctx, project)
	case models.StageScript:
		return s.runScript(ctx, project, override)
	case models.StageCharacters:
		return s.runCharacters(ctx, project, override)
	case models.StageAudio:
		return s.runAudio(ctx, project, override)
	case models.StageVideo:
		return s.runVideo(ctx, project, override)
	default:
		return nil, &pipeline.ServiceError{
			Code:        pipeline.ErrCodeInvalidProjectData,
			Message:     fmt.Sprintf("unknown stage %q", stage),
			UserMessage: "Unknown pipeline stage.",
			Retryable:   false,
		}
	}
}

// finishCompleted persists the completed result, flips the progress flag,
// and advances the project's current-stage pointer.
func (s *PipelineService) finishCompleted(ctx context.Context, project *models.Project, stage models.Stage, content interface{}, log *logger.Logger) (*models.StageResult, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stage content: %w", err)
	}

	result, err := s.store.CreateStageResult(ctx, &models.StageResult{
		ProjectID: project.ID,
		Stage:     stage,
		Status:    models.StageStatusCompleted,
		Content:   payload,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkStageComplete(ctx, project.ID, stage); err != nil {
		return nil, fmt.Errorf("failed to mark stage complete: %w", err)
	}

	next, hasNext := stage.Next()
	if hasNext {
		if err := s.store.AdvanceProjectStage(ctx, project.ID, next, models.ProjectStatusInProgress); err != nil {
			return nil, fmt.Errorf("failed to advance project stage: %w", err)
		}
		s.publish(project.ID, "stage_completed", supabase.StageCompletedPayload(project.ID, stage, next.String()))
		log.Info("stage completed", "next_stage", next.String())
		return result, nil
	}

	// Final stage: the pipeline is done.
	if err := s.store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}
	s.publish(project.ID, "stage_completed", supabase.StageCompletedPayload(project.ID, stage, ""))
	if video, ok := content.(*models.VideoContent); ok {
		s.publish(project.ID, "project_completed", supabase.ProjectCompletedPayload(project.ID, video.VideoURL))
	}
	log.Info("project completed")
	return result, nil
}

// finishFailed persists the failed result and, for retryable failures,
// queues a background recovery attempt. The progress flag stays false and
// the current-stage pointer stays put.
func (s *PipelineService) finishFailed(ctx context.Context, project *models.Project, stage models.Stage, svcErr *pipeline.ServiceError, queueRecovery bool, log *logger.Logger) (*models.StageResult, error) {
	// The stage context may have expired (that can be the failure itself),
	// so the bookkeeping writes run on a detached context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	log.Error("stage failed",
		"code", string(svcErr.Code), "retryable", svcErr.Retryable, "error", svcErr.Message)

	result, err := s.store.CreateStageResult(ctx, &models.StageResult{
		ProjectID:    project.ID,
		Stage:        stage,
		Status:       models.StageStatusFailed,
		ErrorCode:    sql.NullString{String: string(svcErr.Code), Valid: true},
		ErrorMessage: sql.NullString{String: svcErr.Message, Valid: true},
	})
	if err != nil {
		return nil, err
	}

	retryQueued := false
	if svcErr.Retryable && queueRecovery {
		entry, err := s.store.CreateRecoveryEntry(ctx, &models.RecoveryQueueEntry{
			ProjectID:        project.ID,
			Stage:            stage,
			RetryCount:       0,
			MaxRetries:       s.cfg.RecoveryMaxRetries,
			LastErrorCode:    sql.NullString{String: string(svcErr.Code), Valid: true},
			LastErrorMessage: sql.NullString{String: svcErr.Message, Valid: true},
			NextRetryAt:      time.Now().Add(s.cfg.RecoveryRetryDelay),
			Status:           models.RecoveryStatusPending,
		})
		if err != nil {
			log.Error("failed to create recovery entry", "error", err)
		} else {
			retryQueued = true
			if err := s.scheduler.EnqueueRecovery(ctx, entry.ID, s.cfg.RecoveryRetryDelay); err != nil {
				// The startup sweep re-enqueues pending entries, so a lost
				// task delays the retry rather than dropping it.
				log.Warn("failed to enqueue recovery task", "entry_id", entry.ID.String(), "error", err)
			}
		}
	}

	if err := s.store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusFailed); err != nil {
		log.Error("failed to update project status", "error", err)
	}
	s.publish(project.ID, "stage_failed", supabase.StageFailedPayload(project.ID, stage, svcErr.UserMessage, retryQueued))

	return result, svcErr
}

// invokeProvider runs one provider call through the retry executor,
// recording a usage row for every attempt.
func (s *PipelineService) invokeProvider(ctx context.Context, project *models.Project, stage models.Stage, serviceType, model string, call func() (*providers.Usage, error)) *pipeline.ServiceError {
	opts := pipeline.DefaultRetryOptions()
	opts.MaxRetries = s.cfg.StageMaxRetries

	onRetry := func(attempt int, delay time.Duration) {
		s.log.Warn("retrying provider call",
			"project_id", project.ID.String(), "stage", stage.String(),
			"attempt", attempt, "delay", delay.String())
	}

	err := pipeline.RunWithRetry(ctx, stage.ServiceName(), opts, onRetry, func() error {
		start := time.Now()
		usage, callErr := call()
		s.recordUsage(project, serviceType, model, usage, time.Since(start), callErr)
		return callErr
	})
	if err == nil {
		return nil
	}
	if svcErr, ok := pipeline.AsServiceError(err); ok {
		return svcErr
	}
	return pipeline.Classify(err, stage.ServiceName())
}

func (s *PipelineService) recordUsage(project *models.Project, serviceType, model string, usage *providers.Usage, elapsed time.Duration, callErr error) {
	ev := UsageEvent{
		UserID:      project.UserID,
		ProjectID:   project.ID,
		ServiceType: serviceType,
		Model:       model,
		APICalls:    1,
		Duration:    elapsed,
		Err:         callErr,
	}
	if usage != nil {
		if usage.Model != "" {
			ev.Model = usage.Model
		}
		ev.InputTokens = usage.InputTokens
		ev.OutputTokens = usage.OutputTokens
	}
	s.usage.Record(ev)
}

func (s *PipelineService) publish(projectID uuid.UUID, event string, payload map[string]interface{}) {
	if err := s.realtime.PublishProjectEvent(projectID, event, payload); err != nil {
		s.log.Warn("failed to publish event",
			"project_id", projectID.String(), "event", event, "error", err)
	}
}

// loadStageContent unmarshals the most recent completed output of a prior
// stage into dest. A missing output is the MISSING_DEPENDENCIES precondition
// failure; an unreadable one is DATA_CORRUPTION.
func (s *PipelineService) loadStageContent(ctx context.Context, projectID uuid.UUID, stage models.Stage, dest interface{}) *pipeline.ServiceError {
	result, err := s.store.GetLatestCompletedResult(ctx, projectID, stage)
	if err != nil {
		return &pipeline.ServiceError{
			Code:        pipeline.ErrCodeUnknown,
			Message:     fmt.Sprintf("failed to load %s output: %v", stage, err),
			UserMessage: "Could not load earlier pipeline output. Please try again.",
			Retryable:   true,
		}
	}
	if result == nil {
		return missingDependency(stage)
	}
	if err := json.Unmarshal(result.Content, dest); err != nil {
		return &pipeline.ServiceError{
			Code:            pipeline.ErrCodeDataCorruption,
			Message:         fmt.Sprintf("stored %s output is not valid JSON: %v", stage, err),
			UserMessage:     fmt.Sprintf("The stored %s output could not be read.", stage),
			Retryable:       false,
			SuggestedAction: fmt.Sprintf("Re-run the %s stage to regenerate its output.", stage),
		}
	}
	return nil
}

func missingDependency(stage models.Stage) *pipeline.ServiceError {
	return &pipeline.ServiceError{
		Code:            pipeline.ErrCodeMissingDependencies,
		Message:         fmt.Sprintf("no completed %s output found", stage),
		UserMessage:     fmt.Sprintf("The %s stage must complete before this one can run.", stage),
		Retryable:       false,
		SuggestedAction: fmt.Sprintf("Run the %s stage first.", stage),
	}
}

func uploadFailed(filename string, err error) *pipeline.ServiceError {
	return &pipeline.ServiceError{
		Code:        pipeline.ErrCodeStorageUploadFailed,
		Message:     fmt.Sprintf("failed to upload %s: %v", filename, err),
		UserMessage: "A generated file could not be stored. Please try again.",
		Retryable:   true,
	}
}

// Stage runners

func (s *PipelineService) runResearch(ctx context.Context, project *models.Project) (interface{}, *pipeline.ServiceError) {
	var content *models.ResearchContent
	svcErr := s.invokeProvider(ctx, project, models.StageResearch, models.ServiceSearch, modelTavilySearch, func() (*providers.Usage, error) {
		result, err := s.providers.Research.Research(ctx, project.Topic)
		if err != nil {
			return nil, err
		}
		content = result
		return nil, nil
	})
	if svcErr != nil {
		return nil, svcErr
	}
	return content, nil
}

func (s *PipelineService) runScript(ctx context.Context, project *models.Project, override *models.RunStageRequest) (interface{}, *pipeline.ServiceError) {
	research := override.Research
	if research == nil {
		research = &models.ResearchContent{}
		if svcErr := s.loadStageContent(ctx, project.ID, models.StageResearch, research); svcErr != nil {
			return nil, svcErr
		}
	}

	var raw string
	svcErr := s.invokeProvider(ctx, project, models.StageScript, models.ServiceLLM, s.cfg.OpenAIScriptModel, func() (*providers.Usage, error) {
		out, usage, err := s.providers.Script.ChatCompletion(ctx, scriptSystemPrompt, scriptUserPrompt(project.Topic, research))
		if err != nil {
			return usage, err
		}
		raw = out
		return usage, nil
	})
	if svcErr != nil {
		return nil, svcErr
	}

	script, err := pipeline.ParseScript(raw)
	if err != nil {
		// Deliberate fallback: when nothing parses, one generic scene keeps
		// the pipeline moving instead of failing the stage.
		s.log.Warn("script output unparseable, using default scene",
			"project_id", project.ID.String(), "error", err)
		script = pipeline.DefaultScript(project.Topic)
	}
	return script, nil
}

// characterPlan is the JSON shape the character design prompt asks for.
type characterPlan struct {
	Characters []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"characters"`
	StyleGuide string `json:"style_guide"`
}

func (s *PipelineService) runCharacters(ctx context.Context, project *models.Project, override *models.RunStageRequest) (interface{}, *pipeline.ServiceError) {
	script := override.Script
	if script == nil {
		script = &models.ScriptContent{}
		if svcErr := s.loadStageContent(ctx, project.ID, models.StageScript, script); svcErr != nil {
			return nil, svcErr
		}
	}

	var plan characterPlan
	svcErr := s.invokeProvider(ctx, project, models.StageCharacters, models.ServiceLLM, s.cfg.OpenAIScriptModel, func() (*providers.Usage, error) {
		out, usage, err := s.providers.Script.ChatCompletion(ctx, characterSystemPrompt, characterUserPrompt(project.Topic, script))
		if err != nil {
			return usage, err
		}
		if err := json.Unmarshal([]byte(out), &plan); err != nil {
			return usage, fmt.Errorf("character plan is not valid JSON: %w", err)
		}
		return usage, nil
	})
	if svcErr != nil {
		return nil, svcErr
	}
	if plan.StyleGuide == "" {
		plan.StyleGuide = defaultStyleGuide
	}

	content := &models.CharactersContent{
		Characters:   make([]models.Character, len(plan.Characters)),
		SceneVisuals: make([]models.SceneVisual, len(script.Scenes)),
		StyleGuide:   plan.StyleGuide,
	}

	// One image call per character and per scene, run concurrently. Each
	// item writes only its own slot so output order matches input order. A
	// failed item becomes an error-marked entry; siblings keep going.
	nChars := len(plan.Characters)
	itemErrs := make([]*pipeline.ServiceError, nChars+len(script.Scenes))

	var g errgroup.Group
	g.SetLimit(fanOutLimit)

	for i, ch := range plan.Characters {
		content.Characters[i] = models.Character{Name: ch.Name, Description: ch.Description}
		g.Go(func() error {
			prompt := fmt.Sprintf("%s. Character portrait of %s: %s", plan.StyleGuide, ch.Name, ch.Description)
			url, genErr := s.generateStageImage(ctx, project, prompt, fmt.Sprintf("character_%02d.png", i+1))
			if genErr != nil {
				itemErrs[i] = genErr
				content.Characters[i].ImageURL = fmt.Sprintf("%s image generation failed for %s", models.ErrorURLPrefix, ch.Name)
				return nil
			}
			content.Characters[i].ImageURL = url
			return nil
		})
	}

	for i, scene := range script.Scenes {
		content.SceneVisuals[i] = models.SceneVisual{SceneNumber: scene.SceneNumber}
		g.Go(func() error {
			prompt := fmt.Sprintf("%s. Scene illustration: %s", plan.StyleGuide, scene.VisualDescription)
			url, genErr := s.generateStageImage(ctx, project, prompt, fmt.Sprintf("scene_%02d.png", scene.SceneNumber))
			if genErr != nil {
				itemErrs[nChars+i] = genErr
				content.SceneVisuals[i].ImageURL = fmt.Sprintf("%s image generation failed for scene %d", models.ErrorURLPrefix, scene.SceneNumber)
				return nil
			}
			content.SceneVisuals[i].ImageURL = url
			return nil
		})
	}

	_ = g.Wait()

	if svcErr := s.checkFanOut(project, models.StageCharacters, itemErrs); svcErr != nil {
		return nil, svcErr
	}
	return content, nil
}

// generateStageImage runs one retry-wrapped image generation and stores the
// result, returning its public URL.
func (s *PipelineService) generateStageImage(ctx context.Context, project *models.Project, prompt, filename string) (string, *pipeline.ServiceError) {
	var data []byte
	svcErr := s.invokeProvider(ctx, project, models.StageCharacters, models.ServiceImage, s.cfg.OpenAIImageModel, func() (*providers.Usage, error) {
		img, usage, err := s.providers.Image.GenerateImage(ctx, prompt)
		if err != nil {
			return usage, err
		}
		data = img
		return usage, nil
	})
	if svcErr != nil {
		return "", svcErr
	}

	url, err := s.media.UploadMedia(project.UserID, project.ID, filename, "image/png", data)
	if err != nil {
		s.log.Error("failed to upload generated image",
			"project_id", project.ID.String(), "filename", filename, "error", err)
		return "", uploadFailed(filename, err)
	}
	return url, nil
}

func (s *PipelineService) runAudio(ctx context.Context, project *models.Project, override *models.RunStageRequest) (interface{}, *pipeline.ServiceError) {
	script := override.Script
	if script == nil {
		script = &models.ScriptContent{}
		if svcErr := s.loadStageContent(ctx, project.ID, models.StageScript, script); svcErr != nil {
			return nil, svcErr
		}
	}
	if len(script.Scenes) == 0 {
		return nil, &pipeline.ServiceError{
			Code:            pipeline.ErrCodeInvalidProjectData,
			Message:         "script has no scenes to narrate",
			UserMessage:     "The script has no scenes to narrate.",
			Retryable:       false,
			SuggestedAction: "Re-run the script stage to regenerate the scenes.",
		}
	}

	voiceID := s.cfg.ElevenLabsVoiceID
	content := &models.AudioContent{
		Files:         make([]models.AudioFile, len(script.Scenes)),
		VoiceID:       voiceID,
		VoiceSettings: defaultVoiceSettings,
	}
	itemErrs := make([]*pipeline.ServiceError, len(script.Scenes))

	var g errgroup.Group
	g.SetLimit(fanOutLimit)

	for i, scene := range script.Scenes {
		content.Files[i] = models.AudioFile{SceneNumber: scene.SceneNumber, DurationSeconds: scene.DurationSeconds}
		g.Go(func() error {
			var data []byte
			svcErr := s.invokeProvider(ctx, project, models.StageAudio, models.ServiceTTS, modelElevenMultilingual, func() (*providers.Usage, error) {
				audio, usage, err := s.providers.Speech.Synthesize(ctx, scene.Narration, voiceID, defaultVoiceSettings)
				if err != nil {
					return usage, err
				}
				data = audio
				return usage, nil
			})
			if svcErr == nil {
				filename := fmt.Sprintf("scene_%02d.mp3", scene.SceneNumber)
				url, upErr := s.media.UploadMedia(project.UserID, project.ID, filename, "audio/mpeg", data)
				if upErr != nil {
					s.log.Error("failed to upload narration audio",
						"project_id", project.ID.String(), "filename", filename, "error", upErr)
					svcErr = uploadFailed(filename, upErr)
				} else {
					content.Files[i].AudioURL = url
				}
			}
			if svcErr != nil {
				itemErrs[i] = svcErr
				content.Files[i].AudioURL = fmt.Sprintf("%s narration synthesis failed for scene %d", models.ErrorURLPrefix, scene.SceneNumber)
			}
			return nil
		})
	}

	_ = g.Wait()

	if svcErr := s.checkFanOut(project, models.StageAudio, itemErrs); svcErr != nil {
		return nil, svcErr
	}
	return content, nil
}

// checkFanOut applies the partial-success policy: the stage completes as
// long as at least one item succeeded. Only when every item failed does the
// stage fail, with the first item's classified error.
func (s *PipelineService) checkFanOut(project *models.Project, stage models.Stage, itemErrs []*pipeline.ServiceError) *pipeline.ServiceError {
	var firstErr *pipeline.ServiceError
	failed := 0
	for _, e := range itemErrs {
		if e != nil {
			failed++
			if firstErr == nil {
				firstErr = e
			}
		}
	}
	if failed > 0 && failed == len(itemErrs) {
		return firstErr
	}
	if failed > 0 {
		s.log.Warn("stage completed with failed items",
			"project_id", project.ID.String(), "stage", stage.String(),
			"failed", failed, "total", len(itemErrs))
	}
	return nil
}

func (s *PipelineService) runVideo(ctx context.Context, project *models.Project, override *models.RunStageRequest) (interface{}, *pipeline.ServiceError) {
	script := override.Script
	if script == nil {
		script = &models.ScriptContent{}
		if svcErr := s.loadStageContent(ctx, project.ID, models.StageScript, script); svcErr != nil {
			return nil, svcErr
		}
	}
	characters := override.Characters
	if characters == nil {
		characters = &models.CharactersContent{}
		if svcErr := s.loadStageContent(ctx, project.ID, models.StageCharacters, characters); svcErr != nil {
			return nil, svcErr
		}
	}
	audio := override.Audio
	if audio == nil {
		audio = &models.AudioContent{}
		if svcErr := s.loadStageContent(ctx, project.ID, models.StageAudio, audio); svcErr != nil {
			return nil, svcErr
		}
	}

	job := buildRenderJob(script, characters, audio)

	var status *render.JobStatus
	svcErr := s.invokeProvider(ctx, project, models.StageVideo, models.ServiceVideo, modelRender, func() (*providers.Usage, error) {
		jobID, err := s.providers.Video.SubmitJob(ctx, job)
		if err != nil {
			return nil, err
		}
		st, err := s.providers.Video.WaitForJob(ctx, jobID, renderPollInterval)
		if err != nil {
			return nil, err
		}
		status = st
		return nil, nil
	})
	if svcErr != nil {
		return nil, svcErr
	}

	return &models.VideoContent{
		VideoURL:        status.VideoURL,
		DurationSeconds: status.DurationSeconds,
		Resolution:      renderResolution,
		RenderSettings:  models.RenderSettings{FPS: renderFPS, Transition: renderTransition},
	}, nil
}

func buildRenderJob(script *models.ScriptContent, characters *models.CharactersContent, audio *models.AudioContent) render.JobRequest {
	job := render.JobRequest{
		Title:      script.Title,
		Scenes:     make([]render.JobScene, 0, len(script.Scenes)),
		Resolution: renderResolution,
		FPS:        renderFPS,
		Transition: renderTransition,
	}
	for _, scene := range script.Scenes {
		job.Scenes = append(job.Scenes, render.JobScene{
			SceneNumber:     scene.SceneNumber,
			ImageURL:        sceneImageURL(characters, scene.SceneNumber),
			AudioURL:        sceneAudioURL(audio, scene.SceneNumber),
			DurationSeconds: scene.DurationSeconds,
		})
	}
	return job
}

// sceneImageURL picks the visual for a scene, falling back to the first
// usable character portrait when the scene's own image failed.
func sceneImageURL(characters *models.CharactersContent, sceneNumber int) string {
	for _, v := range characters.SceneVisuals {
		if v.SceneNumber == sceneNumber && v.ImageURL != "" && !models.IsErrorURL(v.ImageURL) {
			return v.ImageURL
		}
	}
	for _, ch := range characters.Characters {
		if ch.ImageURL != "" && !models.IsErrorURL(ch.ImageURL) {
			return ch.ImageURL
		}
	}
	return ""
}

// sceneAudioURL returns the scene's narration URL, or empty for scenes whose
// synthesis failed; the renderer leaves those scenes silent.
func sceneAudioURL(audio *models.AudioContent, sceneNumber int) string {
	for _, f := range audio.Files {
		if f.SceneNumber == sceneNumber && f.AudioURL != "" && !models.IsErrorURL(f.AudioURL) {
			return f.AudioURL
		}
	}
	return ""
}
