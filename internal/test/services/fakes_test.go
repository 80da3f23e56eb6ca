package services_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/providers"
	"animatevdo-backend/internal/providers/render"
)

// fakeStore is an in-memory services.Store. All methods are safe for the
// concurrent calls the fan-out stages make.
type fakeStore struct {
	mu sync.Mutex

	projects map[uuid.UUID]*models.Project
	progress map[uuid.UUID]*models.ProgressRecord
	results  []*models.StageResult
	recovery map[uuid.UUID]*models.RecoveryQueueEntry
	usage    []*models.UsageRecord
	subs     map[uuid.UUID]*models.Subscription

	countProjects   int
	usageErr        error
	getLatestErr    error
	createRecovErr  error
	subscriptionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: make(map[uuid.UUID]*models.Project),
		progress: make(map[uuid.UUID]*models.ProgressRecord),
		recovery: make(map[uuid.UUID]*models.RecoveryQueueEntry),
		subs:     make(map[uuid.UUID]*models.Subscription),
	}
}

func (f *fakeStore) addProject(p *models.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
	f.progress[p.ID] = &models.ProgressRecord{ProjectID: p.ID}
}

func (f *fakeStore) addCompletedResult(projectID uuid.UUID, stage models.Stage, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, &models.StageResult{
		ID:        uuid.New(),
		ProjectID: projectID,
		Stage:     stage,
		Status:    models.StageStatusCompleted,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

func (f *fakeStore) resultsFor(projectID uuid.UUID, stage models.Stage) []*models.StageResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.StageResult
	for _, r := range f.results {
		if r.ProjectID == projectID && r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeStore) recoveryEntries() []*models.RecoveryQueueEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.RecoveryQueueEntry, 0, len(f.recovery))
	for _, e := range f.recovery {
		out = append(out, e)
	}
	return out
}

func (f *fakeStore) GetProjectByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects[projectID], nil
}

func (f *fakeStore) CountProjects(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countProjects, nil
}

func (f *fakeStore) UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[projectID]; ok {
		p.Status = status
	}
	return nil
}

func (f *fakeStore) AdvanceProjectStage(ctx context.Context, projectID uuid.UUID, stage models.Stage, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[projectID]; ok {
		p.CurrentStage = stage
		p.Status = status
	}
	return nil
}

func (f *fakeStore) GetProgress(ctx context.Context, projectID uuid.UUID) (*models.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress[projectID], nil
}

func (f *fakeStore) MarkStageComplete(ctx context.Context, projectID uuid.UUID, stage models.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[projectID]
	if !ok {
		return fmt.Errorf("no progress row for %s", projectID)
	}
	switch stage {
	case models.StageResearch:
		p.Research = true
	case models.StageScript:
		p.Script = true
	case models.StageCharacters:
		p.Characters = true
	case models.StageAudio:
		p.Audio = true
	case models.StageVideo:
		p.Video = true
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) CreateStageResult(ctx context.Context, result *models.StageResult) (*models.StageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *result
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	f.results = append(f.results, &stored)
	return &stored, nil
}

func (f *fakeStore) GetLatestCompletedResult(ctx context.Context, projectID uuid.UUID, stage models.Stage) (*models.StageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getLatestErr != nil {
		return nil, f.getLatestErr
	}
	for i := len(f.results) - 1; i >= 0; i-- {
		r := f.results[i]
		if r.ProjectID == projectID && r.Stage == stage && r.Status == models.StageStatusCompleted {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateRecoveryEntry(ctx context.Context, entry *models.RecoveryQueueEntry) (*models.RecoveryQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRecovErr != nil {
		return nil, f.createRecovErr
	}
	stored := *entry
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	f.recovery[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeStore) GetRecoveryEntry(ctx context.Context, entryID uuid.UUID) (*models.RecoveryQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovery[entryID], nil
}

func (f *fakeStore) ClaimRecoveryEntry(ctx context.Context, entryID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.recovery[entryID]
	if !ok || e.Status != models.RecoveryStatusPending {
		return false, nil
	}
	e.Status = models.RecoveryStatusProcessing
	return true, nil
}

func (f *fakeStore) RescheduleRecoveryEntry(ctx context.Context, entryID uuid.UUID, errCode, errMsg string, nextRetryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.recovery[entryID]
	if !ok {
		return fmt.Errorf("no recovery entry %s", entryID)
	}
	e.RetryCount++
	e.Status = models.RecoveryStatusPending
	e.LastErrorCode.String = errCode
	e.LastErrorCode.Valid = true
	e.LastErrorMessage.String = errMsg
	e.LastErrorMessage.Valid = true
	e.NextRetryAt = nextRetryAt
	return nil
}

func (f *fakeStore) FinishRecoveryEntry(ctx context.Context, entryID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.recovery[entryID]
	if !ok {
		return fmt.Errorf("no recovery entry %s", entryID)
	}
	e.Status = status
	return nil
}

func (f *fakeStore) ListPendingRecoveryEntries(ctx context.Context) ([]models.RecoveryQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RecoveryQueueEntry
	for _, e := range f.recovery {
		if e.Status == models.RecoveryStatusPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usageErr != nil {
		return f.usageErr
	}
	f.usage = append(f.usage, record)
	return nil
}

func (f *fakeStore) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscriptionErr != nil {
		return nil, f.subscriptionErr
	}
	return f.subs[userID], nil
}

// fakeMedia records uploads and hands back deterministic URLs.
type fakeMedia struct {
	mu      sync.Mutex
	uploads []string
	failFor map[string]error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{failFor: make(map[string]error)}
}

func (f *fakeMedia) UploadMedia(userID, projectID uuid.UUID, filename, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[filename]; ok {
		return "", err
	}
	f.uploads = append(f.uploads, filename)
	return fmt.Sprintf("https://cdn.example.com/%s/%s", projectID, filename), nil
}

type fakeLocker struct {
	mu       sync.Mutex
	busy     bool
	acquired int
	released int
}

func (f *fakeLocker) AcquireStage(ctx context.Context, projectID uuid.UUID, stage models.Stage, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false, nil
	}
	f.acquired++
	return true, nil
}

func (f *fakeLocker) ReleaseStage(ctx context.Context, projectID uuid.UUID, stage models.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

type scheduledTask struct {
	entryID uuid.UUID
	delay   time.Duration
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []scheduledTask
	err   error
}

func (f *fakeScheduler) EnqueueRecovery(ctx context.Context, entryID uuid.UUID, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, scheduledTask{entryID: entryID, delay: delay})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// Scripted providers: errs[i] is returned on call i; calls past the end of
// errs succeed.

type scriptedResearch struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	content *models.ResearchContent
}

func (s *scriptedResearch) Research(ctx context.Context, topic string) (*models.ResearchContent, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if s.content != nil {
		return s.content, nil
	}
	return &models.ResearchContent{
		Summary:   "A short summary about " + topic,
		KeyPoints: []string{"first point", "second point"},
		Sources:   []string{"https://example.com/source"},
	}, nil
}

type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	outputs []string
}

func (s *scriptedLLM) ChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, *providers.Usage, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()
	usage := &providers.Usage{Model: "gpt-4o-mini", InputTokens: 200, OutputTokens: 100}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", usage, s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], usage, nil
	}
	if len(s.outputs) > 0 {
		return s.outputs[len(s.outputs)-1], usage, nil
	}
	return "", usage, nil
}

type scriptedImage struct {
	mu    sync.Mutex
	calls int
	fail  func(prompt string) error
}

func (s *scriptedImage) GenerateImage(ctx context.Context, prompt string) ([]byte, *providers.Usage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(prompt); err != nil {
			return nil, nil, err
		}
	}
	return []byte("png-bytes"), nil, nil
}

type scriptedSpeech struct {
	mu    sync.Mutex
	calls int
	fail  func(text string) error
}

func (s *scriptedSpeech) Synthesize(ctx context.Context, text, voiceID string, settings models.VoiceSettings) ([]byte, *providers.Usage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(text); err != nil {
			return nil, nil, err
		}
	}
	return []byte("mp3-bytes"), &providers.Usage{InputTokens: len(text)}, nil
}

type scriptedVideo struct {
	mu        sync.Mutex
	submitErr error
	waitErr   error
	lastJob   render.JobRequest
	status    *render.JobStatus
}

func (s *scriptedVideo) SubmitJob(ctx context.Context, job render.JobRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJob = job
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return "job-1", nil
}

func (s *scriptedVideo) WaitForJob(ctx context.Context, jobID string, pollInterval time.Duration) (*render.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitErr != nil {
		return nil, s.waitErr
	}
	if s.status != nil {
		return s.status, nil
	}
	return &render.JobStatus{
		JobID:           jobID,
		Status:          "completed",
		VideoURL:        "https://cdn.example.com/final.mp4",
		DurationSeconds: 58,
	}, nil
}
