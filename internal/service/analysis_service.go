package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/windfall/uwu_classroom/internal/apiclient"
	"github.com/windfall/uwu_classroom/internal/blob"
	"github.com/windfall/uwu_classroom/internal/client"
	"github.com/windfall/uwu_classroom/internal/errors"
	"github.com/windfall/uwu_classroom/internal/notify"
	"github.com/windfall/uwu_classroom/internal/retry"
)

// Status messages shown while an analysis runs.
const (
	MessageAnalyzing = "Analyzing pronunciation..."
	MessageUploading = "Saving your recording..."

	failureTitle    = "Analysis failed"
	genericFailure  = "Something went wrong while analyzing your recording. Please try again."
	lowAccuracyMark = 60.0
)

// Analysis outcomes reported to the OutcomeRecorder.
const (
	OutcomePreview   = "preview"
	OutcomePersisted = "persisted"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Scorer scores a recording against the text the speaker was reading. A nil assessment
// means there was no usable result.
type Scorer interface {
	Assess(ctx context.Context, audio []byte, mimeType, referenceText string) (*client.Assessment, error)
}

// Uploader persists recordings and analyses to the backend.
type Uploader interface {
	UploadRecording(ctx context.Context, in apiclient.RecordingUpload) (*apiclient.RecordingUploadResult, error)
	UploadAnalysis(ctx context.Context, in apiclient.AnalysisUpload) (*apiclient.AnalysisUploadResult, error)
}

// OutcomeRecorder counts analysis outcomes.
type OutcomeRecorder interface {
	RecordAnalysis(outcome string)
}

// AnalysisRequest describes one recording to analyze. Zero ids mean "not supplied".
type AnalysisRequest struct {
	BlobURL       string
	ReferenceText string
	AssignmentID  int
	ProgressID    int
	ContentItemID int
	PreviewMode   bool
}

// AnalysisResult is the normalized score payload. It is also the analysis_json sent to the backend.
type AnalysisResult struct {
	AccuracyScore      float64               `json:"accuracy_score"`
	FluencyScore       float64               `json:"fluency_score"`
	CompletenessScore  float64               `json:"completeness_score"`
	PronunciationScore float64               `json:"pronunciation_score"`
	ProsodyScore       float64               `json:"prosody_score"`
	RecognizedText     string                `json:"recognized_text"`
	ReferenceText      string                `json:"reference_text"`
	Words              []client.AssessedWord `json:"words"`
	Summary            string                `json:"summary"`
	LatencyMS          int64                 `json:"latency_ms"`
	AnalyzedAt         time.Time             `json:"analyzed_at"`
	ProgressID         int                   `json:"progress_id,omitempty"`
}

// AnalysisState is what a UI shows while an analysis runs.
type AnalysisState struct {
	IsAnalyzing bool
	Message     string
}

// AnalysisService sequences a recording through scoring and persistence.
//
// Overlapping calls are allowed. Only the most recent call drives State, Cancel aborts every
// call in flight, and concurrent calls for the same assignment and content item share one
// progress record.
type AnalysisService struct {
	scorer   Scorer
	uploader Uploader
	fetcher  blob.Fetcher
	notifier notify.Notifier
	executor *retry.Executor
	recorder OutcomeRecorder
	log      zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       AnalysisState
	generation  uint64
	inflight    map[uint64]context.CancelFunc
	progressIDs map[string]int
	creating    singleflight.Group
}

// NewAnalysisService creates a new analysis service. A nil notifier drops toasts, a nil executor
// uses the default retry settings and a nil recorder skips metrics.
func NewAnalysisService(
	scorer Scorer,
	uploader Uploader,
	fetcher blob.Fetcher,
	notifier notify.Notifier,
	executor *retry.Executor,
	recorder OutcomeRecorder,
	log zerolog.Logger,
) *AnalysisService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if executor == nil {
		executor = retry.NewExecutor(retry.DefaultConfig(), retry.WithLogger(log))
	}
	return &AnalysisService{
		scorer:      scorer,
		uploader:    uploader,
		fetcher:     fetcher,
		notifier:    notifier,
		executor:    executor,
		recorder:    recorder,
		log:         log,
		now:         time.Now,
		inflight:    make(map[uint64]context.CancelFunc),
		progressIDs: make(map[string]int),
	}
}

// State returns the current analyzing flag and status message.
func (s *AnalysisService) State() AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel aborts every analysis in flight. Cancelled analyses return nil without a toast.
func (s *AnalysisService) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.inflight {
		cancel()
	}
}

// AnalyzeAndUpload scores the recording and, unless in preview mode, persists it. It never
// returns an error: failures are logged, shown as a toast and reported as a nil result.
func (s *AnalysisService) AnalyzeAndUpload(ctx context.Context, req AnalysisRequest) *AnalysisResult {
	ctx, cancel := context.WithCancel(ctx)
	gen := s.begin(cancel)
	defer s.end(gen, cancel)

	log := s.log.With().
		Uint64("analysis", gen).
		Int("assignment_id", req.AssignmentID).
		Int("content_item_id", req.ContentItemID).
		Int("progress_id", req.ProgressID).
		Bool("preview", req.PreviewMode).
		Logger()
	log.Info().Msg("Analysis started")

	result, err := s.run(ctx, gen, req)
	if err != nil {
		s.fail(ctx, log, err)
		return nil
	}

	outcome := OutcomePersisted
	if req.PreviewMode {
		outcome = OutcomePreview
	}
	s.record(outcome)
	log.Info().
		Float64("pronunciation_score", result.PronunciationScore).
		Int("result_progress_id", result.ProgressID).
		Int64("latency_ms", result.LatencyMS).
		Msg("Analysis finished")
	return result
}

func (s *AnalysisService) run(ctx context.Context, gen uint64, req AnalysisRequest) (*AnalysisResult, error) {
	if s.fetcher == nil {
		return nil, errors.Configuration("no recording source configured")
	}
	if s.scorer == nil {
		return nil, errors.Configuration("pronunciation scoring is not configured")
	}

	audio, err := s.fetcher.Fetch(ctx, req.BlobURL)
	if err != nil {
		return nil, err
	}

	assessment, err := s.scorer.Assess(ctx, audio.Data, audio.MIMEType, req.ReferenceText)
	if err != nil {
		return nil, err
	}
	if assessment == nil {
		return nil, errors.AnalysisFailed("analysis failed")
	}
	result := s.normalize(assessment, req.ReferenceText)

	if req.PreviewMode {
		return result, nil
	}
	if s.uploader == nil {
		return nil, errors.Configuration("no backend configured to save the analysis")
	}

	s.setMessage(gen, MessageUploading)
	fileName := "recording" + extensionFor(audio.MIMEType)

	progressID, err := s.ensureProgress(ctx, req, audio, fileName)
	if err != nil {
		return nil, err
	}

	_, err = retry.Run(ctx, s.executor, "upload-analysis", func(ctx context.Context) (*apiclient.AnalysisUploadResult, error) {
		return s.uploader.UploadAnalysis(ctx, apiclient.AnalysisUpload{
			Audio:      audio.Data,
			FileName:   fileName,
			MIMEType:   audio.MIMEType,
			ProgressID: progressID,
			Analysis:   result,
		})
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrUploadFailed, "failed to save the analysis", err)
	}

	result.ProgressID = progressID
	return result, nil
}

// ensureProgress returns the supplied progress id or creates a progress record. Creation for
// one (assignment, content item) pair happens at most once per service.
func (s *AnalysisService) ensureProgress(ctx context.Context, req AnalysisRequest, audio *blob.Blob, fileName string) (int, error) {
	if req.ProgressID != 0 {
		return req.ProgressID, nil
	}
	if req.ContentItemID == 0 {
		return 0, errors.Validation("cannot save the recording: no progress record and no content item")
	}

	key := fmt.Sprintf("%d:%d", req.AssignmentID, req.ContentItemID)
	if id, ok := s.knownProgress(key); ok {
		return id, nil
	}

	// The upload runs detached so a caller leaving early does not fail the others sharing it.
	ch := s.creating.DoChan(key, func() (any, error) {
		if id, ok := s.knownProgress(key); ok {
			return id, nil
		}
		res, err := retry.Run(context.WithoutCancel(ctx), s.executor, "upload-recording", func(ctx context.Context) (*apiclient.RecordingUploadResult, error) {
			return s.uploader.UploadRecording(ctx, apiclient.RecordingUpload{
				Audio:         audio.Data,
				FileName:      fileName,
				MIMEType:      audio.MIMEType,
				AssignmentID:  req.AssignmentID,
				ContentItemID: req.ContentItemID,
			})
		})
		if err != nil {
			return 0, errors.Wrap(errors.ErrUploadFailed, "failed to upload the recording", err)
		}
		if res == nil || res.ProgressID == 0 {
			return 0, errors.New(errors.ErrUploadFailed, "the server did not return a progress record")
		}

		s.mu.Lock()
		s.progressIDs[key] = res.ProgressID
		s.mu.Unlock()
		return res.ProgressID, nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return 0, r.Err
		}
		return r.Val.(int), nil
	}
}

func (s *AnalysisService) knownProgress(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.progressIDs[key]
	return id, ok
}

func (s *AnalysisService) normalize(a *client.Assessment, referenceText string) *AnalysisResult {
	words := make([]client.AssessedWord, len(a.Words))
	copy(words, a.Words)
	return &AnalysisResult{
		AccuracyScore:      a.Accuracy,
		FluencyScore:       a.Fluency,
		CompletenessScore:  a.Completeness,
		PronunciationScore: a.Pronunciation,
		ProsodyScore:       0,
		RecognizedText:     "",
		ReferenceText:      referenceText,
		Words:              words,
		Summary:            summarize(a.Pronunciation, words),
		LatencyMS:          a.Latency.Milliseconds(),
		AnalyzedAt:         s.now().UTC(),
	}
}

// summarize builds a one-line feedback sentence from the overall score and the words to practice.
func summarize(score float64, words []client.AssessedWord) string {
	var head string
	switch {
	case score >= 80:
		head = "Great pronunciation!"
	case score >= lowAccuracyMark:
		head = "Good effort."
	default:
		head = "Keep practicing."
	}

	seen := make(map[string]bool)
	var practice []string
	for _, w := range words {
		mispronounced := w.ErrorType == "Mispronunciation" ||
			(w.ErrorType != "Omission" && w.ErrorType != "Insertion" && w.AccuracyScore < lowAccuracyMark)
		word := strings.ToLower(w.Word)
		if mispronounced && word != "" && !seen[word] {
			seen[word] = true
			practice = append(practice, word)
		}
	}
	if len(practice) == 0 {
		return head
	}
	sort.Strings(practice)
	return fmt.Sprintf("%s Practice: %s.", head, strings.Join(practice, ", "))
}

// extensionFor maps a recording MIME type to the upload file extension.
func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "mp4"):
		return ".mp4"
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	default:
		return ".audio"
	}
}

func (s *AnalysisService) begin(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	gen := s.generation
	s.inflight[gen] = cancel
	s.state = AnalysisState{IsAnalyzing: true, Message: MessageAnalyzing}
	return gen
}

func (s *AnalysisService) setMessage(gen uint64, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.state.Message = msg
	}
}

func (s *AnalysisService) end(gen uint64, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, gen)
	if gen == s.generation {
		s.state = AnalysisState{}
	}
}

func (s *AnalysisService) fail(ctx context.Context, log zerolog.Logger, err error) {
	if ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
		s.record(OutcomeCancelled)
		log.Info().Err(err).Msg("Analysis cancelled")
		return
	}

	s.record(OutcomeFailed)
	log.Error().Err(err).Msg("Analysis failed")

	toast := notify.Toast{
		Title:       failureTitle,
		Description: userMessage(err),
		Variant:     notify.VariantDestructive,
		CreatedAt:   s.now().UTC(),
	}
	if nerr := s.notifier.Notify(context.WithoutCancel(ctx), toast); nerr != nil {
		log.Warn().Err(nerr).Msg("Failed to deliver toast")
	}
}

func (s *AnalysisService) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordAnalysis(outcome)
	}
}

// userMessage prefers the backend's own detail, then our message, then a generic fallback.
func userMessage(err error) string {
	var apiErr *apiclient.APIError
	if stderrors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	var upErr *apiclient.UploadError
	if stderrors.As(err, &upErr) {
		if msg := upErr.Error(); msg != "" {
			return msg
		}
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return genericFailure
}
