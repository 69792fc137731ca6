package service

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/windfall/uwu_classroom/internal/apiclient"
	"github.com/windfall/uwu_classroom/internal/blob"
	"github.com/windfall/uwu_classroom/internal/client"
	"github.com/windfall/uwu_classroom/internal/logger"
	"github.com/windfall/uwu_classroom/internal/notify"
	"github.com/windfall/uwu_classroom/internal/retry"
)

type fakeFetcher struct {
	mimeType string
}

func (f fakeFetcher) Fetch(_ context.Context, ref string) (*blob.Blob, error) {
	return &blob.Blob{Data: []byte("audio:" + ref), MIMEType: f.mimeType}, nil
}

type scorerFunc func(ctx context.Context, referenceText string) (*client.Assessment, error)

func (f scorerFunc) Assess(ctx context.Context, _ []byte, _ string, referenceText string) (*client.Assessment, error) {
	return f(ctx, referenceText)
}

func okScorer() scorerFunc {
	return func(context.Context, string) (*client.Assessment, error) {
		return sampleAssessment(), nil
	}
}

func sampleAssessment() *client.Assessment {
	return &client.Assessment{
		Accuracy:      88,
		Fluency:       75,
		Completeness:  100,
		Pronunciation: 82,
		DisplayText:   "The cat sat.",
		Words: []client.AssessedWord{
			{Word: "The", AccuracyScore: 99, ErrorType: "None"},
			{Word: "cat", AccuracyScore: 41, ErrorType: "Mispronunciation"},
			{Word: "sat", AccuracyScore: 95, ErrorType: "None"},
		},
		Latency: 420 * time.Millisecond,
	}
}

type fakeUploader struct {
	mu               sync.Mutex
	recordingCalls   int
	analysisCalls    int
	lastRecording    apiclient.RecordingUpload
	lastAnalysis     apiclient.AnalysisUpload
	progressID       int
	recordingErrs    []error
	analysisErrs     []error
	recordingStarted chan struct{}
	recordingRelease chan struct{}
}

func (f *fakeUploader) UploadRecording(_ context.Context, in apiclient.RecordingUpload) (*apiclient.RecordingUploadResult, error) {
	f.mu.Lock()
	f.recordingCalls++
	f.lastRecording = in
	var err error
	if len(f.recordingErrs) > 0 {
		err, f.recordingErrs = f.recordingErrs[0], f.recordingErrs[1:]
	}
	started, release := f.recordingStarted, f.recordingRelease
	f.recordingStarted = nil
	f.mu.Unlock()

	if started != nil {
		close(started)
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &apiclient.RecordingUploadResult{ProgressID: f.progressID}, nil
}

func (f *fakeUploader) UploadAnalysis(_ context.Context, in apiclient.AnalysisUpload) (*apiclient.AnalysisUploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysisCalls++
	f.lastAnalysis = in
	if len(f.analysisErrs) > 0 {
		err := f.analysisErrs[0]
		f.analysisErrs = f.analysisErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &apiclient.AnalysisUploadResult{ProgressID: in.ProgressID}, nil
}

func (f *fakeUploader) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordingCalls, f.analysisCalls
}

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (f *fakeNotifier) Notify(_ context.Context, t notify.Toast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, t)
	return nil
}

func (f *fakeNotifier) all() []notify.Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Toast(nil), f.toasts...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (f *fakeRecorder) RecordAnalysis(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string]int{}
	}
	f.outcomes[outcome]++
}

func (f *fakeRecorder) count(outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[outcome]
}

type harness struct {
	svc      *AnalysisService
	uploader *fakeUploader
	notifier *fakeNotifier
	recorder *fakeRecorder
}

func newHarness(scorer Scorer, mimeType string) *harness {
	h := &harness{
		uploader: &fakeUploader{progressID: 501},
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
	}
	executor := retry.NewExecutor(retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2,
	})
	h.svc = NewAnalysisService(scorer, h.uploader, fakeFetcher{mimeType: mimeType}, h.notifier, executor, h.recorder, logger.NewNop())
	return h
}

func TestPreviewModeNeverUploads(t *testing.T) {
	h := newHarness(okScorer(), "audio/webm")

	for _, progressID := range []int{0, 42} {
		res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{
			BlobURL:       "blob:1",
			ReferenceText: "The cat sat",
			AssignmentID:  3,
			ProgressID:    progressID,
			ContentItemID: 9,
			PreviewMode:   true,
		})
		if res == nil {
			t.Fatalf("expected a preview result")
		}
		if res.ProsodyScore != 0 || res.RecognizedText != "" || res.ProgressID != 0 {
			t.Fatalf("unexpected preview result %+v", res)
		}
		if res.PronunciationScore != 82 || res.AccuracyScore != 88 || res.LatencyMS != 420 {
			t.Fatalf("scores not mapped: %+v", res)
		}
	}

	if rec, an := h.uploader.counts(); rec != 0 || an != 0 {
		t.Fatalf("preview mode uploaded %d recordings and %d analyses", rec, an)
	}
	if h.recorder.count(OutcomePreview) != 2 {
		t.Fatalf("expected 2 preview outcomes, got %v", h.recorder.outcomes)
	}
}

func TestMissingProgressAndContentItemFails(t *testing.T) {
	h := newHarness(okScorer(), "audio/webm")

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", ReferenceText: "x", AssignmentID: 3})
	if res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}
	if rec, an := h.uploader.counts(); rec != 0 || an != 0 {
		t.Fatalf("no upload should be attempted, got %d/%d", rec, an)
	}
	toasts := h.notifier.all()
	if len(toasts) != 1 || toasts[0].Title != "Analysis failed" || toasts[0].Variant != notify.VariantDestructive {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
	if h.recorder.count(OutcomeFailed) != 1 {
		t.Fatalf("expected a failed outcome")
	}
}

func TestScorerRejectionResetsState(t *testing.T) {
	h := newHarness(scorerFunc(func(context.Context, string) (*client.Assessment, error) {
		return nil, stderrors.New("azure speech api error 401: invalid key")
	}), "audio/webm")

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", ProgressID: 5})
	if res != nil {
		t.Fatalf("expected nil result")
	}
	if st := h.svc.State(); st.IsAnalyzing || st.Message != "" {
		t.Fatalf("expected idle state, got %+v", st)
	}
	toasts := h.notifier.all()
	if len(toasts) != 1 || !strings.Contains(toasts[0].Description, "invalid key") {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestNoUsableResultFails(t *testing.T) {
	h := newHarness(scorerFunc(func(context.Context, string) (*client.Assessment, error) {
		return nil, nil
	}), "audio/webm")

	if res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", PreviewMode: true}); res != nil {
		t.Fatalf("expected nil result")
	}
	toasts := h.notifier.all()
	if len(toasts) != 1 || toasts[0].Description != "analysis failed" {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestPersistCreatesProgressThenAttachesAnalysis(t *testing.T) {
	h := newHarness(okScorer(), "audio/mp4;codecs=mp4a")

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{
		BlobURL:       "blob:1",
		ReferenceText: "The cat sat",
		AssignmentID:  3,
		ContentItemID: 9,
	})
	if res == nil {
		t.Fatalf("expected a result")
	}
	if res.ProgressID != 501 {
		t.Fatalf("expected progress id 501, got %d", res.ProgressID)
	}
	if rec, an := h.uploader.counts(); rec != 1 || an != 1 {
		t.Fatalf("expected one upload of each, got %d/%d", rec, an)
	}
	if h.uploader.lastRecording.FileName != "recording.mp4" || h.uploader.lastRecording.ContentItemID != 9 {
		t.Fatalf("unexpected recording upload %+v", h.uploader.lastRecording)
	}
	if h.uploader.lastAnalysis.ProgressID != 501 {
		t.Fatalf("analysis attached to %d", h.uploader.lastAnalysis.ProgressID)
	}
	if _, ok := h.uploader.lastAnalysis.Analysis.(*AnalysisResult); !ok {
		t.Fatalf("expected the normalized result as analysis payload, got %T", h.uploader.lastAnalysis.Analysis)
	}
	if h.recorder.count(OutcomePersisted) != 1 {
		t.Fatalf("expected a persisted outcome")
	}
}

func TestExistingProgressSkipsCreation(t *testing.T) {
	h := newHarness(okScorer(), "audio/ogg")

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", ProgressID: 77})
	if res == nil || res.ProgressID != 77 {
		t.Fatalf("unexpected result %+v", res)
	}
	if rec, an := h.uploader.counts(); rec != 0 || an != 1 {
		t.Fatalf("expected only the analysis upload, got %d/%d", rec, an)
	}
	if h.uploader.lastAnalysis.FileName != "recording.audio" {
		t.Fatalf("unexpected file name %q", h.uploader.lastAnalysis.FileName)
	}
}

func TestTransientUploadFailureIsRetried(t *testing.T) {
	h := newHarness(okScorer(), "audio/webm")
	h.uploader.analysisErrs = []error{&apiclient.UploadError{Status: http.StatusServiceUnavailable, Body: "busy"}}

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", ProgressID: 5})
	if res == nil {
		t.Fatalf("expected success after retry")
	}
	if _, an := h.uploader.counts(); an != 2 {
		t.Fatalf("expected 2 analysis attempts, got %d", an)
	}
}

func TestPermanentUploadFailureIsNotRetried(t *testing.T) {
	h := newHarness(okScorer(), "audio/webm")
	h.uploader.analysisErrs = []error{&apiclient.UploadError{Status: http.StatusUnprocessableEntity, Body: "progress record is closed"}}

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", ProgressID: 5})
	if res != nil {
		t.Fatalf("expected nil result")
	}
	if _, an := h.uploader.counts(); an != 1 {
		t.Fatalf("expected a single attempt, got %d", an)
	}
	toasts := h.notifier.all()
	if len(toasts) != 1 || toasts[0].Description != "progress record is closed" {
		t.Fatalf("expected the raw upload text in the toast, got %+v", toasts)
	}
}

func TestMissingProgressIDFromServerFails(t *testing.T) {
	h := newHarness(okScorer(), "audio/webm")
	h.uploader.progressID = 0

	res := h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "blob:1", AssignmentID: 1, ContentItemID: 2})
	if res != nil {
		t.Fatalf("expected nil result")
	}
	if _, an := h.uploader.counts(); an != 0 {
		t.Fatalf("analysis must not be uploaded without a progress record")
	}
}

func TestConcurrentAnalysesShareOneProgressRecord(t *testing.T) {
	h := newHarness(okScorer(), "audio/webm")
	started, release := make(chan struct{}), make(chan struct{})
	h.uploader.recordingStarted = started
	h.uploader.recordingRelease = release

	req := AnalysisRequest{BlobURL: "blob:1", AssignmentID: 3, ContentItemID: 9}
	results := make([]*AnalysisResult, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = h.svc.AnalyzeAndUpload(context.Background(), req)
	}()
	<-started
	go func() {
		defer wg.Done()
		results[1] = h.svc.AnalyzeAndUpload(context.Background(), req)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if rec, an := h.uploader.counts(); rec != 1 || an != 2 {
		t.Fatalf("expected 1 progress record and 2 analyses, got %d/%d", rec, an)
	}
	for i, res := range results {
		if res == nil || res.ProgressID != 501 {
			t.Fatalf("result %d = %+v", i, res)
		}
	}
}

func TestStaleCompletionKeepsNewerState(t *testing.T) {
	gates := map[string]chan struct{}{"first": make(chan struct{}), "second": make(chan struct{})}
	entered := make(chan string, 2)
	h := newHarness(scorerFunc(func(_ context.Context, ref string) (*client.Assessment, error) {
		entered <- ref
		<-gates[ref]
		return sampleAssessment(), nil
	}), "audio/webm")

	firstDone := make(chan *AnalysisResult)
	go func() {
		firstDone <- h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "a", ReferenceText: "first", PreviewMode: true})
	}()
	<-entered
	secondDone := make(chan *AnalysisResult)
	go func() {
		secondDone <- h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "b", ReferenceText: "second", PreviewMode: true})
	}()
	<-entered

	close(gates["first"])
	if res := <-firstDone; res == nil {
		t.Fatalf("first analysis should still return its result")
	}
	if st := h.svc.State(); !st.IsAnalyzing || st.Message != MessageAnalyzing {
		t.Fatalf("stale completion cleared newer state: %+v", st)
	}

	close(gates["second"])
	if res := <-secondDone; res == nil {
		t.Fatalf("second analysis should return a result")
	}
	if st := h.svc.State(); st.IsAnalyzing {
		t.Fatalf("expected idle state, got %+v", st)
	}
}

func TestCancelAbortsWithoutToast(t *testing.T) {
	var entered atomic.Bool
	ready := make(chan struct{})
	h := newHarness(scorerFunc(func(ctx context.Context, _ string) (*client.Assessment, error) {
		if entered.CompareAndSwap(false, true) {
			close(ready)
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}), "audio/webm")

	done := make(chan *AnalysisResult)
	go func() {
		done <- h.svc.AnalyzeAndUpload(context.Background(), AnalysisRequest{BlobURL: "a", ProgressID: 1})
	}()
	<-ready
	h.svc.Cancel()

	if res := <-done; res != nil {
		t.Fatalf("expected nil result after cancel")
	}
	if toasts := h.notifier.all(); len(toasts) != 0 {
		t.Fatalf("cancellation must not toast, got %+v", toasts)
	}
	if h.recorder.count(OutcomeCancelled) != 1 {
		t.Fatalf("expected a cancelled outcome")
	}
	if st := h.svc.State(); st.IsAnalyzing {
		t.Fatalf("expected idle state after cancel")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"audio/mp4":              ".mp4",
		"video/mp4":              ".mp4",
		"audio/webm;codecs=opus": ".webm",
		"audio/ogg":              ".audio",
		"":                       ".audio",
	}
	for in, want := range tests {
		if got := extensionFor(in); got != want {
			t.Fatalf("extensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	words := []client.AssessedWord{
		{Word: "Cat", AccuracyScore: 40, ErrorType: "Mispronunciation"},
		{Word: "bird", AccuracyScore: 0, ErrorType: "Omission"},
		{Word: "apple", AccuracyScore: 55, ErrorType: "None"},
		{Word: "cat", AccuracyScore: 45, ErrorType: "Mispronunciation"},
	}
	if got := summarize(65, words); got != "Good effort. Practice: apple, cat." {
		t.Fatalf("summarize() = %q", got)
	}
	if got := summarize(95, nil); got != "Great pronunciation!" {
		t.Fatalf("summarize() = %q", got)
	}
}
