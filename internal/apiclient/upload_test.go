package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/windfall/uwu_classroom/internal/retry"
	"github.com/windfall/uwu_classroom/internal/session"
)

func TestUploadRecording(t *testing.T) {
	var (
		gotAuth     string
		gotFields   map[string]string
		gotFileName string
		gotAudio    string
		gotType     string
	)
	r := chi.NewRouter()
	r.Post(UploadRecordingPath, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		gotFields = map[string]string{
			"assignment_id":   r.FormValue("assignment_id"),
			"content_item_id": r.FormValue("content_item_id"),
		}
		f, hdr, err := r.FormFile(AudioFileField)
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer f.Close()
		raw, _ := io.ReadAll(f)
		gotAudio = string(raw)
		gotFileName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		writeJSON(w, http.StatusOK, `{"id":55,"audio_url":"https://cdn/rec.webm"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	store := session.NewMemoryStore()
	_ = store.Set(ctx, session.TokenKey, "tok")
	c := New(srv.URL, newTestSession(t, store))

	res, err := c.UploadRecording(ctx, RecordingUpload{
		Audio:         []byte("webm-bytes"),
		FileName:      "recording.webm",
		MIMEType:      "audio/webm",
		AssignmentID:  7,
		ContentItemID: 12,
	})
	if err != nil {
		t.Fatalf("UploadRecording() error = %v", err)
	}
	if res.ProgressID != 55 {
		t.Fatalf("expected progress id from `id`, got %d", res.ProgressID)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotFields["assignment_id"] != "7" || gotFields["content_item_id"] != "12" {
		t.Fatalf("unexpected fields %v", gotFields)
	}
	if gotAudio != "webm-bytes" || gotFileName != "recording.webm" || gotType != "audio/webm" {
		t.Fatalf("unexpected file part %q %q %q", gotAudio, gotFileName, gotType)
	}
}

func TestUploadAnalysisSendsJSONField(t *testing.T) {
	var (
		gotProgress string
		gotAnalysis map[string]float64
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = r.ParseMultipartForm(1 << 20)
		gotProgress = r.FormValue("progress_id")
		_ = json.Unmarshal([]byte(r.FormValue("analysis_json")), &gotAnalysis)
		writeJSON(w, http.StatusOK, `{"progress_id":3,"message":"saved"}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, nil).UploadAnalysis(context.Background(), AnalysisUpload{
		Audio:      []byte("a"),
		FileName:   "recording.audio",
		ProgressID: 3,
		Analysis:   map[string]float64{"accuracy_score": 91.5},
	})
	if err != nil {
		t.Fatalf("UploadAnalysis() error = %v", err)
	}
	if res.Message != "saved" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data; boundary=") {
		t.Fatalf("expected multipart content type, got %q", contentType)
	}
	if gotProgress != "3" || gotAnalysis["accuracy_score"] != 91.5 {
		t.Fatalf("unexpected form %q %v", gotProgress, gotAnalysis)
	}
}

func TestUploadErrorKeepsRawText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "storage backend unavailable")
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).UploadAnalysis(context.Background(), AnalysisUpload{ProgressID: 1})
	var upErr *UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UploadError, got %T", err)
	}
	if upErr.Status != http.StatusServiceUnavailable || upErr.Body != "storage backend unavailable" {
		t.Fatalf("unexpected upload error %+v", upErr)
	}
	if err.Error() != "storage backend unavailable" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !retry.Transient(err) {
		t.Fatalf("503 upload errors should be retryable")
	}
}

func TestUploadTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).UploadRecording(context.Background(), RecordingUpload{AssignmentID: 1, ContentItemID: 2})
	var upErr *UploadError
	if !errors.As(err, &upErr) || upErr.Status != 0 || upErr.Err == nil {
		t.Fatalf("expected status 0 upload error, got %v", err)
	}
	if !retry.Transient(err) {
		t.Fatalf("transport failures should be retryable")
	}
}
