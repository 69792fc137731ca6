package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// Multipart endpoints and the form field carrying the audio on both.
const (
	UploadRecordingPath = "/api/students/upload-recording"
	UploadAnalysisPath  = "/api/speech/upload-analysis"
	AudioFileField      = "audio_file"
)

// UploadError is returned by the multipart uploads. Body holds the raw response text.
type UploadError struct {
	Status int
	Body   string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("upload failed with status %d", e.Status)
	}
	return e.Body
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status, 0 for transport failures.
func (e *UploadError) StatusCode() int {
	return e.Status
}

// RecordingUpload creates a progress record for one content item from a recording.
type RecordingUpload struct {
	Audio         []byte
	FileName      string
	MIMEType      string
	AssignmentID  int
	ContentItemID int
}

// RecordingUploadResult is the backend's reply to a recording upload.
type RecordingUploadResult struct {
	ProgressID int    `json:"progress_id"`
	AudioURL   string `json:"audio_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

// UnmarshalJSON accepts the progress id as `progress_id` or `id`.
func (r *RecordingUploadResult) UnmarshalJSON(data []byte) error {
	var aux struct {
		ProgressID *int   `json:"progress_id"`
		ID         *int   `json:"id"`
		AudioURL   string `json:"audio_url"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ProgressID != nil:
		r.ProgressID = *aux.ProgressID
	case aux.ID != nil:
		r.ProgressID = *aux.ID
	}
	r.AudioURL = aux.AudioURL
	r.Message = aux.Message
	return nil
}

// AnalysisUpload attaches a scored analysis and its audio to an existing progress record.
type AnalysisUpload struct {
	Audio      []byte
	FileName   string
	MIMEType   string
	ProgressID int
	// Analysis is JSON-encoded into the analysis_json field.
	Analysis any
}

// AnalysisUploadResult is the backend's reply to an analysis upload.
type AnalysisUploadResult struct {
	ProgressID int    `json:"progress_id,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

// UploadRecording posts a recording and returns the created progress record.
func (c *Client) UploadRecording(ctx context.Context, in RecordingUpload) (*RecordingUploadResult, error) {
	fields := map[string]string{
		"assignment_id":   strconv.Itoa(in.AssignmentID),
		"content_item_id": strconv.Itoa(in.ContentItemID),
	}
	var out RecordingUploadResult
	if err := c.upload(ctx, UploadRecordingPath, in.Audio, in.FileName, in.MIMEType, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadAnalysis posts an analysis for an existing progress record.
func (c *Client) UploadAnalysis(ctx context.Context, in AnalysisUpload) (*AnalysisUploadResult, error) {
	analysis, err := json.Marshal(in.Analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	fields := map[string]string{
		"progress_id":   strconv.Itoa(in.ProgressID),
		"analysis_json": string(analysis),
	}
	var out AnalysisUploadResult
	if err := c.upload(ctx, UploadAnalysisPath, in.Audio, in.FileName, in.MIMEType, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// upload sends a multipart form. It does not go through Request: the content type comes from
// the multipart writer and errors keep the raw response text.
func (c *Client) upload(ctx context.Context, endpoint string, audio []byte, fileName, mimeType string, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, AudioFileField, escapeQuotes(fileName)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create audio part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("failed to write audio part: %w", err)
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UploadError{Status: 0, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UploadError{Status: 0, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UploadError{Status: resp.StatusCode, Body: string(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
