package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/windfall/uwu_classroom/internal/errors"
)

func TestAssessParsesNestedScores(t *testing.T) {
	var params map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "key" {
			t.Errorf("missing subscription key")
		}
		if r.URL.Query().Get("language") != "th-TH" || r.URL.Query().Get("format") != "detailed" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if r.Header.Get("Content-Type") != "audio/ogg" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		raw, _ := base64.StdEncoding.DecodeString(r.Header.Get("Pronunciation-Assessment"))
		_ = json.Unmarshal(raw, &params)
		_, _ = io.WriteString(w, `{
			"RecognitionStatus": "Success",
			"DisplayText": "Hello world.",
			"NBest": [{
				"Display": "Hello world.",
				"PronunciationAssessment": {"AccuracyScore": 90, "FluencyScore": 80, "CompletenessScore": 100, "PronScore": 85},
				"Words": [
					{"Word": "hello", "PronunciationAssessment": {"AccuracyScore": 95, "ErrorType": "None"}},
					{"Word": "world", "PronunciationAssessment": {"AccuracyScore": 40, "ErrorType": "Mispronunciation"}}
				]
			}]
		}`)
	}))
	defer srv.Close()

	c := NewAzureSpeechClient("key", "southeastasia", "th-TH", WithSpeechEndpoint(srv.URL))
	got, err := c.Assess(context.Background(), []byte("ogg"), "audio/ogg", "Hello world")
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if got.Accuracy != 90 || got.Fluency != 80 || got.Completeness != 100 || got.Pronunciation != 85 {
		t.Fatalf("unexpected scores %+v", got)
	}
	if len(got.Words) != 2 || got.Words[1].ErrorType != "Mispronunciation" {
		t.Fatalf("unexpected words %+v", got.Words)
	}
	if params["ReferenceText"] != "Hello world" || params["EnableMiscue"] != true || params["Granularity"] != "Word" {
		t.Fatalf("unexpected assessment params %v", params)
	}
}

func TestAssessParsesFlatScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{
			"RecognitionStatus": "Success",
			"NBest": [{
				"Display": "cat",
				"AccuracyScore": 70, "FluencyScore": 60, "CompletenessScore": 50, "PronScore": 65,
				"Words": [{"Word": "cat", "AccuracyScore": 70}]
			}]
		}`)
	}))
	defer srv.Close()

	got, err := NewAzureSpeechClient("key", "eastus", "", WithSpeechEndpoint(srv.URL)).
		Assess(context.Background(), []byte("wav"), "", "cat")
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if got.Pronunciation != 65 || got.DisplayText != "cat" || got.Words[0].ErrorType != "None" {
		t.Fatalf("unexpected assessment %+v", got)
	}
}

func TestAssessNoUsableResult(t *testing.T) {
	for _, body := range []string{
		`{"RecognitionStatus": "NoMatch"}`,
		`{"RecognitionStatus": "Success", "NBest": []}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		got, err := NewAzureSpeechClient("key", "eastus", "", WithSpeechEndpoint(srv.URL)).
			Assess(context.Background(), nil, "", "x")
		srv.Close()
		if err != nil || got != nil {
			t.Fatalf("body %s: expected nil, nil; got %+v, %v", body, got, err)
		}
	}
}

func TestAssessErrors(t *testing.T) {
	if _, err := NewAzureSpeechClient("", "", "").Assess(context.Background(), nil, "", "x"); !errors.HasCode(err, errors.ErrAIService) {
		t.Fatalf("expected AI service error for missing credentials, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	_, err := NewAzureSpeechClient("key", "eastus", "", WithSpeechEndpoint(srv.URL)).
		Assess(context.Background(), nil, "", "x")
	if !errors.HasCode(err, errors.ErrAIService) {
		t.Fatalf("expected AI service error, got %v", err)
	}
}

func TestDeduplicateWords(t *testing.T) {
	words := []AssessedWord{
		{Word: "the", AccuracyScore: 100, ErrorType: "None"},
		{Word: "cat", AccuracyScore: 80, ErrorType: "Mispronunciation"},
		{Word: "cat", AccuracyScore: 40, ErrorType: "Insertion"},
		{Word: "sat", AccuracyScore: 90, ErrorType: "None"},
		{Word: "sat", AccuracyScore: 70, ErrorType: "None"},
	}
	got := DeduplicateWords(words)

	if len(got) != 4 {
		t.Fatalf("expected 4 words, got %+v", got)
	}
	if got[1].Word != "cat" || got[1].ErrorType != "Insertion" || got[1].AccuracyScore != 60 {
		t.Fatalf("expected averaged insertion, got %+v", got[1])
	}
	if got[2].Word != "sat" || got[3].Word != "sat" {
		t.Fatalf("duplicates without an insertion must be kept, got %+v", got)
	}
}
