package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/windfall/uwu_classroom/internal/errors"
)

const defaultSpeechContentType = "audio/wav; codecs=audio/pcm; samplerate=16000"

// AzureSpeechClient wraps the Azure AI Speech short-audio REST API with pronunciation assessment.
type AzureSpeechClient struct {
	apiKey   string
	region   string
	language string
	endpoint string
	client   *http.Client
}

// AzureSpeechOption configures an AzureSpeechClient.
type AzureSpeechOption func(*AzureSpeechClient)

// WithSpeechEndpoint overrides the regional endpoint, e.g. for a private link or a test server.
func WithSpeechEndpoint(endpoint string) AzureSpeechOption {
	return func(c *AzureSpeechClient) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithSpeechHTTPClient replaces the HTTP client.
func WithSpeechHTTPClient(hc *http.Client) AzureSpeechOption {
	return func(c *AzureSpeechClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewAzureSpeechClient creates a new Azure Speech client.
func NewAzureSpeechClient(apiKey, region, language string, opts ...AzureSpeechOption) *AzureSpeechClient {
	if language == "" {
		language = "en-US"
	}
	c := &AzureSpeechClient{
		apiKey:   apiKey,
		region:   region,
		language: language,
		endpoint: fmt.Sprintf("https://%s.stt.speech.microsoft.com", region),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assessment is the scored result of one recording.
type Assessment struct {
	Accuracy      float64
	Fluency       float64
	Completeness  float64
	Pronunciation float64
	DisplayText   string
	Words         []AssessedWord
	Latency       time.Duration
}

// AssessedWord is the per-word breakdown. ErrorType is one of None, Mispronunciation,
// Omission, Insertion, UnexpectedBreak, MissingBreak, Monotone.
type AssessedWord struct {
	Word          string  `json:"word"`
	AccuracyScore float64 `json:"accuracy_score"`
	ErrorType     string  `json:"error_type"`
}

type pronScores struct {
	AccuracyScore     *float64 `json:"AccuracyScore"`
	FluencyScore      *float64 `json:"FluencyScore"`
	CompletenessScore *float64 `json:"CompletenessScore"`
	PronScore         *float64 `json:"PronScore"`
	ErrorType         string   `json:"ErrorType"`
}

type speechWord struct {
	Word string `json:"Word"`
	pronScores
	PronunciationAssessment *pronScores `json:"PronunciationAssessment"`
}

type speechNBest struct {
	Display string `json:"Display"`
	pronScores
	PronunciationAssessment *pronScores  `json:"PronunciationAssessment"`
	Words                   []speechWord `json:"Words"`
}

type speechResponse struct {
	RecognitionStatus string        `json:"RecognitionStatus"`
	DisplayText       string        `json:"DisplayText"`
	NBest             []speechNBest `json:"NBest"`
}

// Assess scores a recording against referenceText with word granularity and miscue detection.
// It returns nil, nil when the service recognized nothing usable.
func (c *AzureSpeechClient) Assess(ctx context.Context, audio []byte, mimeType, referenceText string) (*Assessment, error) {
	if c.apiKey == "" || c.region == "" {
		return nil, errors.New(errors.ErrAIService, "Azure Speech credentials not configured")
	}

	u, err := url.Parse(c.endpoint + "/speech/recognition/conversation/cognitiveservices/v1")
	if err != nil {
		return nil, fmt.Errorf("invalid speech endpoint: %w", err)
	}
	q := u.Query()
	q.Set("language", c.language)
	q.Set("format", "detailed")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	params, err := json.Marshal(map[string]any{
		"ReferenceText": referenceText,
		"GradingSystem": "HundredMark",
		"Granularity":   "Word",
		"Dimension":     "Comprehensive",
		"EnableMiscue":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	if mimeType == "" || strings.HasPrefix(mimeType, "audio/wav") || strings.HasPrefix(mimeType, "audio/x-wav") {
		mimeType = defaultSpeechContentType
	}
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(params))
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "application/json;text/xml")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrAIService, "failed to reach Azure Speech", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrAIService, fmt.Sprintf("azure speech api error %d: %s", resp.StatusCode, string(body)))
	}

	var result speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	latency := time.Since(start)

	if result.RecognitionStatus != "Success" || len(result.NBest) == 0 {
		return nil, nil
	}

	best := result.NBest[0]
	scores := best.pronScores
	if best.PronunciationAssessment != nil {
		scores = *best.PronunciationAssessment
	}

	words := make([]AssessedWord, 0, len(best.Words))
	for _, w := range best.Words {
		ws := w.pronScores
		if w.PronunciationAssessment != nil {
			ws = *w.PronunciationAssessment
		}
		errorType := ws.ErrorType
		if errorType == "" {
			errorType = "None"
		}
		words = append(words, AssessedWord{
			Word:          w.Word,
			AccuracyScore: deref(ws.AccuracyScore),
			ErrorType:     errorType,
		})
	}

	display := result.DisplayText
	if display == "" {
		display = best.Display
	}

	return &Assessment{
		Accuracy:      deref(scores.AccuracyScore),
		Fluency:       deref(scores.FluencyScore),
		Completeness:  deref(scores.CompletenessScore),
		Pronunciation: deref(scores.PronScore),
		DisplayText:   display,
		Words:         DeduplicateWords(words),
		Latency:       latency,
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// DeduplicateWords collapses words that Azure reports more than once. When one of the
// duplicates is an Insertion, only that entry is kept and its AccuracyScore becomes the
// average of the group. Groups without an Insertion are left alone.
func DeduplicateWords(words []AssessedWord) []AssessedWord {
	groups := make(map[string][]int)
	for i, w := range words {
		groups[w.Word] = append(groups[w.Word], i)
	}

	drop := make(map[int]bool)
	for _, indices := range groups {
		if len(indices) <= 1 {
			continue
		}

		insertion := -1
		var total float64
		for _, idx := range indices {
			if words[idx].ErrorType == "Insertion" {
				insertion = idx
			}
			total += words[idx].AccuracyScore
		}
		if insertion == -1 {
			continue
		}

		words[insertion].AccuracyScore = total / float64(len(indices))
		for _, idx := range indices {
			if idx != insertion {
				drop[idx] = true
			}
		}
	}

	if len(drop) == 0 {
		return words
	}
	out := make([]AssessedWord, 0, len(words)-len(drop))
	for i, w := range words {
		if !drop[i] {
			out = append(out, w)
		}
	}
	return out
}
