package common

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const sarvamTTSURL = "https://api.sarvam.ai/text-to-speech"

// SarvamClient synthesizes narration audio for a single text chunk. The
// narration stage does its own chunking; a chunk here is always small enough
// for one API call.
type SarvamClient struct {
	log       *Logger
	apiKey    string
	client    *http.Client
	endpoint  string
	retryWait time.Duration
}

func NewSarvamClient(log *Logger, apiKey string) *SarvamClient {
	return &SarvamClient{
		log:       log.With("service", "SarvamTTS"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 60 * time.Second},
		endpoint:  sarvamTTSURL,
		retryWait: 2 * time.Second,
	}
}

// Synthesize returns WAV audio bytes for the given text.
func (s *SarvamClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = cleanTextForTTS(text)
	if text == "" {
		return nil, fmt.Errorf("empty text after cleaning")
	}

	payload := map[string]interface{}{
		"inputs":               []string{text},
		"target_language_code": "en-IN",
		"speaker":              "vidya",
		"speech_sample_rate":   22050,
		"enable_preprocessing": true,
		"model":                "bulbul:v2",
	}
	jsonPayload, _ := json.Marshal(payload)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryWait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonPayload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-subscription-key", s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.log.Warn("tts request failed", "attempt", attempt, "error", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// Capture the body before closing so the final error keeps the
			// API's own message.
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
			s.log.Warn("tts request failed", "attempt", attempt, "error", lastErr)
			continue
		}

		audio, err := decodeAudioResponse(resp.Body)
		resp.Body.Close()
		return audio, err
	}
	return nil, lastErr
}

func decodeAudioResponse(r io.Reader) ([]byte, error) {
	var result map[string]interface{}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, err
	}

	audios, ok := result["audios"].([]interface{})
	if !ok || len(audios) == 0 {
		return nil, fmt.Errorf("no audio in response")
	}

	audioStr, ok := audios[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid audio format")
	}

	// Strip data-URI header if present
	if idx := strings.Index(audioStr, ","); idx != -1 {
		audioStr = audioStr[idx+1:]
	}

	return base64.StdEncoding.DecodeString(audioStr)
}

func cleanTextForTTS(text string) string {
	text = regexp.MustCompile(`\*\*([^*]+)\*\*`).ReplaceAllString(text, "$1")
	text = regexp.MustCompile(`\*([^*]+)\*`).ReplaceAllString(text, "$1")
	text = regexp.MustCompile(`#+\s*`).ReplaceAllString(text, "")
	text = regexp.MustCompile(`\[(AUDIO|IMAGE):[^\]]+\]`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
