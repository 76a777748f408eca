package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// TranscriberClient sends a WAV file to a Whisper-compatible transcription
// API as multipart/form-data and returns the recognized text.
type TranscriberClient struct {
	url    string
	token  string
	model  string
	client *http.Client
}

func NewTranscriberClient(url, token string) *TranscriberClient {
	return &TranscriberClient{
		url:    url,
		token:  token,
		model:  "whisper-1",
		client: newHTTPClient(60 * time.Second),
	}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (c *TranscriberClient) Transcribe(ctx context.Context, wavPath string, language string) (*Transcription, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file %s: %w", wavPath, err)
	}
	defer file.Close()

	var requestBody bytes.Buffer
	mw := multipart.NewWriter(&requestBody)

	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/v1/audio/transcriptions", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "transcriber", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Provider: "transcriber", Err: err}
	}

	// 422 is the API's "audio present but not intelligible" answer. It is a
	// distinct outcome from an empty transcript on a 200.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrNoResult
	}
	if resp.StatusCode != http.StatusOK {
		var errResp transcriptionResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			return nil, &UnavailableError{
				Provider: "transcriber",
				Err:      fmt.Errorf("api error: %s (type %s)", errResp.Error.Message, errResp.Error.Type),
			}
		}
		return nil, &UnavailableError{
			Provider: "transcriber",
			Err:      fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	}

	var result transcriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal transcription response: %w", err)
	}
	if result.Error != nil {
		return nil, &UnavailableError{
			Provider: "transcriber",
			Err:      fmt.Errorf("api error: %s", result.Error.Message),
		}
	}

	return &Transcription{Text: result.Text, Language: language, Source: "whisper"}, nil
}
