package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TranslatorClient calls the translation sidecar.
type TranslatorClient struct {
	url    string
	client *http.Client
}

func NewTranslatorClient(url string) *TranslatorClient {
	return &TranslatorClient{url: url, client: newHTTPClient(15 * time.Second)}
}

type translateRequest struct {
	Text string `json:"text"`
	From string `json:"from"`
	To   string `json:"to"`
}

type translateResponse struct {
	Text string `json:"text"`
}

func (c *TranslatorClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	payload, err := json.Marshal(translateRequest{Text: text, From: from, To: to})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UnavailableError{Provider: "translator", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", &UnavailableError{
			Provider: "translator",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var result translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("translate decode: %w", err)
	}
	return result.Text, nil
}
