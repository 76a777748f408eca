package provider

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// ClassifierClient calls the sound-classification sidecar (a YAMNet-style
// model behind HTTP). Samples go over the wire as little-endian float32; the
// response carries the class map and the raw per-frame scores so the caller
// decides how to aggregate.
type ClassifierClient struct {
	url    string
	client *http.Client
}

func NewClassifierClient(url string) *ClassifierClient {
	return &ClassifierClient{url: url, client: newHTTPClient(15 * time.Second)}
}

func (c *ClassifierClient) Classify(ctx context.Context, samples []float32, sampleRate int) (*FrameScores, error) {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/classify", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Sample-Rate", strconv.Itoa(sampleRate))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "classifier", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Provider: "classifier",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var result FrameScores
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("classify decode: %w", err)
	}
	if len(result.Classes) == 0 || len(result.Frames) == 0 {
		return nil, ErrNoResult
	}
	return &result, nil
}
