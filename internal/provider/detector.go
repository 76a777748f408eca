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

// DetectorClient calls the object-detection sidecar (a YOLO-style model
// behind HTTP) with the raw image and returns unfiltered boxes.
type DetectorClient struct {
	url    string
	client *http.Client
}

func NewDetectorClient(url string) *DetectorClient {
	return &DetectorClient{url: url, client: newHTTPClient(30 * time.Second)}
}

type detectorResponse struct {
	Boxes []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		X1         int     `json:"x1"`
		Y1         int     `json:"y1"`
		X2         int     `json:"x2"`
		Y2         int     `json:"y2"`
	} `json:"boxes"`
}

func (c *DetectorClient) Detect(ctx context.Context, imagePath string) ([]Box, error) {
	body, contentType, err := fileForm(imagePath, "image")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/detect", body)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "detector", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Provider: "detector",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var result detectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("detect decode: %w", err)
	}

	boxes := make([]Box, 0, len(result.Boxes))
	for _, b := range result.Boxes {
		boxes = append(boxes, Box{
			Label: b.Label, Confidence: b.Confidence,
			X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2,
		})
	}
	return boxes, nil
}

// fileForm builds a single-file multipart body from a path.
func fileForm(path, field string) (*bytes.Buffer, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, "", fmt.Errorf("copy file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}
