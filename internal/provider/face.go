package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FaceClient calls the face-analysis sidecar (a DeepFace-style model behind
// HTTP) for age and gender estimation.
type FaceClient struct {
	url    string
	client *http.Client
}

func NewFaceClient(url string) *FaceClient {
	return &FaceClient{url: url, client: newHTTPClient(30 * time.Second)}
}

type faceResponse struct {
	Faces []struct {
		Age    int    `json:"age"`
		Gender string `json:"dominant_gender"`
		Region struct {
			X int `json:"x"`
			Y int `json:"y"`
			W int `json:"w"`
			H int `json:"h"`
		} `json:"region"`
	} `json:"faces"`
}

func (c *FaceClient) Analyze(ctx context.Context, imagePath string) (*Face, error) {
	body, contentType, err := fileForm(imagePath, "image")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("face request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "face", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Provider: "face",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var result faceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("face decode: %w", err)
	}
	if len(result.Faces) == 0 {
		return nil, ErrNoResult
	}

	// Analysis can return several faces; the first is the most prominent.
	f := result.Faces[0]
	return &Face{
		Age:    f.Age,
		Gender: f.Gender,
		Region: Box{
			X1: f.Region.X, Y1: f.Region.Y,
			X2: f.Region.X + f.Region.W, Y2: f.Region.Y + f.Region.H,
		},
	}, nil
}
