package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ACRClient is the paid fallback song identifier, speaking the ACRCloud
// identify protocol: an HMAC-SHA1 signed multipart upload of the sample.
type ACRClient struct {
	host      string
	accessKey string
	secret    string
	client    *http.Client
}

func NewACRClient(host, accessKey, secret string) *ACRClient {
	return &ACRClient{
		host:      host,
		accessKey: accessKey,
		secret:    secret,
		client:    newHTTPClient(20 * time.Second),
	}
}

type acrResponse struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Metadata struct {
		Humming []acrTrack `json:"humming"`
		Music   []acrTrack `json:"music"`
	} `json:"metadata"`
}

type acrTrack struct {
	Title   string `json:"title"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

const (
	acrCodeOK           = 0
	acrCodeNoMatch      = 1001
	acrCodeBudgetSpent  = 3003
	acrSignatureVersion = "1"
)

func (c *ACRClient) Identify(ctx context.Context, wavPath string) (*SongCandidate, error) {
	sample, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open sample %s: %w", wavPath, err)
	}
	defer sample.Close()

	info, err := sample.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat sample: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := c.sign(timestamp)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("sample", filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, sample); err != nil {
		return nil, fmt.Errorf("copy sample: %w", err)
	}
	fields := map[string]string{
		"access_key":        c.accessKey,
		"sample_bytes":      strconv.FormatInt(info.Size(), 10),
		"timestamp":         timestamp,
		"signature":         signature,
		"data_type":         "audio",
		"signature_version": acrSignatureVersion,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.host+"/v1/identify", &body)
	if err != nil {
		return nil, fmt.Errorf("identify request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "acrcloud", Err: err}
	}
	defer resp.Body.Close()

	var result acrResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("identify decode: %w", err)
	}

	switch result.Status.Code {
	case acrCodeOK:
		// Humming matches come before exact music matches when both exist.
		tracks := result.Metadata.Humming
		if len(tracks) == 0 {
			tracks = result.Metadata.Music
		}
		if len(tracks) == 0 {
			return nil, ErrNoResult
		}
		candidate := &SongCandidate{Title: tracks[0].Title, Source: SourcePaidFallback}
		if len(tracks[0].Artists) > 0 {
			candidate.Artist = tracks[0].Artists[0].Name
		}
		return candidate, nil
	case acrCodeNoMatch:
		return nil, ErrNoResult
	case acrCodeBudgetSpent:
		return nil, ErrBudgetExhausted
	default:
		return nil, &UnavailableError{
			Provider: "acrcloud",
			Err:      fmt.Errorf("code %d: %s", result.Status.Code, result.Status.Msg),
		}
	}
}

func (c *ACRClient) sign(timestamp string) string {
	stringToSign := "POST\n/v1/identify\n" + c.accessKey +
		"\naudio\n" + acrSignatureVersion + "\n" + timestamp
	mac := hmac.New(sha1.New, []byte(c.secret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
