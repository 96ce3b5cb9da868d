// Package media uploads image data to the hosting service and returns the
// durable URL a message's image reference points at.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second
	maxUploadBytes = 10 << 20 // 10MB, matches the hosting service limit
	passcodeHeader = "X-Passcode"
)

// ErrTooLarge reports an image exceeding the upload cap.
var ErrTooLarge = errors.New("media: image exceeds upload limit")

// Uploader posts multipart image uploads to the hosting service.
type Uploader struct {
	endpoint string
	passcode string
	http     *http.Client
	log      zerolog.Logger
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(u *Uploader) {
		if h != nil {
			u.http = h
		}
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(u *Uploader) { u.log = log }
}

// NewUploader constructs an Uploader for the given upload endpoint.
func NewUploader(endpoint, passcode string, opts ...Option) (*Uploader, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("media: upload endpoint is required")
	}
	u := &Uploader{
		endpoint: endpoint,
		passcode: passcode,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload streams image bytes as a multipart form and returns the durable
// URL the service assigned. filename is advisory; the service may rename.
func (u *Uploader) Upload(ctx context.Context, filename string, data io.Reader) (string, error) {
	if filename == "" {
		filename = "image"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("media: build form: %w", err)
	}

	n, err := io.Copy(part, io.LimitReader(data, maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("media: read image: %w", err)
	}
	if n > maxUploadBytes {
		return "", ErrTooLarge
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("media: finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("media: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.passcode != "" {
		req.Header.Set(passcodeHeader, u.passcode)
	}

	start := time.Now()
	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: upload: %w", err)
	}
	defer resp.Body.Close()

	u.log.Debug().
		Int("status", resp.StatusCode).
		Int64("bytes", n).
		Dur("elapsed", time.Since(start)).
		Msg("image upload")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("media: upload: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("media: decode response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("media: service returned no url")
	}
	return out.URL, nil
}
