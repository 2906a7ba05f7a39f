package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/go-pivoice/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI implements Transcriber with the OpenAI audio transcription API.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates a new OpenAI transcriber.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &OpenAI{
		config:  cfg,
		client:  httpc.Or(cfg.HTTPClient, cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.openai"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Transcribe uploads the file at audioPath and returns the recognised text.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	start := time.Now()

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", o.fail(0, fmt.Errorf("read audio: %w", err))
	}

	body, contentType, err := o.buildForm(filepath.Base(audioPath), audio)
	if err != nil {
		return "", o.fail(0, fmt.Errorf("build form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", o.fail(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", o.fail(0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", o.fail(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", o.fail(resp.StatusCode, errors.New(apiMessage(data)))
	}

	text := strings.TrimRight(string(data), "\r\n")

	o.logger.Debug("transcribed audio",
		"bytes", len(audio),
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OpenAI) buildForm(filename string, audio []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", o.config.Model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "text"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (o *OpenAI) fail(status int, err error) error {
	return &TranscriptionError{Provider: providerOpenAI, StatusCode: status, Err: err}
}

// apiMessage extracts error.message from an OpenAI error body, falling back
// to the raw text.
func apiMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(body))
}

var _ Transcriber = (*OpenAI)(nil)
