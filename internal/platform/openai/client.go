package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/ctxutil"
	"github.com/yungbote/neurocanvas-backend/internal/platform/httpx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type ImageGeneration struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// VideoJob is the provider-side view of an asynchronous video generation.
// Raw keeps the full decoded response so callers can look for result URLs
// in whatever shape the provider returns.
type VideoJob struct {
	ID     string
	Status string
	Error  string
	Raw    map[string]any
}

// Client is the OpenAI API client used by the rest of the backend.
type Client interface {
	// Structured outputs (json_schema)
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	// Plain text (no schema)
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Image generation (raster). Returns bytes (PNG by default).
	GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error)

	// Video generation is split into create / get / download so the caller
	// owns the poll loop.
	CreateVideoJob(ctx context.Context, prompt string, seconds int) (VideoJob, error)
	GetVideoJob(ctx context.Context, id string) (VideoJob, error)
	DownloadVideoContent(ctx context.Context, id string) ([]byte, string, error)
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	ImageModel     string
	ImageSize      string
	VideoModel     string
	VideoSize      string
	TimeoutSeconds int
	MaxRetries     int
	Temperature    *float64
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	imageSize  string
	videoModel string
	videoSize  string
	httpClient *http.Client
	maxRetries int

	temperature *float64
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5.2"
	}
	imageSize := strings.TrimSpace(cfg.ImageSize)
	if imageSize == "" {
		imageSize = "1024x1024"
	}
	videoSize := strings.TrimSpace(cfg.VideoSize)
	if videoSize == "" {
		videoSize = "1280x720"
	}
	timeoutSec := cfg.TimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 180
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		imageModel:  strings.TrimSpace(cfg.ImageModel),
		imageSize:   imageSize,
		videoModel:  strings.TrimSpace(cfg.VideoModel),
		videoSize:   videoSize,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:  maxRetries,
		temperature: cfg.Temperature,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			observability.Current().ObserveLLMRequest(path, statusFromResp(resp, nil), time.Since(start))
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			observability.Current().ObserveLLMRequest(path, statusFromResp(resp, err), time.Since(start))
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Images API --------------------

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"` // b64_json|url
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error) {
	var out ImageGeneration
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}
	if c.imageModel == "" {
		return out, errors.New("missing OPENAI_IMAGE_MODEL")
	}

	responseFormat := "b64_json"
	if strings.HasPrefix(strings.ToLower(c.imageModel), "gpt-image-") {
		responseFormat = ""
	}
	req := imagesGenerationRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: responseFormat,
	}

	var resp imagesGenerationResponse
	if err := c.do(ctx, "POST", "/v1/images/generations", req, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	b64 := strings.TrimSpace(item.B64JSON)
	if b64 == "" {
		u := strings.TrimSpace(item.URL)
		if u == "" {
			return out, errors.New("image response missing b64_json and url")
		}
		b, ct, err := c.downloadBytes(ctx, u)
		if err != nil {
			return out, fmt.Errorf("download generated image: %w", err)
		}
		out.Bytes = b
		out.MimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		if out.MimeType == "" {
			out.MimeType = "image/png"
		}
		return out, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw) == 0 {
		return out, fmt.Errorf("decode image base64: %w", err)
	}
	out.Bytes = raw
	out.MimeType = "image/png"
	return out, nil
}

// -------------------- Videos API --------------------

func normalizeVideoDurationSeconds(dur int) int {
	if dur <= 0 {
		return 8
	}
	best := 4
	for _, v := range []int{8, 12} {
		if absInt(dur-v) < absInt(dur-best) {
			best = v
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func decodeVideoJob(raw map[string]any) VideoJob {
	job := VideoJob{Raw: raw}
	if s, ok := raw["id"].(string); ok {
		job.ID = strings.TrimSpace(s)
	}
	if s, ok := raw["status"].(string); ok {
		job.Status = strings.ToLower(strings.TrimSpace(s))
	}
	if e, ok := raw["error"].(map[string]any); ok {
		if msg, ok := e["message"].(string); ok {
			job.Error = strings.TrimSpace(msg)
		}
	}
	return job
}

func (c *client) CreateVideoJob(ctx context.Context, prompt string, seconds int) (VideoJob, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return VideoJob{}, errors.New("video prompt required")
	}
	if c.videoModel == "" {
		return VideoJob{}, errors.New("missing OPENAI_VIDEO_MODEL")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("prompt", prompt)
	_ = writer.WriteField("model", c.videoModel)
	if c.videoSize != "" {
		_ = writer.WriteField("size", c.videoSize)
	}
	_ = writer.WriteField("seconds", strconv.Itoa(normalizeVideoDurationSeconds(seconds)))
	_ = writer.Close()

	var raw map[string]any
	if err := c.doMultipart(ctx, "POST", "/v1/videos", buf.Bytes(), writer.FormDataContentType(), &raw); err != nil {
		return VideoJob{}, err
	}
	job := decodeVideoJob(raw)
	if job.ID == "" {
		return job, errors.New("video create missing id")
	}
	if job.Status == "" {
		job.Status = "queued"
	}
	return job, nil
}

func (c *client) GetVideoJob(ctx context.Context, id string) (VideoJob, error) {
	if strings.TrimSpace(id) == "" {
		return VideoJob{}, errors.New("video id required")
	}
	var raw map[string]any
	if err := c.do(ctx, "GET", "/v1/videos/"+url.PathEscape(id), nil, &raw); err != nil {
		return VideoJob{}, err
	}
	return decodeVideoJob(raw), nil
}

func (c *client) DownloadVideoContent(ctx context.Context, id string) ([]byte, string, error) {
	if strings.TrimSpace(id) == "" {
		return nil, "", errors.New("video id required")
	}
	b, ct, err := c.downloadBytes(ctx, c.baseURL+"/v1/videos/"+url.PathEscape(id)+"/content")
	if err != nil {
		return nil, "", err
	}
	mime := strings.TrimSpace(strings.Split(ct, ";")[0])
	if mime == "" {
		mime = sniffVideoMime(b)
	}
	return b, mime, nil
}

func (c *client) downloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), "GET", rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	// Signed blob URLs break if they receive an unrelated Authorization header.
	if shouldAttachOpenAIAuth(c.baseURL, rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, strings.TrimSpace(resp.Header.Get("Content-Type")), nil
}

func shouldAttachOpenAIAuth(baseURL, rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if bu, err := url.Parse(baseURL); err == nil && bu != nil {
		if bh := strings.ToLower(bu.Hostname()); bh != "" && host == bh {
			return true
		}
	}
	return host == "openai.com" || strings.HasSuffix(host, ".openai.com")
}

func (c *client) doMultipart(ctx context.Context, method, path string, payload []byte, contentType string, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(httpx.JitterSleep(backoff))
				backoff *= 2
				continue
			}
			return err
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
			if attempt < c.maxRetries && httpx.IsRetryableHTTPStatus(resp.StatusCode) {
				time.Sleep(httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second)))
				backoff *= 2
				continue
			}
			return httpErr
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	}
	return errors.New("openai multipart request failed")
}

func sniffVideoMime(b []byte) string {
	if len(b) >= 12 && bytes.Contains(b[:12], []byte("ftyp")) {
		return "video/mp4"
	}
	if len(b) >= 4 && b[0] == 0x1A && b[1] == 0x45 && b[2] == 0xDF && b[3] == 0xA3 {
		return "video/webm"
	}
	return "video/mp4"
}

// -------------------- Responses API --------------------

type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`

	Text struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) newResponsesRequest(system, user string) responsesRequest {
	return responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	}
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}

	req := c.newResponsesRequest(system, user)
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, "POST", "/v1/responses", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	jsonText := extractOutputText(resp)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, jsonText)
	}
	return obj, nil
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	req := c.newResponsesRequest(system, user)

	var resp responsesResponse
	if err := c.do(ctx, "POST", "/v1/responses", &req, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

func statusFromResp(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "unknown"
}
