package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fungiscan/internal/apperr"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// DiagnosisPrompt is sent with every image. The model is asked for a strict JSON object;
// the normalizer copes when it does not comply.
const DiagnosisPrompt = `Eres un fitopatólogo experto. Analiza esta imagen de planta.
Responde ESTRÍCTAMENTE un JSON con este formato:
{
    "detectado": boolean,
    "razonamiento": "Nombre del hongo (si hay) y breve descripción de síntomas. Si está sana, indícalo.",
    "tipo_hongo": "Nombre o 'Ninguno'"
}
detectado=true si ves hongos o enfermedad.`

const fallbackImageMIME = "image/jpeg"

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 4 << 20

//go:generate mockgen -source=inference_client.go -destination=mocks/mock_inference_client.go -package=mocks

type InferenceClient interface {
	// Analyze sends image to the vision model and returns the raw completion text.
	Analyze(ctx context.Context, image []byte) (string, error)
}

type InferenceConfig struct {
	APIKey       string
	URL          string
	Model        string
	Referer      string
	Title        string
	Timeout      time.Duration
	RetryBackoff time.Duration
}

type inferenceClient struct {
	config     InferenceConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewInferenceClient(config InferenceConfig, log *zap.Logger) InferenceClient {
	if config.Timeout <= 0 {
		config.Timeout = 45 * time.Second
	}
	if config.APIKey == "" {
		log.Warn("OPENROUTER_API_KEY is not set; image analysis requests will fail")
	}

	return &inferenceClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log: log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Error   json.RawMessage `json:"error"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *inferenceClient) Analyze(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", apperr.Validation("image is empty")
	}
	if c.config.APIKey == "" {
		return "", apperr.ErrMissingCredential
	}

	body, err := json.Marshal(c.buildRequest(image))
	if err != nil {
		return "", fmt.Errorf("marshal inference request: %w", err)
	}

	status, payload, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}

	return extractCompletion(status, payload)
}

func (c *inferenceClient) buildRequest(image []byte) chatRequest {
	mime := mimetype.Detect(image)
	contentType := fallbackImageMIME
	if strings.HasPrefix(mime.String(), "image/") {
		contentType = mime.String()
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	return chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: DiagnosisPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
	}
}

// post delivers the request, retrying once after the backoff when the request
// never produced a response. Any response, error or not, is returned as is.
func (c *inferenceClient) post(ctx context.Context, body []byte) (int, []byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			c.log.Warn("retrying inference request", zap.Error(lastErr), zap.Duration("backoff", c.config.RetryBackoff))
			select {
			case <-ctx.Done():
				return 0, nil, &apperr.TransportError{Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(c.config.RetryBackoff):
			}
		}

		status, payload, err := c.do(ctx, body)
		if err == nil {
			return status, payload, nil
		}
		lastErr = err

		// The caller went away; a second attempt cannot help.
		if ctx.Err() != nil {
			return 0, nil, &apperr.TransportError{Attempts: attempt, Err: err}
		}
	}
	return 0, nil, &apperr.TransportError{Attempts: 2, Err: lastErr}
}

func (c *inferenceClient) do(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("HTTP-Referer", c.config.Referer)
	req.Header.Set("X-Title", c.config.Title)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, payload, nil
}

func extractCompletion(status int, payload []byte) (string, error) {
	var parsed chatResponse
	decodeErr := json.Unmarshal(payload, &parsed)

	if isPresent(parsed.Error) || status >= 400 {
		return "", &apperr.UpstreamError{StatusCode: status, Payload: payload}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: undecodable body: %v", apperr.ErrEmptyCompletion, decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return "", apperr.ErrEmptyCompletion
	}

	content, err := contentText(parsed.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	return content, nil
}

func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// contentText accepts either a plain string or a list of typed parts, joining the text parts.
func contentText(raw json.RawMessage) (string, error) {
	if !isPresent(raw) {
		return "", apperr.ErrEmptyCompletion
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("%w: unexpected content shape", apperr.ErrEmptyCompletion)
	}

	var sb strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", apperr.ErrEmptyCompletion
	}
	return sb.String(), nil
}
