package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TextDetector converts raw image bytes to text. Returns an empty string,
// not an error, when the image contains no detectable text.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) (string, error)
}

// VisionClient implements TextDetector against the Google Cloud Vision
// images:annotate REST endpoint.
type VisionClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewVisionClient creates a Vision OCR client.
func NewVisionClient(endpoint, apiKey string, logger *slog.Logger) *VisionClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

type visionRequest struct {
	Requests []visionAnnotateRequest `json:"requests"`
}

type visionAnnotateRequest struct {
	Image        visionImage    `json:"image"`
	Features     []visionFeat   `json:"features"`
	ImageContext *visionContext `json:"imageContext,omitempty"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeat struct {
	Type string `json:"type"`
}

type visionContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type visionResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// DetectText runs TEXT_DETECTION on the image. The first annotation holds
// the merged full text; no annotations means no text, reported as "".
func (v *VisionClient) DetectText(ctx context.Context, image []byte) (string, error) {
	payload := visionRequest{
		Requests: []visionAnnotateRequest{{
			Image:        visionImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features:     []visionFeat{{Type: "TEXT_DETECTION"}},
			ImageContext: &visionContext{LanguageHints: []string{"ja"}},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint+"?key="+v.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}

	if len(parsed.Responses) == 0 {
		return "", nil
	}
	if e := parsed.Responses[0].Error; e != nil {
		return "", fmt.Errorf("vision annotate error %d: %s", e.Code, e.Message)
	}

	annotations := parsed.Responses[0].TextAnnotations
	if len(annotations) == 0 {
		v.logger.Debug("Vision found no text in image", "duration", time.Since(start))
		return "", nil
	}

	v.logger.Debug("Vision OCR complete",
		"duration", time.Since(start), "text_len", len(annotations[0].Description))

	return annotations[0].Description, nil
}
