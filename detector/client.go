package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"billboardwatch/models"
)

// RemoteDetector sends captures to a model-backed analysis API.
type RemoteDetector struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteDetector creates a client for the analysis API at baseURL.
func NewRemoteDetector(baseURL string) *RemoteDetector {
	return &RemoteDetector{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type analyzeRequest struct {
	ImageRef string          `json:"image_ref"`
	Location models.Location `json:"location"`
}

func (c *RemoteDetector) Detect(ctx context.Context, imageRef string, loc models.Location) (models.AIAnalysis, error) {
	requestBody, err := json.Marshal(analyzeRequest{ImageRef: imageRef, Location: loc})
	if err != nil {
		return models.AIAnalysis{}, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v3/analysis", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return models.AIAnalysis{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.AIAnalysis{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AIAnalysis{}, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.AIAnalysis{}, fmt.Errorf("%w: analysis API returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var analysis models.AIAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return models.AIAnalysis{}, fmt.Errorf("%w: decoding analysis: %v", ErrUnavailable, err)
	}
	if analysis.Version == 0 {
		analysis.Version = models.AnalysisVersion
	}
	if analysis.ConfidenceScores == nil {
		analysis.ConfidenceScores = map[models.ViolationType]float64{}
	}
	return analysis, nil
}
