// Package embedding talks to the face embedding server that turns report photos
// into face descriptors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/lost-found/internal/constants"
	"github.com/kozaktomas/lost-found/internal/metrics"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Extractor turns a photo into a face descriptor.
// A nil descriptor with a nil error means no face was detected.
type Extractor interface {
	ExtractDescriptor(ctx context.Context, imageData []byte) ([]float32, error)
}

// Client computes face descriptors using the embedding server
type Client struct {
	baseURL string
	dim     int
	maxSize int
	client  *http.Client
}

// NewClient creates a new embedding client. dim is the expected descriptor
// length; zero accepts any length.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		maxSize: constants.MaxImageSize,
		client:  &http.Client{Timeout: constants.EmbeddingTimeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as the "file" part of a multipart form.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces returns every face the server finds in the image.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	if c.maxSize > 0 {
		resized, err := ResizeImage(imageData, c.maxSize)
		if err != nil {
			return nil, err
		}
		imageData = resized
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// ExtractDescriptor returns the descriptor of the most confidently detected
// face, or nil when the photo has no face.
func (c *Client) ExtractDescriptor(ctx context.Context, imageData []byte) ([]float32, error) {
	start := time.Now()
	descriptor, err := c.extract(ctx, imageData)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case descriptor == nil:
		status = "no_face"
	}
	metrics.EmbeddingRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	return descriptor, err
}

func (c *Client) extract(ctx context.Context, imageData []byte) ([]float32, error) {
	faceResp, err := c.DetectFaces(ctx, imageData)
	if err != nil {
		return nil, err
	}

	best := bestFace(faceResp.Faces)
	if faceResp.FacesCount == 0 || best == nil {
		return nil, nil
	}
	if c.dim > 0 && len(best.Embedding) != c.dim {
		return nil, fmt.Errorf("unexpected descriptor dimension %d, expected %d", len(best.Embedding), c.dim)
	}
	return best.Embedding, nil
}

// bestFace picks the face with the highest detection score that carries an embedding.
func bestFace(faces []FaceDetection) *FaceDetection {
	var best *FaceDetection
	for i := range faces {
		if len(faces[i].Embedding) == 0 {
			continue
		}
		if best == nil || faces[i].DetScore > best.DetScore {
			best = &faces[i]
		}
	}
	return best
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
