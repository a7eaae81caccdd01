package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func faceServer(t *testing.T, status int, resp FaceResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if detectMIMEType(data) != "image/jpeg" {
				t.Errorf("expected re-encoded JPEG upload")
			}
		}

		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestExtractDescriptor(t *testing.T) {
	photo := testPNG(t, 64, 48)

	tests := []struct {
		name      string
		status    int
		resp      FaceResponse
		dim       int
		expected  []float32
		expectErr bool
	}{
		{
			name:   "single face",
			status: http.StatusOK,
			resp: FaceResponse{FacesCount: 1, Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 2, 3}, DetScore: 0.9},
			}},
			dim:      3,
			expected: []float32{1, 2, 3},
		},
		{
			name:   "highest detection score wins",
			status: http.StatusOK,
			resp: FaceResponse{FacesCount: 2, Faces: []FaceDetection{
				{FaceIndex: 0, Embedding: []float32{1, 0, 0}, DetScore: 0.6},
				{FaceIndex: 1, Embedding: []float32{0, 1, 0}, DetScore: 0.95},
			}},
			dim:      3,
			expected: []float32{0, 1, 0},
		},
		{
			name:     "no face",
			status:   http.StatusOK,
			resp:     FaceResponse{FacesCount: 0},
			dim:      3,
			expected: nil,
		},
		{
			name:   "dimension mismatch",
			status: http.StatusOK,
			resp: FaceResponse{FacesCount: 1, Faces: []FaceDetection{
				{Embedding: []float32{1, 2}, DetScore: 0.9},
			}},
			dim:       3,
			expectErr: true,
		},
		{
			name:      "server error",
			status:    http.StatusServiceUnavailable,
			dim:       3,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := faceServer(t, tt.status, tt.resp)
			defer server.Close()

			client := NewClient(server.URL+"/", tt.dim)
			got, err := client.ExtractDescriptor(context.Background(), photo)

			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
					break
				}
			}
		})
	}
}

func TestExtractDescriptor_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, 128)
	_, err := client.ExtractDescriptor(context.Background(), testPNG(t, 8, 8))
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestExtractDescriptor_InvalidImage(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", 128)
	_, err := client.ExtractDescriptor(context.Background(), []byte("not an image"))
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestResizeImage(t *testing.T) {
	tests := []struct {
		name             string
		w, h             int
		maxSize          int
		expectW, expectH int
	}{
		{"landscape downscaled", 400, 200, 100, 100, 50},
		{"portrait downscaled", 200, 400, 100, 50, 100},
		{"small kept", 80, 60, 100, 80, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ResizeImage(testPNG(t, tt.w, tt.h), tt.maxSize)
			if err != nil {
				t.Fatalf("ResizeImage failed: %v", err)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if format != "jpeg" {
				t.Errorf("expected jpeg, got %s", format)
			}
			if cfg.Width != tt.expectW || cfg.Height != tt.expectH {
				t.Errorf("expected %dx%d, got %dx%d", tt.expectW, tt.expectH, cfg.Width, cfg.Height)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("plain text"), "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType() = %s; want %s", got, tt.expected)
			}
		})
	}
}
