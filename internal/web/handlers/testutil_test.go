package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lost-found/internal/database/mock"
	"github.com/kozaktomas/lost-found/internal/facematch"
	"github.com/kozaktomas/lost-found/internal/matching"
	"go.uber.org/zap"
)

var errMock = errors.New("mock error")

// fakeExtractor returns a fixed descriptor or error.
type fakeExtractor struct {
	descriptor []float32
	err        error
	calls      int
}

func (f *fakeExtractor) ExtractDescriptor(ctx context.Context, imageData []byte) ([]float32, error) {
	f.calls++
	return f.descriptor, f.err
}

// testMatcher builds a matcher over the mock store with a fixed threshold.
func testMatcher(store *mock.MockStore) *matching.Matcher {
	return matching.New(store, store, store,
		matching.WithPolicy(facematch.NewPolicy(facematch.FixedThreshold(0.75))),
		matching.WithConfirmHook(matching.ResolvePairHook(store)),
	)
}

// newTestReportsHandler wires a ReportsHandler to a fresh mock store.
func newTestReportsHandler(extractor *fakeExtractor) (*mock.MockStore, *matching.Matcher, *ReportsHandler) {
	store := mock.NewMockStore()
	matcher := testMatcher(store)
	return store, matcher, NewReportsHandler(store, store, extractor, matcher, zap.NewNop())
}

// multipartRequest builds a multipart request with form fields and an optional photo.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if photo != nil {
		part, err := writer.CreateFormFile("photo", "photo.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(photo)
	}
	writer.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses the JSON response body into the target
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
