package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/database/mock"
	"github.com/kozaktomas/lost-found/internal/matching"
	"go.uber.org/zap"
)

func setupMatchesTest(t *testing.T) (*mock.MockStore, *MatchesHandler) {
	t.Helper()
	store := mock.NewMockStore()
	store.AddLost(database.LostReport{ID: "lost-a", Status: database.StatusApproved, Descriptor: []float32{1, 0, 0}})
	store.AddLost(database.LostReport{ID: "lost-b", Status: database.StatusApproved, Descriptor: []float32{0, 1, 0}})
	store.AddLost(database.LostReport{ID: "lost-c", Status: database.StatusApproved, Descriptor: []float32{0, 0, 1}})
	store.AddFound(database.FoundReport{ID: "found-a", Status: database.StatusApproved, Descriptor: []float32{1, 0, 0}})
	store.AddFound(database.FoundReport{ID: "found-b", Status: database.StatusApproved, Descriptor: []float32{0, 1, 0}})
	return store, NewMatchesHandler(store, testMatcher(store), zap.NewNop())
}

func runSweep(t *testing.T, handler *MatchesHandler) matching.SweepResult {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/match/run", nil)
	recorder := httptest.NewRecorder()
	handler.Run(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var result matching.SweepResult
	parseJSONResponse(t, recorder, &result)
	return result
}

func TestMatchesHandler_Run(t *testing.T) {
	_, handler := setupMatchesTest(t)

	first := runSweep(t, handler)
	expected := matching.SweepResult{LostPersonsChecked: 3, FoundPersonsChecked: 2, NewMatches: 2}
	if first != expected {
		t.Errorf("expected %+v, got %+v", expected, first)
	}

	second := runSweep(t, handler)
	if second.NewMatches != 0 {
		t.Errorf("expected no new matches on rerun, got %d", second.NewMatches)
	}
}

func TestMatchesHandler_Run_ResponseFields(t *testing.T) {
	_, handler := setupMatchesTest(t)

	req := httptest.NewRequest("POST", "/api/v1/match/run", nil)
	recorder := httptest.NewRecorder()
	handler.Run(recorder, req)

	var raw map[string]int
	parseJSONResponse(t, recorder, &raw)
	for _, key := range []string{"lostPersonsChecked", "foundPersonsChecked", "newMatches"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing %s in sweep response", key)
		}
	}
}

func TestMatchesHandler_Run_StoreError(t *testing.T) {
	store, handler := setupMatchesTest(t)
	store.ListEligibleFoundError = errMock

	req := httptest.NewRequest("POST", "/api/v1/match/run", nil)
	recorder := httptest.NewRecorder()
	handler.Run(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestMatchesHandler_ListAndGet(t *testing.T) {
	store, handler := setupMatchesTest(t)
	runSweep(t, handler)

	req := httptest.NewRequest("GET", "/api/v1/match/results?status=pending", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp pageResponse[matchResponse]
	parseJSONResponse(t, recorder, &resp)
	if resp.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", resp.Total)
	}

	id := store.AllMatches()[0].ID
	req = requestWithChiParams(httptest.NewRequest("GET", "/api/v1/match/"+id, nil), map[string]string{"id": id})
	recorder = httptest.NewRecorder()
	handler.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	req = requestWithChiParams(httptest.NewRequest("GET", "/api/v1/match/nope", nil), map[string]string{"id": "nope"})
	recorder = httptest.NewRecorder()
	handler.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, errMatchNotFound)
}

func TestMatchesHandler_Update(t *testing.T) {
	store, handler := setupMatchesTest(t)
	runSweep(t, handler)
	match := store.AllMatches()[0]

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"invalid body", match.ID, "{", http.StatusBadRequest},
		{"invalid status", match.ID, `{"status":"maybe"}`, http.StatusBadRequest},
		{"missing match", "nope", `{"status":"rejected"}`, http.StatusNotFound},
		{"confirm", match.ID, `{"status":"confirmed","notes":"verified by phone"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithChiParams(
				httptest.NewRequest("PUT", "/api/v1/match/"+tt.id, bytes.NewBufferString(tt.body)),
				map[string]string{"id": tt.id},
			)
			recorder := httptest.NewRecorder()
			handler.Update(recorder, req)
			assertStatusCode(t, recorder, tt.status)
		})
	}

	lost, _ := store.GetLost(t.Context(), match.LostID)
	found, _ := store.GetFound(t.Context(), match.FoundID)
	if lost.Status != database.StatusFound || found.Status != database.StatusMatched {
		t.Errorf("confirmation should resolve the pair, got lost=%s found=%s", lost.Status, found.Status)
	}
}

func TestMatchesHandler_Delete(t *testing.T) {
	store, handler := setupMatchesTest(t)
	runSweep(t, handler)
	id := store.AllMatches()[0].ID

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/match/"+id, nil), map[string]string{"id": id})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	if got := len(store.AllMatches()); got != 1 {
		t.Errorf("expected 1 remaining match, got %d", got)
	}

	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}
