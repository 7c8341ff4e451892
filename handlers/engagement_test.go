package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"streamvault/internal/database"
	"streamvault/models"
)

type fakeEngagementStore struct {
	lastProgress models.WatchProgress
	progressRows []models.WatchProgress
	deleted      int64
}

func (f *fakeEngagementStore) ToggleLike(ctx context.Context, profileID, extID string, like bool) (bool, int, error) {
	if extID == "missing" {
		return false, 0, database.ErrContentNotFound
	}
	likes := 0
	if like {
		likes = 1
	}
	return like, likes, nil
}

func (f *fakeEngagementStore) UpsertProgress(ctx context.Context, p models.WatchProgress) error {
	f.lastProgress = p
	return nil
}

func (f *fakeEngagementStore) GetProgress(ctx context.Context, profileID, extID string) ([]models.WatchProgress, error) {
	return f.progressRows, nil
}

func (f *fakeEngagementStore) ListContinueWatching(ctx context.Context, profileID string, limit int) ([]models.WatchProgress, error) {
	return f.progressRows, nil
}

func (f *fakeEngagementStore) DeleteProgress(ctx context.Context, profileID, extID string) (int64, error) {
	return f.deleted, nil
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestToggleLikeHandler(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	rec := postJSON(t, h.ToggleLike, "/likes/toggle",
		`{"profileId":"p1","contentExtId":"m1","like":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["liked"] != true {
		t.Errorf("expected liked=true, got %v", body["liked"])
	}
	if body["likes"] != float64(1) {
		t.Errorf("expected likes=1, got %v", body["likes"])
	}
}

func TestToggleLikeHandlerValidation(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	// missing required fields
	rec := postJSON(t, h.ToggleLike, "/likes/toggle", `{"like":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: expected 400, got %d", rec.Code)
	}

	// unknown field rejected by the strict decoder
	rec = postJSON(t, h.ToggleLike, "/likes/toggle",
		`{"profileId":"p1","contentExtId":"m1","like":true,"bogus":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", rec.Code)
	}

	// malformed JSON
	rec = postJSON(t, h.ToggleLike, "/likes/toggle", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestToggleLikeHandlerUnknownContent(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	rec := postJSON(t, h.ToggleLike, "/likes/toggle",
		`{"profileId":"p1","contentExtId":"missing","like":true}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPostProgressHandler(t *testing.T) {
	store := &fakeEngagementStore{}
	h := NewEngagementHandler(store, nil)

	rec := postJSON(t, h.PostProgress, "/progress",
		`{"profileId":"p1","contentExtId":"s1","season":1,"episode":2,"positionSec":120,"durationSec":2700}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.lastProgress.Season == nil || *store.lastProgress.Season != 1 {
		t.Errorf("season not forwarded: %+v", store.lastProgress)
	}
}

func TestPostProgressHandlerValidation(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	cases := map[string]string{
		"missing keys":        `{"positionSec":1,"durationSec":2}`,
		"season alone":        `{"profileId":"p1","contentExtId":"s1","season":1,"positionSec":1,"durationSec":2}`,
		"episode alone":       `{"profileId":"p1","contentExtId":"s1","episode":1,"positionSec":1,"durationSec":2}`,
		"zero season":         `{"profileId":"p1","contentExtId":"s1","season":0,"episode":1,"positionSec":1,"durationSec":2}`,
		"negative position":   `{"profileId":"p1","contentExtId":"m1","positionSec":-1,"durationSec":2}`,
		"negative duration":   `{"profileId":"p1","contentExtId":"m1","positionSec":1,"durationSec":-2}`,
		"unknown extra field": `{"profileId":"p1","contentExtId":"m1","positionSec":1,"durationSec":2,"wat":true}`,
	}
	for name, body := range cases {
		rec := postJSON(t, h.PostProgress, "/progress", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestGetProgressHandlerRequiresKeys(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/progress?profileId=p1", nil)
	rec := httptest.NewRecorder()
	h.GetProgress(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetProgressHandlerEmptyIsArray(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/progress?profileId=p1&extId=m1", nil)
	rec := httptest.NewRecorder()
	h.GetProgress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["items"].([]any); !ok {
		t.Fatalf("expected items array, got %v", body["items"])
	}
}

func TestDeleteProgressHandler(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{deleted: 3}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/progress?profileId=p1&extId=s1", nil)
	rec := httptest.NewRecorder()
	h.DeleteProgress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["deleted"] != float64(3) {
		t.Fatalf("expected deleted=3, got %v", body["deleted"])
	}
}

func TestContinueWatchingHandler(t *testing.T) {
	h := NewEngagementHandler(&fakeEngagementStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/progress/continue", nil)
	rec := httptest.NewRecorder()
	h.ContinueWatching(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing profileId: expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/progress/continue?profileId=p1", nil)
	rec = httptest.NewRecorder()
	h.ContinueWatching(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
