package admin

import (
	"context"
	"errors"
	"testing"

	"streamvault/internal/database"
	"streamvault/models"
)

type fakeStore struct {
	docs           map[string]*models.Content
	insertFailures int
	inserts        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]*models.Content{}}
}

func (f *fakeStore) List(ctx context.Context) ([]models.Content, error) {
	var out []models.Content
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeStore) GetByExtID(ctx context.Context, extID string) (*models.Content, error) {
	if doc, ok := f.docs[extID]; ok {
		cc := *doc
		return &cc, nil
	}
	return nil, database.ErrContentNotFound
}

func (f *fakeStore) Insert(ctx context.Context, c *models.Content) error {
	f.inserts++
	if f.insertFailures > 0 {
		f.insertFailures--
		return database.ErrDuplicateExtID
	}
	if _, exists := f.docs[c.ExtID]; exists {
		return database.ErrDuplicateExtID
	}
	cc := *c
	f.docs[c.ExtID] = &cc
	return nil
}

func (f *fakeStore) UpdateFields(ctx context.Context, extID string, fields map[string]any) error {
	doc, ok := f.docs[extID]
	if !ok {
		return database.ErrContentNotFound
	}
	for col, val := range fields {
		switch col {
		case "title":
			doc.Title = val.(string)
		case "year":
			doc.Year = val.(int)
		case "genres":
			doc.Genres = val.([]string)
		case "plot":
			doc.Plot = val.(string)
		}
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, extID string) error {
	if _, ok := f.docs[extID]; !ok {
		return database.ErrContentNotFound
	}
	delete(f.docs, extID)
	return nil
}

func (f *fakeStore) ReplaceEpisodes(ctx context.Context, extID string, eps []models.Episode) error {
	doc, ok := f.docs[extID]
	if !ok {
		return database.ErrContentNotFound
	}
	doc.Episodes = eps
	return nil
}

func (f *fakeStore) ListExtIDs(ctx context.Context, contentType string) ([]string, error) {
	var ids []string
	for id, doc := range f.docs {
		if contentType == "" || doc.Type == contentType {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeReconciler struct {
	synced  []string
	removed []string
}

func (f *fakeReconciler) SyncContentWithDoc(ctx context.Context, doc *models.Content, overrideEpisodes []models.Episode) error {
	f.synced = append(f.synced, doc.ExtID)
	return nil
}

func (f *fakeReconciler) RemoveEntry(ctx context.Context, extID string) error {
	f.removed = append(f.removed, extID)
	return nil
}

type fakeMetadata struct {
	info *models.MetadataInfo
	err  error
}

func (f *fakeMetadata) Lookup(ctx context.Context, title string, year int) (*models.MetadataInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func strPtr(s string) *string     { return &s }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func testService(store *fakeStore) (*Service, *fakeReconciler) {
	rec := &fakeReconciler{}
	return NewService(store, rec, nil, nil, nil), rec
}

func TestComputeNextExtID(t *testing.T) {
	store := newFakeStore()
	store.docs["m1"] = &models.Content{ExtID: "m1", Type: models.ContentTypeMovie}
	store.docs["m3"] = &models.Content{ExtID: "m3", Type: models.ContentTypeMovie}
	store.docs["x9"] = &models.Content{ExtID: "x9", Type: models.ContentTypeMovie}
	store.docs["s7"] = &models.Content{ExtID: "s7", Type: models.ContentTypeSeries}
	svc, _ := testService(store)
	ctx := context.Background()

	id, err := svc.ComputeNextExtID(ctx, "Movie")
	if err != nil {
		t.Fatalf("ComputeNextExtID failed: %v", err)
	}
	// x9 does not match the m-prefix pattern; highest is m3
	if id != "m4" {
		t.Fatalf("expected m4, got %q", id)
	}

	id, err = svc.ComputeNextExtID(ctx, "series")
	if err != nil {
		t.Fatalf("ComputeNextExtID failed: %v", err)
	}
	if id != "s8" {
		t.Fatalf("expected s8, got %q", id)
	}
}

func TestComputeNextExtIDEmptyCatalog(t *testing.T) {
	svc, _ := testService(newFakeStore())

	id, err := svc.ComputeNextExtID(context.Background(), "movie")
	if err != nil {
		t.Fatalf("ComputeNextExtID failed: %v", err)
	}
	if id != "m1" {
		t.Fatalf("expected m1, got %q", id)
	}
}

func TestComputeNextExtIDInvalidType(t *testing.T) {
	svc, _ := testService(newFakeStore())

	if _, err := svc.ComputeNextExtID(context.Background(), "album"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestCreateContent(t *testing.T) {
	store := newFakeStore()
	svc, rec := testService(store)

	doc, err := svc.CreateContent(context.Background(), models.ContentUpsert{
		Title:  strPtr("  New Movie  "),
		Year:   intPtr(2023),
		Genres: []string{"Drama"},
	})
	if err != nil {
		t.Fatalf("CreateContent failed: %v", err)
	}
	if doc.ExtID != "m1" {
		t.Errorf("expected generated id m1, got %q", doc.ExtID)
	}
	if doc.Title != "New Movie" {
		t.Errorf("expected trimmed title, got %q", doc.Title)
	}
	if doc.Type != models.ContentTypeMovie {
		t.Errorf("expected default type Movie, got %q", doc.Type)
	}
	if len(rec.synced) != 1 || rec.synced[0] != "m1" {
		t.Errorf("expected seed sync for m1, got %v", rec.synced)
	}
}

func TestCreateContentRetriesOnDuplicateID(t *testing.T) {
	store := newFakeStore()
	store.insertFailures = 2
	svc, _ := testService(store)

	doc, err := svc.CreateContent(context.Background(), models.ContentUpsert{Title: strPtr("Racing Create")})
	if err != nil {
		t.Fatalf("CreateContent failed after retries: %v", err)
	}
	if store.inserts != 3 {
		t.Errorf("expected 3 insert attempts, got %d", store.inserts)
	}
	if doc.ExtID == "" {
		t.Error("expected an assigned ext id")
	}
}

func TestCreateContentGivesUpAfterFiveAttempts(t *testing.T) {
	store := newFakeStore()
	store.insertFailures = 10
	svc, _ := testService(store)

	_, err := svc.CreateContent(context.Background(), models.ContentUpsert{Title: strPtr("Doomed")})
	if err == nil {
		t.Fatal("expected an error after exhausted retries")
	}
	// callers classify the failure as internal, not as a client conflict
	if errors.Is(err, database.ErrDuplicateExtID) {
		t.Fatalf("exhausted retries must not surface as a duplicate conflict: %v", err)
	}
	if store.inserts != insertAttempts {
		t.Errorf("expected %d attempts, got %d", insertAttempts, store.inserts)
	}
}

func TestCreateContentValidation(t *testing.T) {
	svc, _ := testService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.CreateContent(ctx, models.ContentUpsert{}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("missing title: expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.CreateContent(ctx, models.ContentUpsert{Title: strPtr("   ")}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("blank title: expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.CreateContent(ctx, models.ContentUpsert{
		Title: strPtr("X"), Type: strPtr("album"),
	}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("bad type: expected ErrInvalidType, got %v", err)
	}
	if _, err := svc.CreateContent(ctx, models.ContentUpsert{
		Title: strPtr("X"), Type: strPtr("Series"),
		Episodes: []models.Episode{{Season: 0, Episode: 1}},
	}); !errors.Is(err, ErrInvalidEpisode) {
		t.Errorf("bad episode: expected ErrInvalidEpisode, got %v", err)
	}
	if _, err := svc.CreateContent(ctx, models.ContentUpsert{
		Title: strPtr("X"), Type: strPtr("Series"),
		Episodes: []models.Episode{{Season: 1, Episode: 1}, {Season: 1, Episode: 1}},
	}); !errors.Is(err, ErrDuplicateEpisode) {
		t.Errorf("duplicate episode: expected ErrDuplicateEpisode, got %v", err)
	}
}

func TestCreateContentEnrichesEmptyFields(t *testing.T) {
	store := newFakeStore()
	rec := &fakeReconciler{}
	meta := &fakeMetadata{info: &models.MetadataInfo{
		Plot:        "A looked-up plot.",
		Director:    "Lookup Director",
		Actors:      []string{"Actor One"},
		Rating:      "8.1/10",
		RatingValue: floatPtr(8.1),
	}}
	svc := NewService(store, rec, meta, nil, nil)

	doc, err := svc.CreateContent(context.Background(), models.ContentUpsert{
		Title: strPtr("Enrich Me"),
		Plot:  strPtr("My own plot."),
	})
	if err != nil {
		t.Fatalf("CreateContent failed: %v", err)
	}
	if doc.Plot != "My own plot." {
		t.Errorf("provided plot must win over lookup, got %q", doc.Plot)
	}
	if doc.Director != "Lookup Director" {
		t.Errorf("expected director filled from lookup, got %q", doc.Director)
	}
	if doc.Rating != "8.1/10" || doc.RatingValue == nil || *doc.RatingValue != 8.1 {
		t.Errorf("expected rating filled from lookup, got %q %v", doc.Rating, doc.RatingValue)
	}
}

func TestCreateContentLookupFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	rec := &fakeReconciler{}
	meta := &fakeMetadata{err: errors.New("upstream down")}
	svc := NewService(store, rec, meta, nil, nil)

	doc, err := svc.CreateContent(context.Background(), models.ContentUpsert{Title: strPtr("Offline")})
	if err != nil {
		t.Fatalf("CreateContent must survive lookup failure: %v", err)
	}
	if doc.Plot != "" {
		t.Errorf("expected no enrichment, got plot %q", doc.Plot)
	}
}

func TestUpdateContentPartial(t *testing.T) {
	store := newFakeStore()
	store.docs["m1"] = &models.Content{ExtID: "m1", Title: "Old", Year: 2000, Type: models.ContentTypeMovie}
	svc, rec := testService(store)

	doc, err := svc.UpdateContent(context.Background(), "m1", models.ContentUpsert{
		Title: strPtr("New"),
		Type:  strPtr("Series"), // immutable, silently ignored
	})
	if err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}
	if doc.Title != "New" {
		t.Errorf("expected updated title, got %q", doc.Title)
	}
	if doc.Year != 2000 {
		t.Errorf("untouched field changed: year %d", doc.Year)
	}
	if doc.Type != models.ContentTypeMovie {
		t.Errorf("type must be immutable, got %q", doc.Type)
	}
	if len(rec.synced) != 1 {
		t.Errorf("expected one seed sync, got %v", rec.synced)
	}
}

func TestUpdateContentBlankTitleRejected(t *testing.T) {
	store := newFakeStore()
	store.docs["m1"] = &models.Content{ExtID: "m1", Title: "Old", Type: models.ContentTypeMovie}
	svc, _ := testService(store)

	_, err := svc.UpdateContent(context.Background(), "m1", models.ContentUpsert{Title: strPtr("  ")})
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestUpdateContentNotFound(t *testing.T) {
	svc, _ := testService(newFakeStore())

	_, err := svc.UpdateContent(context.Background(), "missing", models.ContentUpsert{Title: strPtr("X")})
	if !errors.Is(err, database.ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
}

func TestDeleteContentRemovesSeedEntry(t *testing.T) {
	store := newFakeStore()
	store.docs["m1"] = &models.Content{ExtID: "m1", Title: "Gone", Type: models.ContentTypeMovie}
	svc, rec := testService(store)

	if err := svc.DeleteContent(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}
	if len(rec.removed) != 1 || rec.removed[0] != "m1" {
		t.Errorf("expected seed removal for m1, got %v", rec.removed)
	}

	err := svc.DeleteContent(context.Background(), "m1")
	if !errors.Is(err, database.ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
}

func TestAddEpisode(t *testing.T) {
	store := newFakeStore()
	store.docs["s1"] = &models.Content{
		ExtID: "s1", Title: "Show", Type: models.ContentTypeSeries,
		Episodes: []models.Episode{{Season: 1, Episode: 2}},
	}
	svc, rec := testService(store)

	doc, err := svc.AddEpisode(context.Background(), "s1", models.Episode{Season: 1, Episode: 1, Title: "Pilot"})
	if err != nil {
		t.Fatalf("AddEpisode failed: %v", err)
	}
	if len(doc.Episodes) != 2 || doc.Episodes[0].Episode != 1 {
		t.Fatalf("expected sorted episode list, got %+v", doc.Episodes)
	}
	if len(rec.synced) != 1 {
		t.Errorf("expected seed sync, got %v", rec.synced)
	}
}

func TestAddEpisodeValidation(t *testing.T) {
	store := newFakeStore()
	store.docs["s1"] = &models.Content{
		ExtID: "s1", Title: "Show", Type: models.ContentTypeSeries,
		Episodes: []models.Episode{{Season: 1, Episode: 1}},
	}
	store.docs["m1"] = &models.Content{ExtID: "m1", Title: "Film", Type: models.ContentTypeMovie}
	svc, _ := testService(store)
	ctx := context.Background()

	if _, err := svc.AddEpisode(ctx, "s1", models.Episode{Season: 0, Episode: 1}); !errors.Is(err, ErrInvalidEpisode) {
		t.Errorf("expected ErrInvalidEpisode, got %v", err)
	}
	if _, err := svc.AddEpisode(ctx, "s1", models.Episode{Season: 1, Episode: 1}); !errors.Is(err, ErrDuplicateEpisode) {
		t.Errorf("expected ErrDuplicateEpisode, got %v", err)
	}
	if _, err := svc.AddEpisode(ctx, "m1", models.Episode{Season: 1, Episode: 1}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType for a movie, got %v", err)
	}
	if _, err := svc.AddEpisode(ctx, "missing", models.Episode{Season: 1, Episode: 1}); !errors.Is(err, database.ErrContentNotFound) {
		t.Errorf("expected ErrContentNotFound, got %v", err)
	}
}

func TestRemoveEpisode(t *testing.T) {
	store := newFakeStore()
	store.docs["s1"] = &models.Content{
		ExtID: "s1", Title: "Show", Type: models.ContentTypeSeries,
		Episodes: []models.Episode{{Season: 1, Episode: 1}, {Season: 1, Episode: 2}},
	}
	svc, _ := testService(store)

	doc, err := svc.RemoveEpisode(context.Background(), "s1", 1, 1)
	if err != nil {
		t.Fatalf("RemoveEpisode failed: %v", err)
	}
	if len(doc.Episodes) != 1 || doc.Episodes[0].Episode != 2 {
		t.Fatalf("unexpected episodes after removal: %+v", doc.Episodes)
	}
}

func TestListContentAlphabetical(t *testing.T) {
	store := newFakeStore()
	store.docs["m1"] = &models.Content{ExtID: "m1", Title: "zebra", Type: models.ContentTypeMovie}
	store.docs["m2"] = &models.Content{ExtID: "m2", Title: "Apple", Type: models.ContentTypeMovie}
	svc, _ := testService(store)

	items, err := svc.ListContent(context.Background())
	if err != nil {
		t.Fatalf("ListContent failed: %v", err)
	}
	if len(items) != 2 || items[0].Title != "Apple" {
		t.Fatalf("expected case-insensitive alphabetical order, got %+v", items)
	}
}
