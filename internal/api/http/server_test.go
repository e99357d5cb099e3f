package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"subtitlehub/internal/catalog"
	"subtitlehub/internal/domain"
	"subtitlehub/internal/requests"
)

type fakeCatalog struct {
	records  map[string]domain.SubtitleRecord
	searches []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[string]domain.SubtitleRecord)}
}

func (f *fakeCatalog) Ingest(ctx context.Context, input catalog.IngestInput) (domain.SubtitleRecord, error) {
	if input.File.FileID == "" {
		return domain.SubtitleRecord{}, catalog.ErrMissingFile
	}
	if strings.TrimSpace(input.RawTitle) == "" {
		return domain.SubtitleRecord{}, catalog.ErrEmptyTitle
	}
	record := domain.SubtitleRecord{
		ID:    domain.SubtitleID(input.RawTitle),
		Title: input.RawTitle,
		File:  input.File,
	}
	f.records[input.File.FileID] = record
	return record, nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]domain.SubtitleRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, catalog.ErrInvalidQuery
	}
	f.searches = append(f.searches, query)
	var out []domain.SubtitleRecord
	for _, record := range f.records {
		if strings.Contains(strings.ToLower(record.Title), strings.ToLower(query)) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeCatalog) LookupFile(ctx context.Context, fileID string) (domain.SubtitleRecord, error) {
	record, ok := f.records[fileID]
	if !ok {
		return domain.SubtitleRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeCatalog) LookupSource(ctx context.Context, messageID, channelID int64) (domain.SubtitleRecord, error) {
	for _, record := range f.records {
		if record.Source.MessageID == messageID && record.Source.ChannelID == channelID {
			return record, nil
		}
	}
	return domain.SubtitleRecord{}, domain.ErrNotFound
}

func (f *fakeCatalog) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

type fakeRequests struct {
	byID   map[domain.RequestID]domain.Request
	nextID int
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{byID: make(map[domain.RequestID]domain.Request)}
}

func (f *fakeRequests) Create(ctx context.Context, userID int64, title string, meta *domain.TitleMeta) (domain.Request, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Request{}, requests.ErrEmptyTitle
	}
	f.nextID++
	request := domain.Request{
		ID:     domain.RequestID(fmt.Sprintf("req-%d", f.nextID)),
		UserID: userID,
		Title:  strings.TrimSpace(title),
		Meta:   meta,
		Status: domain.RequestPending,
	}
	f.byID[request.ID] = request
	return request, nil
}

func (f *fakeRequests) Transition(ctx context.Context, id domain.RequestID, status domain.RequestStatus, fulfilledFileID string) (domain.Request, error) {
	if !status.Valid() {
		return domain.Request{}, requests.ErrUnknownStatus
	}
	request, ok := f.byID[id]
	if !ok {
		return domain.Request{}, domain.ErrNotFound
	}
	if status == domain.RequestFulfilled && strings.TrimSpace(fulfilledFileID) == "" {
		return domain.Request{}, requests.ErrMissingFulfilledFile
	}
	if !request.Status.CanTransitionTo(status) {
		return domain.Request{}, requests.ErrIllegalTransition
	}
	request.Status = status
	if status == domain.RequestFulfilled {
		request.FulfilledFileID = fulfilledFileID
	}
	f.byID[id] = request
	return request, nil
}

func (f *fakeRequests) ListPending(ctx context.Context) ([]domain.Request, error) {
	var pending []domain.Request
	for _, request := range f.byID {
		if request.Status == domain.RequestPending {
			pending = append(pending, request)
		}
	}
	return pending, nil
}

func (f *fakeRequests) Get(ctx context.Context, id domain.RequestID) (domain.Request, error) {
	request, ok := f.byID[id]
	if !ok {
		return domain.Request{}, domain.ErrNotFound
	}
	return request, nil
}

type fakeUsers struct {
	touched   []int64
	downloads map[int64]int
	blocked   map[int64]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{downloads: make(map[int64]int), blocked: make(map[int64]bool)}
}

func (f *fakeUsers) Touch(ctx context.Context, user domain.User) error {
	f.touched = append(f.touched, user.ID)
	return nil
}

func (f *fakeUsers) RecordDownload(ctx context.Context, userID int64) error {
	f.downloads[userID]++
	return nil
}

func (f *fakeUsers) MarkBlocked(ctx context.Context, userID int64, blocked bool) error {
	f.blocked[userID] = blocked
	return nil
}

func (f *fakeUsers) Get(ctx context.Context, userID int64) (domain.User, error) {
	return domain.User{ID: userID}, nil
}

func (f *fakeUsers) Count(ctx context.Context, activeOnly bool) (int64, error) {
	return int64(len(f.touched)), nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Setting(ctx context.Context, key string) (string, bool, error) {
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *fakeSettings) SetSetting(ctx context.Context, key, value string) error {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[key] = value
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeCatalog, *fakeRequests, *fakeUsers, *fakeSettings) {
	t.Helper()
	cat := newFakeCatalog()
	reqs := newFakeRequests()
	usrs := newFakeUsers()
	settings := &fakeSettings{values: map[string]string{}}
	srv := NewServer(cat,
		WithRequests(reqs),
		WithUsers(usrs),
		WithSettings(settings),
	)
	t.Cleanup(srv.Close)
	return srv, cat, reqs, usrs, settings
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	srv, cat, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/catalog/subtitles", ingestPayload{
		Title: "Oldboy 2003",
		File:  domain.FileRef{FileID: "f1", FileName: "oldboy.srt"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if len(cat.records) != 1 {
		t.Errorf("records: got %d, want 1", len(cat.records))
	}

	rec = doJSON(t, srv, http.MethodPost, "/catalog/subtitles", ingestPayload{Title: "No File"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: got %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/catalog/subtitles", strings.NewReader("{not json"))
	out := httptest.NewRecorder()
	srv.ServeHTTP(out, req)
	if out.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: got %d, want 400", out.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, cat, _, _, _ := newTestServer(t)
	cat.records["f1"] = domain.SubtitleRecord{ID: "x", Title: "Oldboy 2003", File: domain.FileRef{FileID: "f1"}}

	rec := doJSON(t, srv, http.MethodGet, "/catalog/search?q=oldboy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		Results []domain.SubtitleRecord `json:"results"`
		Count   int                     `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Results) != 1 {
		t.Errorf("results: got %d/%d, want 1/1", body.Count, len(body.Results))
	}

	rec = doJSON(t, srv, http.MethodGet, "/catalog/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d, want 400", rec.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_request" {
		t.Errorf("error code: got %q", envelope.Error.Code)
	}
}

func TestFileLookupEndpoint(t *testing.T) {
	srv, cat, _, _, _ := newTestServer(t)
	cat.records["f1"] = domain.SubtitleRecord{ID: "x", Title: "Oldboy 2003", File: domain.FileRef{FileID: "f1"}}

	rec := doJSON(t, srv, http.MethodGet, "/catalog/files/f1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/catalog/files/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file: got %d, want 404", rec.Code)
	}
}

func TestRequestEndpoints(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/requests", createRequestPayload{UserID: 42, Title: "Decision to Leave"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}
	var created domain.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, srv, http.MethodPost, "/requests", createRequestPayload{UserID: 42, Title: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty title: got %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/requests/pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending: got %d", rec.Code)
	}

	// pending -> fulfilled is not a legal edge.
	rec = doJSON(t, srv, http.MethodPatch, "/requests/"+string(created.ID), transitionPayload{Status: "fulfilled", FulfilledFileID: "f1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("illegal transition: got %d, want 409", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/requests/"+string(created.ID), transitionPayload{Status: "done"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: got %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/requests/"+string(created.ID), transitionPayload{Status: "approved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: got %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPatch, "/requests/"+string(created.ID), transitionPayload{Status: "fulfilled", FulfilledFileID: "f1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("fulfill: got %d", rec.Code)
	}
	var fulfilled domain.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &fulfilled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fulfilled.FulfilledFileID != "f1" {
		t.Errorf("FulfilledFileID: got %q", fulfilled.FulfilledFileID)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/requests/missing", transitionPayload{Status: "approved"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing request: got %d, want 404", rec.Code)
	}
}

func TestDownloadsEndpoint(t *testing.T) {
	srv, cat, _, usrs, _ := newTestServer(t)
	cat.records["f1"] = domain.SubtitleRecord{ID: "x", Title: "Oldboy 2003", File: domain.FileRef{FileID: "f1"}}

	rec := doJSON(t, srv, http.MethodPost, "/downloads", downloadPayload{UserID: 42, FileID: "f1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if usrs.downloads[42] != 1 {
		t.Errorf("downloads: got %d, want 1", usrs.downloads[42])
	}

	rec = doJSON(t, srv, http.MethodPost, "/downloads", downloadPayload{UserID: 42, FileID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file: got %d, want 404", rec.Code)
	}
	if usrs.downloads[42] != 1 {
		t.Errorf("counter bumped for missing file: got %d", usrs.downloads[42])
	}
}

func TestUserEndpoints(t *testing.T) {
	srv, _, _, usrs, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/users", touchPayload{ID: 42, Username: "someone"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("touch: got %d", rec.Code)
	}
	if len(usrs.touched) != 1 || usrs.touched[0] != 42 {
		t.Errorf("touched: %v", usrs.touched)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/users/42", blockedPayload{Blocked: true})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("block: got %d", rec.Code)
	}
	if !usrs.blocked[42] {
		t.Error("user not marked blocked")
	}

	rec = doJSON(t, srv, http.MethodPatch, "/users/abc", blockedPayload{Blocked: true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", rec.Code)
	}
}

func TestStartImageEndpoints(t *testing.T) {
	srv, _, _, _, settings := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/settings/start-image", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unset: got %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/settings/start-image", startImagePayload{Value: "file-abc"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put: got %d", rec.Code)
	}
	if settings.values[startImageKey] != "file-abc" {
		t.Errorf("stored value: got %q", settings.values[startImageKey])
	}

	rec = doJSON(t, srv, http.MethodGet, "/settings/start-image", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}
	var payload startImagePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Value != "file-abc" {
		t.Errorf("Value: got %q", payload.Value)
	}

	rec = doJSON(t, srv, http.MethodPut, "/settings/start-image", startImagePayload{Value: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank value: got %d, want 400", rec.Code)
	}
}

func TestSuggestWithoutProvider(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/metadata/suggest?q=oldboy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		Suggestions []domain.TitleMeta `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Suggestions) != 0 {
		t.Errorf("suggestions: got %d, want 0", len(body.Suggestions))
	}

	rec = doJSON(t, srv, http.MethodGet, "/metadata/suggest", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query: got %d, want 400", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, cat, _, _, _ := newTestServer(t)
	cat.records["f1"] = domain.SubtitleRecord{ID: "x", Title: "Oldboy 2003"}

	rec := doJSON(t, srv, http.MethodGet, "/catalog/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Subtitles != 1 {
		t.Errorf("Subtitles: got %d, want 1", body.Subtitles)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodDelete, "/catalog/search", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", rec.Code)
	}
}

func TestAdminGuard(t *testing.T) {
	cat := newFakeCatalog()
	reqs := newFakeRequests()
	usrs := newFakeUsers()
	settings := &fakeSettings{values: map[string]string{}}
	srv := NewServer(cat,
		WithRequests(reqs),
		WithUsers(usrs),
		WithSettings(settings),
		WithAdminIDs([]int64{7, 42}),
	)
	t.Cleanup(srv.Close)

	created, _ := reqs.Create(context.Background(), 1, "old film", nil)

	doAdmin := func(adminID string, method, path string, body interface{}) *httptest.ResponseRecorder {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req := httptest.NewRequest(method, path, bytes.NewReader(data))
		if adminID != "" {
			req.Header.Set("X-Admin-ID", adminID)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	transition := transitionPayload{Status: string(domain.RequestApproved)}
	path := "/requests/" + string(created.ID)

	if rec := doAdmin("", http.MethodPatch, path, transition); rec.Code != http.StatusForbidden {
		t.Errorf("no header: got %d, want 403", rec.Code)
	}
	if rec := doAdmin("99", http.MethodPatch, path, transition); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: got %d, want 403", rec.Code)
	}
	if reqs.byID[created.ID].Status != domain.RequestPending {
		t.Fatalf("request transitioned despite 403")
	}
	if rec := doAdmin("42", http.MethodPatch, path, transition); rec.Code != http.StatusOK {
		t.Errorf("admin: got %d, want 200", rec.Code)
	}

	if rec := doAdmin("", http.MethodPut, "/settings/start-image", startImagePayload{Value: "img"}); rec.Code != http.StatusForbidden {
		t.Errorf("start image without admin: got %d, want 403", rec.Code)
	}
	if rec := doAdmin("7", http.MethodPut, "/settings/start-image", startImagePayload{Value: "img"}); rec.Code != http.StatusNoContent {
		t.Errorf("start image as admin: got %d, want 204", rec.Code)
	}

	if rec := doAdmin("", http.MethodPatch, "/users/5", blockedPayload{Blocked: true}); rec.Code != http.StatusForbidden {
		t.Errorf("block without admin: got %d, want 403", rec.Code)
	}
	if rec := doAdmin("7", http.MethodPatch, "/users/5", blockedPayload{Blocked: true}); rec.Code != http.StatusNoContent {
		t.Errorf("block as admin: got %d, want 204", rec.Code)
	}

	// Reads stay open.
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("read without admin: got %d, want 200", rec.Code)
	}
}

func TestIngestChannelFilter(t *testing.T) {
	cat := newFakeCatalog()
	srv := NewServer(cat, WithIndexChannel(-100500))
	t.Cleanup(srv.Close)

	rec := doJSON(t, srv, http.MethodPost, "/catalog/subtitles", ingestPayload{
		Title:  "Oldboy 2003",
		File:   domain.FileRef{FileID: "f1"},
		Source: domain.SourceRef{MessageID: 1, ChannelID: -200},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign channel: got %d, want 403", rec.Code)
	}
	if len(cat.records) != 0 {
		t.Fatalf("record ingested from foreign channel")
	}

	rec = doJSON(t, srv, http.MethodPost, "/catalog/subtitles", ingestPayload{
		Title:  "Oldboy 2003",
		File:   domain.FileRef{FileID: "f1"},
		Source: domain.SourceRef{MessageID: 1, ChannelID: -100500},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("index channel: got %d, want 200", rec.Code)
	}
}
