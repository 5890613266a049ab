package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/sidereusnuntius/gotoot/internal/client"
	"github.com/sidereusnuntius/gotoot/internal/domain"
)

var ctx = context.Background()

func boolPtr(b bool) *bool { return &b }

func newStatus(id string, count int) domain.Status {
	return domain.Status{
		ID:              id,
		Content:         "<p>status " + id + "</p>",
		Visibility:      domain.VisibilityPublic,
		FavouritesCount: count,
		Favourited:      boolPtr(false),
		Reblogged:       boolPtr(false),
		Account:         domain.Account{ID: "1", Username: "amy", Acct: "amy"},
	}
}

// fixture is a minimal stateful instance: fixed page layouts over a mutable
// status table, so favourite state survives between requests.
type fixture struct {
	mu       sync.Mutex
	statuses map[string]domain.Status
	requests int
	failNext bool
}

func (f *fixture) page(ids []string) []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.statuses[id])
	}
	return out
}

func (f *fixture) count(w http.ResponseWriter) bool {
	f.mu.Lock()
	f.requests++
	fail := f.failNext
	f.failNext = false
	f.mu.Unlock()
	if fail {
		http.Error(w, `{"error": "boom"}`, http.StatusInternalServerError)
	}
	return fail
}

func (f *fixture) timeline(pages map[string][]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.count(w) {
			return
		}
		json.NewEncoder(w).Encode(f.page(pages[r.URL.Query().Get("max_id")]))
	}
}

func (f *fixture) interaction(field string, value bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.count(w) {
			return
		}
		id := chi.URLParam(r, "id")
		f.mu.Lock()
		status, ok := f.statuses[id]
		if !ok {
			f.mu.Unlock()
			http.Error(w, `{"error": "Record not found"}`, http.StatusNotFound)
			return
		}
		switch field {
		case "favourited":
			if *status.Favourited != value {
				if value {
					status.FavouritesCount++
				} else {
					status.FavouritesCount--
				}
			}
			status.Favourited = boolPtr(value)
		case "reblogged":
			if *status.Reblogged != value {
				if value {
					status.ReblogsCount++
				} else {
					status.ReblogsCount--
				}
			}
			status.Reblogged = boolPtr(value)
		}
		f.statuses[id] = status
		f.mu.Unlock()
		json.NewEncoder(w).Encode(status)
	}
}

func newInstance(t *testing.T) (*fixture, *Store) {
	t.Helper()
	f := &fixture{statuses: map[string]domain.Status{
		"0": newStatus("0", 0),
		"1": newStatus("1", 1),
		"2": newStatus("2", 0),
		"3": newStatus("3", 2),
		"5": newStatus("5", 0),
		"8": newStatus("8", 4),
	}}

	router := chi.NewRouter()
	router.Get("/api/v1/timelines/home", f.timeline(map[string][]string{
		"": {"5", "3", "1"},
		"1": {"0"},
	}))
	router.Get("/api/v1/timelines/public", func(w http.ResponseWriter, r *http.Request) {
		pages := map[string][]string{"": {"8", "3"}}
		if r.URL.Query().Get("local") == "true" {
			pages = map[string][]string{"": {"3", "2"}}
		}
		f.timeline(pages)(w, r)
	})
	router.Post("/api/v1/statuses/{id}/favourite", f.interaction("favourited", true))
	router.Post("/api/v1/statuses/{id}/unfavourite", f.interaction("favourited", false))
	router.Post("/api/v1/statuses/{id}/reblog", f.interaction("reblogged", true))
	router.Post("/api/v1/statuses/{id}/unreblog", f.interaction("reblogged", false))
	router.Post("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		if f.count(w) {
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		status := newStatus("9", 0)
		status.Content = body["status"]
		if replyTo := body["in_reply_to_id"]; replyTo != "" {
			status.InReplyToID = &replyTo
		}
		json.NewEncoder(w).Encode(status)
	})
	router.Get("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		if f.count(w) {
			return
		}
		json.NewEncoder(w).Encode([]domain.Notification{
			{ID: "n2", Type: domain.NotificationFavourite, Account: domain.Account{ID: "2", Acct: "bob"}},
			{ID: "n1", Type: domain.NotificationFollow, Account: domain.Account{ID: "3", Acct: "eve"}},
		})
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	c := client.New(nil)
	c.SetCredentials(server.URL, "token123")
	return f, New(c, 20)
}

func ids(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.ID
	}
	return out
}

func TestRefreshReplaces(t *testing.T) {
	_, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}

	got := ids(store.Timeline(client.TimelineHome))
	if diff := cmp.Diff([]string{"5", "3", "1"}, got); diff != "" {
		t.Errorf("repeated refresh must replace, not append (-want +got):\n%s", diff)
	}
}

func TestLoadMoreAppends(t *testing.T) {
	_, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	if err := store.LoadMore(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}

	got := ids(store.Timeline(client.TimelineHome))
	if diff := cmp.Diff([]string{"5", "3", "1", "0"}, got); diff != "" {
		t.Errorf("load more result (-want +got):\n%s", diff)
	}

	// The cursor has moved to the new tail; the next page is empty and the
	// sequence must not change, so repeated loads cannot loop forever.
	if err := store.LoadMore(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	got = ids(store.Timeline(client.TimelineHome))
	if diff := cmp.Diff([]string{"5", "3", "1", "0"}, got); diff != "" {
		t.Errorf("stationary feed changed (-want +got):\n%s", diff)
	}
}

func TestLoadMoreOnEmptyFeedIsNoop(t *testing.T) {
	f, store := newInstance(t)

	if err := store.LoadMore(ctx, client.TimelineLocal); err != nil {
		t.Fatal(err)
	}
	if f.requests != 0 {
		t.Errorf("load more on an empty feed made %d requests, want 0", f.requests)
	}
}

func TestRefreshFailureKeepsState(t *testing.T) {
	f, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	f.failNext = true
	if err := store.Refresh(ctx, client.TimelineHome); err == nil {
		t.Fatal("expected refresh error")
	}

	got := ids(store.Timeline(client.TimelineHome))
	if diff := cmp.Diff([]string{"5", "3", "1"}, got); diff != "" {
		t.Errorf("failed refresh must leave stale data intact (-want +got):\n%s", diff)
	}
	if store.Loading() {
		t.Error("loading flag stuck after failure")
	}
}

func TestMutationPropagation(t *testing.T) {
	_, store := newInstance(t)

	// Status 3 sits in both the home and local feeds.
	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	if err := store.Refresh(ctx, client.TimelineLocal); err != nil {
		t.Fatal(err)
	}

	var target domain.Status
	for _, s := range store.Timeline(client.TimelineHome) {
		if s.ID == "3" {
			target = s
		}
	}
	updated, err := store.ToggleFavourite(ctx, target)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Favourited == nil || !*updated.Favourited || updated.FavouritesCount != 3 {
		t.Errorf("unexpected updated status: %+v", updated)
	}

	for _, timeline := range []client.Timeline{client.TimelineHome, client.TimelineLocal} {
		for _, s := range store.Timeline(timeline) {
			if s.ID != "3" {
				continue
			}
			if s.Favourited == nil || !*s.Favourited || s.FavouritesCount != 3 {
				t.Errorf("%s feed copy not updated: %+v", timeline, s)
			}
		}
	}

	// The federated feed was never loaded and must stay empty.
	if n := len(store.Timeline(client.TimelineFederated)); n != 0 {
		t.Errorf("federated feed has %d entries, want 0", n)
	}
}

func TestToggleFavouriteIdempotence(t *testing.T) {
	_, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	original := store.Timeline(client.TimelineHome)[1] // id 3, count 2

	once, err := store.ToggleFavourite(ctx, original)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := store.ToggleFavourite(ctx, once)
	if err != nil {
		t.Fatal(err)
	}

	if twice.FavouritesCount != original.FavouritesCount {
		t.Errorf("count after favourite+unfavourite = %d, want %d", twice.FavouritesCount, original.FavouritesCount)
	}
	if *twice.Favourited != *original.Favourited {
		t.Error("flag did not return to its original value")
	}
}

func TestToggleReblog(t *testing.T) {
	_, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	target := store.Timeline(client.TimelineHome)[0] // id 5

	updated, err := store.ToggleReblog(ctx, target)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Reblogged == nil || !*updated.Reblogged || updated.ReblogsCount != 1 {
		t.Errorf("unexpected updated status: %+v", updated)
	}
}

func TestToggleUnknownFlag(t *testing.T) {
	f, store := newInstance(t)

	_, err := store.ToggleFavourite(ctx, domain.Status{ID: "3"})
	if !errors.Is(err, ErrUnknownFlag) {
		t.Errorf("err = %v, want ErrUnknownFlag", err)
	}
	_, err = store.ToggleReblog(ctx, domain.Status{ID: "3"})
	if !errors.Is(err, ErrUnknownFlag) {
		t.Errorf("err = %v, want ErrUnknownFlag", err)
	}
	if f.requests != 0 {
		t.Errorf("toggling an unknown flag made %d requests, want 0", f.requests)
	}
}

func TestToggleFailureLeavesSequences(t *testing.T) {
	f, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	before := store.Timeline(client.TimelineHome)

	f.failNext = true
	target := before[1]
	if _, err := store.ToggleFavourite(ctx, target); err == nil {
		t.Fatal("expected toggle error")
	}

	if diff := cmp.Diff(before, store.Timeline(client.TimelineHome)); diff != "" {
		t.Errorf("failed toggle changed the feed (-before +after):\n%s", diff)
	}
}

func TestPostInsertsAtFrontOfHomeOnly(t *testing.T) {
	_, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	if err := store.Refresh(ctx, client.TimelineLocal); err != nil {
		t.Fatal(err)
	}

	status, err := store.Post(ctx, "hello fediverse", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if status.ID != "9" {
		t.Fatalf("posted id = %s", status.ID)
	}

	home := ids(store.Timeline(client.TimelineHome))
	if diff := cmp.Diff([]string{"9", "5", "3", "1"}, home); diff != "" {
		t.Errorf("home after post (-want +got):\n%s", diff)
	}
	local := ids(store.Timeline(client.TimelineLocal))
	if diff := cmp.Diff([]string{"3", "2"}, local); diff != "" {
		t.Errorf("local must not change on post (-want +got):\n%s", diff)
	}
}

func TestReplyIsNotInserted(t *testing.T) {
	_, store := newInstance(t)

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Post(ctx, "replying", "", "3"); err != nil {
		t.Fatal(err)
	}
	home := ids(store.Timeline(client.TimelineHome))
	if diff := cmp.Diff([]string{"5", "3", "1"}, home); diff != "" {
		t.Errorf("reply must not be inserted anywhere (-want +got):\n%s", diff)
	}
}

func TestPostRejectsEmptyAndOverlongContent(t *testing.T) {
	f, store := newInstance(t)

	if _, err := store.Post(ctx, "   ", "", ""); err == nil {
		t.Error("expected error for blank status")
	}
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := store.Post(ctx, string(long), "", ""); err == nil {
		t.Error("expected error for overlong status")
	}
	if f.requests != 0 {
		t.Errorf("invalid posts made %d requests, want 0", f.requests)
	}
}

func TestRefreshNotifications(t *testing.T) {
	_, store := newInstance(t)

	if err := store.RefreshNotifications(ctx); err != nil {
		t.Fatal(err)
	}
	notifications := store.Notifications()
	if len(notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notifications))
	}
	if notifications[0].ID != "n2" || notifications[0].Type != domain.NotificationFavourite {
		t.Errorf("unexpected first notification: %+v", notifications[0])
	}
}

func TestObserverNotified(t *testing.T) {
	_, store := newInstance(t)

	var notified int
	store.Subscribe(func() { notified++ })

	if err := store.Refresh(ctx, client.TimelineHome); err != nil {
		t.Fatal(err)
	}
	if notified != 1 {
		t.Errorf("observer called %d times after refresh, want 1", notified)
	}
}
