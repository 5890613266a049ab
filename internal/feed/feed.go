// The feed package maintains the three status timelines and the notification
// list, and applies user actions (favourite, boost, post) to them.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"codeberg.org/gruf/go-mutexes"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/gotoot/internal/client"
	"github.com/sidereusnuntius/gotoot/internal/domain"
	"github.com/sidereusnuntius/gotoot/internal/validate"
)

// ErrUnknownFlag is returned when a toggle is requested for a status whose
// interaction state the server did not report. Without a known current value
// there is no inverse action to issue.
var ErrUnknownFlag = errors.New("interaction state unknown for this status")

const notificationsKey = "notifications"

// Store holds the feed sequences, newest first, exactly as the server
// returned them; no client-side re-sorting or deduplication is done. Each
// feed's fetch-and-apply window is serialized by a keyed mutex so a refresh
// and a load-more on the same feed cannot interleave a replace with an
// append; operations on different feeds run concurrently. Separate calls
// still race at the server, last response wins.
type Store struct {
	client *client.Client
	limit  int

	locks mutexes.MutexMap

	mu            sync.Mutex
	home          []domain.Status
	local         []domain.Status
	federated     []domain.Status
	notifications []domain.Notification
	loading       bool
	observers     []func()
}

func New(c *client.Client, limit int) *Store {
	if limit <= 0 {
		limit = client.DefaultLimit
	}
	return &Store{
		client: c,
		limit:  limit,
	}
}

// Subscribe registers an observer invoked after every applied mutation.
// Observers run outside the store's locks.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// sequence returns the slice backing a timeline. Callers must hold s.mu.
func (s *Store) sequence(t client.Timeline) *[]domain.Status {
	switch t {
	case client.TimelineLocal:
		return &s.local
	case client.TimelineFederated:
		return &s.federated
	default:
		return &s.home
	}
}

// Timeline returns a snapshot of a feed's current contents.
func (s *Store) Timeline(t client.Timeline) []domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := *s.sequence(t)
	out := make([]domain.Status, len(seq))
	copy(out, seq)
	return out
}

func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Loading reports whether a timeline operation is in flight. The flag is
// shared across timelines; a per-feed flag would be more precise but the
// consumer only uses it to gate a single refresh spinner.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Refresh fetches the most recent page of a feed and replaces its contents
// wholesale. On failure the previous contents stay; the user sees stale data
// rather than an empty view.
func (s *Store) Refresh(ctx context.Context, t client.Timeline) error {
	unlock := s.locks.Lock(string(t))
	defer unlock()

	s.setLoading(true)
	defer s.setLoading(false)

	statuses, err := s.client.GetTimeline(ctx, t, s.limit, "")
	if err != nil {
		log.Error().Err(err).Str("feed", string(t)).Msg("timeline refresh failed")
		return err
	}

	s.mu.Lock()
	*s.sequence(t) = statuses
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadMore fetches the page older than the feed's current tail and appends
// it. A load on an empty feed is a no-op; repeated calls walk monotonically
// backward in time because the cursor is always the tail after the previous
// append.
func (s *Store) LoadMore(ctx context.Context, t client.Timeline) error {
	unlock := s.locks.Lock(string(t))
	defer unlock()

	s.mu.Lock()
	seq := *s.sequence(t)
	if len(seq) == 0 {
		s.mu.Unlock()
		return nil
	}
	maxID := seq[len(seq)-1].ID
	s.mu.Unlock()

	statuses, err := s.client.GetTimeline(ctx, t, s.limit, maxID)
	if err != nil {
		log.Error().Err(err).Str("feed", string(t)).Str("max_id", maxID).Msg("load more failed")
		return err
	}

	s.mu.Lock()
	*s.sequence(t) = append(*s.sequence(t), statuses...)
	s.mu.Unlock()
	s.notify()
	return nil
}

// RefreshNotifications replaces the notification list with the most recent
// page.
func (s *Store) RefreshNotifications(ctx context.Context) error {
	unlock := s.locks.Lock(notificationsKey)
	defer unlock()

	notifications, err := s.client.GetNotifications(ctx, s.limit, "")
	if err != nil {
		log.Error().Err(err).Msg("notifications refresh failed")
		return err
	}

	s.mu.Lock()
	s.notifications = notifications
	s.mu.Unlock()
	s.notify()
	return nil
}

// ToggleFavourite issues the inverse of the status's current favourited
// state and folds the server's updated status back into every timeline
// holding it. The caller must pass the canonical status (Target of a boost);
// the store mutates by id.
func (s *Store) ToggleFavourite(ctx context.Context, status domain.Status) (domain.Status, error) {
	if status.Favourited == nil {
		return domain.Status{}, fmt.Errorf("%w: favourited", ErrUnknownFlag)
	}

	var updated domain.Status
	var err error
	if *status.Favourited {
		updated, err = s.client.Unfavourite(ctx, status.ID)
	} else {
		updated, err = s.client.Favourite(ctx, status.ID)
	}
	if err != nil {
		log.Error().Err(err).Str("id", status.ID).Msg("favourite action failed")
		return domain.Status{}, err
	}

	s.applyUpdate(updated)
	return updated, nil
}

// ToggleReblog is ToggleFavourite's twin for boosts.
func (s *Store) ToggleReblog(ctx context.Context, status domain.Status) (domain.Status, error) {
	if status.Reblogged == nil {
		return domain.Status{}, fmt.Errorf("%w: reblogged", ErrUnknownFlag)
	}

	var updated domain.Status
	var err error
	if *status.Reblogged {
		updated, err = s.client.Unreblog(ctx, status.ID)
	} else {
		updated, err = s.client.Reblog(ctx, status.ID)
	}
	if err != nil {
		log.Error().Err(err).Str("id", status.ID).Msg("reblog action failed")
		return domain.Status{}, err
	}

	s.applyUpdate(updated)
	return updated, nil
}

// applyUpdate replaces the status with the given id wherever a timeline holds
// it. A status can legitimately sit in more than one feed; every occurrence
// must show the same state afterwards. Feeds not holding the id are left
// untouched.
func (s *Store) applyUpdate(updated domain.Status) {
	s.mu.Lock()
	for _, seq := range []*[]domain.Status{&s.home, &s.local, &s.federated} {
		replaceByID(*seq, updated)
	}
	s.mu.Unlock()
	s.notify()
}

func replaceByID(seq []domain.Status, updated domain.Status) {
	for i := range seq {
		if seq[i].ID == updated.ID {
			seq[i] = updated
		}
	}
}

// Post publishes a new status. A top-level post is inserted at the front of
// the home timeline only; the server will surface it in the public feeds on
// their next refresh. A reply is not inserted anywhere.
func (s *Store) Post(ctx context.Context, content, visibility, inReplyToID string) (domain.Status, error) {
	if err := validate.StatusContent(content); err != nil {
		return domain.Status{}, err
	}

	status, err := s.client.PostStatus(ctx, content, visibility, inReplyToID)
	if err != nil {
		log.Error().Err(err).Msg("post failed")
		return domain.Status{}, err
	}

	if inReplyToID == "" {
		s.mu.Lock()
		s.home = append([]domain.Status{status}, s.home...)
		s.mu.Unlock()
		s.notify()
	}
	return status, nil
}

// Search passes a query through to the instance. Results are returned to the
// caller, not held in the store.
func (s *Store) Search(ctx context.Context, q, searchType string) (domain.SearchResults, error) {
	results, err := s.client.Search(ctx, q, searchType)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("search failed")
	}
	return results, err
}
