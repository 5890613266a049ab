// The session package drives the OAuth2 authorization code flow against an
// arbitrary instance and keeps the resulting account session, restoring it
// from the credential store across restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/gotoot/internal/client"
	"github.com/sidereusnuntius/gotoot/internal/credstore"
	"github.com/sidereusnuntius/gotoot/internal/domain"
	"github.com/sidereusnuntius/gotoot/internal/validate"
)

// State of the login flow. Registration and code exchange are user-paced
// steps; between them the user authorizes the app in a browser.
type State int

const (
	Unregistered State = iota
	Registering
	Registered
	ExchangingCode
	Verifying
	Authenticated
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registering:
		return "registering"
	case Registered:
		return "registered"
	case ExchangingCode:
		return "exchanging code"
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case LoggedOut:
		return "logged out"
	default:
		return "unknown"
	}
}

var (
	// ErrNotRegistered is returned when ExchangeCode is called before a
	// successful RegisterApp. No network call is made.
	ErrNotRegistered   = errors.New("no registered application for this instance")
	ErrAppRegistration = errors.New("app registration failed")
	ErrTokenExchange   = errors.New("token exchange failed")
	ErrVerification    = errors.New("credential verification failed")
)

// Session owns the login state machine. All transitions are serialized by a
// single mutex; observers are notified after every state change.
type Session struct {
	client     *client.Client
	store      credstore.Store
	clientName string

	mu        sync.Mutex
	state     State
	instance  string
	app       domain.Application
	token     domain.Token
	account   *domain.Account
	observers []func(State)
}

func New(c *client.Client, store credstore.Store, clientName string) *Session {
	return &Session{
		client:     c,
		store:      store,
		clientName: clientName,
		state:      Unregistered,
	}
}

// Subscribe registers an observer called with the new state after every
// transition. Observers run synchronously under the session lock and must
// not call back into the session.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// setState requires s.mu to be held.
func (s *Session) setState(state State) {
	s.state = state
	for _, fn := range s.observers {
		fn(state)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Instance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// Account returns the verified (or restored) account snapshot, nil before
// authentication.
func (s *Session) Account() *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// RegisterApp registers this client with the given instance and stores the
// returned client id and secret for the code exchange. On failure the state
// stays Unregistered so the user can retry with a corrected hostname.
func (s *Session) RegisterApp(ctx context.Context, host string) error {
	if err := validate.Host(host); err != nil {
		return fmt.Errorf("%w: %v", ErrAppRegistration, err)
	}

	s.mu.Lock()
	s.setState(Registering)
	s.mu.Unlock()

	app, err := s.client.RegisterApp(ctx, host, s.clientName)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("instance", host).Msg("app registration failed")
		s.setState(Unregistered)
		return fmt.Errorf("%w: %v", ErrAppRegistration, err)
	}
	s.instance = host
	s.app = app
	s.setState(Registered)
	return nil
}

// AuthorizeURL is the browser URL where the user grants access. Only valid
// once RegisterApp has succeeded.
func (s *Session) AuthorizeURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.app.ClientID == "" {
		return "", ErrNotRegistered
	}
	return client.AuthorizeURL(s.instance, s.app.ClientID), nil
}

// ExchangeCode trades the authorization code the user copied from the browser
// for an access token, then verifies it. A failed exchange returns to
// Registered; the client id and secret stay usable for a retry.
func (s *Session) ExchangeCode(ctx context.Context, code string) error {
	s.mu.Lock()
	if s.app.ClientID == "" {
		s.mu.Unlock()
		return ErrNotRegistered
	}
	host, app := s.instance, s.app
	s.setState(ExchangingCode)
	s.mu.Unlock()

	token, err := s.client.ExchangeToken(ctx, host, app.ClientID, app.ClientSecret, code)
	if err != nil {
		log.Error().Err(err).Str("instance", host).Msg("token exchange failed")
		s.mu.Lock()
		s.setState(Registered)
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return s.VerifyAndActivate(ctx)
}

// VerifyAndActivate checks the freshly obtained token against the instance
// and, on success, persists the session and publishes the verified account.
// Failure drops the partial token and lands in LoggedOut.
func (s *Session) VerifyAndActivate(ctx context.Context) error {
	s.mu.Lock()
	host, token := s.instance, s.token
	s.setState(Verifying)
	s.mu.Unlock()

	s.client.SetCredentials(client.BaseURL(host), token.AccessToken)

	account, err := s.client.VerifyCredentials(ctx)
	if err != nil {
		log.Error().Err(err).Str("instance", host).Msg("credential verification failed")
		s.client.Clear()
		s.mu.Lock()
		s.token = domain.Token{}
		s.account = nil
		s.setState(LoggedOut)
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}

	s.mu.Lock()
	s.account = &account
	s.setState(Authenticated)
	s.mu.Unlock()

	s.persist(ctx, host, token.AccessToken, account)
	return nil
}

// persist writes the three credential entries as a logical unit. A write
// failure does not undo the in-memory login; it only costs the next restart
// a fresh login, so it is logged and the partial set cleared.
func (s *Session) persist(ctx context.Context, host, accessToken string, account domain.Account) {
	snapshot, err := json.Marshal(account)
	if err != nil {
		log.Error().Err(err).Msg("failed to serialize account snapshot")
		return
	}

	entries := map[string]string{
		credstore.KeyInstance:    host,
		credstore.KeyAccessToken: accessToken,
		credstore.KeyAccount:     string(snapshot),
	}
	for _, key := range []string{credstore.KeyInstance, credstore.KeyAccessToken, credstore.KeyAccount} {
		if err := s.store.Set(ctx, key, entries[key]); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to persist credentials")
			s.clearStore(ctx)
			return
		}
	}
}

func (s *Session) clearStore(ctx context.Context) {
	for _, key := range []string{credstore.KeyInstance, credstore.KeyAccessToken, credstore.KeyAccount} {
		if err := s.store.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to clear stored credential")
		}
	}
}

// Restore loads a persisted session at startup. The cached token is trusted
// without re-verification; a token revoked since the last run only surfaces
// on the first API call. Returns false when no complete credential set is
// stored.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	host, err := s.store.Get(ctx, credstore.KeyInstance)
	if err != nil {
		return false, restoreErr(err)
	}
	accessToken, err := s.store.Get(ctx, credstore.KeyAccessToken)
	if err != nil {
		return false, restoreErr(err)
	}
	snapshot, err := s.store.Get(ctx, credstore.KeyAccount)
	if err != nil {
		return false, restoreErr(err)
	}

	var account domain.Account
	if err := json.Unmarshal([]byte(snapshot), &account); err != nil {
		log.Error().Err(err).Msg("stored account snapshot is corrupt")
		return false, nil
	}

	s.client.SetCredentials(client.BaseURL(host), accessToken)

	s.mu.Lock()
	s.instance = host
	s.token = domain.Token{AccessToken: accessToken}
	s.account = &account
	s.setState(Authenticated)
	s.mu.Unlock()

	log.Info().Str("instance", host).Str("account", account.Acct).Msg("restored session")
	return true, nil
}

// A missing key means a partial or absent credential set, which is simply
// "not logged in", not a failure.
func restoreErr(err error) error {
	if errors.Is(err, credstore.ErrNotFound) {
		return nil
	}
	return err
}

// Logout clears the in-memory session, the client credentials and the
// persisted entries, from any state.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.instance = ""
	s.app = domain.Application{}
	s.token = domain.Token{}
	s.account = nil
	s.setState(LoggedOut)
	s.mu.Unlock()

	s.client.Clear()
	s.clearStore(ctx)
}
