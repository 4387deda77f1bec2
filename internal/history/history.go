// Package history serves the signed-in user's diagnosis history through the
// query cache, with per-user keys and targeted invalidation after mutations.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/cache"
	"github.com/zulandar/huebot/internal/logging"
)

// Cache resources.
const (
	ResourceList   = "surveyResults"
	ResourceDetail = "surveyDetail"
)

// ErrSignedOut is returned when no user is signed in; history is never
// fetched anonymously.
var ErrSignedOut = errors.New("history: not signed in")

// Mode selects a freshness policy for the history list.
type Mode int

const (
	// ModeNormal serves cached data for a long window and does not refetch
	// when a view opens.
	ModeNormal Mode = iota
	// ModeLive uses a short window and refetches stale data when a view opens.
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "normal"
}

// Backend is the part of the API client the history layer uses.
type Backend interface {
	ListDiagnoses(ctx context.Context) ([]api.Diagnosis, error)
	GetDiagnosis(ctx context.Context, id int) (api.Diagnosis, error)
	DeleteDiagnosis(ctx context.Context, id int) (api.Message, error)
}

// Options holds the freshness windows.
type Options struct {
	StaleNormal time.Duration
	StaleLive   time.Duration
	Retry       int
	// RetryDelay overrides the first backoff interval. Tests only.
	RetryDelay time.Duration
}

// Service is the history hooks layer for one user.
type Service struct {
	backend Backend
	cache   *cache.Client
	userID  int
	opts    Options
	log     *logging.Logger
}

// NewService creates a Service for userID. A zero userID means signed out.
func NewService(backend Backend, c *cache.Client, userID int, opts Options, log *logging.Logger) *Service {
	if opts.StaleNormal <= 0 {
		opts.StaleNormal = 30 * time.Minute
	}
	if opts.StaleLive <= 0 {
		opts.StaleLive = time.Minute
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{backend: backend, cache: c, userID: userID, opts: opts, log: log}
}

// UserID returns the user the service is scoped to.
func (s *Service) UserID() int { return s.userID }

// ListKey is the cache key of the user's history list.
func (s *Service) ListKey() cache.Key {
	return cache.Key{Resource: ResourceList, UserID: s.userID}
}

// DetailKey is the cache key of one diagnosis.
func (s *Service) DetailKey(id int) cache.Key {
	return cache.Key{Resource: ResourceDetail, UserID: s.userID, Extra: strconv.Itoa(id)}
}

func (s *Service) queryOptions(mode Mode) cache.Options {
	o := cache.Options{
		StaleTime:  s.opts.StaleNormal,
		Retry:      s.opts.Retry,
		RetryDelay: s.opts.RetryDelay,
	}
	if mode == ModeLive {
		o.StaleTime = s.opts.StaleLive
		o.RefetchOnMount = true
	}
	return o
}

// List returns the history list under mode's freshness policy.
func (s *Service) List(ctx context.Context, mode Mode) ([]api.Diagnosis, error) {
	if s.userID == 0 {
		return nil, ErrSignedOut
	}
	return cache.Query(ctx, s.cache, s.ListKey(), s.backend.ListDiagnoses, s.queryOptions(mode))
}

// Watch opens a long-lived observer of the list, for views that stay open.
// The caller must Close it.
func (s *Service) Watch(mode Mode) (*cache.Observer[[]api.Diagnosis], error) {
	if s.userID == 0 {
		return nil, ErrSignedOut
	}
	return cache.Observe(s.cache, s.ListKey(), s.backend.ListDiagnoses, s.queryOptions(mode)), nil
}

// Diagnoses returns the live history list. It satisfies the chat
// controller's history source.
func (s *Service) Diagnoses(ctx context.Context) ([]api.Diagnosis, error) {
	return s.List(ctx, ModeLive)
}

// Latest returns the newest diagnosis, if any.
func (s *Service) Latest(ctx context.Context) (api.Diagnosis, bool, error) {
	list, err := s.List(ctx, ModeLive)
	if err != nil {
		return api.Diagnosis{}, false, err
	}
	if len(list) == 0 {
		return api.Diagnosis{}, false, nil
	}
	return list[0], true, nil
}

// Detail returns one diagnosis.
func (s *Service) Detail(ctx context.Context, id int) (api.Diagnosis, error) {
	if s.userID == 0 {
		return api.Diagnosis{}, ErrSignedOut
	}
	if id <= 0 {
		return api.Diagnosis{}, fmt.Errorf("history: invalid diagnosis id %d", id)
	}
	fetch := func(ctx context.Context) (api.Diagnosis, error) {
		return s.backend.GetDiagnosis(ctx, id)
	}
	return cache.Query(ctx, s.cache, s.DetailKey(id), fetch, s.queryOptions(ModeNormal))
}

// Delete removes a diagnosis, invalidates the user's list and drops the
// cached detail.
func (s *Service) Delete(ctx context.Context, id int) (api.Message, error) {
	if s.userID == 0 {
		return api.Message{}, ErrSignedOut
	}
	msg, err := s.backend.DeleteDiagnosis(ctx, id)
	if err != nil {
		return api.Message{}, err
	}
	s.InvalidateList()
	s.cache.Remove(s.DetailKey(id))
	s.log.Info("diagnosis deleted", "id", id, "user_id", s.userID)
	return msg, nil
}

// InvalidateList marks the user's list stale, e.g. after a new submission.
func (s *Service) InvalidateList() {
	if s.userID == 0 {
		return
	}
	n := s.cache.Invalidate(s.ListKey())
	s.log.Debug("history list invalidated", "user_id", s.userID, "entries", n)
}

// StartAutoRefresh refetches the list on spec once the cache is started.
func (s *Service) StartAutoRefresh(ctx context.Context, spec string) (cron.EntryID, error) {
	if s.userID == 0 {
		return 0, ErrSignedOut
	}
	return cache.AutoRefresh(ctx, s.cache, spec, s.ListKey(), s.backend.ListDiagnoses, s.queryOptions(ModeLive))
}
