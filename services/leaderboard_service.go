package services

import (
	"context"
	"sync"
	"time"

	"quiz-portal-go/database"
	"quiz-portal-go/logging"
	"quiz-portal-go/models"
)

// DefaultLeaderboardSize is the number of teams shown when the caller
// does not ask for a specific count.
const DefaultLeaderboardSize = 3

// subscriptionTimeout bounds the store reads a subscription callback
// performs when a change event arrives.
const subscriptionTimeout = 10 * time.Second

// TeamReader is the slice of team persistence the leaderboard needs
type TeamReader interface {
	TopTeams(ctx context.Context, n int) ([]models.Team, error)
}

// ToggleReader reads the app toggles document
type ToggleReader interface {
	Get(ctx context.Context) (*models.Toggles, error)
}

// ChangeNotifier delivers store change notifications. Implemented by
// ChangeStreamWatcher.
type ChangeNotifier interface {
	Subscribe(collection string, fn func(ChangeEvent)) func()
}

// Subscription is a handle on a live feed. Unsubscribe stops further
// callbacks and releases the underlying watch; it is idempotent and
// safe to call after the stream has already errored.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe cancels the subscription
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// noopSubscription keeps call sites simple when subscription setup
// fails: callers still hold a handle they can safely cancel.
func noopSubscription() *Subscription {
	return &Subscription{cancel: func() {}}
}

// LeaderboardService derives the ranked top-N view over the team
// registry and exposes it as one-shot fetches and live subscriptions.
type LeaderboardService struct {
	teams    TeamReader
	toggles  ToggleReader
	notifier ChangeNotifier
	logger   *logging.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(teams TeamReader, toggles ToggleReader, notifier ChangeNotifier) *LeaderboardService {
	return &LeaderboardService{
		teams:    teams,
		toggles:  toggles,
		notifier: notifier,
		logger:   logging.WithPrefix("Leaderboard"),
	}
}

// TopTeams returns the n highest-scoring teams, points descending with
// creation time ascending as the tie-break.
func (s *LeaderboardService) TopTeams(ctx context.Context, n int) ([]models.Team, error) {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	teams, err := s.teams.TopTeams(ctx, n)
	if err != nil {
		return nil, backendError(err)
	}
	return teams, nil
}

// SubscribeTopTeams invokes fn with the current top n teams and again
// whenever the teams collection changes. Callbacks run on the change
// stream goroutine.
func (s *LeaderboardService) SubscribeTopTeams(n int, fn func([]models.Team)) *Subscription {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	if s.notifier == nil {
		s.logger.Error("No change notifier configured, top-teams subscription is inert")
		return noopSubscription()
	}

	push := func() {
		ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
		defer cancel()

		teams, err := s.TopTeams(ctx, n)
		if err != nil {
			s.logger.Errorf("Failed to refresh top teams: %v", err)
			return
		}
		fn(teams)
	}

	push()
	unsubscribe := s.notifier.Subscribe(database.TeamsCollection, func(ChangeEvent) {
		push()
	})
	return newSubscription(unsubscribe)
}

// LiveFlag reads the leaderboard live flag. A missing toggles document
// or field reads as live.
func (s *LeaderboardService) LiveFlag(ctx context.Context) (bool, error) {
	toggles, err := s.toggles.Get(ctx)
	if err != nil {
		return false, backendError(err)
	}
	return toggles.IsLeaderboardLive(), nil
}

// SubscribeLiveFlag invokes fn with the current live flag and again on
// every toggles change. Consumers interested in edges must compare
// against the previous value themselves.
func (s *LeaderboardService) SubscribeLiveFlag(fn func(bool)) *Subscription {
	if s.notifier == nil {
		s.logger.Error("No change notifier configured, live-flag subscription is inert")
		return noopSubscription()
	}

	push := func() {
		ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
		defer cancel()

		live, err := s.LiveFlag(ctx)
		if err != nil {
			s.logger.Errorf("Failed to read live flag: %v", err)
			return
		}
		fn(live)
	}

	push()
	unsubscribe := s.notifier.Subscribe(database.TogglesCollection, func(ChangeEvent) {
		push()
	})
	return newSubscription(unsubscribe)
}
