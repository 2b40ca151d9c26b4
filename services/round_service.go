package services

import (
	"context"
	"errors"

	"quiz-portal-go/database"
	"quiz-portal-go/logging"
	"quiz-portal-go/models"
)

// RoundStore is the slice of round persistence the round service needs
type RoundStore interface {
	GetConfig(ctx context.Context, roundID string) (*models.RoundConfig, error)
	ListQuestions(ctx context.Context, roundID string) ([]models.Question, error)
}

// RoundContent bundles a round's config with its questions for display
type RoundContent struct {
	Config    *models.RoundConfig `json:"config"`
	Questions []models.Question   `json:"questions"`
}

// RoundService gates access to round content behind the per-round
// toggle and the round's own visibility flag.
type RoundService struct {
	rounds   RoundStore
	toggles  ToggleReader
	notifier ChangeNotifier
	logger   *logging.Logger
}

// NewRoundService creates a new round service
func NewRoundService(rounds RoundStore, toggles ToggleReader, notifier ChangeNotifier) *RoundService {
	return &RoundService{
		rounds:   rounds,
		toggles:  toggles,
		notifier: notifier,
		logger:   logging.WithPrefix("Rounds"),
	}
}

// RoundStatus reports whether a round is currently open. A round with
// no toggle entry is closed.
func (s *RoundService) RoundStatus(ctx context.Context, roundID string) (bool, error) {
	toggles, err := s.toggles.Get(ctx)
	if err != nil {
		return false, backendError(err)
	}
	return toggles.IsRoundActive(roundID), nil
}

// SubscribeRoundStatus invokes fn with the round's open state and again
// on every toggles change. Callbacks run on the change stream goroutine.
func (s *RoundService) SubscribeRoundStatus(roundID string, fn func(bool)) *Subscription {
	if s.notifier == nil {
		s.logger.Error("No change notifier configured, round status subscription is inert")
		return noopSubscription()
	}

	push := func() {
		ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
		defer cancel()

		open, err := s.RoundStatus(ctx, roundID)
		if err != nil {
			s.logger.Errorf("Failed to read status for round %s: %v", roundID, err)
			return
		}
		fn(open)
	}

	push()
	unsubscribe := s.notifier.Subscribe(database.TogglesCollection, func(ChangeEvent) {
		push()
	})
	return newSubscription(unsubscribe)
}

// SubscribeAllRoundStatuses invokes fn once per known round whenever
// the toggles document changes. Consumers that need edges compare with
// their previous state.
func (s *RoundService) SubscribeAllRoundStatuses(fn func(roundID string, open bool)) *Subscription {
	if s.notifier == nil {
		s.logger.Error("No change notifier configured, round status subscription is inert")
		return noopSubscription()
	}

	push := func() {
		ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
		defer cancel()

		toggles, err := s.toggles.Get(ctx)
		if err != nil {
			s.logger.Errorf("Failed to read round toggles: %v", err)
			return
		}
		for roundID, open := range toggles.Rounds {
			fn(roundID, open)
		}
	}

	push()
	unsubscribe := s.notifier.Subscribe(database.TogglesCollection, func(ChangeEvent) {
		push()
	})
	return newSubscription(unsubscribe)
}

// Content returns a round's config and questions. Closed or hidden
// rounds return a round_closed conflict so the caller can show a
// locked state instead of the questions.
func (s *RoundService) Content(ctx context.Context, roundID string) (*RoundContent, error) {
	open, err := s.RoundStatus(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, NewConflict(ConflictRoundClosed, "round %s is not open yet", roundID)
	}

	config, err := s.rounds.GetConfig(ctx, roundID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, NewConflict(ConflictRoundClosed, "round %s is not open yet", roundID)
		}
		return nil, backendError(err)
	}
	if !config.Visible {
		return nil, NewConflict(ConflictRoundClosed, "round %s is not open yet", roundID)
	}

	questions, err := s.rounds.ListQuestions(ctx, roundID)
	if err != nil {
		return nil, backendError(err)
	}

	return &RoundContent{Config: config, Questions: questions}, nil
}
