package services

import (
	"context"
	"sync"
	"testing"

	"quiz-portal-go/database"
	"quiz-portal-go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fakeToggleReader) setRound(roundID string, open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggles.Rounds == nil {
		f.toggles.Rounds = make(map[string]bool)
	}
	f.toggles.Rounds[roundID] = open
}

type fakeRoundStore struct {
	mu        sync.Mutex
	configs   map[string]*models.RoundConfig
	questions map[string][]models.Question
}

func newFakeRoundStore() *fakeRoundStore {
	return &fakeRoundStore{
		configs:   make(map[string]*models.RoundConfig),
		questions: make(map[string][]models.Question),
	}
}

func (f *fakeRoundStore) GetConfig(_ context.Context, roundID string) (*models.RoundConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.configs[roundID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeRoundStore) ListQuestions(_ context.Context, roundID string) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Question(nil), f.questions[roundID]...), nil
}

func TestRoundStatusDefaultsClosed(t *testing.T) {
	svc := NewRoundService(newFakeRoundStore(), &fakeToggleReader{}, newFakeNotifier())

	open, err := svc.RoundStatus(context.Background(), "round1")
	require.NoError(t, err)
	assert.False(t, open, "rounds with no toggle entry are closed")
}

func TestRoundContentGating(t *testing.T) {
	ctx := context.Background()
	rounds := newFakeRoundStore()
	rounds.configs["round1"] = &models.RoundConfig{ID: "round1", Title: "The Sorting", Visible: true}
	rounds.questions["round1"] = []models.Question{{ID: "q1", Round: "round1", Order: 1, Title: "First riddle"}}
	toggles := &fakeToggleReader{}
	svc := NewRoundService(rounds, toggles, newFakeNotifier())

	// Closed toggle blocks content
	_, err := svc.Content(ctx, "round1")
	assert.True(t, IsConflict(err, ConflictRoundClosed))

	toggles.setRound("round1", true)
	content, err := svc.Content(ctx, "round1")
	require.NoError(t, err)
	assert.Equal(t, "The Sorting", content.Config.Title)
	require.Len(t, content.Questions, 1)

	// A hidden config blocks content even with the toggle on
	rounds.mu.Lock()
	rounds.configs["round1"].Visible = false
	rounds.mu.Unlock()
	_, err = svc.Content(ctx, "round1")
	assert.True(t, IsConflict(err, ConflictRoundClosed))

	// An open toggle with no config behaves as closed
	toggles.setRound("round2", true)
	_, err = svc.Content(ctx, "round2")
	assert.True(t, IsConflict(err, ConflictRoundClosed))
}

func TestSubscribeAllRoundStatuses(t *testing.T) {
	toggles := &fakeToggleReader{}
	toggles.setRound("round1", true)
	toggles.setRound("round2", false)
	notifier := newFakeNotifier()
	svc := NewRoundService(newFakeRoundStore(), toggles, notifier)

	var mu sync.Mutex
	seen := make(map[string]bool)
	sub := svc.SubscribeAllRoundStatuses(func(roundID string, open bool) {
		mu.Lock()
		seen[roundID] = open
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	mu.Lock()
	assert.Equal(t, map[string]bool{"round1": true, "round2": false}, seen)
	mu.Unlock()

	toggles.setRound("round2", true)
	notifier.emit(database.TogglesCollection)

	mu.Lock()
	assert.True(t, seen["round2"])
	mu.Unlock()
}

func TestSubscribeRoundStatus(t *testing.T) {
	toggles := &fakeToggleReader{}
	notifier := newFakeNotifier()
	svc := NewRoundService(newFakeRoundStore(), toggles, notifier)

	var mu sync.Mutex
	var seen []bool
	sub := svc.SubscribeRoundStatus("round1", func(open bool) {
		mu.Lock()
		seen = append(seen, open)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	toggles.setRound("round1", true)
	notifier.emit(database.TogglesCollection)

	toggles.setRound("round1", false)
	notifier.emit(database.TogglesCollection)

	mu.Lock()
	assert.Equal(t, []bool{false, true, false}, seen)
	mu.Unlock()
}
