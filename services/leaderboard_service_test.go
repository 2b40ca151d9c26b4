package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"quiz-portal-go/database"
	"quiz-portal-go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTeamReader struct {
	mu    sync.Mutex
	teams []models.Team
}

func (f *fakeTeamReader) set(teams []models.Team) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams = teams
}

func (f *fakeTeamReader) TopTeams(_ context.Context, n int) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := append([]models.Team(nil), f.teams...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted, nil
}

type fakeToggleReader struct {
	mu      sync.Mutex
	toggles models.Toggles
}

func (f *fakeToggleReader) setLive(v *bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles.LeaderboardLive = v
}

func (f *fakeToggleReader) Get(context.Context) (*models.Toggles, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := f.toggles
	return &copied, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	subs map[int]struct {
		collection string
		fn         func(ChangeEvent)
	}
	nextID int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{subs: make(map[int]struct {
		collection string
		fn         func(ChangeEvent)
	})}
}

func (f *fakeNotifier) Subscribe(collection string, fn func(ChangeEvent)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = struct {
		collection string
		fn         func(ChangeEvent)
	}{collection, fn}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeNotifier) emit(collection string) {
	f.mu.Lock()
	var fns []func(ChangeEvent)
	for _, sub := range f.subs {
		if sub.collection == collection {
			fns = append(fns, sub.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ChangeEvent{Collection: collection, Operation: "update"})
	}
}

func (f *fakeNotifier) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func TestTopTeamsOrderingAndTieBreak(t *testing.T) {
	teams := &fakeTeamReader{teams: []models.Team{
		{ID: "a", Points: 50, CreatedAt: day(1)},
		{ID: "b", Points: 80, CreatedAt: day(3)},
		{ID: "c", Points: 20, CreatedAt: day(2)},
		{ID: "d", Points: 80, CreatedAt: day(1)},
	}}
	svc := NewLeaderboardService(teams, &fakeToggleReader{}, newFakeNotifier())

	top, err := svc.TopTeams(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "d", top[0].ID, "earlier creation wins the points tie")
	assert.Equal(t, "b", top[1].ID)
	assert.Equal(t, "a", top[2].ID)
}

func TestTopTeamsDefaultsSize(t *testing.T) {
	teams := &fakeTeamReader{teams: []models.Team{
		{ID: "a", Points: 4}, {ID: "b", Points: 3}, {ID: "c", Points: 2}, {ID: "d", Points: 1},
	}}
	svc := NewLeaderboardService(teams, &fakeToggleReader{}, newFakeNotifier())

	top, err := svc.TopTeams(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, top, DefaultLeaderboardSize)
}

func TestSubscribeTopTeamsPushesOnChange(t *testing.T) {
	teams := &fakeTeamReader{teams: []models.Team{{ID: "a", Points: 10}}}
	notifier := newFakeNotifier()
	svc := NewLeaderboardService(teams, &fakeToggleReader{}, notifier)

	var mu sync.Mutex
	var pushes [][]models.Team
	sub := svc.SubscribeTopTeams(3, func(ts []models.Team) {
		mu.Lock()
		pushes = append(pushes, ts)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	mu.Lock()
	require.Len(t, pushes, 1, "subscription delivers an initial snapshot")
	mu.Unlock()

	teams.set([]models.Team{{ID: "a", Points: 10}, {ID: "b", Points: 30}})
	notifier.emit(database.TeamsCollection)

	mu.Lock()
	require.Len(t, pushes, 2)
	assert.Equal(t, "b", pushes[1][0].ID)
	mu.Unlock()
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	notifier := newFakeNotifier()
	svc := NewLeaderboardService(&fakeTeamReader{}, &fakeToggleReader{}, notifier)

	sub := svc.SubscribeTopTeams(3, func([]models.Team) {})
	assert.Equal(t, 1, notifier.subscriberCount())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, notifier.subscriberCount())
}

func TestLiveFlagDefaultsTrue(t *testing.T) {
	svc := NewLeaderboardService(&fakeTeamReader{}, &fakeToggleReader{}, newFakeNotifier())

	live, err := svc.LiveFlag(context.Background())
	require.NoError(t, err)
	assert.True(t, live, "an absent flag reads as live")
}

func TestSubscribeLiveFlagDeliversChanges(t *testing.T) {
	toggles := &fakeToggleReader{}
	notifier := newFakeNotifier()
	svc := NewLeaderboardService(&fakeTeamReader{}, toggles, notifier)

	var mu sync.Mutex
	var seen []bool
	sub := svc.SubscribeLiveFlag(func(v bool) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	off := false
	toggles.setLive(&off)
	notifier.emit(database.TogglesCollection)

	on := true
	toggles.setLive(&on)
	notifier.emit(database.TogglesCollection)

	mu.Lock()
	assert.Equal(t, []bool{true, false, true}, seen)
	mu.Unlock()
}
