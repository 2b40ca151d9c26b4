package services

import (
	"context"
	"sync"
	"time"

	"quiz-portal-go/logging"
	"quiz-portal-go/models"
)

// RevealState is the display state of the leaderboard
type RevealState int

const (
	// StateStatic shows the leaderboard frozen, fully revealed, with no
	// animation. Used whenever the live flag is off.
	StateStatic RevealState = iota
	// StateCountingDown runs the visible pre-reveal countdown
	StateCountingDown
	// StateRevealing is the short pause between countdown zero and the
	// entries becoming visible
	StateRevealing
	// StateLive shows revealed entries that re-render on every feed update
	StateLive
)

// String returns the string representation of the reveal state
func (s RevealState) String() string {
	switch s {
	case StateStatic:
		return "static"
	case StateCountingDown:
		return "counting_down"
	case StateRevealing:
		return "revealing"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Reveal timing. The countdown is seeded at CountdownSeconds and
// decrements once per second; countdown zero is followed by a one
// second pause before entries become visible.
const (
	CountdownSeconds = 10
	countdownTick    = time.Second
	revealPause      = time.Second
)

// RevealEvent is pushed to the sink on every observable change.
// Standings are only attached once slots are revealed so a hidden
// leaderboard cannot be spoiled through the event payload.
type RevealEvent struct {
	State     RevealState   `json:"-"`
	StateName string        `json:"state"`
	Live      bool          `json:"live"`
	Countdown int           `json:"countdown"`
	Revealed  bool          `json:"revealed"`
	Standings []models.Team `json:"standings,omitempty"`
}

// Clock abstracts timer creation so the reveal sequence is testable
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// LeaderboardFeed is the feed surface the controller consumes.
// Implemented by LeaderboardService.
type LeaderboardFeed interface {
	TopTeams(ctx context.Context, n int) ([]models.Team, error)
	SubscribeTopTeams(n int, fn func([]models.Team)) *Subscription
	SubscribeLiveFlag(fn func(bool)) *Subscription
}

// RevealController gates display of the leaderboard feed behind a
// countdown when the remote live flag transitions off to on, so the
// standings cannot be spoiled during the countdown window.
//
// It is a single-goroutine state machine: flag changes, feed updates
// and timer ticks are serialized through one run loop, so there are
// never overlapping countdown timers.
type RevealController struct {
	feed   LeaderboardFeed
	sink   func(RevealEvent)
	size   int
	clock  Clock
	logger *logging.Logger

	flagCh  chan bool
	teamsCh chan []models.Team
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	flagSub *Subscription

	// Run-loop state, owned by the run goroutine
	state     RevealState
	live      bool
	haveFlag  bool
	countdown int
	revealed  bool
	standings []models.Team
	teamsSub  *Subscription
}

// NewRevealController creates a reveal controller publishing events for
// the top n teams into sink.
func NewRevealController(feed LeaderboardFeed, n int, sink func(RevealEvent)) *RevealController {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	return &RevealController{
		feed:    feed,
		sink:    sink,
		size:    n,
		clock:   systemClock{},
		logger:  logging.WithPrefix("Reveal"),
		flagCh:  make(chan bool, 16),
		teamsCh: make(chan []models.Team, 16),
	}
}

// Start subscribes to the live flag and begins processing events
func (c *RevealController) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		c.logger.Warn("Already running")
		return
	}
	c.started = true
	c.stopCh = make(chan struct{})

	stopCh := c.stopCh
	c.flagSub = c.feed.SubscribeLiveFlag(func(live bool) {
		select {
		case c.flagCh <- live:
		case <-stopCh:
		}
	})

	c.wg.Add(1)
	go c.run()
	c.logger.Info("Started")
}

// Stop halts the run loop, discards pending timers, and releases both
// feed subscriptions. Safe to call once per Start.
func (c *RevealController) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	flagSub := c.flagSub
	c.flagSub = nil
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	if flagSub != nil {
		flagSub.Unsubscribe()
	}
	c.logger.Info("Stopped")
}

func (c *RevealController) run() {
	defer c.wg.Done()
	defer c.unsubscribeTeams()

	// Replacing timerCh discards any in-flight countdown timer, which is
	// what makes rapid flag flapping restart cleanly.
	var timerCh <-chan time.Time

	for {
		select {
		case live := <-c.flagCh:
			timerCh = c.onFlag(live, timerCh)
		case teams := <-c.teamsCh:
			c.onStandings(teams)
		case <-timerCh:
			timerCh = c.onTick()
		case <-c.stopCh:
			return
		}
	}
}

// onFlag handles a live flag observation and returns the new timer channel
func (c *RevealController) onFlag(live bool, timerCh <-chan time.Time) <-chan time.Time {
	first := !c.haveFlag
	c.haveFlag = true
	wasLive := c.live
	c.live = live

	if !live {
		// Frozen: one-shot fetch, everything revealed, no subscription.
		c.state = StateStatic
		c.revealed = true
		c.countdown = 0
		c.unsubscribeTeams()
		c.fetchOnce()
		c.emit()
		return nil
	}

	if first {
		// Already live at mount: entries show immediately, no countdown.
		c.state = StateLive
		c.revealed = true
		c.countdown = 0
		c.ensureSubscribed()
		c.emit()
		return nil
	}

	if !wasLive {
		// Off-to-on edge: restart the countdown from the top and re-hide
		// every slot, discarding any countdown already in flight.
		c.state = StateCountingDown
		c.countdown = CountdownSeconds
		c.revealed = false
		c.ensureSubscribed()
		c.emit()
		return c.clock.After(countdownTick)
	}

	return timerCh
}

// onTick advances the countdown/reveal sequence by one timer firing
func (c *RevealController) onTick() <-chan time.Time {
	switch c.state {
	case StateCountingDown:
		c.countdown--
		if c.countdown <= 0 {
			c.state = StateRevealing
			c.emit()
			return c.clock.After(revealPause)
		}
		c.emit()
		return c.clock.After(countdownTick)

	case StateRevealing:
		c.state = StateLive
		c.revealed = true
		c.emit()
		return nil
	}
	return nil
}

// onStandings stores a feed update and re-renders if slots are visible.
// Updates arriving mid-countdown are held back until the reveal.
func (c *RevealController) onStandings(teams []models.Team) {
	c.standings = teams
	if c.state == StateLive || c.state == StateStatic {
		c.emit()
	}
}

func (c *RevealController) ensureSubscribed() {
	if c.teamsSub != nil {
		return
	}
	stopCh := c.stopCh
	c.teamsSub = c.feed.SubscribeTopTeams(c.size, func(teams []models.Team) {
		select {
		case c.teamsCh <- teams:
		case <-stopCh:
		}
	})
}

func (c *RevealController) unsubscribeTeams() {
	if c.teamsSub != nil {
		c.teamsSub.Unsubscribe()
		c.teamsSub = nil
	}
}

func (c *RevealController) fetchOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), subscriptionTimeout)
	defer cancel()

	teams, err := c.feed.TopTeams(ctx, c.size)
	if err != nil {
		c.logger.Errorf("One-shot standings fetch failed: %v", err)
		return
	}
	c.standings = teams
}

func (c *RevealController) emit() {
	if c.sink == nil {
		return
	}

	event := RevealEvent{
		State:     c.state,
		StateName: c.state.String(),
		Live:      c.live,
		Countdown: c.countdown,
		Revealed:  c.revealed,
	}
	if c.revealed {
		event.Standings = c.standings
	}
	c.sink(event)
}
