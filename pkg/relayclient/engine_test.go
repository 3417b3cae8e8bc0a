package relayclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	locator  string
	position float64
	paused   bool
	title    string

	plays  int
	pauses int
	seeks  []float64
	navs   []string
}

func (p *fakePlayer) Locator() string      { return p.locator }
func (p *fakePlayer) Position() float64    { return p.position }
func (p *fakePlayer) Paused() bool         { return p.paused }
func (p *fakePlayer) Title() string        { return p.title }
func (p *fakePlayer) Play()                { p.plays++ }
func (p *fakePlayer) Pause()               { p.pauses++ }
func (p *fakePlayer) Seek(seconds float64) { p.seeks = append(p.seeks, seconds) }
func (p *fakePlayer) Navigate(url string)  { p.navs = append(p.navs, url) }

type fakeSender struct {
	states []PlaybackState
}

func (s *fakeSender) SendState(state PlaybackState) error {
	s.states = append(s.states, state)
	return nil
}

func newTestEngine(player *fakePlayer) (*Engine, *fakeSender, *time.Time) {
	sender := &fakeSender{}
	e := NewEngine(sender)

	now := time.Now()
	e.now = func() time.Time { return now }

	if player != nil {
		e.Attach(player)
	}
	return e, sender, &now
}

func TestPlayerEventEmitsSnapshot(t *testing.T) {
	player := &fakePlayer{
		locator:  "https://example.com/track/1",
		position: 42.5,
		paused:   false,
		title:    "Track One",
	}
	e, sender, _ := newTestEngine(player)
	e.SetRole("host")

	e.PlayerEvent("play")

	require.Len(t, sender.states, 1)
	state := sender.states[0]
	assert.Equal(t, player.locator, state.URL)
	assert.InDelta(t, 42.5, state.Time, 0.001)
	assert.False(t, state.Paused)
	assert.Equal(t, "Track One", state.Title)
	assert.NotZero(t, state.Timestamp)
}

func TestPlayerEventAsGuestIsSilent(t *testing.T) {
	e, sender, _ := newTestEngine(&fakePlayer{locator: "https://example.com/t"})
	e.SetRole("guest")

	e.PlayerEvent("play")
	e.PlayerEvent("timeupdate")

	assert.Empty(t, sender.states)
}

func TestPlayerEventRateLimits(t *testing.T) {
	e, sender, now := newTestEngine(&fakePlayer{locator: "https://example.com/t"})
	e.SetRole("host")
	base := *now

	e.PlayerEvent("play")
	require.Len(t, sender.states, 1)

	// Discrete reasons need 400ms since the last send of any reason.
	*now = base.Add(100 * time.Millisecond)
	e.PlayerEvent("seeked")
	assert.Len(t, sender.states, 1)

	*now = base.Add(500 * time.Millisecond)
	e.PlayerEvent("seeked")
	assert.Len(t, sender.states, 2)

	// Progress updates need 2s, measured against the same shared clock.
	*now = base.Add(1 * time.Second)
	e.PlayerEvent("timeupdate")
	assert.Len(t, sender.states, 2)

	*now = base.Add(3 * time.Second)
	e.PlayerEvent("timeupdate")
	assert.Len(t, sender.states, 3)
}

func TestApplySkipsSmallDrift(t *testing.T) {
	player := &fakePlayer{locator: "https://example.com/t", position: 10}
	e, _, _ := newTestEngine(player)
	e.SetRole("guest")

	e.Apply(PlaybackState{URL: player.locator, Time: 11, Paused: false})
	assert.Empty(t, player.seeks, "drift inside the threshold must not seek")
	assert.Equal(t, 1, player.plays, "play state applies regardless of drift")
}

func TestApplyCorrectsLargeDrift(t *testing.T) {
	player := &fakePlayer{locator: "https://example.com/t", position: 10}
	e, _, _ := newTestEngine(player)
	e.SetRole("guest")

	e.Apply(PlaybackState{URL: player.locator, Time: 13, Paused: true})
	require.Len(t, player.seeks, 1)
	assert.InDelta(t, 13, player.seeks[0], 0.001)
	assert.Equal(t, 1, player.pauses)

	e.settle()

	e.Apply(PlaybackState{URL: player.locator, Time: 7, Paused: true})
	require.Len(t, player.seeks, 2, "drift is corrected in both directions")
	assert.InDelta(t, 7, player.seeks[1], 0.001)
}

func TestApplyNavigatesOnLocatorChange(t *testing.T) {
	player := &fakePlayer{locator: "https://example.com/a", position: 50}
	e, _, _ := newTestEngine(player)
	e.SetRole("guest")

	e.Apply(PlaybackState{URL: "https://example.com/b", Time: 0})
	assert.Equal(t, []string{"https://example.com/b"}, player.navs)
	assert.Empty(t, player.seeks, "navigation skips time reconciliation")
	assert.Zero(t, player.plays)
	assert.Zero(t, player.pauses)
}

func TestApplyIgnoresInvalidSnapshots(t *testing.T) {
	player := &fakePlayer{locator: "https://example.com/t"}
	e, _, _ := newTestEngine(player)
	e.SetRole("guest")

	e.Apply(PlaybackState{URL: "", Time: 5})
	e.Apply(PlaybackState{URL: "https://example.com/t", Time: -1})

	assert.Empty(t, player.navs)
	assert.Empty(t, player.seeks)
	assert.Zero(t, player.plays)
	assert.Zero(t, player.pauses)
}

func TestApplyWithoutPlayerIsDropped(t *testing.T) {
	e, _, _ := newTestEngine(nil)
	e.SetRole("guest")

	e.Apply(PlaybackState{URL: "https://example.com/t", Time: 5})
}

func TestApplyGuardSuppressesEcho(t *testing.T) {
	player := &fakePlayer{locator: "https://example.com/t", position: 10}
	e, sender, now := newTestEngine(player)
	e.SetRole("host")

	e.Apply(PlaybackState{URL: player.locator, Time: 20, Paused: false})

	// The seek the apply just issued echoes back as a player event.
	e.PlayerEvent("seeked")
	assert.Empty(t, sender.states, "the engine's own correction must not loop back")

	e.settle()

	*now = now.Add(time.Second)
	e.PlayerEvent("seeked")
	assert.Len(t, sender.states, 1, "events emit again once the guard settles")
}

func TestDetachCancelsSettle(t *testing.T) {
	player := &fakePlayer{locator: "https://example.com/a"}
	e, _, _ := newTestEngine(player)
	e.SetRole("guest")

	e.Apply(PlaybackState{URL: "https://example.com/b", Time: 0})

	e.Detach()

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Nil(t, e.settleTimer)
	assert.False(t, e.applying)
}
