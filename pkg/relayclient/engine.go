package relayclient

import (
	"sync"
	"time"
)

const (
	// Corrective seeks only fire past this much drift, in seconds.
	driftThreshold = 1.5

	progressMinInterval = 2 * time.Second
	discreteMinInterval = 400 * time.Millisecond

	trackSettleWindow = 1500 * time.Millisecond
	applySettleWindow = 500 * time.Millisecond
)

// Player is the local playback surface the engine drives and observes.
type Player interface {
	Locator() string
	Position() float64
	Paused() bool
	Title() string
	Play()
	Pause()
	Seek(seconds float64)
	Navigate(url string)
}

type stateSender interface {
	SendState(state PlaybackState) error
}

// Engine keeps local playback and the room in sync. As host it turns
// player events into state snapshots; as guest it applies inbound
// snapshots to the player. The applying guard suppresses the echo of
// its own corrections so the two directions never feed back into each
// other.
type Engine struct {
	sender stateSender

	mu          sync.Mutex
	player      Player
	host        bool
	applying    bool
	lastSentAt  time.Time
	settleTimer *time.Timer

	now func() time.Time
}

func NewEngine(sender stateSender) *Engine {
	return &Engine{
		sender: sender,
		now:    time.Now,
	}
}

// Attach binds a player. Any previous settle window is cancelled.
func (e *Engine) Attach(player Player) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelSettleLocked()
	e.player = player
	e.applying = false
}

// Detach unbinds the player, cancelling a pending settle window.
func (e *Engine) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelSettleLocked()
	e.player = nil
	e.applying = false
}

// SetRole switches between emitting snapshots ("host") and applying
// them (anything else).
func (e *Engine) SetRole(role string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.host = role == "host"
	e.lastSentAt = time.Time{}
}

// PlayerEvent reports a local player event by its trigger reason
// ("play", "pause", "seeked", "track", "timeupdate"). As host it emits
// a snapshot unless the event was caused by the engine's own apply or
// arrives inside the reason's rate limit. All reasons share one
// last-sent clock.
func (e *Engine) PlayerEvent(reason string) {
	e.mu.Lock()
	if !e.host || e.player == nil || e.applying {
		e.mu.Unlock()
		return
	}

	minInterval := discreteMinInterval
	if reason == "timeupdate" {
		minInterval = progressMinInterval
	}
	now := e.now()
	if !e.lastSentAt.IsZero() && now.Sub(e.lastSentAt) < minInterval {
		e.mu.Unlock()
		return
	}
	e.lastSentAt = now

	state := PlaybackState{
		URL:       e.player.Locator(),
		Time:      e.player.Position(),
		Paused:    e.player.Paused(),
		Title:     e.player.Title(),
		Timestamp: now.UnixMilli(),
	}
	e.mu.Unlock()

	e.sender.SendState(state)
}

// Apply reconciles the player against an inbound snapshot. A different
// locator navigates and holds the guard for a long settle window, the
// navigation events that follow never reach the room. On the same
// locator the position is only corrected past the drift threshold while
// play/pause is applied unconditionally.
func (e *Engine) Apply(state PlaybackState) {
	if state.URL == "" || state.Time < 0 {
		return
	}

	e.mu.Lock()
	player := e.player
	if player == nil {
		e.mu.Unlock()
		return
	}
	// Raised before touching the player so the events the corrections
	// trigger are suppressed even when they fire synchronously.
	e.applying = true
	e.mu.Unlock()

	window := applySettleWindow
	if player.Locator() != state.URL {
		player.Navigate(state.URL)
		window = trackSettleWindow
	} else {
		drift := state.Time - player.Position()
		if drift > driftThreshold || drift < -driftThreshold {
			player.Seek(state.Time)
		}
		if state.Paused {
			player.Pause()
		} else {
			player.Play()
		}
	}

	e.mu.Lock()
	e.scheduleSettleLocked(window)
	e.mu.Unlock()
}

func (e *Engine) scheduleSettleLocked(window time.Duration) {
	e.cancelSettleLocked()
	e.settleTimer = time.AfterFunc(window, e.settle)
}

func (e *Engine) settle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.applying = false
	e.settleTimer = nil
}

func (e *Engine) cancelSettleLocked() {
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}
