// Package playback plays two tracks together with a given offset between
// them, so that the alignment can be checked by ear.
package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
)

const (
	// DefaultTickInterval is roughly one frame at 60 FPS.
	DefaultTickInterval = 16 * time.Millisecond
)

type Config struct {
	TickInterval time.Duration
	Clock        Clock
}

func DefaultConfig() Config {
	return Config{
		TickInterval: DefaultTickInterval,
		Clock:        RealClock{},
	}
}

// State is a snapshot of the playback session.
type State struct {
	Phase     Phase
	Mode      Mode
	IsPlaying bool

	// Progress of the reference source, within [0, 1].
	Progress float64

	// Offset is the offset (in seconds) the session was started with.
	Offset float64

	SessionID uuid.UUID
}

func (s State) String() string {
	return fmt.Sprintf("%s(%s, offset:%+.1fs, progress:%.3f)", s.Phase, s.Mode, s.Offset, s.Progress)
}

// Controller plays a primary and a secondary source with an offset
// between them. It never re-syncs a running session: any change of the
// offset or the mode stops it.
type Controller struct {
	primary   Source
	secondary Source
	config    Config

	locker    sync.Mutex
	state     State
	offset    float64
	mode      Mode
	closed    bool
	session   uint64
	cancelFn  context.CancelFunc
	timer     Timer
	reference Source

	observersLocker sync.Mutex
	observers       []func(State)
	errorObservers  []func(error)
}

func NewController(
	primary Source,
	secondary Source,
	cfg Config,
) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Controller{
		primary:   primary,
		secondary: secondary,
		config:    cfg,
	}
}

// Subscribe registers a callback invoked after every state change and
// progress update. Callbacks must not call the Controller.
func (c *Controller) Subscribe(fn func(State)) {
	c.observersLocker.Lock()
	defer c.observersLocker.Unlock()
	c.observers = append(c.observers, fn)
}

// OnError registers a callback invoked when a deferred source fails to
// start.
func (c *Controller) OnError(fn func(error)) {
	c.observersLocker.Lock()
	defer c.observersLocker.Unlock()
	c.errorObservers = append(c.errorObservers, fn)
}

func (c *Controller) notify(state State) {
	c.observersLocker.Lock()
	observers := c.observers
	c.observersLocker.Unlock()
	for _, fn := range observers {
		fn(state)
	}
}

func (c *Controller) notifyError(err error) {
	c.observersLocker.Lock()
	observers := c.errorObservers
	c.observersLocker.Unlock()
	for _, fn := range observers {
		fn(err)
	}
}

func (c *Controller) State() State {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.state
}

func (c *Controller) Offset() float64 {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.offset
}

func (c *Controller) Mode() Mode {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.mode
}

// Start begins a new session, stopping the current one if any.
//
// With ModeBoth the source which starts first is the reference one: the
// primary if offset >= 0, the secondary otherwise. The other one is
// started |offset| seconds later.
func (c *Controller) Start(
	ctx context.Context,
	mode Mode,
	offset float64,
) (_err error) {
	logger.Debugf(ctx, "Start(%s, %v)", mode, offset)
	defer func() { logger.Debugf(ctx, "/Start(%s, %v): %v", mode, offset, _err) }()

	if mode < 0 || mode >= EndOfMode {
		return ErrInvalidMode
	}
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return fmt.Errorf("invalid offset: %v", offset)
	}

	c.locker.Lock()
	if c.closed {
		c.locker.Unlock()
		return ErrClosed
	}
	c.stopLocked(ctx)
	c.offset = offset
	c.mode = mode
	c.session++
	session := c.session
	c.state = State{
		Phase:     PhaseStarting,
		Mode:      mode,
		Offset:    offset,
		SessionID: uuid.New(),
	}

	var resetErr *multierror.Error
	for _, src := range []Source{c.primary, c.secondary} {
		if err := src.Seek(0); err != nil {
			resetErr = multierror.Append(resetErr, err)
		}
	}
	if err := resetErr.ErrorOrNil(); err != nil {
		c.stopLocked(ctx)
		state := c.state
		c.locker.Unlock()
		c.notify(state)
		return fmt.Errorf("unable to rewind the sources: %w", err)
	}

	type scheduled struct {
		name   string
		source Source
		delay  time.Duration
	}
	var plan []scheduled
	switch {
	case mode == ModePrimaryOnly:
		plan = []scheduled{{name: "primary", source: c.primary}}
	case mode == ModeSecondaryOnly:
		plan = []scheduled{{name: "secondary", source: c.secondary}}
	case offset >= 0:
		plan = []scheduled{
			{name: "primary", source: c.primary},
			{name: "secondary", source: c.secondary, delay: secondsToDuration(offset)},
		}
	default:
		plan = []scheduled{
			{name: "secondary", source: c.secondary},
			{name: "primary", source: c.primary, delay: secondsToDuration(-offset)},
		}
	}
	c.reference = plan[0].source

	sessionCtx, cancelFn := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelFn = cancelFn

	for _, item := range plan {
		if item.delay > 0 {
			item := item
			c.timer = c.config.Clock.AfterFunc(item.delay, func() {
				c.deferredStart(sessionCtx, session, item.name, item.source)
			})
			continue
		}
		if err := item.source.Play(sessionCtx); err != nil {
			err = PlaybackStartError{Source: item.name, Err: err}
			logger.Errorf(ctx, "%v", err)
			c.stopLocked(ctx)
			state := c.state
			c.locker.Unlock()
			c.notify(state)
			return err
		}
	}

	c.state.Phase = PhasePlaying
	c.state.IsPlaying = true
	state := c.state
	ticker := c.config.Clock.NewTicker(c.config.TickInterval)
	reference := c.reference
	c.locker.Unlock()

	observability.Go(sessionCtx, func() {
		defer ticker.Stop()
		c.progressLoop(sessionCtx, session, reference, ticker)
	})
	c.notify(state)
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (c *Controller) deferredStart(
	ctx context.Context,
	session uint64,
	name string,
	source Source,
) {
	c.locker.Lock()
	if c.session != session || !c.state.IsPlaying {
		c.locker.Unlock()
		return
	}
	c.timer = nil
	err := source.Play(ctx)
	if err == nil {
		c.locker.Unlock()
		logger.Debugf(ctx, "started the %s source", name)
		return
	}

	err = PlaybackStartError{Source: name, Err: err}
	logger.Errorf(ctx, "%v", err)
	c.stopLocked(ctx)
	state := c.state
	c.locker.Unlock()
	c.notify(state)
	c.notifyError(err)
}

func (c *Controller) progressLoop(
	ctx context.Context,
	session uint64,
	reference Source,
	ticker Ticker,
) {
	logger.Tracef(ctx, "progressLoop")
	defer func() { logger.Tracef(ctx, "/progressLoop") }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		state, running := c.updateProgress(ctx, session, reference)
		c.notify(state)
		if !running {
			return
		}
	}
}

func (c *Controller) updateProgress(
	ctx context.Context,
	session uint64,
	reference Source,
) (State, bool) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.session != session || !c.state.IsPlaying {
		return c.state, false
	}
	if reference.Ended() {
		logger.Debugf(ctx, "the reference source ended")
		c.stopLocked(ctx)
		return c.state, false
	}
	c.state.Progress = Progress(reference.CurrentTime(), reference.Duration())
	return c.state, true
}

// Progress returns current/total clamped to [0, 1].
func Progress(current, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(current) / float64(total)
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Stop ends the current session, if any.
func (c *Controller) Stop(ctx context.Context) {
	c.locker.Lock()
	wasActive := c.state.Phase != PhaseIdle
	c.stopLocked(ctx)
	state := c.state
	c.locker.Unlock()
	if wasActive {
		c.notify(state)
	}
}

func (c *Controller) stopLocked(ctx context.Context) {
	c.session++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	for _, src := range []Source{c.primary, c.secondary} {
		if err := src.Pause(); err != nil {
			logger.Debugf(ctx, "unable to pause a source: %v", err)
		}
	}
	c.reference = nil
	c.state.Phase = PhaseIdle
	c.state.IsPlaying = false
	c.state.Progress = 0
}

// SetOffset changes the offset for the next session; the current one
// is stopped.
func (c *Controller) SetOffset(ctx context.Context, offset float64) {
	c.locker.Lock()
	changed := offset != c.offset
	c.offset = offset
	wasPlaying := c.state.Phase != PhaseIdle
	if wasPlaying {
		c.stopLocked(ctx)
	}
	state := c.state
	c.locker.Unlock()
	logger.Debugf(ctx, "SetOffset(%v): changed:%t, stopped:%t", offset, changed, wasPlaying)
	if wasPlaying {
		c.notify(state)
	}
}

// SetMode changes the mode for the next session; the current one is
// stopped.
func (c *Controller) SetMode(ctx context.Context, mode Mode) {
	c.locker.Lock()
	c.mode = mode
	wasPlaying := c.state.Phase != PhaseIdle
	if wasPlaying {
		c.stopLocked(ctx)
	}
	state := c.state
	c.locker.Unlock()
	if wasPlaying {
		c.notify(state)
	}
}

// Close stops the playback and releases both sources.
func (c *Controller) Close(ctx context.Context) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.closed {
		return nil
	}
	c.stopLocked(ctx)
	c.closed = true

	var mErr *multierror.Error
	if err := c.primary.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the primary source: %w", err))
	}
	if err := c.secondary.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the secondary source: %w", err))
	}
	return mErr.ErrorOrNil()
}
