// Package poller runs the background loop that checks monitored accounts for
// new posts and hands them to the dispatcher.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

// State of the poll loop.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Feed fetches recent posts for a handle. Implemented by the bluesky client.
type Feed interface {
	RecentPosts(ctx context.Context, handle string) ([]domain.Post, error)
}

// Dispatcher delivers one post through the account's enabled channels.
// It returns true when at least one channel succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, account *domain.Account, post domain.Post) bool
}

// Clock lets tests control time. Defaults to time.Now.
type Clock func() time.Time

// Poller is the poll-loop state machine. One instance runs per process.
type Poller struct {
	store      domain.AccountStore
	ledger     domain.Ledger
	feed       Feed
	dispatcher Dispatcher
	interval   time.Duration
	now        Clock

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// New creates a Poller. interval is the sleep between cycles.
func New(store domain.AccountStore, ledger domain.Ledger, feed Feed, dispatcher Dispatcher, interval time.Duration) *Poller {
	return &Poller{
		store:      store,
		ledger:     ledger,
		feed:       feed,
		dispatcher: dispatcher,
		interval:   interval,
		now:        time.Now,
		state:      StateStopped,
	}
}

// WithClock overrides the time source (tests).
func (p *Poller) WithClock(clock Clock) *Poller {
	p.now = clock
	return p
}

// State returns the current loop state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run transitions STOPPED→RUNNING and loops until Stop is called or ctx is
// cancelled. The stop flag is observed at iteration boundaries and between
// accounts; an in-flight account check always completes. Run never returns
// an error caused by a single account or cycle — those are logged.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	if p.state != StateStopped {
		p.mu.Unlock()
		log.Warn().Str("state", string(p.state)).Msg("poller already running")
		return
	}
	p.state = StateRunning
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop := p.stop
	done := p.done
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
		close(done)
	}()

	log.Info().Dur("interval", p.interval).Msg("poller started")

	for {
		p.RunCycle(ctx)

		select {
		case <-stop:
			log.Info().Msg("poller stopping")
			return
		case <-ctx.Done():
			log.Info().Msg("poller context cancelled")
			return
		case <-time.After(p.interval):
		}
	}
}

// Stop requests a cooperative shutdown and blocks until the loop exits.
// Safe to call when the poller is not running.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
	log.Info().Msg("poller stopped")
}

// RunCycle performs one iteration over all active accounts. Errors in one
// account never abort the others.
func (p *Poller) RunCycle(ctx context.Context) {
	accounts, err := p.store.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list active accounts")
		return
	}

	log.Debug().Int("accounts", len(accounts)).Msg("poll cycle started")

	for _, account := range accounts {
		if p.stopRequested(ctx) {
			return
		}
		p.checkAccount(ctx, account)
	}
}

func (p *Poller) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateStopping
}

// checkAccount fetches the account's feed, filters out already-handled posts
// and dispatches the rest. Ordering per post: dispatch → ledger write; the
// last-check cutoff advances only after all dispatch attempts for the
// account completed, so a crash mid-dispatch never silently skips posts.
func (p *Poller) checkAccount(ctx context.Context, account *domain.Account) {
	// Re-fetch by primary key: the account may have been deleted or
	// deactivated by the CRUD API since ListActive.
	fresh, err := p.store.GetByDID(ctx, account.DID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Str("did", account.DID).Msg("account vanished mid-cycle, skipping")
			return
		}
		log.Error().Str("did", account.DID).Err(err).Msg("reload account")
		return
	}
	if !fresh.IsActive {
		return
	}
	account = fresh

	posts, err := p.feed.RecentPosts(ctx, account.Handle)
	if err != nil {
		// Transient failures were already retried inside the client;
		// treat the cycle as empty for this account.
		log.Warn().Str("handle", account.Handle).Err(err).Msg("feed fetch failed, skipping account this cycle")
		return
	}

	now := p.now()

	// First-ever check: record the baseline and emit nothing, so history
	// from before monitoring began is never replayed.
	if account.LastCheck == nil {
		if err := p.store.UpdateLastCheck(ctx, account.DID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Error().Str("did", account.DID).Err(err).Msg("record baseline last-check")
		}
		log.Info().
			Str("handle", account.Handle).
			Int("existing_posts", len(posts)).
			Msg("baseline established for new account")
		return
	}

	dispatched := 0
	failed := 0
	for _, post := range posts {
		notified, err := p.ledger.IsNotified(ctx, account.DID, post.URI)
		if err != nil {
			log.Error().Str("uri", post.URI).Err(err).Msg("ledger lookup failed")
			continue
		}
		// Both guards are required: the ledger catches re-notification when
		// last-check advanced early; the timestamp catches back-filled posts
		// indexed before the cutoff.
		if notified || !post.IndexedAt.After(*account.LastCheck) {
			continue
		}

		if !p.dispatcher.Dispatch(ctx, account, post) {
			// Every enabled channel failed (or the post is unrenderable).
			// Leave it out of the ledger so it is retried next cycle.
			failed++
			continue
		}

		if _, err := p.ledger.MarkNotified(ctx, account.DID, post.URI); err != nil {
			log.Error().Str("uri", post.URI).Err(err).Msg("ledger mark failed")
			continue
		}
		dispatched++
	}

	if failed > 0 {
		// Holding the cutoff keeps the failed posts qualifying next cycle;
		// the ledger stops the succeeded ones from repeating.
		log.Warn().
			Str("handle", account.Handle).
			Int("failed", failed).
			Msg("dispatch failures, last-check not advanced")
		return
	}

	if err := p.store.UpdateLastCheck(ctx, account.DID, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted concurrently; nothing to update.
			return
		}
		log.Error().Str("did", account.DID).Err(err).Msg("advance last-check")
		return
	}

	if dispatched > 0 {
		log.Info().
			Str("handle", account.Handle).
			Int("dispatched", dispatched).
			Msg("account check completed")
	}
}
