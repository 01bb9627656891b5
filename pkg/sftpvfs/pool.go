package sftpvfs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// ChannelPool is a bounded multiset of Channels with acquire/release
// semantics (spec.md GLOSSARY "Pool"). It generalizes the teacher's
// channel-based SFTPClientPool: the same "blocking channel as semaphore"
// idea, but carrying the full acquisition policy of spec.md §4.3 -
// keep-alive validation on checkout, idle-timeout eviction, bounded
// backoff reconnects, and an explicit keepAlive sweep.
type ChannelPool struct {
	cfg       PoolConfig
	dialer    sshDialer
	addr      string
	sshConfig *ssh.ClientConfig
	log       logrus.FieldLogger

	// newChannel creates one channel. It defaults to dialing through
	// dialer/addr/sshConfig; tests substitute an in-process factory (see
	// mock.go) to exercise the pool's acquisition policy without a real
	// network dial.
	newChannel func() (*Channel, error)

	// mu is a deadlock-detecting mutex rather than sync.Mutex: a
	// misordered lock acquisition between the pool and a channel it owns
	// fails loudly in tests instead of hanging.
	mu deadlock.Mutex

	idleChannels map[string]*Channel
	idleOrder    []string
	idleCache    *gocache.Cache

	total  int
	closed bool
	wake   chan struct{}
}

// NewChannelPool dials cfg.InitialSize channels eagerly and returns a pool
// ready to serve Acquire calls, mirroring
// NewSFTPClientPoolWithLimits's eager pre-fill.
func NewChannelPool(cfg PoolConfig, dialer sshDialer, addr string, sshConfig *ssh.ClientConfig, log logrus.FieldLogger) (*ChannelPool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := &ChannelPool{
		cfg:          cfg,
		dialer:       dialer,
		addr:         addr,
		sshConfig:    sshConfig,
		log:          withChannelLog(log, addr),
		idleChannels: make(map[string]*Channel),
		idleCache:    gocache.New(gocache.NoExpiration, idleSweepInterval),
		wake:         make(chan struct{}),
	}
	p.idleCache.OnEvicted(p.onIdleEvicted)
	p.newChannel = func() (*Channel, error) { return dialChannel(dialer, addr, sshConfig) }

	for i := 0; i < cfg.InitialSize; i++ {
		ch, err := p.newChannel()
		if err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "pre-fill channel %d/%d", i+1, cfg.InitialSize)
		}
		p.total++
		p.pushIdle(ch)
	}

	return p, nil
}

// idleSweepInterval is how often go-cache's janitor checks for expired
// idle entries; it bounds how far an idle channel can overshoot
// maxIdleTime, per spec.md §4.3's "no unbounded margin" property.
const idleSweepInterval = 5 * time.Second

// Acquire implements spec.md §4.3's acquisition policy: reuse a validated
// idle channel, else create one under the cap, else block for
// maxWaitTime (zero meaning unbounded).
func (p *ChannelPool) Acquire(ctx context.Context) (*Channel, error) {
	if p.cfg.MaxWaitTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.MaxWaitTime)
		defer cancel()
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, closedError(opAcquire, p.addr)
		}

		if ch, id, ok := p.popIdleLocked(); ok {
			p.mu.Unlock()
			p.idleCache.Delete(id)
			if err := p.validate(ctx, ch); err != nil {
				p.log.WithError(err).Debug("discarding dead idle channel on acquire")
				p.discard(ch)
				continue
			}
			ch.acquire()
			return ch, nil
		}

		if p.total < p.cfg.MaxSize {
			p.total++
			p.mu.Unlock()

			ch, err := p.dialWithBackoff(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				p.wakeAll()
				return nil, errors.Wrap(err, "acquire: create channel")
			}
			ch.acquire()
			return ch, nil
		}

		wake := p.wake
		p.mu.Unlock()

		select {
		case <-wake:
			continue
		case <-ctx.Done():
			return nil, acquireCtxError(ctx, p.addr)
		}
	}
}

// AcquireOrCreate implements spec.md §4.3's second entry point for
// copy-within-same-filesystem: prefer an idle channel, else dial an
// off-pool channel bounded only by the transport, never by maxSize. The
// caller must still Release it; off-pool channels are disconnected
// immediately rather than being enqueued.
func (p *ChannelPool) AcquireOrCreate(ctx context.Context) (*Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, closedError(opAcquire, p.addr)
	}
	ch, id, ok := p.popIdleLocked()
	p.mu.Unlock()

	if ok {
		p.idleCache.Delete(id)
		if err := p.validate(ctx, ch); err == nil {
			ch.acquire()
			return ch, nil
		}
		p.discard(ch)
	}

	ch, err := p.dialWithBackoff(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquireOrCreate: off-pool channel")
	}
	ch.offPool = true
	ch.acquire()
	return ch, nil
}

// Release returns ch to the pool once its reference count reaches zero.
// A dead or off-pool channel is closed instead of requeued; if the pool
// has since been closed, ch is closed rather than requeued.
func (p *ChannelPool) Release(ch *Channel) {
	if ch == nil || !ch.release() {
		return
	}

	if ch.offPool {
		_ = ch.close()
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || ch.isDead() {
		_ = ch.close()
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		p.wakeAll()
		return
	}

	p.pushIdle(ch)
	p.wakeAll()
}

// KeepAlive implements spec.md §4.3's explicit keepAlive: drains every
// idle channel, probes each concurrently, and returns a single error
// aggregating every probe failure as a suppressed error. Channels that
// answer are returned to the pool; channels that fail are disconnected
// and no longer counted toward the pool's total.
func (p *ChannelPool) KeepAlive(ctx context.Context) error {
	p.mu.Lock()
	ids := append([]string(nil), p.idleOrder...)
	channels := make([]*Channel, 0, len(ids))
	for _, id := range ids {
		channels = append(channels, p.idleChannels[id])
		delete(p.idleChannels, id)
	}
	p.idleOrder = nil
	p.mu.Unlock()

	for _, id := range ids {
		p.idleCache.Delete(id)
	}

	probeErrs := make([]error, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			if err := ch.keepAlive(gctx); err != nil {
				ch.markDead()
				probeErrs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait() // per-channel errors are collected below, not propagated by the group itself

	var result *multierror.Error
	for i, ch := range channels {
		if ch.isDead() {
			result = multierror.Append(result, errors.Wrapf(probeErrs[i], "keepalive probe failed"))
			_ = ch.close()
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			continue
		}
		p.pushIdle(ch)
	}
	p.wakeAll()

	return result.ErrorOrNil()
}

// Close implements spec.md §4.3's shutdown: marks the pool closed,
// disconnects every idle channel immediately, and lets in-use channels
// close themselves the next time Release observes the closed flag.
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ids := append([]string(nil), p.idleOrder...)
	channels := make([]*Channel, 0, len(ids))
	for _, id := range ids {
		channels = append(channels, p.idleChannels[id])
		delete(p.idleChannels, id)
	}
	p.idleOrder = nil
	p.total = 0
	p.mu.Unlock()

	for _, id := range ids {
		p.idleCache.Delete(id)
	}

	var result *multierror.Error
	for _, ch := range channels {
		if err := ch.close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.wakeAll()

	return result.ErrorOrNil()
}

// Size returns the number of channels currently known to the pool (idle
// plus in-use).
func (p *ChannelPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *ChannelPool) validate(ctx context.Context, ch *Channel) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.keepAlive(probeCtx)
}

func (p *ChannelPool) discard(ch *Channel) {
	_ = ch.close()
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	p.wakeAll()
}

func (p *ChannelPool) dialWithBackoff(ctx context.Context) (*Channel, error) {
	var ch *Channel
	op := func() error {
		c, err := p.newChannel()
		if err != nil {
			return err
		}
		ch = c
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return ch, nil
}

// pushIdle enqueues ch as idle under a fresh id, registering it with
// go-cache under a per-item TTL of cfg.MaxIdleTime (or no expiration at
// all when MaxIdleTime is the zero value, meaning "infinite" per
// spec.md §6's default).
func (p *ChannelPool) pushIdle(ch *Channel) {
	id := uuid.NewString()

	p.mu.Lock()
	p.idleChannels[id] = ch
	p.idleOrder = append(p.idleOrder, id)
	p.mu.Unlock()

	ttl := gocache.NoExpiration
	if p.cfg.MaxIdleTime > 0 {
		ttl = p.cfg.MaxIdleTime
	}
	p.idleCache.Set(id, struct{}{}, ttl)
}

// popIdleLocked removes and returns the oldest idle channel. Caller must
// hold p.mu and must call p.idleCache.Delete(id) after unlocking, so the
// eventual OnEvicted callback (triggered by that Delete) finds the id
// already absent from idleChannels and no-ops.
func (p *ChannelPool) popIdleLocked() (*Channel, string, bool) {
	if len(p.idleOrder) == 0 {
		return nil, "", false
	}
	id := p.idleOrder[0]
	p.idleOrder = p.idleOrder[1:]
	ch := p.idleChannels[id]
	delete(p.idleChannels, id)
	return ch, id, true
}

// onIdleEvicted is go-cache's expiration callback, firing both for
// janitor-driven expiry (the real idle-timeout case) and for our own
// explicit Delete calls (a spurious call we must recognize and ignore).
func (p *ChannelPool) onIdleEvicted(id string, _ any) {
	p.mu.Lock()
	ch, ok := p.idleChannels[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.idleChannels, id)
	for i, existing := range p.idleOrder {
		if existing == id {
			p.idleOrder = append(p.idleOrder[:i], p.idleOrder[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	p.log.Debug("evicting idle channel past maxIdleTime")
	_ = ch.close()

	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	p.wakeAll()
}

func (p *ChannelPool) wakeAll() {
	p.mu.Lock()
	close(p.wake)
	p.wake = make(chan struct{})
	p.mu.Unlock()
}

func acquireCtxError(ctx context.Context, addr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(opAcquire, addr, KindTimedOut, ctx.Err())
	}
	return newError(opAcquire, addr, KindInterrupted, ctx.Err())
}
