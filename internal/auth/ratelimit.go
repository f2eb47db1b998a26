package auth

import (
	"sync"
	"time"
)

// LoginRateLimiter throttles login attempts per key (client ip + email).
// After MaxAttempts inside Window the key is blocked for BlockFor.
type LoginRateLimiter struct {
	MaxAttempts int
	Window      time.Duration
	BlockFor    time.Duration

	attempts map[string]*loginAttempt
	mu       sync.Mutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type loginAttempt struct {
	count     int
	firstTry  time.Time
	blockedAt *time.Time
}

// NewLoginRateLimiter creates a limiter allowing 5 attempts per 5 minutes,
// then blocking for 15 minutes, and starts its cleanup goroutine.
func NewLoginRateLimiter() *LoginRateLimiter {
	rl := newLoginRateLimiter(time.Now)
	go rl.cleanup(10 * time.Minute)
	return rl
}

func newLoginRateLimiter(now func() time.Time) *LoginRateLimiter {
	return &LoginRateLimiter{
		MaxAttempts: 5,
		Window:      5 * time.Minute,
		BlockFor:    15 * time.Minute,
		attempts:    make(map[string]*loginAttempt),
		now:         now,
		stop:        make(chan struct{}),
	}
}

// Allow counts an attempt and reports whether it may proceed, how many
// attempts remain and, when blocked, how long until the block lifts.
func (rl *LoginRateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	attempt, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &loginAttempt{count: 1, firstTry: now}
		return true, rl.MaxAttempts - 1, 0
	}

	if attempt.blockedAt != nil {
		if elapsed := now.Sub(*attempt.blockedAt); elapsed < rl.BlockFor {
			return false, 0, rl.BlockFor - elapsed
		}
		attempt.count = 1
		attempt.firstTry = now
		attempt.blockedAt = nil
		return true, rl.MaxAttempts - 1, 0
	}

	if now.Sub(attempt.firstTry) > rl.Window {
		attempt.count = 1
		attempt.firstTry = now
		return true, rl.MaxAttempts - 1, 0
	}

	attempt.count++
	if attempt.count > rl.MaxAttempts {
		attempt.blockedAt = &now
		return false, 0, rl.BlockFor
	}

	return true, rl.MaxAttempts - attempt.count, 0
}

// Reset forgets the attempts for a key (on successful login)
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// Stop ends the cleanup goroutine
func (rl *LoginRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *LoginRateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops entries idle for longer than the window plus the block
func (rl *LoginRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, attempt := range rl.attempts {
		last := attempt.firstTry
		if attempt.blockedAt != nil {
			last = *attempt.blockedAt
		}
		if now.Sub(last) > rl.Window+rl.BlockFor {
			delete(rl.attempts, key)
		}
	}
}
