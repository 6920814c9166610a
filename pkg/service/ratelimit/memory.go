package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter 进程内滑动窗口计数，只在单实例部署下有效
type MemoryLimiter struct {
	mu            sync.Mutex
	limits        Limits
	entries       map[string]*uploadWindow
	now           func() time.Time
	opCount       int
	cleanupEveryN int
}

type uploadEvent struct {
	at   time.Time
	size int64
}

type uploadWindow struct {
	events     []uploadEvent
	lastSeenAt time.Time
}

func NewMemoryLimiter(limits Limits) *MemoryLimiter {
	return &MemoryLimiter{
		limits:        limits,
		entries:       make(map[string]*uploadWindow),
		now:           time.Now,
		cleanupEveryN: 64,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, publisherID string, size int64) error {
	return l.take(publisherID, size, false)
}

func (l *MemoryLimiter) Allow(_ context.Context, publisherID string, size int64) error {
	return l.take(publisherID, size, true)
}

// take 在锁内完成检查，record 为 true 且未超限时记入窗口
func (l *MemoryLimiter) take(publisherID string, size int64, record bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.entries[publisherID]
	if w == nil {
		w = &uploadWindow{}
		l.entries[publisherID] = w
	}
	w.prune(now)
	w.lastSeenAt = now
	l.maybeCleanupLocked(now)

	if l.limits.UploadsPerWindow > 0 && len(w.events) >= l.limits.UploadsPerWindow {
		return countExceeded(l.limits, w.retryAfter(now))
	}
	if l.limits.BytesPerWindow > 0 && w.total()+size > l.limits.BytesPerWindow {
		return bytesExceeded(l.limits, w.retryAfter(now))
	}
	if record {
		w.events = append(w.events, uploadEvent{at: now, size: size})
	}
	return nil
}

func (w *uploadWindow) prune(now time.Time) {
	cut := 0
	for cut < len(w.events) && now.Sub(w.events[cut].at) >= Window {
		cut++
	}
	w.events = w.events[cut:]
}

func (w *uploadWindow) total() int64 {
	var sum int64
	for _, e := range w.events {
		sum += e.size
	}
	return sum
}

// retryAfter 最早的一次上传滑出窗口所需的时间
func (w *uploadWindow) retryAfter(now time.Time) time.Duration {
	if len(w.events) == 0 {
		return Window
	}
	return w.events[0].at.Add(Window).Sub(now)
}

func (l *MemoryLimiter) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.opCount%l.cleanupEveryN != 0 {
		return
	}
	for key, w := range l.entries {
		if now.Sub(w.lastSeenAt) > 2*Window {
			delete(l.entries, key)
		}
	}
}
