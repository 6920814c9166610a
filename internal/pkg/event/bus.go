/*
 * @Description: 一个带固定Worker池的异步事件总线
 * @Author: 安知鱼
 * @Date: 2026-09-10 19:06:12
 * @LastEditTime: 2026-09-27 11:52:40
 * @LastEditors: 安知鱼
 */
package event

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// 定义事件类型
type Topic string

const (
	DistributionPublished Topic = "distribution:published"
	DistributionRead      Topic = "distribution:read"
	DistributionDeleted   Topic = "distribution:deleted"
)

// 事件处理器函数类型
type Handler func(payload any)

// Event 是在通道中传递的事件结构
type Event struct {
	Topic   Topic
	Payload any
}

// PublishedPayload 文件发布后的事件负载
type PublishedPayload struct {
	RecordID    uint
	PublisherID string
	Hash        string
	Size        int64
	Category    string
	DedupHit    bool
	TargetCount int
}

// ReadPayload 组织确认已读后的事件负载
type ReadPayload struct {
	RecordID    uint
	WorkplaceID string
	ReaderID    string
	// FirstRead 为 false 表示重复确认，没有产生新的已读记录
	FirstRead bool
	AllRead   bool
}

// DeletedPayload 逻辑删除完成后的事件负载
type DeletedPayload struct {
	ActorID   string
	RecordIDs []uint
	Reclaimed int
	Bulk      bool
}

// EventBus 实现了基于Worker池的异步事件总线
type EventBus struct {
	mu        sync.RWMutex
	handlers  map[Topic][]Handler
	eventChan chan Event     // 带缓冲的事件通道
	wg        sync.WaitGroup // 用于优雅关闭
	closeOnce sync.Once
	closed    bool
}

// 定义Worker池和通道的配置
const (
	DefaultWorkerCount = 4    // 默认启动4个后台Worker
	DefaultChannelSize = 1024 // 默认事件通道缓冲区大小
)

// NewEventBus 创建并启动一个新的事件总线
func NewEventBus() *EventBus {
	return NewEventBusWithWorkers(DefaultWorkerCount, DefaultChannelSize)
}

// NewEventBusWithWorkers 使用指定的worker数量和通道大小创建事件总线
func NewEventBusWithWorkers(workers, size int) *EventBus {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	if size <= 0 {
		size = DefaultChannelSize
	}
	bus := &EventBus{
		handlers:  make(map[Topic][]Handler),
		eventChan: make(chan Event, size),
	}
	bus.startWorkers(workers)
	return bus
}

func (b *EventBus) startWorkers(count int) {
	for i := 0; i < count; i++ {
		b.wg.Add(1)
		go b.worker(i + 1)
	}
}

// worker 是消费者，不断从通道中读取并处理事件
func (b *EventBus) worker(workerID int) {
	defer b.wg.Done()
	log.Debug().Int("worker", workerID).Msg("[EventBus] worker started")

	for ev := range b.eventChan {
		b.mu.RLock()
		handlers := b.handlers[ev.Topic]
		b.mu.RUnlock()
		for _, handler := range handlers {
			b.dispatch(ev, handler)
		}
	}
	log.Debug().Int("worker", workerID).Msg("[EventBus] worker stopped")
}

// dispatch 执行单个handler，handler中的panic不会终止worker
func (b *EventBus) dispatch(ev Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("topic", string(ev.Topic)).Msg("[EventBus] handler panicked")
		}
	}()
	handler(ev.Payload)
}

// Subscribe 订阅一个事件
func (b *EventBus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish 发布一个事件，非阻塞；通道已满或总线已关闭时丢弃事件
func (b *EventBus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Warn().Str("topic", string(topic)).Msg("[EventBus] bus is closed, dropping event")
		return
	}

	select {
	case b.eventChan <- Event{Topic: topic, Payload: payload}:
	default:
		log.Warn().Str("topic", string(topic)).Msg("[EventBus] event channel is full, dropping event")
	}
}

// Shutdown 优雅地关闭事件总线，等待已入队的事件处理完毕
func (b *EventBus) Shutdown() {
	b.closeOnce.Do(func() {
		log.Info().Msg("[EventBus] shutting down...")
		b.mu.Lock()
		b.closed = true
		close(b.eventChan)
		b.mu.Unlock()
		b.wg.Wait()
		log.Info().Msg("[EventBus] all workers have stopped")
	})
}
