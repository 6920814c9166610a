package listener

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
)

func TestAuditListenerRefreshesOnChange(t *testing.T) {
	bus := event.NewEventBusWithWorkers(1, 16)
	var calls atomic.Int32
	NewDistributionAuditListener(bus, func() { calls.Add(1) })

	bus.Publish(event.DistributionPublished, event.PublishedPayload{RecordID: 1, PublisherID: "pub-1"})
	bus.Publish(event.DistributionRead, event.ReadPayload{RecordID: 1, WorkplaceID: "wp-x", FirstRead: true})
	bus.Publish(event.DistributionDeleted, event.DeletedPayload{ActorID: "pub-1", RecordIDs: []uint{1}})
	bus.Publish(event.DistributionDeleted, "not a payload")
	bus.Shutdown()

	assert.Equal(t, int32(2), calls.Load())
}

func TestAuditListenerSkipsOverlappingRefresh(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	l := &DistributionAuditListener{onChange: func() {
		calls.Add(1)
		<-release
	}}

	done := make(chan struct{})
	go func() {
		l.refresh()
		close(done)
	}()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	l.refresh()
	close(release)
	<-done
	assert.Equal(t, int32(1), calls.Load())
}
