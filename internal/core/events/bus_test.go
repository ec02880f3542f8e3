package events_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/credit-marketplace/internal/core/events"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("delivers published events to every subscriber", func() {
		var calls int32
		for i := 0; i < 3; i++ {
			bus.Subscribe(events.EventTypePaymentCompleted, func(ctx context.Context, e events.Event) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}

		evt := events.NewPaymentCompletedEvent("tx-1", 7, "order_1", "Basic", 10, 100)
		Expect(bus.Publish(context.Background(), evt)).To(Succeed())
		bus.Wait()

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
	})

	It("keeps running handlers after the publishing context is cancelled", func() {
		var seen error
		bus.Subscribe(events.EventTypeTransactionSubmitted, func(ctx context.Context, e events.Event) error {
			seen = ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(bus.Publish(ctx, events.NewTransactionSubmittedEvent("tx-1", 1, "Basic", 10, 100, "full"))).To(Succeed())
		bus.Wait()

		Expect(seen).ToNot(HaveOccurred())
	})

	It("surfaces handler errors from PublishSync", func() {
		bus.Subscribe(events.EventTypeLedgerSyncFailed, func(ctx context.Context, e events.Event) error {
			return errors.New("boom")
		})

		err := bus.PublishSync(context.Background(), events.NewLedgerSyncFailedEvent("tx-1", 1, "timeout"))
		Expect(err).To(MatchError(ContainSubstring("boom")))
	})

	It("carries transaction identity on lifecycle events", func() {
		evt := events.NewOrderCreatedEvent("tx-9", 3, "order_9", 1000, "INR")
		Expect(evt.Key()).To(Equal("tx-9"))
		Expect(evt.EventType()).To(Equal(events.EventTypeOrderCreated))
		Expect(evt.Payload()).To(HaveKeyWithValue("order_id", "order_9"))
		Expect(evt.EventID()).ToNot(BeEmpty())
	})
})
