package eventsink_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/segmentio/kafka-go"

	"github.com/frahmantamala/credit-marketplace/internal/core/events"
	"github.com/frahmantamala/credit-marketplace/internal/eventsink"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

func TestEventSink(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Event Sink Suite")
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) snapshot() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]kafka.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

var _ = Describe("KafkaForwarder", func() {
	var (
		writer    *fakeWriter
		forwarder *eventsink.KafkaForwarder
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		forwarder = eventsink.NewKafkaForwarderWithWriter(writer, time.Second, logger.Discard())
	})

	It("keys messages by transaction id and tags the event type", func() {
		evt := events.NewPaymentCompletedEvent("tx-42", 9, "order_42", "Advanced", 50, 750)
		Expect(forwarder.Handle(context.Background(), evt)).To(Succeed())

		msgs := writer.snapshot()
		Expect(msgs).To(HaveLen(1))
		Expect(string(msgs[0].Key)).To(Equal("tx-42"))
		Expect(msgs[0].Headers[0].Value).To(Equal([]byte(events.EventTypePaymentCompleted)))
		Expect(writer.deadline).To(BeTrue())

		var decoded map[string]interface{}
		Expect(json.Unmarshal(msgs[0].Value, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKeyWithValue("transaction_id", "tx-42"))
		Expect(decoded).To(HaveKeyWithValue("type", events.EventTypePaymentCompleted))
	})

	It("wraps writer failures", func() {
		writer.err = errors.New("broker down")
		err := forwarder.Handle(context.Background(), events.NewLedgerSyncFailedEvent("tx-1", 1, "timeout"))
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("forwards every lifecycle event once registered on the bus", func() {
		bus := events.NewEventBus(logger.Discard())
		forwarder.Register(bus)

		Expect(bus.Publish(context.Background(), events.NewTransactionSubmittedEvent("tx-1", 1, "Basic", 10, 100, "full"))).To(Succeed())
		Expect(bus.Publish(context.Background(), events.NewOrderCreatedEvent("tx-1", 1, "order_1", 1000, "INR"))).To(Succeed())
		bus.Wait()

		Expect(writer.snapshot()).To(HaveLen(2))
	})
})
