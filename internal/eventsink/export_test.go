package eventsink

import (
	"log/slog"
	"time"
)

type MessageWriter = messageWriter

func NewKafkaForwarderWithWriter(w MessageWriter, timeout time.Duration, logger *slog.Logger) *KafkaForwarder {
	return newKafkaForwarder(w, timeout, logger)
}
