package service

import (
	"context"
	"time"

	"climalog/internal/modules/readings/types"
	"climalog/internal/mqtt"
)

const mqttIngestTimeout = 5 * time.Second

// RegisterMQTT routes readings received by the subscriber through Ingest.
func (s *Service) RegisterMQTT(subscriber mqtt.MQTTSubscriber) {
	subscriber.SetMessageHandler(func(r types.Reading) error {
		ctx, cancel := context.WithTimeout(context.Background(), mqttIngestTimeout)
		defer cancel()

		_, err := s.Ingest(ctx, SourceMQTT, r)
		return err
	})
}
