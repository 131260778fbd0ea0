package services

import (
	"context"
	"fmt"

	"github.com/partydeck/partydeck/pkg/logx"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MessagePublisher is what the router and reaper need from the broker;
// tests substitute a recorder.
type MessagePublisher interface {
	Publish(message string) error
}

const publisherChannel = "party-host"

// PublisherService announces room lifecycle events on a redis channel so
// sibling services (narration pipeline, persona picker) can react.
type PublisherService struct {
	broker *redis.Client
}

func NewPublisherService(host, port, password string) PublisherService {
	broker := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})
	return PublisherService{broker: broker}
}

func (publisherService PublisherService) Publish(message string) error {
	if message == "" {
		return nil
	}

	err := publisherService.broker.Publish(context.Background(), publisherChannel, message).Err()

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not publish message"),
			zap.String("message", message),
		)

		return err
	}

	return nil
}
