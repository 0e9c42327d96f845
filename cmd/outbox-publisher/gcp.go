package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// cachedPublishers hands out one ordered publisher per topic.
func cachedPublishers(client pubSubClient) publisherFactory {
	var mu sync.Mutex
	cache := map[string]publisher{}
	return func(topic string) publisher {
		mu.Lock()
		defer mu.Unlock()
		if pub, ok := cache[topic]; ok {
			return pub
		}
		handle := client.Publisher(topic)
		if handle == nil {
			return nil
		}
		handle.EnableMessageOrdering = true
		pub := orderedPublisher{handle}
		cache[topic] = pub
		return pub
	}
}

type orderedPublisher struct {
	handle *gcppubsub.Publisher
}

func (p orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return orderedResult{
		result: p.handle.Publish(ctx, msg),
		resume: func() { p.handle.ResumePublish(msg.OrderingKey) },
	}
}

type orderedResult struct {
	result *gcppubsub.PublishResult
	resume func()
}

func (r orderedResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.result.Get(ctx)
	if err != nil {
		// A failed ordered publish pauses its key until resumed.
		r.resume()
	}
	return id, err
}
