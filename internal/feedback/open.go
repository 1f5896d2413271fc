package feedback

import (
	"context"
	"errors"
	"fmt"

	"newsrec/internal/config"
	"newsrec/internal/domain"
)

// Open connects the store selected by cfg. It returns (nil, nil) when feedback is
// disabled; callers treat any error as "no store" for the rest of the process.
func Open(ctx context.Context, cfg *config.AppConfig) (domain.FeedbackStore, error) {
	var (
		store domain.FeedbackStore
		err   error
	)
	switch backend := cfg.FeedbackBackend(); backend {
	case "none":
		return nil, nil
	case "mongo":
		if cfg.Feedback.Mongo == nil {
			return nil, errors.New("mongo feedback config missing")
		}
		var s *MongoStore
		if s, err = NewMongoStore(ctx, *cfg.Feedback.Mongo); err == nil {
			store = s
		}
	case "redis":
		if cfg.Feedback.Redis == nil {
			return nil, errors.New("redis feedback config missing")
		}
		var s *RedisStore
		if s, err = NewRedisStore(ctx, *cfg.Feedback.Redis); err == nil {
			store = s
		}
	case "badger":
		if cfg.Feedback.Badger == nil || cfg.Feedback.Badger.Path == "" {
			return nil, errors.New("badger feedback path missing")
		}
		var s *BadgerStore
		if s, err = NewBadgerStore(*cfg.Feedback.Badger); err == nil {
			store = s
		}
	default:
		return nil, fmt.Errorf("unknown feedback backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
