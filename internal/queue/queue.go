package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	TypeImageCleanup = "storage:delete_images"
	cleanupQueue     = "cleanup"
)

type ImageCleanupPayload struct {
	Keys []string `json:"keys"`
}

// ObjectDeleter removes objects from the image bucket.
type ObjectDeleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Client enqueues background jobs on Redis through asynq.
type Client struct {
	client *asynq.Client
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// EnqueueImageCleanup schedules deletion of orphaned listing images.
func (c *Client) EnqueueImageCleanup(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	task, err := newImageCleanupTask(keys)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(cleanupQueue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue image cleanup: %w", err)
	}
	log.Debug().Str("task_id", info.ID).Strs("keys", keys).Msg("image cleanup enqueued")
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// InlineCleaner deletes immediately. Used when no Redis is configured.
type InlineCleaner struct {
	Store ObjectDeleter
}

func (c InlineCleaner) EnqueueImageCleanup(ctx context.Context, keys []string) error {
	if c.Store == nil || len(keys) == 0 {
		return nil
	}
	return c.Store.Delete(ctx, keys...)
}

func newImageCleanupTask(keys []string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageCleanupPayload{Keys: keys})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageCleanup, payload), nil
}

// HandleImageCleanup returns the asynq handler that performs the deletion.
func HandleImageCleanup(store ObjectDeleter) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p ImageCleanupPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		if len(p.Keys) == 0 {
			return nil
		}
		if err := store.Delete(ctx, p.Keys...); err != nil {
			return fmt.Errorf("deleting images: %w", err)
		}
		log.Info().Strs("keys", p.Keys).Msg("orphaned images deleted")
		return nil
	}
}

// Worker processes background jobs until its context is cancelled.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(redisURL string, store ObjectDeleter) (*Worker, error) {
	if store == nil {
		return nil, errors.New("asynq: worker needs an object store")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{cleanupQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("background job failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeImageCleanup, HandleImageCleanup(store))

	return &Worker{server: srv, mux: mux}, nil
}

func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
