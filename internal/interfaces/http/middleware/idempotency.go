package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/interfaces/http/response"
	"github.com/builders-garden/swifty/pkg/logger"
	"github.com/builders-garden/swifty/pkg/redis"
)

const IdempotencyHeader = "Idempotency-Key"

// ResponseStore is the storage behind IdempotencyMiddleware
type ResponseStore interface {
	Begin(ctx context.Context, key string) (*redis.StoredResponse, error)
	Complete(ctx context.Context, key string, resp redis.StoredResponse) error
	Abort(ctx context.Context, key string) error
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on the same route. Keys of requests that did not succeed
// are dropped so the client can retry.
func IdempotencyMiddleware(store ResponseStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		storageKey := c.Request.Method + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()

		stored, err := store.Begin(ctx, storageKey)
		switch {
		case errors.Is(err, redis.ErrInProgress):
			response.Error(c, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeConflict, "Request already in progress", err))
			c.Abort()
			return
		case err != nil:
			// redis unavailable: serve without replay protection
			logger.Warn(ctx, "Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		case stored != nil:
			c.Header("X-Idempotency-Hit", "true")
			c.Data(stored.Status, stored.ContentType, []byte(stored.Body))
			c.Abort()
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			err = store.Complete(context.WithoutCancel(ctx), storageKey, redis.StoredResponse{
				Status:      status,
				ContentType: c.Writer.Header().Get("Content-Type"),
				Body:        w.body.String(),
			})
		} else {
			err = store.Abort(context.WithoutCancel(ctx), storageKey)
		}
		if err != nil {
			logger.Warn(ctx, "Idempotency store update failed", zap.Error(err))
		}
	}
}
