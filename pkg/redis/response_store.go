package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const processingMarker = "processing"

// ErrInProgress is returned by Begin while another request holds the key
var ErrInProgress = errors.New("request already in progress")

// StoredResponse is a completed response replayed for a repeated key
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// ResponseStore keeps idempotent responses in Redis. A key moves from
// absent to "processing" to the stored response.
type ResponseStore struct {
	prefix    string
	lockTTL   time.Duration
	retention time.Duration
}

var (
	setStoreValue   = Set
	getStoreValue   = Get
	setNXStoreValue = SetNX
	delStoreValue   = Del
)

func NewResponseStore(prefix string, lockTTL, retention time.Duration) *ResponseStore {
	return &ResponseStore{prefix: prefix, lockTTL: lockTTL, retention: retention}
}

func (s *ResponseStore) storageKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Begin claims key. It returns the stored response when key completed
// before, ErrInProgress when it is being processed and (nil, nil) when the
// caller now owns it.
func (s *ResponseStore) Begin(ctx context.Context, key string) (*StoredResponse, error) {
	k := s.storageKey(key)

	val, err := getStoreValue(ctx, k)
	switch {
	case err == nil && val == processingMarker:
		return nil, ErrInProgress
	case err == nil:
		var resp StoredResponse
		if err := json.Unmarshal([]byte(val), &resp); err != nil {
			return nil, fmt.Errorf("decode stored response: %w", err)
		}
		return &resp, nil
	case !IsNil(err):
		return nil, err
	}

	ok, err := setNXStoreValue(ctx, k, processingMarker, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInProgress
	}
	return nil, nil
}

// Complete stores resp for key
func (s *ResponseStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return setStoreValue(ctx, s.storageKey(key), data, s.retention)
}

// Abort drops the claim so the request can be retried
func (s *ResponseStore) Abort(ctx context.Context, key string) error {
	return delStoreValue(ctx, s.storageKey(key))
}
