package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

func TestStoreError_Classification(t *testing.T) {
	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	canceledByServer := &pq.Error{Code: queryCanceled, Message: "canceling statement due to user request"}

	tests := []struct {
		name        string
		ctx         context.Context
		err         error
		wantTimeout bool
	}{
		{"driver returns the context error", context.Background(), fmt.Errorf("exec: %w", context.DeadlineExceeded), true},
		{"statement cancelled after its deadline", expired, canceledByServer, true},
		{"server statement_timeout", context.Background(), canceledByServer, true},
		{"statement cancelled by shutdown", cancelled, canceledByServer, false},
		{"unique violation", context.Background(), &pq.Error{Code: "23505"}, false},
		{"connection reset", context.Background(), errors.New("read: connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeError(tt.ctx, "upserting", tt.err)
			assert.ErrorIs(t, err, apperrors.ErrStore)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantTimeout, errors.Is(err, apperrors.ErrTimeout))
		})
	}
}
