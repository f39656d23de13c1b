package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDequeueRoundTrip(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	defer q.Close()

	require.NoError(t, q.Publish(context.Background(), []byte("first")))
	require.NoError(t, q.Publish(context.Background(), []byte("second")))
	require.Equal(t, 2, q.Len())

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)
}

func TestPublishRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	defer q.Close()
	require.NoError(t, q.Publish(context.Background(), []byte("fills the buffer")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, []byte("blocked"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDequeueAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err := q.Dequeue(context.Background())
	require.EqualError(t, err, "queue closed")
}
