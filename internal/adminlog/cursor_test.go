package adminlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/corestore/internal/adminmodel"
)

func TestCursor_PollSkippedWhileUndeliveredBufferNonEmpty(t *testing.T) {
	transport := NewMemoryTransport()
	transport.Append(adminmodel.LogRecord{})
	transport.Append(adminmodel.LogRecord{})

	cursor := New(transport, "admin-topic", 0, nil)
	require.NoError(t, cursor.Subscribe(context.Background(), 0))

	first, err := cursor.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// Append more records but don't mark anything delivered yet: the
	// second Poll must return the same buffer, not reach the transport.
	transport.Append(adminmodel.LogRecord{})
	second, err := cursor.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCursor_MarkDeliveredDrainsBuffer(t *testing.T) {
	transport := NewMemoryTransport()
	transport.Append(adminmodel.LogRecord{})
	transport.Append(adminmodel.LogRecord{})

	cursor := New(transport, "admin-topic", 0, nil)
	require.NoError(t, cursor.Subscribe(context.Background(), 0))

	_, err := cursor.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, cursor.HasUndelivered())

	cursor.MarkDelivered(1)
	assert.True(t, cursor.HasUndelivered())

	cursor.MarkDelivered(1)
	assert.False(t, cursor.HasUndelivered())
}

func TestCursor_ResubscribeAfterUnsubscribe(t *testing.T) {
	transport := NewMemoryTransport()
	cursor := New(transport, "admin-topic", 0, nil)

	require.NoError(t, cursor.Subscribe(context.Background(), 0))
	assert.True(t, cursor.IsSubscribed())

	require.NoError(t, cursor.Unsubscribe(context.Background()))
	assert.False(t, cursor.IsSubscribed())

	require.NoError(t, cursor.Subscribe(context.Background(), 5))
	assert.True(t, cursor.IsSubscribed())
}
