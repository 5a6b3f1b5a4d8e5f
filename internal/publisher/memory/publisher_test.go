package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), map[string]string{"output": "online-bank"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "payload", msgs[1])

	msgs[1] = "modified"
	require.Equal(t, "payload", pub.Messages()[1], "Messages must return a copy")
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	down := errors.New("topic unavailable")
	pub.FailWith(down)

	_, err := pub.Publish(context.Background(), "x")
	require.ErrorIs(t, err, down)
	require.Empty(t, pub.Messages())
}
