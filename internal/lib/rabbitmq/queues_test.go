package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNotificationQueues(t *testing.T) {
	queues := GetNotificationQueues()

	require.Len(t, queues, 2)
	assert.Equal(t, QueueConfig{QueueName: "mail.outgoing", RoutingKey: "mail"}, queues[0])
	assert.Equal(t, QueueConfig{QueueName: "notification.expiring", RoutingKey: "expiring"}, queues[1])

	seen := map[string]bool{}
	for _, q := range queues {
		assert.Falsef(t, seen[q.QueueName], "duplicate queue name: %s", q.QueueName)
		seen[q.QueueName] = true
	}
}
