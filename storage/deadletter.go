package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// DeadLetter keeps failed projection payloads on a queue for forensic
// replay. It is written to only after a projector error has already been
// logged; enqueue failures are the caller's problem to swallow.
type DeadLetter struct {
	queue *azqueue.QueueClient
}

// NewDeadLetter creates a dead-letter queue client.
func NewDeadLetter(connStr, queueName string) (*DeadLetter, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &DeadLetter{queue: q}, nil
}

// Enqueue appends one failed payload to the queue.
func (d *DeadLetter) Enqueue(ctx context.Context, payload []byte) error {
	_, err := d.queue.EnqueueMessage(ctx, string(payload), nil)
	return err
}
