// Package queue carries campaign batches between the dispatcher and the
// send workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"

	"switchboard/internal/campaign"
)

// Handler processes one batch. Returning nil acknowledges the delivery.
type Handler func(ctx context.Context, b campaign.Batch) error

// ErrUndecodable marks payloads that will never succeed on redelivery.
var ErrUndecodable = errors.New("queue: undecodable batch payload")

func encodeBatch(b campaign.Batch) ([]byte, error) { return json.Marshal(b) }

func decodeBatch(data []byte) (campaign.Batch, error) {
	var b campaign.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return campaign.Batch{}, errors.Join(ErrUndecodable, err)
	}
	if b.ID == "" || b.CampaignID == "" || b.TenantID == "" {
		return campaign.Batch{}, ErrUndecodable
	}
	return b, nil
}

// ConsumerHandler adapts a campaign consumer to the queue handler shape.
func ConsumerHandler(c *campaign.Consumer) Handler {
	return func(ctx context.Context, b campaign.Batch) error {
		_, err := c.HandleBatch(ctx, b)
		return err
	}
}
