package erpsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/workflow"
)

// PubSubPushHandler accepts push-delivered confirmations. Pub/Sub retries on
// non-2xx, so transient failures return 500; malformed envelopes are acked
// with 204 (retrying them can never succeed).
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		confirmation, err := DecodeConfirmation(envelope.Message.Data)
		if err != nil {
			c.Status(204)
			return
		}
		if confirmation.MessageId == "" {
			confirmation.MessageId = envelope.Message.MessageId
		}

		err = ProcessConfirmation(c.Request.Context(), config.GetDB(), config.GetLogger(), confirmation)
		if errors.Is(err, workflow.ErrIdempotencyInProgress) {
			c.Status(500) // another worker holds it; let Pub/Sub retry
			return
		}
		if err != nil {
			c.Status(500)
			return
		}
		c.Status(204)
	}
}

// RunPullConsumer consumes confirmations from a pull subscription; this is
// the cmd/erp-sync-service loop for deployments without a push endpoint.
func RunPullConsumer(ctx context.Context) error {
	subName := strings.TrimSpace(os.Getenv("ERP_SYNC_SUBSCRIPTION"))
	if subName == "" {
		subName = "erp-payment-confirmations"
	}

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	// With ERP_SYNC_TOPIC set, the subscription is created on first start;
	// otherwise it must be provisioned out of band.
	if topicName := strings.TrimSpace(os.Getenv("ERP_SYNC_TOPIC")); topicName != "" {
		if _, err := config.CreateSubscriptionIfNotExists(client, subName, client.Topic(topicName)); err != nil {
			return err
		}
	}

	sub := client.Subscription(subName)
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		confirmation, err := DecodeConfirmation(msg.Data)
		if err != nil {
			// Unparseable payloads are acked; redelivery cannot fix them.
			msg.Ack()
			return
		}
		if confirmation.MessageId == "" {
			confirmation.MessageId = msg.ID
		}

		err = ProcessConfirmation(ctx, config.GetDB(), config.GetLogger(), confirmation)
		if err != nil {
			config.LogError(config.GetLogger(), "pubsub.go", "RunPullConsumer", "processing confirmation", confirmation.MessageId, err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
