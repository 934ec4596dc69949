package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/sirupsen/logrus"
)

var (
	subscriptionMutexMap = make(map[string]*sync.Mutex)
	globalMutex          = &sync.Mutex{}
)

// subscriptionMutex serializes events of one subscription inside this
// instance. Across instances the MySQL advisory lock in the consumer does.
func subscriptionMutex(businessId string, subscriptionId int) *sync.Mutex {
	key := fmt.Sprintf("%s:%d", businessId, subscriptionId)
	globalMutex.Lock()
	defer globalMutex.Unlock()
	mutex, ok := subscriptionMutexMap[key]
	if !ok {
		mutex = &sync.Mutex{}
		subscriptionMutexMap[key] = mutex
	}
	return mutex
}

// RunExpenseEventWorker pulls occurrence events from PUBSUB_SUBSCRIPTION.
// It returns once the receiver is started.
func RunExpenseEventWorker(ctx context.Context, logger *logrus.Logger) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, config.EventsTopic())
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(ctx, client, config.PullSubscription(), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		var m config.PubSubMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			config.LogError(logger, "expenseEventWorker.go", "RunExpenseEventWorker", "Unmarshaling pubsub message", msg.Data, err)
			// Undecodable: redelivery cannot fix it.
			msg.Ack()
			return
		}

		mutex := subscriptionMutex(m.BusinessId, m.SubscriptionId)
		mutex.Lock()
		defer mutex.Unlock()

		if err := processEvent(eventContext(ctx, m, msg.ID), logger, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":           "ExpenseEventWorker",
				"business_id":     m.BusinessId,
				"subscription_id": m.SubscriptionId,
				"month":           m.Month,
				"record_id":       m.ID,
				"message_id":      msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "expenseEventWorker.go", "RunExpenseEventWorker", "Failed to receive messages", nil, err)
		}
	}()
	return nil
}
