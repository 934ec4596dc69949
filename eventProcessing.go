package main

import (
	"context"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/mmdatafocus/cashflow_backend/workflow"
	"github.com/sirupsen/logrus"
)

// eventContext carries the tenant and correlation id of an occurrence event
// into the consumer, the same way an API request would.
func eventContext(ctx context.Context, m config.PubSubMessage, fallbackCorrelationId string) context.Context {
	ctx = utils.SetBusinessIdInContext(ctx, m.BusinessId)
	ctx = utils.SetUserNameInContext(ctx, "System")
	cid := m.CorrelationId
	if cid == "" {
		cid = fallbackCorrelationId
	}
	if cid != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
	}
	return ctx
}

// processEvent runs the expense consumer for one message. A nil return
// means the transport may ack: either the message was applied or it is
// DEAD and retrying cannot help.
func processEvent(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	db := config.GetDB()
	workflow.MarkRecordProcessing(ctx, db, m.ID)
	err := workflow.ProcessMessage(ctx, logger, m)
	if err == nil {
		return nil
	}
	if workflow.MarkRecordFailed(ctx, db, logger, m.ID, err) {
		return nil
	}
	return err
}
