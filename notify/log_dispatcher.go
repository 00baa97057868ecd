package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type LogDispatcher struct{}

func (LogDispatcher) Notify(ctx context.Context, recipient string, kind Kind, msg Message) {
	logrus.WithFields(logrus.Fields{
		"recipient": recipient,
		"kind":      kind,
		"runId":     msg.RunID,
		"document":  msg.DocumentRef,
		"stage":     msg.Stage,
		"actor":     msg.Actor,
	}).Info("notification")
}
