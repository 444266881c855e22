package notify

import (
	"context"

	logrus "github.com/sirupsen/logrus"
)

// LogNotifier stands in for a channel that has no provider configured. It
// records what would have been sent and always succeeds.
type LogNotifier struct {
	Kind Kind
	Log  logrus.FieldLogger
}

func (n LogNotifier) Deliver(_ context.Context, msg Message) (string, error) {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("kind", n.Kind).WithField("reference", msg.Reference)
	switch n.Kind {
	case KindSMS:
		entry.WithField("phone", msg.Phone).Info("would send booking SMS")
	case KindEmail:
		entry.WithField("email", msg.Email).Info("would send booking confirmation email")
	default:
		entry.Info("would deliver booking notification")
	}
	return "", nil
}
