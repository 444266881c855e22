package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	logrus "github.com/sirupsen/logrus"
)

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSNotifier hands email and SMS messages to a downstream sender over NATS
// on subject <prefix>.<kind>.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

func NewNATSNotifier(pub Publisher, prefix string, kind Kind) *NATSNotifier {
	if prefix == "" {
		prefix = "radops.notify"
	}
	return &NATSNotifier{pub: pub, subject: prefix + "." + string(kind)}
}

func (n *NATSNotifier) Subject() string { return n.subject }

func (n *NATSNotifier) Deliver(_ context.Context, msg Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	m := nats.NewMsg(n.subject)
	m.Data = data
	// lets subscribers drop redeliveries of the same booking notice
	m.Header.Set(nats.MsgIdHdr, msg.Reference+"."+n.subject)
	if err := n.pub.PublishMsg(m); err != nil {
		return "", fmt.Errorf("publishing to %s: %w", n.subject, err)
	}
	return "", nil
}

// ConnectNATS dials url with reconnect logging.
func ConnectNATS(url string, log logrus.FieldLogger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("radops"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
