package ban

import (
	"encoding/json"
	"net/netip"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-http/internal/infrastructure/mqtt"
)

// Publisher sends a payload to a topic. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// event is the JSON payload published for attempts and bans.
type event struct {
	IP        string    `json:"ip_address"`
	Attempts  int       `json:"attempts"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishNotifier announces failed attempts and bans on the hub's MQTT bus.
// Publishing happens on a separate goroutine; failures are logged and dropped.
type PublishNotifier struct {
	pub    Publisher
	qos    byte
	logger Logger
	wg     sync.WaitGroup
}

// NewPublishNotifier creates a Notifier backed by pub. logger may be nil.
func NewPublishNotifier(pub Publisher, qos byte, logger Logger) *PublishNotifier {
	return &PublishNotifier{pub: pub, qos: qos, logger: logger}
}

// FailedAttempt publishes to graylogic/system/http/login_attempt.
func (n *PublishNotifier) FailedAttempt(ip netip.Addr, attempts int) {
	n.publish(mqtt.Topics{}.HTTPLoginAttempt(), event{
		IP:        ip.String(),
		Attempts:  attempts,
		Message:   "Login attempt or request with invalid authentication from " + ip.String(),
		Timestamp: time.Now().UTC(),
	})
}

// Banned publishes to graylogic/system/http/ban.
func (n *PublishNotifier) Banned(b Ban) {
	n.publish(mqtt.Topics{}.HTTPBan(), event{
		IP:        b.IP.String(),
		Attempts:  b.Attempts,
		Message:   "Too many login attempts from " + b.IP.String(),
		Timestamp: b.BannedAt,
	})
}

// Wait blocks until pending publishes finish. Call it before closing the
// MQTT client.
func (n *PublishNotifier) Wait() {
	n.wg.Wait()
}

func (n *PublishNotifier) publish(topic string, ev event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err := n.pub.Publish(topic, payload, n.qos, false); err != nil && n.logger != nil {
			n.logger.Warn("failed to publish http notification", "topic", topic, "error", err)
		}
	}()
}

// Notifiers fans events out to several notifiers in order.
type Notifiers []Notifier

// FailedAttempt forwards to every notifier.
func (ns Notifiers) FailedAttempt(ip netip.Addr, attempts int) {
	for _, n := range ns {
		n.FailedAttempt(ip, attempts)
	}
}

// Banned forwards to every notifier.
func (ns Notifiers) Banned(b Ban) {
	for _, n := range ns {
		n.Banned(b)
	}
}
