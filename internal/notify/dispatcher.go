package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/SendBox/internal/broker/messages"
	"github.com/BearBump/SendBox/internal/realtime"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Dispatcher — единственная точка, через которую бизнес-код шлёт события в
// realtime-канал. Доставляет локальным соединениям через Registry и
// публикует событие в Kafka, чтобы соседние инстансы доставили своим.
// Producer опционален: без него рассылка остаётся в рамках процесса.
type Dispatcher struct {
	reg      *realtime.Registry
	producer Producer
	topic    string

	// Случайный id инстанса; по нему consumer отбрасывает свои же события.
	instanceID string
}

func NewDispatcher(reg *realtime.Registry, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{
		reg:        reg,
		producer:   producer,
		topic:      topic,
		instanceID: newInstanceID(),
	}
}

// InstanceID — уникальная метка этого инстанса. Consumer-группа каждого
// инстанса строится на ней: событие из Kafka должен получить каждый, а
// внутри одной группы сообщение достаётся только одному участнику.
func (d *Dispatcher) InstanceID() string {
	return d.instanceID
}

// ToUser доставляет событие владельцу email. true означает лишь, что на
// этом инстансе была живая связка; fire-and-forget в остальном.
func (d *Dispatcher) ToUser(email, event string, payload any) bool {
	delivered := d.reg.EmitToUser(email, event, payload)
	d.publish(messages.ScopeUser, email, event, payload)
	return delivered
}

func (d *Dispatcher) ToAll(event string, payload any) {
	d.reg.EmitToAll(event, payload)
	d.publish(messages.ScopeAll, "", event, payload)
}

func (d *Dispatcher) ConnectedUsers() []string {
	return d.reg.ConnectedUsers()
}

func (d *Dispatcher) IsUserConnected(email string) bool {
	return d.reg.IsUserConnected(email)
}

// HandleBrokerMessage применяет событие, опубликованное другим инстансом,
// к локальному реестру. Вызывается из consumer-цикла.
func (d *Dispatcher) HandleBrokerMessage(_key, value []byte) error {
	var n messages.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return errors.Wrap(err, "decode notification")
	}
	if n.InstanceID == d.instanceID {
		return nil
	}

	var payload any
	if len(n.Payload) > 0 {
		_ = json.Unmarshal(n.Payload, &payload)
	}

	switch n.Scope {
	case messages.ScopeUser:
		d.reg.EmitToUser(n.Email, n.Event, payload)
	case messages.ScopeAll:
		d.reg.EmitToAll(n.Event, payload)
	default:
		slog.Warn("unknown notification scope", "scope", n.Scope, "event", n.Event)
	}
	return nil
}

func (d *Dispatcher) publish(scope, email, event string, payload any) {
	if d.producer == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("notification payload not serializable", "event", event, "err", err)
		return
	}
	value, _ := json.Marshal(messages.Notification{
		InstanceID: d.instanceID,
		Scope:      scope,
		Email:      email,
		Event:      event,
		Payload:    raw,
		SentAt:     time.Now().UTC(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.producer.Publish(ctx, d.topic, []byte(email), value); err != nil {
		// Рассылка best-effort: сбой брокера не отменяет операцию.
		slog.Warn("notification publish failed", "event", event, "err", err)
	}
}

func newInstanceID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
