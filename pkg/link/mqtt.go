package link

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	// QoS 1 (at-least-once) for both modes.
	qos = 1

	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
)

// MQTTConfig names the broker and the two devices.
type MQTTConfig struct {
	Broker string
	// Prefix roots every topic, e.g. "tidewatch/<pair id>".
	Prefix string
	// Self and Peer are device names such as "phone" and "watch".
	Self, Peer string
}

func (c MQTTConfig) contextTopic(device string) string {
	return fmt.Sprintf("%s/%s/context", c.Prefix, device)
}

func (c MQTTConfig) transferTopic(device string) string {
	return fmt.Sprintf("%s/%s/transfer", c.Prefix, device)
}

// clientID is unique per pair and device so two pairs on one broker do not
// steal each other's persistent sessions.
func clientID(cfg MQTTConfig) string {
	return strings.ReplaceAll(strings.Trim(cfg.Prefix, "/"), "/", "-") + "-" + cfg.Self
}

// MQTT links devices through a broker. Latest-wins updates are retained
// messages on the peer's context topic, so the broker keeps only the newest.
// Queued transfers are plain QoS 1 messages on the peer's transfer topic; the
// peer's persistent session holds them while it is offline.
type MQTT struct {
	client paho.Client
	cfg    MQTTConfig
	log    *zap.SugaredLogger

	mu      sync.Mutex
	handler func([]byte)
	pending [][]byte
}

// DialMQTT connects to the broker and subscribes to this device's topics.
func DialMQTT(cfg MQTTConfig, log *zap.SugaredLogger) (*MQTT, error) {
	m := &MQTT{cfg: cfg, log: log}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID(cfg)).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(func(paho.Client) {
			if err := m.subscribe(); err != nil {
				log.Errorw("subscribe failed", "err", err)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("broker connection lost", "err", err)
		})

	m.client = paho.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return m, nil
}

func (m *MQTT) subscribe() error {
	filters := map[string]byte{
		m.cfg.contextTopic(m.cfg.Self):  qos,
		m.cfg.transferTopic(m.cfg.Self): qos,
	}
	token := m.client.SubscribeMultiple(filters, func(_ paho.Client, msg paho.Message) {
		m.receive(msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	return token.Error()
}

func (m *MQTT) receive(payload []byte) {
	payload = append([]byte(nil), payload...)

	m.mu.Lock()
	handler := m.handler
	if handler == nil {
		m.pending = append(m.pending, payload)
	}
	m.mu.Unlock()

	if handler != nil {
		handler(payload)
	}
}

func (m *MQTT) SendLatest(ctx context.Context, payload []byte) error {
	return m.publish(ctx, m.cfg.contextTopic(m.cfg.Peer), true, payload)
}

func (m *MQTT) SendQueued(ctx context.Context, payload []byte) error {
	return m.publish(ctx, m.cfg.transferTopic(m.cfg.Peer), false, payload)
}

func (m *MQTT) publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) OnDeliver(handler func([]byte)) {
	m.mu.Lock()
	m.handler = handler
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, payload := range pending {
		handler(payload)
	}
}

// IsConnected reports whether the broker connection is up.
func (m *MQTT) IsConnected() bool {
	return m.client.IsConnectionOpen()
}

func (m *MQTT) Close() error {
	m.client.Disconnect(1000) // 1 second grace
	return nil
}
