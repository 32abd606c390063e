package link

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeClient records publishes and subscriptions. Methods the link never
// calls fall through to the nil embedded interface and panic.
type fakeClient struct {
	paho.Client

	mu         sync.Mutex
	published  []published
	filters    map[string]byte
	callback   paho.MessageHandler
	publishErr error
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: f.publishErr}
}

func (f *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = filters
	f.callback = callback
	return &fakeToken{}
}

func (f *fakeClient) IsConnectionOpen() bool { return true }

func (f *fakeClient) Disconnect(quiesce uint) {}

// deliver simulates the broker pushing a message.
func (f *fakeClient) deliver(topic string, payload []byte) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb(f, &fakeMessage{topic: topic, payload: payload})
}

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                       { return true }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *fakeToken) Error() error                     { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return qos }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
