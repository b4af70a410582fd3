// internal/publish/mqtt.go
// Package publish sends decoded text to an MQTT broker, one message per
// word.
package publish

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/womat/debug"
)

// quiesce is the number of milliseconds to wait for pending work on disconnect.
const quiesce = 250

// connectTimeout bounds the initial broker connection.
const connectTimeout = 10 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrConnectTimeout indicates the broker did not answer in time
	ErrConnectTimeout = errors.New("mqtt connect timed out")
)

// Client is the subset of the paho client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqttlib.Token
	Disconnect(quiesce uint)
}

// Word is the payload published for every decoded word.
type Word struct {
	Seq  uint64    `json:"seq"`
	Text string    `json:"text"`
	WPM  int       `json:"wpm"`
	Time time.Time `json:"time"`
}

// Connect opens a paho client to broker.
func Connect(broker, clientID string) (mqttlib.Client, error) {
	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqttlib.Client, err error) {
			debug.ErrorLog.Printf("mqtt connection lost: %v", err)
		})

	client := mqttlib.NewClient(opts)
	t := client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		// stop the connect attempt still running in the background
		client.Disconnect(quiesce)
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, broker)
	}
	if err := t.Error(); err != nil {
		client.Disconnect(quiesce)
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}

	debug.InfoLog.Printf("connected to mqtt broker %s", broker)
	return client, nil
}

// Publisher groups decoded characters into words and publishes each
// completed word as JSON.
type Publisher struct {
	client Client
	topic  string
	qos    byte
	wpm    int

	mu   sync.Mutex
	word strings.Builder
	seq  uint64
	now  func() time.Time
}

// NewPublisher creates a publisher for topic. wpm is reported in every
// payload.
func NewPublisher(client Client, topic string, wpm int) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		wpm:    wpm,
		now:    time.Now,
	}
}

// Write accepts decoded characters. A space completes the current word.
func (p *Publisher) Write(chars []rune) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range chars {
		if r != ' ' {
			p.word.WriteRune(r)
			continue
		}
		if err := p.publish(); err != nil {
			return err
		}
	}
	return nil
}

// Flush publishes a pending partial word.
func (p *Publisher) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publish()
}

// publish sends the current word, if any. Delivery errors are logged. While
// the broker is unreachable words are dropped and the client's auto
// reconnect restores the session; the sequence number still advances so
// subscribers can see the gap.
func (p *Publisher) publish() error {
	if p.word.Len() == 0 {
		return nil
	}
	p.seq++
	payload, err := json.Marshal(Word{
		Seq:  p.seq,
		Text: p.word.String(),
		WPM:  p.wpm,
		Time: p.now().UTC(),
	})
	p.word.Reset()
	if err != nil {
		return fmt.Errorf("encode word: %w", err)
	}

	if !p.client.IsConnected() {
		debug.ErrorLog.Printf("mqtt broker isn't connected, dropping word %d", p.seq)
		return nil
	}

	debug.DebugLog.Printf("publishing %v bytes to topic %v", len(payload), p.topic)
	t := p.client.Publish(p.topic, p.qos, false, payload)

	// the token completes asynchronously
	go func(topic string) {
		<-t.Done()
		if err := t.Error(); err != nil {
			debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
		}
	}(p.topic)

	return nil
}

// Close publishes the pending word and disconnects.
func (p *Publisher) Close() error {
	err := p.Flush()
	p.client.Disconnect(quiesce)
	return err
}
