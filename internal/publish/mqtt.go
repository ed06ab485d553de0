// Package publish forwards decoded telemetry pages to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultTopicPrefix is used when Options.TopicPrefix is empty.
const DefaultTopicPrefix = "lorahub"

// Options configures the broker connection.
type Options struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	// Timeout bounds connect and each publish.
	Timeout time.Duration
}

// Publisher is the part of paho.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PageMessage is the JSON body published for every page.
type PageMessage struct {
	Unit uint8     `json:"unit"`
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	X    []int16   `json:"x"`
	Y    []int16   `json:"y"`
	Z    []int16   `json:"z"`
}

// MQTTSink publishes pages to "<prefix>/unit/<n>/page". It implements
// stream.Sink.
type MQTTSink struct {
	client  Publisher
	prefix  string
	qos     byte
	timeout time.Duration
	seq     map[uint8]uint64
	now     func() time.Time
}

// NewMQTTSink wraps an already connected client.
func NewMQTTSink(client Publisher, prefix string, qos byte) *MQTTSink {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTSink{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		timeout: 5 * time.Second,
		seq:     make(map[uint8]uint64),
		now:     time.Now,
	}
}

// Connect dials the broker and returns a sink publishing through it.
func Connect(opts Options) (*MQTTSink, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	clientID := opts.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = fmt.Sprintf("lorahub-%s-%d", host, os.Getpid())
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn("MQTT connection lost", zap.String("broker", opts.Broker), zap.Error(err))
		})
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}

	client := paho.NewClient(co)
	token := client.Connect()
	if ok := token.WaitTimeout(timeout); !ok {
		client.Disconnect(0)
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}
	logging.Info("Connected to MQTT broker", zap.String("broker", opts.Broker), zap.String("client_id", clientID))

	sink := NewMQTTSink(client, opts.TopicPrefix, opts.QoS)
	sink.timeout = timeout
	return sink, nil
}

// Topic returns the topic pages of unit are published to.
func (s *MQTTSink) Topic(unit uint8) string {
	return fmt.Sprintf("%s/unit/%d/page", s.prefix, unit)
}

// WritePage publishes one page and waits for the broker to accept it.
func (s *MQTTSink) WritePage(unit uint8, page *telemetry.Page) error {
	s.seq[unit]++
	msg := PageMessage{
		Unit: unit,
		Seq:  s.seq[unit],
		Time: s.now().UTC(),
		X:    page.X[:],
		Y:    page.Y[:],
		Z:    page.Z[:],
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}

	topic := s.Topic(unit)
	token := s.client.Publish(topic, s.qos, false, body)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects the client when the sink owns a full paho client.
func (s *MQTTSink) Close() error {
	if c, ok := s.client.(paho.Client); ok && c.IsConnectionOpen() {
		c.Disconnect(250)
	}
	return nil
}
