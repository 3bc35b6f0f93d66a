// FilePath: internal/ingest/ingest.mqtt.go
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itsatony/lumen/internal/config"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// ReadingSink stores readings received from devices
type ReadingSink interface {
	AppendReading(ctx context.Context, req models.AppendReadingRequest) (*models.Reading, error)
}

// Subscriber consumes light readings published by devices. The topic
// segment matched by "+" is the patient id and fills a payload without one.
type Subscriber struct {
	cfg     config.MQTTConfig
	sink    ReadingSink
	client  mqtt.Client
	timeout time.Duration
}

func NewSubscriber(cfg config.MQTTConfig, sink ReadingSink, timeout time.Duration) *Subscriber {
	s := &Subscriber{cfg: cfg, sink: sink, timeout: timeout}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	// clean sessions drop subscriptions, so subscribe on every (re)connect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(cfg.Topic, cfg.QoS, s.onMessage); token.Wait() && token.Error() != nil {
			nuts.L.Errorf("[MQTT] Failed to subscribe to %s: %v", cfg.Topic, token.Error())
			return
		}
		nuts.L.Infof("[MQTT] Subscribed to %s", cfg.Topic)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		nuts.L.Warnf("[MQTT] Connection lost: %v", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker
func (s *Subscriber) Start() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects, waiting up to 250ms for in-flight work
func (s *Subscriber) Stop() {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
		nuts.L.Warnf("[MQTT] Dropped message on %s: %v", msg.Topic(), err)
	}
}

// HandleMessage decodes one payload and appends it
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	var req models.AppendReadingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if req.PatientID == "" {
		req.PatientID = patientFromTopic(s.cfg.Topic, topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.sink.AppendReading(ctx, req)
	return err
}

func patientFromTopic(pattern, topic string) string {
	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")
	for i, part := range patternParts {
		if part == "+" && i < len(topicParts) {
			return topicParts[i]
		}
	}
	return ""
}
