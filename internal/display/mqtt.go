package display

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"locationagent/internal/logger"
)

// MQTTConfig holds the broker settings for MQTTDisplay.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// publisher is the part of mqtt.Client the display uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTDisplay keeps the status artifact as a retained message on a topic.
// Retracting publishes an empty retained payload, which clears it.
type MQTTDisplay struct {
	pub     publisher
	client  mqtt.Client
	topic   string
	timeout time.Duration

	mu      sync.Mutex
	current Status
}

// NewMQTTDisplay connects to the broker.
func NewMQTTDisplay(cfg MQTTConfig) (*MQTTDisplay, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	log := logger.WithComponent("status-mqtt")
	log.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("Connected to MQTT broker")

	d := newMQTTDisplay(client, cfg.Topic, cfg.Timeout)
	d.client = client
	return d, nil
}

func newMQTTDisplay(pub publisher, topic string, timeout time.Duration) *MQTTDisplay {
	return &MQTTDisplay{pub: pub, topic: topic, timeout: timeout}
}

func (d *MQTTDisplay) send(payload []byte) error {
	token := d.pub.Publish(d.topic, 1, true, payload)
	if !token.WaitTimeout(d.timeout) {
		return fmt.Errorf("mqtt publish to %s timed out", d.topic)
	}
	return token.Error()
}

func (d *MQTTDisplay) sendStatus(st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return d.send(data)
}

func (d *MQTTDisplay) Publish(_ context.Context, title, text string) (ID, error) {
	st := Status{
		ID:     nextID("mqtt"),
		Title:  title,
		Text:   text,
		Active: true,
		Stamp:  time.Now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.sendStatus(st); err != nil {
		return "", err
	}
	d.current = st
	return st.ID, nil
}

func (d *MQTTDisplay) Update(_ context.Context, id ID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current.Active || d.current.ID != id {
		return ErrUnknownStatus
	}
	st := d.current
	st.Text = text
	st.Stamp = time.Now()
	if err := d.sendStatus(st); err != nil {
		return err
	}
	d.current = st
	return nil
}

func (d *MQTTDisplay) Retract(_ context.Context, id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current.Active || d.current.ID != id {
		return nil
	}
	if err := d.send(nil); err != nil {
		return err
	}
	d.current.Active = false
	return nil
}

func (d *MQTTDisplay) Close() error {
	if d.client != nil {
		d.client.Disconnect(250)
	}
	return nil
}
