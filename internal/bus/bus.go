// FilePath: internal/bus/bus.go

// Package bus wraps the MQTT connection used for drone commands and device
// telemetry. Delivery is at-least-once (QoS 1); there is no ordering
// guarantee across topics. The client is constructed once and injected,
// never accessed as ambient state.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/aeroguard/sentinel/internal/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"
)

// MessageHandler processes one inbound bus message.
type MessageHandler func(topic string, payload []byte)

// Publisher publishes JSON commands to named topics.
type Publisher interface {
	PublishJSON(topic string, payload any) error
}

// Subscriber subscribes to topic patterns (wildcards allowed).
type Subscriber interface {
	Subscribe(topic string, handler MessageHandler) error
}

// Client is the paho-backed bus client.
type Client struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// NewClient connects to the broker. The connection auto-reconnects; resubscription
// after reconnect is handled by paho's session state.
func NewClient(cfg config.MQTTConfig) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		nuts.L.Infof("[Bus] Connected to broker %s", cfg.BrokerURL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		nuts.L.Warnf("[Bus] Connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Client{client: client, cfg: cfg}, nil
}

// PublishJSON marshals payload and publishes it with a bounded wait. A
// timeout or broker error is returned to the caller, who logs and moves on;
// publish failures never unwind committed state.
func (c *Client) PublishJSON(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for topic %s: %w", topic, err)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), false, data)
	if !token.WaitTimeout(c.cfg.PublishTimeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Subscribe registers a handler for a topic pattern.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, byte(c.cfg.QoS), func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	nuts.L.Infof("[Bus] Subscribed to %s", topic)
	return nil
}

// Disconnect flushes in-flight messages and closes the connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
