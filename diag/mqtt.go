package diag

import (
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of the paho client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
	Disconnect(quiesce uint)
}

type MQTTOpts struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Timeout  time.Duration
}

// Publisher posts status lines on <topic>/status and keeps <topic>/online
// retained so a dead cube shows up as offline.
type Publisher struct {
	client  Client
	topic   string
	timeout time.Duration
}

func NewPublisher(client Client, topic string, timeout time.Duration) *Publisher {
	return &Publisher{client: client, topic: topic, timeout: timeout}
}

// DialMQTT connects to the broker and announces the cube online.
func DialMQTT(opts MQTTOpts) (*Publisher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	o := MQTT.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetAutoReconnect(true)
	o.SetConnectTimeout(opts.Timeout)
	o.SetWill(opts.Topic+"/online", "offline", 1, true)
	o.SetOnConnectHandler(func(c MQTT.Client) {
		c.Publish(opts.Topic+"/online", 1, true, "online")
	})
	client := MQTT.NewClient(o)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", opts.Broker, err)
	}
	return NewPublisher(client, opts.Topic, opts.Timeout), nil
}

func (p *Publisher) wait(token MQTT.Token, topic string) error {
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Line(line string) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	topic := p.topic + "/status"
	return p.wait(p.client.Publish(topic, 0, false, line), topic)
}

// Close marks the cube offline and disconnects.
func (p *Publisher) Close() error {
	topic := p.topic + "/online"
	err := p.wait(p.client.Publish(topic, 1, true, "offline"), topic)
	p.client.Disconnect(250)
	return err
}
