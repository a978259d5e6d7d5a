// Package mqtt wraps the paho client behind the small surface the watchdog
// and command router need: connect with backoff, publish under the base
// topic, subscribe, and connection callbacks. Swapping the MQTT library
// means touching only this package.
package mqtt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	keepAlive      = 30 * time.Second
	publishTimeout = 5 * time.Second
	// statusTopic carries the bridge's availability: "online" after each
	// (re)connect, "offline" as the broker-side last will.
	statusTopic = "status"
)

// Config holds the broker settings.
type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	BaseTopic string
	ClientID  string
	QoS       byte
	Retain    bool
}

// Client is a connected MQTT publisher/subscriber rooted at a base topic.
type Client struct {
	cfg Config
	pc  paho.Client

	// OnConnect fires after every successful (re)connect, on the paho
	// client's own goroutine. Subscriptions must be re-issued here: the
	// session is clean, the broker forgets them across reconnects.
	OnConnect func()
	// OnDisconnect fires when the connection is lost unexpectedly.
	OnDisconnect func(err error)
}

// New builds a Client. Connect must be called before publishing.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(keepAlive).
		SetWill(c.fullTopic(statusTopic), "offline", cfg.QoS, true)
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Pass)
	}
	opts.SetOnConnectHandler(func(pc paho.Client) {
		pc.Publish(c.fullTopic(statusTopic), cfg.QoS, true, "online")
		if c.OnConnect != nil {
			c.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if c.OnDisconnect != nil {
			c.OnDisconnect(err)
		}
	})

	c.pc = paho.NewClient(opts)
	return c
}

func (c *Client) fullTopic(sub string) string {
	return strings.Trim(c.cfg.BaseTopic, "/") + "/" + strings.Trim(sub, "/")
}

// Connect dials the broker, retrying with exponential backoff until the
// context is cancelled. After it returns nil, paho's auto-reconnect owns the
// connection.
func (c *Client) Connect(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tok := c.pc.Connect()
		tok.Wait()
		if err := tok.Error(); err != nil {
			log.Printf("mqtt: connect to %s:%d failed: %v", c.cfg.Host, c.cfg.Port, err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	return err
}

// Publish sends payload under the base topic with the configured QoS.
func (c *Client) Publish(topic, payload string, retain bool) error {
	tok := c.pc.Publish(c.fullTopic(topic), c.cfg.QoS, retain, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish %s timed out", topic)
	}
	return tok.Error()
}

// Subscribe registers cb for messages under the base topic. The topic may
// contain wildcards. cb runs on the paho client's goroutine; it must hand
// work off quickly.
func (c *Client) Subscribe(topic string, cb func(topic string, payload []byte)) error {
	tok := c.pc.Subscribe(c.fullTopic(topic), c.cfg.QoS, func(_ paho.Client, m paho.Message) {
		cb(m.Topic(), m.Payload())
	})
	tok.Wait()
	return tok.Error()
}

// Disconnect publishes the offline status (the will only fires on unclean
// exits) and closes the connection.
func (c *Client) Disconnect() {
	tok := c.pc.Publish(c.fullTopic(statusTopic), c.cfg.QoS, true, "offline")
	tok.WaitTimeout(publishTimeout)
	c.pc.Disconnect(250)
}
