// Package mqttmirror republishes State Store notifications to an MQTT broker
// so that home automation systems can follow zone and boiler state.
package mqttmirror

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/store"
)

const publishTimeout = 2 * time.Second

var newClient = mqtt.NewClient

// Publisher is the part of an MQTT client the mirror uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Client serialises access to a paho client.
type Client struct {
	mu   sync.Mutex
	mqtt mqtt.Client
}

var (
	onConnect mqtt.OnConnectHandler = func(client mqtt.Client) {
		or := client.OptionsReader()
		log.Info().Str("client_id", or.ClientID()).Msg("Connected to MQTT broker")
	}
	onConnectionLost mqtt.ConnectionLostHandler = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("Connection to MQTT broker lost, reconnecting")
	}
)

// Connect dials the broker. The client keeps reconnecting in the background
// after the first successful connection.
func Connect(ctx context.Context, url string) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID("hydronic-" + uuid.NewString())
	opts.OnConnect = onConnect
	opts.OnConnectionLost = onConnectionLost
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(2 * time.Second)

	client := newClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", url, err)
	}
	return &Client{mqtt: client}, nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mqtt.Publish(topic, qos, retained, payload)
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mqtt.Disconnect(250)
}

// Mirror is a Store whose publishes are copied, retained, to MQTT under
// prefix. MQTT failures are logged and never change the Store result.
type Mirror struct {
	store.Store
	pub    Publisher
	prefix string
}

func Wrap(s store.Store, pub Publisher, prefix string) *Mirror {
	return &Mirror{Store: s, pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

func (m *Mirror) Topic(topic string) string {
	topic = strings.TrimPrefix(topic, "/")
	if m.prefix == "" {
		return topic
	}
	return m.prefix + "/" + topic
}

func (m *Mirror) Publish(ctx context.Context, topic, value string) error {
	err := m.Store.Publish(ctx, topic, value)

	mqttTopic := m.Topic(topic)
	token := m.pub.Publish(mqttTopic, 1, true, value)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", mqttTopic).Msg("Timed out mirroring to MQTT")
	} else if terr := token.Error(); terr != nil {
		log.Warn().Err(terr).Str("topic", mqttTopic).Msg("Failed to mirror to MQTT")
	}

	return err
}
