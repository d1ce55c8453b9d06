// Package mqtt bridges the panel onto an MQTT broker: retained state
// snapshots out, commands in.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/state"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	commandTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second
	qos               = 1
)

// ErrConnectionFailed is returned when the broker cannot be reached.
var ErrConnectionFailed = errors.New("mqtt connection failed")

// Options configure a Bridge.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string

	// ConnectTimeout bounds the initial connect. Zero means 10s.
	ConnectTimeout time.Duration
	// RetryInterval spaces connect attempts. Zero keeps the client default.
	RetryInterval time.Duration
}

// Bridge publishes state and executes commands.
type Bridge struct {
	client    pahomqtt.Client
	topics    Topics
	panel     panel.Controller
	store     *state.Store
	validator *schema.Validator
	closeOnce sync.Once
}

// Connect dials the broker. Subscriptions and the online status are
// re-established on every reconnect.
func Connect(opts Options, p panel.Controller, store *state.Store, validator *schema.Validator) (*Bridge, error) {
	b := &Bridge{
		topics:    Topics{Prefix: opts.Prefix},
		panel:     p,
		store:     store,
		validator: validator,
	}

	co := pahomqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = connectTimeout
	}
	co.SetConnectRetry(true)
	if opts.RetryInterval > 0 {
		co.SetConnectRetryInterval(opts.RetryInterval)
	}
	co.SetMaxReconnectInterval(30 * time.Second)
	co.SetConnectTimeout(timeout)
	co.SetKeepAlive(keepAlive)
	co.SetWill(b.topics.Status(), "offline", qos, true)
	co.SetOnConnectHandler(func(c pahomqtt.Client) {
		b.onConnect(c)
	})
	co.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	b.client = pahomqtt.NewClient(co)
	token := b.client.Connect()
	if !token.WaitTimeout(timeout) {
		// Stops the retry loop SetConnectRetry started.
		b.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		b.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	log.Info().Str("broker", opts.Broker).Str("prefix", opts.Prefix).Msg("MQTT bridge connected")
	return b, nil
}

func (b *Bridge) onConnect(c pahomqtt.Client) {
	c.Subscribe(b.topics.AllSets(), qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleMessage(msg.Topic(), msg.Payload())
	})
	c.Publish(b.topics.Status(), qos, true, "online")
	// Waiting on a token inside the connect handler blocks the client.
	go b.publishState(b.store.Snapshot())
}

func (b *Bridge) handleMessage(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("topic", topic).Msg("MQTT handler panicked")
		}
	}()

	name, ok := b.topics.Command(topic)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := Dispatch(ctx, b.panel, b.validator, name, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("MQTT command rejected")
	}
}

func (b *Bridge) publishState(st device.State) {
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	token := b.client.Publish(b.topics.State(), qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Msg("MQTT state publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Msg("MQTT state publish failed")
	}
}

// Run publishes every state change until ctx is done, then disconnects.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.store.Subscribe(0)
	defer sub.Close()
	defer b.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-sub.C():
			if !ok {
				return nil
			}
			b.publishState(change.State)
		}
	}
}

// Close publishes a graceful offline status and disconnects. Later calls
// do nothing.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if b.client.IsConnected() {
			b.client.Publish(b.topics.Status(), qos, true, "offline").WaitTimeout(publishTimeout)
		}
		b.client.Disconnect(disconnectQuiesce)
		log.Info().Msg("MQTT bridge disconnected")
	})
}
