// Package broker subscribes to the NVR's MQTT event bus and decodes the
// four topic shapes the core consumes (spec §6) into typed Events on an
// unbounded channel for the sync system.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nvrsync/camsync/internal/chanutil"
	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/logger"
)

// Config mirrors the mqtt_* keys of the configuration file (spec §6).
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Prefix is the topic namespace the camera/review topics live under
	// (e.g. "frigate").
	Prefix string
	QoS    byte
}

// Decoder owns the paho client, subscribes to Prefix+"/#", and publishes
// decoded Events to Events(). Reconnect-with-backoff mirrors the teacher
// repo's mqtt client reconnect loop (exponential backoff, capped, ctx-aware).
type Decoder struct {
	cfg    Config
	events *chanutil.Unbounded[Event]

	mu             sync.Mutex
	client         paho.Client
	lastConnAttempt time.Time
}

// NewDecoder constructs a Decoder for cfg. Call Run to connect and begin
// decoding; Events() is readable immediately.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		cfg:    cfg,
		events: chanutil.NewUnbounded[Event](),
	}
}

// Events returns the channel decoded events are published on. It is
// unbounded: Run never blocks waiting for a slow consumer.
func (d *Decoder) Events() <-chan Event {
	return d.events.Receive()
}

// Run connects to the broker and blocks, reconnecting with exponential
// backoff on connection loss, until ctx is cancelled.
func (d *Decoder) Run(ctx context.Context, log logger.Logger) error {
	log = log.Module("broker")

	if err := d.connect(ctx, log); err != nil {
		return err
	}
	<-ctx.Done()
	d.disconnect()
	return nil
}

func (d *Decoder) connect(ctx context.Context, log logger.Logger) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.lastConnAttempt) < time.Second {
		return camerrors.New(fmt.Errorf("connection attempt too recent")).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTConnection).
			Build()
	}
	d.lastConnAttempt = time.Now()

	opts := paho.NewClientOptions()
	opts.AddBroker(d.cfg.Broker)
	opts.SetClientID(d.cfg.ClientID)
	opts.SetUsername(d.cfg.Username)
	opts.SetPassword(d.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Info("connected to broker", logger.String("broker", d.cfg.Broker))
		d.subscribe(c, log)
	})
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		log.Warn("broker connection lost", logger.Err(err))
		go d.reconnectWithBackoff(ctx, log)
	})

	d.client = paho.NewClient(opts)
	token := d.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return camerrors.New(fmt.Errorf("connection timeout")).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTConnection).
			Build()
	}
	if err := token.Error(); err != nil {
		return camerrors.New(err).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTConnection).
			Build()
	}
	return nil
}

func (d *Decoder) subscribe(c paho.Client, log logger.Logger) {
	topic := d.cfg.Prefix + "/#"
	token := c.Subscribe(topic, d.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		evt, ok, err := decodeTopic(d.cfg.Prefix, msg.Topic(), msg.Payload())
		if err != nil {
			log.Warn("dropping undecodable broker message",
				logger.String("topic", msg.Topic()), logger.Err(err))
			return
		}
		if !ok {
			return
		}
		d.events.Send(evt)
	})
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Error("broker subscribe failed", logger.String("topic", topic), logger.Err(token.Error()))
	}
}

func (d *Decoder) reconnectWithBackoff(ctx context.Context, log logger.Logger) {
	backoff := time.Second
	maxBackoff := 5 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := d.connect(connCtx, log)
		cancel()
		if err == nil {
			log.Info("reconnected to broker")
			return
		}

		log.Warn("broker reconnect failed, retrying", logger.Err(err), logger.String("backoff", backoff.String()))
		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Decoder) disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil && d.client.IsConnected() {
		d.client.Disconnect(250)
	}
}
