// Package telemetry publishes game lifecycle events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/config"
	"github.com/codebreaker-project/codebreaker/internal/events"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// ErrDisabled is returned by NewMQTTHandler when MQTT is off in config.
var ErrDisabled = errors.New("MQTT is disabled")

// PublishedEvents are forwarded to the broker, one topic per event type.
var PublishedEvents = []events.EventType{
	events.EventGameStarted,
	events.EventTrialScored,
	events.EventGameWon,
	events.EventGameLost,
	events.EventGameTimedOut,
	events.EventGameQuit,
	events.EventScoreboardUpdated,
}

const subscriberName = "mqtt"

// publisher is the subset of mqtt.Client the handler needs.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTHandler manages the broker connection and publishes bus events.
type MQTTHandler struct {
	mu sync.Mutex

	prefix     string
	instanceID string
	eventBus   *events.EventBus
	client     mqtt.Client
	pub        publisher
	logger     zerolog.Logger

	// Included in every message.
	metadata map[string]interface{}
}

// NewMQTTHandler creates the handler. It does not connect; Start does.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus, instanceID string) (*MQTTHandler, error) {
	mqttCfg := cfg.MQTT
	if !mqttCfg.Enabled {
		return nil, ErrDisabled
	}

	sysInfo := util.GetSystemInfo()
	h := &MQTTHandler{
		prefix:     mqttCfg.TopicPrefix,
		instanceID: instanceID,
		eventBus:   eventBus,
		logger:     util.ComponentLogger("mqtt"),
		metadata: map[string]interface{}{
			"instance_id": instanceID,
			"hostname":    sysInfo.Hostname,
			"platform":    sysInfo.Platform,
			"cpu_cores":   sysInfo.CPUCores,
		},
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(mqttCfg))

	clientID := mqttCfg.ClientID
	if clientID == "" {
		clientID = "codebreaker-" + instanceID
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	if mqttCfg.UseTLS {
		tlsConfig, err := tlsConfigFor(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	h.client = mqtt.NewClient(opts)
	h.pub = h.client
	return h, nil
}

func brokerURL(c config.MQTTConfig) string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.BrokerURL, c.Port)
}

func tlsConfigFor(c config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in MQTT CA file %s", c.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	// mTLS
	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Start connects, forwards bus events until ctx is cancelled, then
// announces shutdown and disconnects.
func (h *MQTTHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("client_id", h.instanceID).Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.unsubscribeEvents()
	h.PublishShutdown()
	h.client.Disconnect(5000)
	h.logger.Info().Msg("MQTT disconnected")
	return nil
}

func (h *MQTTHandler) subscribeEvents() {
	if h.eventBus == nil {
		return
	}
	h.eventBus.SubscribeMany(PublishedEvents, subscriberName, h.onEvent)
}

func (h *MQTTHandler) unsubscribeEvents() {
	if h.eventBus == nil {
		return
	}
	for _, t := range PublishedEvents {
		h.eventBus.Unsubscribe(t, subscriberName)
	}
}

func (h *MQTTHandler) onEvent(_ context.Context, event events.Event) error {
	h.publish(Topic(h.prefix, event.Type), event.Type, event.Payload)
	return nil
}

// Topic returns the topic an event type is published on.
func Topic(prefix string, t events.EventType) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "/" + string(t)
}

// publish sends a JSON message at QoS 1. Messages are dropped while the
// client is disconnected.
func (h *MQTTHandler) publish(topic string, t events.EventType, payload interface{}) {
	h.mu.Lock()
	pub := h.pub
	h.mu.Unlock()

	if pub == nil || !pub.IsConnected() {
		return
	}

	data, err := json.Marshal(h.buildMessage(t, payload, time.Now()))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := pub.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(t events.EventType, payload interface{}, at time.Time) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+3)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["event"] = string(t)
	msg["payload"] = payload
	msg["timestamp"] = at.UTC().Format(time.RFC3339)
	return msg
}

// PublishShutdown announces that this server is going away.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(Topic(h.prefix, events.EventShutdown), events.EventShutdown, nil)
}
