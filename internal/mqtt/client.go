package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/config"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/events"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

const (
	publishTimeout    = 5 * time.Second
	announceTimeout   = 1 * time.Second
	offlineTimeout    = 500 * time.Millisecond
	disconnectQuiesce = 500 * time.Millisecond
)

func OptsFromConfig(cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("wattpilot2ess_%d", rand.Intn(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.BaseTopic)
	opts.WillQos = 0

	return opts
}

// CreateMQTTClient builds the client. Every (re)connection announces the bridge as online
// and, when enabled, publishes the Home Assistant discovery configs.
func CreateMQTTClient(cfg config.MQTTConfig, opts *mqtt.ClientOptions, logger *zap.Logger) *MQTTClient {
	c := &MQTTClient{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "mqtt")),
	}
	opts.OnConnect = func(_ mqtt.Client) {
		c.logger.Info("mqtt: connected")
		c.announce()
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.logger.Warn("mqtt: connection lost", zap.Error(err))
	}
	c.client = mqtt.NewClient(opts)
	return c
}

type MQTTClient struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	logger *zap.Logger
}

// Message is a payload ready to be published.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return sensorStateTopic(c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return binarySensorStateTopic(c.baseTopic(), sensorId)
}

// EventMessage maps a sensor update to its state topic. Unknown events give nil.
func (c *MQTTClient) EventMessage(event domain.SensorUpdateEvent) *Message {
	return eventMessage(c.baseTopic(), event)
}

// PublishEvent publishes a sensor update without waiting for the broker.
func (c *MQTTClient) PublishEvent(event domain.SensorUpdateEvent, retain bool) {
	msg := c.EventMessage(event)
	if msg == nil {
		c.logger.Debug("mqtt: no topic for event", zap.String("type", event.SensorUpdateEvent()))
		return
	}
	c.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.Topic, msg.Payload)
	c.Publish(msg.Topic, msg.Payload, 1, msg.Retain || retain, c.logError("publish "+msg.Topic), publishTimeout)
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// ConnectAndWait blocks until the broker accepted the connection or timeout elapsed.
func (c *MQTTClient) ConnectAndWait(timeout time.Duration) error {
	done := make(chan error, 1)
	c.Connect(func(err error) { done <- err }, timeout)
	return <-done
}

// Stop marks the bridge offline and disconnects.
func (c *MQTTClient) Stop() {
	c.logger.Debug("mqtt: disconnect")
	if c.client.IsConnected() {
		token := c.client.Publish(c.BridgeStateTopic(), 0, true, MQTT_PAYLOAD_OFFLINE)
		token.WaitTimeout(offlineTimeout)
	}
	c.client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
}

func (c *MQTTClient) announce() {
	c.Publish(c.BridgeStateTopic(), MQTT_PAYLOAD_ONLINE, 0, true, c.logError("publish bridge state"), announceTimeout)
	if !c.cfg.HADiscoveryEnable {
		return
	}
	if err := c.PublishHomeAssistantDiscovery(events.AllSensors(c.baseTopic())); err != nil {
		c.logger.Error("mqtt: discovery publish failed", zap.Error(err))
	}
}

func (c *MQTTClient) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor) error {
	for i := range sensors {
		msg := GenericSensorToHADiscoveryMessage(c, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := HADiscoverySensorTopic(c.cfg.HADiscoveryTopic, sensors[i])
		c.Publish(topic, payload, 0, true, c.logError("publish "+topic), announceTimeout)
	}
	return nil
}

func (c *MQTTClient) logError(what string) func(error) {
	return func(err error) {
		if err != nil {
			c.logger.Error("mqtt: "+what+" failed", zap.Error(err))
		}
	}
}

func eventMessage(baseTopic string, event domain.SensorUpdateEvent) *Message {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &Message{
			Topic:   sensorStateTopic(baseTopic, msg.Id),
			Payload: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &Message{
			Topic:   binarySensorStateTopic(baseTopic, msg.Id),
			Payload: bool2MQTTPayload(msg.Value),
		}
	case domain.TextSensorUpdateEvent:
		return &Message{
			Topic:   sensorStateTopic(baseTopic, msg.Id),
			Payload: msg.Value,
		}
	case domain.BridgeStateUpdateEvent:
		payload := MQTT_PAYLOAD_OFFLINE
		if msg.Value {
			payload = MQTT_PAYLOAD_ONLINE
		}
		return &Message{
			Topic:   bridgeStateTopic(baseTopic),
			Payload: payload,
			Retain:  true,
		}
	default:
		return nil
	}
}

func bool2MQTTPayload(value bool) string {
	if value {
		return MQTT_PAYLOAD_ON
	}
	return MQTT_PAYLOAD_OFF
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

func sensorStateTopic(baseTopic, sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", baseTopic, sensorId)
}

func binarySensorStateTopic(baseTopic, sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", baseTopic, sensorId)
}
