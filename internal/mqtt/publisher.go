// Package mqtt publishes alert events to an MQTT broker as a secondary
// fan-out channel for dashboards and other infra consumers. Entirely
// optional; when disabled the engine runs without it.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"
	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Publisher struct {
	client mqtt.Client
	cfg    *config.MQTTConfig
	log    *logger.Logger
}

func NewPublisher(cfg *config.MQTTConfig, log *logger.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost: %v", err)
	})

	return &Publisher{
		client: mqtt.NewClient(opts),
		cfg:    cfg,
		log:    log,
	}
}

func (p *Publisher) Connect() error {
	p.log.Info("Connecting to MQTT broker: %s:%d", p.cfg.Broker, p.cfg.Port)

	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connection timeout after %v", p.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	return nil
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// PublishAlert sends the alert event to <prefix>/alerts/<category>.
// Best-effort: the caller logs failures, nothing retries.
func (p *Publisher) PublishAlert(alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert event: %w", err)
	}

	topic := fmt.Sprintf("%s/alerts/%s", p.cfg.TopicPrefix, alert.Category)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}

	return nil
}
