package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
	coremon "github.com/kilianp07/crisismatch/core/monitoring"
	coremqtt "github.com/kilianp07/crisismatch/core/mqtt"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker            string          `json:"broker"`
	ClientID          string          `json:"client_id"`
	Username          string          `json:"username"`
	Password          string          `json:"password"`
	PresenceTopic     string          `json:"presence_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	AlertTopic        string          `json:"alert_topic"`
	UseTLS            bool            `json:"use_tls"`
	ClientCert        string          `json:"client_cert"`
	ClientKey         string          `json:"client_key"`
	CABundle          string          `json:"ca_bundle"`
	AuthMethod        string          `json:"auth_method"`
	QoS               map[string]byte `json:"qos"`
	LWTTopic          string          `json:"lwt_topic"`
	LWTPayload        string          `json:"lwt_payload"`
	LWTQoS            byte            `json:"lwt_qos"`
	LWTRetain         bool            `json:"lwt_retain"`
	MaxRetries        int             `json:"max_retries"`
	BackoffMS         int             `json:"backoff_ms"`
	TLSConfig         *tls.Config     `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills in the standard topics.
func (c *Config) SetDefaults() {
	if c.PresenceTopic == "" {
		c.PresenceTopic = coremqtt.PresenceTopic
	}
	if c.AvailabilityTopic == "" {
		c.AvailabilityTopic = coremqtt.AvailabilityTopic
	}
	if c.AlertTopic == "" {
		c.AlertTopic = coremqtt.AlertTopic
	}
	if c.ClientID == "" {
		c.ClientID = "crisismatch-" + uuid.NewString()
	}
}

// PresenceSink receives decoded responder presence updates.
type PresenceSink interface {
	UpdateStatus(id string, status model.Status, md availability.Metadata) error
	Heartbeat(id string) error
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient listens for responder presence and publishes matcher events.
type PahoClient struct {
	cli      pahoClient
	cfg      Config
	presence PresenceSink
	logger   logger.Logger
	monitor  coremon.Monitor

	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker and subscribes to the presence topic.
// presence may be nil for a publish-only client.
func NewPahoClient(cfg Config, presence PresenceSink, log logger.Logger) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	pc := &PahoClient{
		cfg:        cfg,
		presence:   presence,
		logger:     log,
		monitor:    coremon.NopMonitor{},
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.presence == nil {
			return
		}
		if token := c.Subscribe(cfg.PresenceTopic, pc.qos("presence"), pc.onPresence); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// SetMonitor configures error reporting for failed publishes.
func (p *PahoClient) SetMonitor(m coremon.Monitor) {
	if m != nil {
		p.monitor = m
	}
}

func (p *PahoClient) qos(kind string) byte {
	if q, ok := p.cfg.QoS[kind]; ok {
		return q
	}
	return 0
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) onPresence(_ paho.Client, msg paho.Message) {
	if err := p.applyPresence(msg.Topic(), msg.Payload()); err != nil {
		p.logger.Errorf("presence: %v", err)
	}
}

// applyPresence decodes a presence payload and forwards it to the sink.
func (p *PahoClient) applyPresence(topic string, payload []byte) error {
	var pr coremqtt.Presence
	if err := json.Unmarshal(payload, &pr); err != nil {
		return fmt.Errorf("%w: %v", coremqtt.ErrInvalidPresence, err)
	}
	if pr.ResponderID == "" {
		pr.ResponderID = coremqtt.ResponderFromTopic(topic)
	}
	if pr.ResponderID == "" {
		return fmt.Errorf("%w: no responder id in %q", coremqtt.ErrInvalidPresence, topic)
	}
	if pr.Status == "" {
		return p.presence.Heartbeat(pr.ResponderID)
	}
	status := model.Status(strings.ToUpper(pr.Status))
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", coremqtt.ErrInvalidPresence, pr.Status)
	}
	md := availability.Metadata{
		MaxConcurrentSessions: pr.MaxSessions,
		EmergencyAvailable:    pr.EmergencyAvailable,
		Reason:                "presence",
	}
	if err := p.presence.UpdateStatus(pr.ResponderID, status, md); err != nil {
		return err
	}
	p.logger.Debugf("presence %s -> %s", pr.ResponderID, status)
	return nil
}

// Publish encodes v as JSON and publishes it, retrying with exponential
// backoff.
func (p *PahoClient) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	qos := p.qos("events")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.monitor.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
