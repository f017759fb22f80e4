package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/railsched/core/logger"
	coremqtt "github.com/kilianp07/railsched/core/mqtt"
	infralogger "github.com/kilianp07/railsched/infra/logger"
)

// DefaultTopicPrefix roots every topic when the configuration leaves it empty.
const DefaultTopicPrefix = "railsched"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool            `json:"enabled"`
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	AckTimeout  time.Duration   `json:"ack_timeout"`
	TLSConfig   *tls.Config     `json:"-"`
}

// Prefix returns the topic prefix, defaulting to DefaultTopicPrefix.
func (c Config) Prefix() string {
	if c.TopicPrefix == "" {
		return DefaultTopicPrefix
	}
	return c.TopicPrefix
}

// ScheduleTopic is where schedules of a section are published. Requests
// without a section publish under "default".
func ScheduleTopic(prefix, sectionID string) string {
	if sectionID == "" {
		sectionID = "default"
	}
	return fmt.Sprintf("%s/sections/%s/schedule", prefix, sectionID)
}

// AckTopic is the wildcard consumers acknowledge schedules on.
func AckTopic(prefix string) string {
	return prefix + "/sections/+/ack"
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements coremqtt.SchedulePublisher using Eclipse Paho.
type PahoClient struct {
	cli    pahoClient
	prefix string
	qos    map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the ACK topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := infralogger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     cfg.Prefix(),
		ackChans:   make(map[string]chan struct{}),
		logger:     log,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		now:        time.Now,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(AckTopic(pc.prefix), pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
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

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.MessageID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Debugf("received ack %s", m.MessageID)
	}
	p.mu.Unlock()
}

// PublishSchedule sends the schedule as a retained message on the section
// topic, retrying with exponential backoff.
func (p *PahoClient) PublishSchedule(msg coremqtt.ScheduleMessage) (string, error) {
	id := uuid.NewString()
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = p.now()
	}
	payload, err := json.Marshal(EncodeSchedule(id, msg))
	if err != nil {
		return "", err
	}
	topic := ScheduleTopic(p.prefix, msg.SectionID)

	// Register before publishing so an ack racing the publish is not lost.
	p.mu.Lock()
	p.ackChans[id] = make(chan struct{}, 1)
	p.mu.Unlock()

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qosFor("schedule"), true, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("published schedule %s of request %s to %s", id, msg.RequestID, topic)
			return id, nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.mu.Lock()
	delete(p.ackChans, id)
	p.mu.Unlock()
	return "", publishErr
}

// WaitForAck blocks until an ACK for the given message is received or timeout.
func (p *PahoClient) WaitForAck(messageID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[messageID]
	p.mu.Unlock()
	if ch == nil {
		return false, coremqtt.ErrUnknownMessage
	}
	defer func() {
		p.mu.Lock()
		delete(p.ackChans, messageID)
		p.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("message %s: %w", messageID, coremqtt.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
