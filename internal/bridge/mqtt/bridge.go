package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/bridge"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/tag"
)

// Options configures an MQTT bridge.
type Options struct {
	// BrokerURL in paho form, e.g. "tcp://localhost:1883".
	BrokerURL string
	// ClientID prefix; a random suffix is appended per connection.
	ClientID string
	// TopicPrefix is prepended to every mapping's topic.
	TopicPrefix string
	// PublishInterval is the minimum time between publish rounds.
	PublishInterval time.Duration
	// OnlySendChanged suppresses publishes of unchanged values.
	OnlySendChanged bool
}

// Bridge links tags to MQTT topics. The client's message callback runs on
// a library-owned goroutine and never touches tags: inbound payloads are
// staged in a mutex-guarded pending map (last-write-wins per tag) and
// applied atomically during ReadInputs.
type Bridge struct {
	opts     Options
	logger   *zap.Logger
	mappings []Mapping

	client   paho.Client
	bindings []*binding
	byTopic  map[string]*binding

	pendingMu sync.Mutex
	pending   map[*tag.Tag]string

	nextPublish time.Time

	// injection points for tests
	now     func() time.Time
	publish func(topic, payload string) error

	started bool
}

var _ plc.IOModule = (*Bridge)(nil)

func New(opts Options, mappings []Mapping, logger *zap.Logger) *Bridge {
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = 5 * time.Second
	}
	b := &Bridge{
		opts:     opts,
		logger:   logger.Named("mqtt"),
		mappings: mappings,
		byTopic:  make(map[string]*binding),
		pending:  make(map[*tag.Tag]string),
		now:      time.Now,
	}
	b.publish = b.publishToBroker
	return b
}

func (b *Bridge) Name() string { return "mqtt" }

// Start resolves the mappings against the state, opens one persistent
// client connection and subscribes to every writable mapping's topic.
func (b *Bridge) Start(ctx context.Context, state *tag.State) error {
	if b.started {
		return nil
	}

	if err := b.resolveBindings(state); err != nil {
		return &bridge.StartupError{Bridge: "mqtt", Err: err}
	}

	clientID := fmt.Sprintf("%s-%s", b.opts.ClientID, uuid.NewString()[:8])
	opts := paho.NewClientOptions()
	opts.AddBroker(b.opts.BrokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		b.logger.Info("Connected to MQTT broker", zap.String("broker", b.opts.BrokerURL))
		b.subscribeWritable(c)
	})
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		b.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(bridge.DefaultTimeout) {
		return &bridge.StartupError{Bridge: "mqtt", Err: fmt.Errorf("connect to %s timed out", b.opts.BrokerURL)}
	}
	if err := token.Error(); err != nil {
		return &bridge.StartupError{Bridge: "mqtt", Err: err}
	}

	b.client = client
	b.started = true
	b.logger.Info("MQTT bridge started",
		zap.String("broker", b.opts.BrokerURL),
		zap.String("client_id", clientID),
		zap.Int("mappings", len(b.bindings)))
	return nil
}

func (b *Bridge) resolveBindings(state *tag.State) error {
	b.bindings = b.bindings[:0]
	for _, m := range b.mappings {
		t, err := state.Tag(m.Tag)
		if err != nil {
			return fmt.Errorf("mapping for topic %q: %w", m.Topic, err)
		}
		bd := &binding{
			topic:    JoinTopic(b.opts.TopicPrefix, m.Topic),
			tag:      t,
			writable: m.Writable && t.Writable(),
		}
		b.bindings = append(b.bindings, bd)
		b.byTopic[bd.topic] = bd
	}
	return nil
}

func (b *Bridge) subscribeWritable(c paho.Client) {
	for _, bd := range b.bindings {
		if !bd.writable {
			continue
		}
		token := c.Subscribe(bd.topic, 0, b.onMessage)
		if token.WaitTimeout(bridge.DefaultTimeout) && token.Error() != nil {
			b.logger.Error("Subscribe failed",
				zap.String("topic", bd.topic),
				zap.Error(token.Error()))
		}
	}
}

// onMessage runs on the paho client goroutine. It stages the raw payload
// for the matching writable tag; the decoded value becomes visible to the
// controller no earlier than the next input scan.
func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	bd, ok := b.byTopic[msg.Topic()]
	if !ok || !bd.writable {
		return
	}

	b.pendingMu.Lock()
	b.pending[bd.tag] = string(msg.Payload())
	b.pendingMu.Unlock()
}

// Stop disconnects the client. Idempotent.
func (b *Bridge) Stop(ctx context.Context, state *tag.State) error {
	if !b.started {
		return nil
	}
	b.started = false
	b.client.Disconnect(250)
	b.logger.Info("MQTT bridge stopped", zap.String("broker", b.opts.BrokerURL))
	return nil
}

// ReadInputs atomically drains the pending map and applies each staged
// payload to its tag. Undecodable payloads are dropped; the tag keeps its
// prior value.
func (b *Bridge) ReadInputs(state *tag.State) error {
	b.pendingMu.Lock()
	staged := b.pending
	b.pending = make(map[*tag.Tag]string)
	b.pendingMu.Unlock()

	for t, payload := range staged {
		value, err := tag.Parse(t.Type(), payload)
		if err != nil {
			b.logger.Error("Dropping undecodable payload",
				zap.String("tag", t.Name()),
				zap.Error(&bridge.DecodeError{Bridge: "mqtt", Source: t.Name(), Payload: payload, Err: err}))
			continue
		}
		if err := t.Set(value); err != nil {
			b.logger.Error("Staged write rejected",
				zap.String("tag", t.Name()), zap.Error(err))
		}
	}
	return nil
}

// WriteOutputs publishes behind the rate-limit gate. Once the gate opens
// the next-allowed time advances by the publish interval regardless of
// how many values actually go out; each binding then publishes only if
// OnlySendChanged is off or its value differs from the last one sent.
func (b *Bridge) WriteOutputs(state *tag.State) error {
	if !b.openPublishGate() {
		return nil
	}

	for _, bd := range b.bindings {
		payload, send := bd.payloadToSend(b.opts.OnlySendChanged)
		if !send {
			continue
		}
		if err := b.publish(bd.topic, payload); err != nil {
			b.logger.Error("Publish failed",
				zap.String("topic", bd.topic), zap.Error(err))
		}
	}
	return nil
}

func (b *Bridge) openPublishGate() bool {
	now := b.now()
	if now.Before(b.nextPublish) {
		return false
	}
	b.nextPublish = now.Add(b.opts.PublishInterval)
	return true
}

func (b *Bridge) publishToBroker(topic, payload string) error {
	if b.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := b.client.Publish(topic, 0, false, payload)
	if token.WaitTimeout(bridge.DefaultTimeout) && token.Error() != nil {
		return token.Error()
	}
	return nil
}
