package hass

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/mqtt"
)

// Broker is the subset of the MQTT client a Node publishes and subscribes through.
// *mqtt.Client satisfies it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Bus is what an entity may ask of its surroundings. Node implements it.
type Bus interface {
	// PublishOnDataTopic publishes payload on one of the entity's data topics.
	PublishOnDataTopic(uniqueID, suffix string, payload []byte, retained bool) error

	// PublishConfig publishes the entity's discovery document.
	PublishConfig(d *Descriptor) error

	// PublishAvailability marks the entity available.
	PublishAvailability(uniqueID string) error

	// SubscribeDataTopic subscribes to one of the entity's data topics.
	// Messages are delivered to the entity's OnMessage.
	SubscribeDataTopic(uniqueID, suffix string) error
}

// Entity is a single Home Assistant entity managed by a Node.
type Entity interface {
	UniqueID() string

	// OnConnected runs on every (re)connection to the broker.
	OnConnected()

	// OnMessage receives a message published on one of the entity's
	// subscribed data topics, identified by its suffix.
	OnMessage(suffix string, payload []byte)
}

// Logger is the optional logger used by Node.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NodeConfig configures a Node.
type NodeConfig struct {
	Namespace         Namespace
	Device            DeviceInfo
	QoS               byte
	ExtendedUniqueIDs bool
}

// Node binds entities of one device to an MQTT broker.
//
// Thread Safety:
//   - Exported methods are safe for concurrent use.
//   - HandleConnect, inbound messages and Do are serialized, so entities are
//     never entered by two goroutines at once.
//   - Bus methods are called by entities from inside those serialized
//     sections and do not take the lock themselves.
type Node struct {
	cfg NodeConfig

	brokerMu sync.RWMutex
	broker   Broker

	// mu serializes every call into an entity.
	mu       sync.Mutex
	entities map[string]Entity
	order    []string

	logger Logger
}

// NewNode creates a Node. The broker may be nil and attached later with SetBroker.
func NewNode(broker Broker, cfg NodeConfig) *Node {
	return &Node{
		cfg:      cfg,
		broker:   broker,
		entities: make(map[string]Entity),
	}
}

// SetBroker attaches the broker used for publishing and subscribing.
func (n *Node) SetBroker(b Broker) {
	n.brokerMu.Lock()
	n.broker = b
	n.brokerMu.Unlock()
}

// SetLogger sets a logger for routing diagnostics.
func (n *Node) SetLogger(l Logger) {
	n.mu.Lock()
	n.logger = l
	n.mu.Unlock()
}

// Namespace returns the topic namespace of the node.
func (n *Node) Namespace() Namespace { return n.cfg.Namespace }

// Register adds an entity. Entities are connected in registration order.
func (n *Node) Register(e Entity) error {
	id := e.UniqueID()
	if id == "" {
		return ErrInvalidEntity
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.entities[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}
	n.entities[id] = e
	n.order = append(n.order, id)
	return nil
}

// EntityCount returns the number of registered entities.
func (n *Node) EntityCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entities)
}

// HandleConnect runs the connect sequence of every entity.
// Wire it to the MQTT client's on-connect callback.
func (n *Node) HandleConnect() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.logger != nil {
		n.logger.Debug("running entity connect sequence", "entities", len(n.order))
	}
	for _, id := range n.order {
		n.entities[id].OnConnected()
	}
}

// Do runs fn while holding the entity lock.
//
// Application code must update entities through Do so that it never races
// with the connect sequence or with command handlers. Calling Do from inside
// an entity callback deadlocks.
func (n *Node) Do(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn()
}

// PublishOnDataTopic implements Bus.
func (n *Node) PublishOnDataTopic(uniqueID, suffix string, payload []byte, retained bool) error {
	return n.publish(n.cfg.Namespace.DataTopic(uniqueID, suffix), payload, retained)
}

// PublishConfig implements Bus. Discovery documents are always retained.
func (n *Node) PublishConfig(d *Descriptor) error {
	payload, err := d.Encode(EncodeContext{
		Namespace:         n.cfg.Namespace,
		Device:            n.cfg.Device,
		ExtendedUniqueIDs: n.cfg.ExtendedUniqueIDs,
	})
	if err != nil {
		return fmt.Errorf("encoding discovery for %s: %w", d.UniqueID(), err)
	}
	if n.logger != nil {
		n.logger.Debug("publishing discovery", "unique_id", d.UniqueID(), "keys", d.Keys())
	}
	return n.publish(n.cfg.Namespace.ConfigTopic(d.Component(), d.UniqueID()), payload, true)
}

// PublishAvailability implements Bus. Availability is shared by the device,
// so the unique ID only matters for logging.
func (n *Node) PublishAvailability(uniqueID string) error {
	if err := n.publish(n.cfg.Namespace.AvailabilityTopic(), []byte(AvailabilityOnline), true); err != nil {
		return fmt.Errorf("availability for %s: %w", uniqueID, err)
	}
	return nil
}

// SubscribeDataTopic implements Bus.
func (n *Node) SubscribeDataTopic(uniqueID, suffix string) error {
	b := n.getBroker()
	if b == nil {
		return ErrNoBroker
	}
	return b.Subscribe(n.cfg.Namespace.DataTopic(uniqueID, suffix), n.cfg.QoS, n.handleMessage)
}

func (n *Node) publish(topic string, payload []byte, retained bool) error {
	b := n.getBroker()
	if b == nil {
		return ErrNoBroker
	}
	return b.Publish(topic, payload, n.cfg.QoS, retained)
}

func (n *Node) getBroker() Broker {
	n.brokerMu.RLock()
	defer n.brokerMu.RUnlock()
	return n.broker
}

// handleMessage routes an inbound message to the entity owning the topic.
func (n *Node) handleMessage(topic string, payload []byte) error {
	uniqueID, suffix, ok := n.cfg.Namespace.ParseDataTopic(topic)
	if !ok {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	e, exists := n.entities[uniqueID]
	if !exists {
		if n.logger != nil {
			n.logger.Debug("message for unknown entity", "topic", topic)
		}
		return nil
	}
	e.OnMessage(suffix, payload)
	return nil
}
