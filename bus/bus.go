package bus

import (
	"sync"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// SubscriberFunc is a process-local observer invoked synchronously for every
// published message. Callbacks must return quickly; a slow subscriber delays
// all publishers.
type SubscriberFunc func(core.Message)

// Subscription identifies a registered subscriber for later removal.
type Subscription struct {
	id int
}

// Handle is one transport binding to the bus. Consumers range over
// Messages(); the channel is closed on Unregister.
type Handle struct {
	identity core.AgentID
	observer bool
	ch       chan core.Message
}

// Identity returns the identity this handle is bound to. Observer handles
// report the observer name they registered with.
func (h *Handle) Identity() core.AgentID { return h.identity }

// Messages returns the delivery channel for this connection.
func (h *Handle) Messages() <-chan core.Message { return h.ch }

// Options configures a Bus instance.
type Options struct {
	// DeliveryBuffer is the channel buffer per connection. A recipient that
	// falls further behind than this has broadcast deliveries dropped
	// (fire-and-forget per recipient).
	DeliveryBuffer int

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Bus routes messages between named agents and observers. All methods are
// safe for concurrent use; publishing never blocks on a slow recipient.
type Bus struct {
	mu          sync.RWMutex
	agents      map[core.AgentID]*Handle
	observers   map[*Handle]struct{}
	buffers     map[core.AgentID][]core.Message
	subscribers map[int]SubscriberFunc
	nextSubID   int

	deliveryBuffer int
	logger         logging.Logger
}

// New constructs an empty bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		DeliveryBuffer: 64,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{
		agents:         make(map[core.AgentID]*Handle),
		observers:      make(map[*Handle]struct{}),
		buffers:        make(map[core.AgentID][]core.Message),
		subscribers:    make(map[int]SubscriberFunc),
		deliveryBuffer: opts.DeliveryBuffer,
		logger:         opts.Logger,
	}
}

// Register binds a transport connection to an agent identity. Any messages
// buffered for that identity are delivered immediately in enqueue order and
// the buffer is cleared. Registering an identity that is already connected
// replaces the previous binding (the old handle's channel is closed).
func (b *Bus) Register(identity core.AgentID) *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.agents[identity]; ok {
		close(old.ch)
	}

	buffered := b.buffers[identity]
	delete(b.buffers, identity)

	h := &Handle{
		identity: identity,
		ch:       make(chan core.Message, b.deliveryBuffer+len(buffered)),
	}
	for _, msg := range buffered {
		h.ch <- msg
	}
	b.agents[identity] = h

	b.logger.Debug("bus.register", "identity", identity, "replayed", len(buffered))

	return h
}

// RegisterObserver binds an observer connection. Observer identities need
// not be unique and receive only broadcast messages.
func (b *Bus) RegisterObserver(name core.AgentID) *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := &Handle{
		identity: name,
		observer: true,
		ch:       make(chan core.Message, b.deliveryBuffer),
	}
	b.observers[h] = struct{}{}

	return h
}

// Unregister removes a transport binding and closes its channel. Buffered
// messages for the identity are unaffected and remain queued until the
// identity registers again.
func (b *Bus) Unregister(h *Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h.observer {
		if _, ok := b.observers[h]; ok {
			delete(b.observers, h)
			close(h.ch)
		}
		return
	}
	// Only remove the binding if it is still the current one for the
	// identity; a replaced handle was already closed by Register.
	if current, ok := b.agents[h.identity]; ok && current == h {
		delete(b.agents, h.identity)
		close(h.ch)
	}
}

// Publish routes a message. Broadcasts go to every connected client
// best-effort; direct messages are delivered to the connected agent or
// appended to its FIFO buffer. Publishing to a disconnected agent never
// fails. Every published message is also passed to all subscribers,
// regardless of delivery outcome.
func (b *Bus) Publish(msg core.Message) {
	b.mu.Lock()
	var targets []*Handle
	if msg.IsBroadcast() {
		targets = make([]*Handle, 0, len(b.agents)+len(b.observers))
		for _, h := range b.agents {
			targets = append(targets, h)
		}
		for h := range b.observers {
			targets = append(targets, h)
		}
	} else if h, ok := b.agents[msg.To]; ok {
		targets = []*Handle{h}
	} else {
		b.buffers[msg.To] = append(b.buffers[msg.To], msg)
	}

	// Deliver while holding the lock: sends are non-blocking and channels
	// are only closed under this same lock, so no send-on-closed race.
	for _, h := range targets {
		select {
		case h.ch <- msg:
		default:
			// Fire-and-forget: a recipient that cannot keep up loses the
			// delivery rather than blocking the publisher.
			b.logger.Warn("bus.delivery_dropped", "to", h.identity, "type", msg.Type)
		}
	}

	subs := make([]SubscriberFunc, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	// Subscribers run outside the lock so they may call back into the bus.
	for _, fn := range subs {
		fn(msg)
	}
}

// Subscribe registers a process-local observer for every published message.
func (b *Bus) Subscribe(fn SubscriberFunc) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	b.subscribers[id] = fn

	return Subscription{id: id}
}

// Unsubscribe removes a previously registered subscriber. Unknown
// subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub.id)
}

// ConnectedIdentities returns the identities of all currently connected
// agents (observers excluded).
func (b *Bus) ConnectedIdentities() []core.AgentID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]core.AgentID, 0, len(b.agents))
	for id := range b.agents {
		ids = append(ids, id)
	}
	return ids
}
