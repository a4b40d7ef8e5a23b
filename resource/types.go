package resource

// Handle is an opaque reference to an entry in a table. The low 20 bits hold
// a 1-based slot index and the high 12 bits the slot's generation, so a
// handle goes stale as soon as its slot is freed. Handle 0 is never valid.
type Handle uint32

const (
	indexBits = 20
	genBits   = 12

	maxIndex = 1<<indexBits - 1
	genMask  = 1<<genBits - 1
)

func makeHandle(index uint32, gen uint16) Handle {
	return Handle(uint32(gen)<<indexBits | index)
}

func (h Handle) index() uint32      { return uint32(h) & maxIndex }
func (h Handle) generation() uint16 { return uint16(uint32(h) >> indexBits) }

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventTaken
	EventBorrowed
	EventReleased
	EventLent
	EventLendEnded
)

var eventNames = [...]string{"created", "dropped", "taken", "borrowed", "released", "lent", "lend-ended"}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event represents a resource lifecycle event.
type Event struct {
	Value    any
	Resource string
	Handle   Handle
	Type     EventType
}

// Observer receives notifications about resource lifecycle events. Events
// are delivered after the table lock is released.
type Observer interface {
	OnResourceEvent(Event)
}

// Subscription identifies an observer added with Subscribe.
type Subscription uint64

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by resource values that need cleanup.
// It is used when the table has no destructor of its own.
type Dropper interface {
	Drop()
}

// Option configures a Table.
type Option func(*config)

type config struct {
	destructor func(any)
	observers  []Observer
	debug      bool
}

// WithDestructor sets the function run exactly once when an entry is
// dropped or the table is closed.
func WithDestructor(fn func(any)) Option {
	return func(c *config) { c.destructor = fn }
}

// WithObserver subscribes o from construction.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// Debug makes the table remember lend handles after their call ends so that
// a retained borrow is reported as such instead of as an unknown handle.
func Debug() Option {
	return func(c *config) { c.debug = true }
}
