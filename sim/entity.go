package sim

// Entity is a simulated actor. It receives events through its mailbox and
// reacts by sending new events; it never calls other entities directly.
type Entity interface {
	ID() EntityID
	Name() string
	Kind() string
	// Process handles one delivered event. It runs to completion before the
	// next event is dispatched.
	Process(s *Simulation, ev Event)
}

// Starter is implemented by entities that act when the simulation starts.
type Starter interface {
	Startup(s *Simulation)
}

// Stopper is implemented by entities that flush state when the simulation ends.
// Events sent from Shutdown with zero delay are still delivered.
type Stopper interface {
	Shutdown(s *Simulation)
}

// BaseEntity carries identity for embedding in concrete entities.
// Register assigns the id.
type BaseEntity struct {
	id   EntityID
	name string
	kind string
}

// NewBaseEntity returns an unregistered BaseEntity.
func NewBaseEntity(name, kind string) BaseEntity {
	return BaseEntity{id: NoEntity, name: name, kind: kind}
}

func (b *BaseEntity) ID() EntityID { return b.id }
func (b *BaseEntity) Name() string { return b.name }
func (b *BaseEntity) Kind() string { return b.kind }

func (b *BaseEntity) bind(id EntityID) { b.id = id }

// registrable is satisfied by any Entity embedding BaseEntity.
type registrable interface {
	Entity
	bind(id EntityID)
}

// mailbox buffers events delivered to one entity.
type mailbox struct {
	entity    Entity
	inbox     []Event
	delivered int64
}

func (m *mailbox) deliver(ev Event) {
	m.inbox = append(m.inbox, ev)
	m.delivered++
}

// drain hands buffered events to the entity in arrival order.
func (m *mailbox) drain(s *Simulation) {
	for len(m.inbox) > 0 {
		ev := m.inbox[0]
		m.inbox = m.inbox[1:]
		m.entity.Process(s, ev)
	}
}
