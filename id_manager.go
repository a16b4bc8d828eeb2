package mqttsn

import "sync"

// MaxID is the largest topic, message or request identifier.
const MaxID = 65535

// IDManager hands out identifiers from [1, max]. Zero is never returned.
//
// Allocation scans forward from the last assigned id and wraps around, so
// recently released ids are not reused immediately.
//
// IDManager is not safe for concurrent use; it belongs to one engine loop.
type IDManager struct {
	used map[uint16]struct{}
	last uint16
	max  uint16
}

// NewIDManager creates an allocator over [1, 65535].
func NewIDManager() *IDManager {
	return newIDManager(MaxID)
}

func newIDManager(maxID uint16) *IDManager {
	return &IDManager{
		used: make(map[uint16]struct{}),
		max:  maxID,
	}
}

// Allocate returns the next free id after the cursor.
// Returns ErrIDExhausted when every id is in use.
func (m *IDManager) Allocate() (uint16, error) {
	if len(m.used) >= int(m.max) {
		return 0, ErrIDExhausted
	}

	id := m.last
	for range int(m.max) {
		id = m.following(id)
		if _, ok := m.used[id]; !ok {
			m.used[id] = struct{}{}
			m.last = id
			return id, nil
		}
	}

	return 0, ErrIDExhausted
}

func (m *IDManager) following(id uint16) uint16 {
	if id >= m.max {
		return 1
	}
	return id + 1
}

// Release returns an id to the pool.
func (m *IDManager) Release(id uint16) error {
	if _, ok := m.used[id]; !ok {
		return ErrIDNotFound
	}
	delete(m.used, id)
	return nil
}

// IsUsed returns true if the id is currently allocated.
func (m *IDManager) IsUsed(id uint16) bool {
	_, ok := m.used[id]
	return ok
}

// InUse returns the number of allocated ids.
func (m *IDManager) InUse() int {
	return len(m.used)
}

// Available returns the number of free ids.
func (m *IDManager) Available() int {
	return int(m.max) - len(m.used)
}

// Reset releases every id and rewinds the cursor.
func (m *IDManager) Reset() {
	clear(m.used)
	m.last = 0
}

// GatewayIDAllocator assigns gateway ids to gateway instances created by
// one host. Ids range over [1, 255]. It is safe for concurrent use.
type GatewayIDAllocator struct {
	mu  sync.Mutex
	ids *IDManager
}

// NewGatewayIDAllocator creates an allocator whose first id follows seed.
func NewGatewayIDAllocator(seed byte) *GatewayIDAllocator {
	ids := newIDManager(255)
	ids.last = uint16(seed)
	return &GatewayIDAllocator{ids: ids}
}

// Next returns an unused gateway id.
func (a *GatewayIDAllocator) Next() (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, err := a.ids.Allocate()
	if err != nil {
		return 0, err
	}
	return byte(id), nil
}

// Release makes a gateway id available again.
func (a *GatewayIDAllocator) Release(id byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.ids.Release(uint16(id))
}
