// Package pdo implements the PDO manager (spec.md §4.8): a COB-ID demux
// table over a single CAN socket with a background receive thread, a
// per-node TPDO callback registry, and atomic send/receive statistics. The
// callback registry is adapted from the teacher's internal/hub mutex+map
// broadcast pattern, narrowed from "every connected client" to "the one
// callback registered for this COB-ID".
package pdo

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/metrics"
)

// COB-ID bases, per spec.md §4.8's table.
const (
	RPDO1Base uint32 = 0x200
	RPDO2Base uint32 = 0x300
	TPDO1Base uint32 = 0x180
	TPDO2Base uint32 = 0x280
	SyncID    uint32 = 0x080
)

// Callback is invoked on the receive thread with the registry mutex
// released; it must be thread-safe and non-blocking, and must not call back
// into the Manager (not re-entrant).
type Callback func(cansocket.Frame)

type nodeStats struct {
	rpdo1Sent      atomic.Uint64
	rpdo2Sent      atomic.Uint64
	totalLatencyUs atomic.Uint64
	errors         atomic.Uint64
	lastTPDO1Time  atomic.Int64 // unix nanoseconds, 0 if never observed
	lastTPDO2Time  atomic.Int64
}

// Snapshot is a thread-safe copy of one node's statistics.
type Snapshot struct {
	RPDO1Sent      uint64
	RPDO2Sent      uint64
	TotalLatencyUs uint64
	Errors         uint64
	LastTPDO1Time  time.Time
	LastTPDO2Time  time.Time
}

// Manager owns a single CAN socket and the one background receive thread
// demultiplexing frames by COB-ID.
type Manager struct {
	socket        cansocket.CANSocket
	readTimeoutMs int

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	callbacks map[uint32]Callback
	stats     map[uint8]*nodeStats
}

// New builds a Manager over socket, polling receive with readTimeoutMs so
// stop() can interrupt it promptly.
func New(socket cansocket.CANSocket, readTimeoutMs int) *Manager {
	return &Manager{
		socket:        socket,
		readTimeoutMs: readTimeoutMs,
		callbacks:     make(map[uint32]Callback),
		stats:         make(map[uint8]*nodeStats),
	}
}

// Start spawns the receive thread. Idempotent: returns false if already
// running.
func (m *Manager) Start() bool {
	if !m.running.CompareAndSwap(false, true) {
		return false
	}
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.receiveLoop()
	return true
}

// Stop clears the running flag, waits for the receive thread to exit, and
// closes the socket.
func (m *Manager) Stop() error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}
	close(m.stopCh)
	m.wg.Wait()
	return m.socket.Close()
}

func (m *Manager) receiveLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}
		fr, ok, err := m.socket.Receive(m.readTimeoutMs)
		if err != nil {
			metrics.IncError(metrics.ErrPdoProtocol)
			continue
		}
		if !ok {
			continue
		}
		m.dispatch(fr)
	}
}

func (m *Manager) dispatch(fr cansocket.Frame) {
	id := fr.RawID()
	if id == SyncID {
		return
	}
	var nodeID uint8
	var isTPDO1, isTPDO2 bool
	switch {
	case id >= TPDO1Base && id < TPDO1Base+128:
		nodeID = uint8(id - TPDO1Base)
		isTPDO1 = true
	case id >= TPDO2Base && id < TPDO2Base+128:
		nodeID = uint8(id - TPDO2Base)
		isTPDO2 = true
	default:
		return
	}

	m.mu.Lock()
	cb, registered := m.callbacks[id]
	st := m.statsFor(nodeID)
	now := time.Now()
	if isTPDO1 {
		st.lastTPDO1Time.Store(now.UnixNano())
	} else if isTPDO2 {
		st.lastTPDO2Time.Store(now.UnixNano())
	}
	m.mu.Unlock()

	metrics.IncPdoReceived()
	if registered {
		cb(fr)
	}
}

// statsFor returns (creating if necessary) the node's stats bucket. Caller
// must hold m.mu.
func (m *Manager) statsFor(nodeID uint8) *nodeStats {
	st, ok := m.stats[nodeID]
	if !ok {
		st = &nodeStats{}
		m.stats[nodeID] = st
	}
	return st
}

// RegisterTPDO1Callback installs cb for node's TPDO1 COB-ID, replacing any
// previous registration.
func (m *Manager) RegisterTPDO1Callback(nodeID uint8, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[TPDO1Base+uint32(nodeID)] = cb
}

// RegisterTPDO2Callback installs cb for node's TPDO2 COB-ID, replacing any
// previous registration.
func (m *Manager) RegisterTPDO2Callback(nodeID uint8, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[TPDO2Base+uint32(nodeID)] = cb
}

// UnregisterCallbacks removes both TPDO1 and TPDO2 callbacks for nodeID.
func (m *Manager) UnregisterCallbacks(nodeID uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.callbacks, TPDO1Base+uint32(nodeID))
	delete(m.callbacks, TPDO2Base+uint32(nodeID))
}

// SendRPDO1 builds and sends an RPDO1 frame for nodeID, recording send
// latency and success/error statistics.
func (m *Manager) SendRPDO1(nodeID uint8, data []byte) error {
	return m.sendRPDO(RPDO1Base, nodeID, data, func(st *nodeStats) *atomic.Uint64 { return &st.rpdo1Sent })
}

// SendRPDO2 builds and sends an RPDO2 frame for nodeID, recording send
// latency and success/error statistics.
func (m *Manager) SendRPDO2(nodeID uint8, data []byte) error {
	return m.sendRPDO(RPDO2Base, nodeID, data, func(st *nodeStats) *atomic.Uint64 { return &st.rpdo2Sent })
}

func (m *Manager) sendRPDO(base uint32, nodeID uint8, data []byte, counter func(*nodeStats) *atomic.Uint64) error {
	const op = "pdo.send_rpdo"
	if len(data) > 8 {
		return coerrors.New(coerrors.KindBadDLC, op)
	}
	var fr cansocket.Frame
	fr.ID = base + uint32(nodeID)
	fr.DLC = uint8(len(data))
	copy(fr.Data[:], data)

	m.mu.Lock()
	st := m.statsFor(nodeID)
	m.mu.Unlock()

	start := time.Now()
	err := m.socket.Send(fr)
	elapsedUs := uint64(time.Since(start).Microseconds())
	if err != nil {
		st.errors.Add(1)
		return coerrors.Wrap(op, err)
	}
	counter(st).Add(1)
	st.totalLatencyUs.Add(elapsedUs)
	metrics.IncPdoSent()
	return nil
}

// GetStatistics returns a thread-safe copy of nodeID's counters.
func (m *Manager) GetStatistics(nodeID uint8) Snapshot {
	m.mu.Lock()
	st := m.statsFor(nodeID)
	m.mu.Unlock()

	snap := Snapshot{
		RPDO1Sent:      st.rpdo1Sent.Load(),
		RPDO2Sent:      st.rpdo2Sent.Load(),
		TotalLatencyUs: st.totalLatencyUs.Load(),
		Errors:         st.errors.Load(),
	}
	if ns := st.lastTPDO1Time.Load(); ns != 0 {
		snap.LastTPDO1Time = time.Unix(0, ns)
	}
	if ns := st.lastTPDO2Time.Load(); ns != 0 {
		snap.LastTPDO2Time = time.Unix(0, ns)
	}
	return snap
}

// ResetStatistics zeroes nodeID's counters.
func (m *Manager) ResetStatistics(nodeID uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[nodeID] = &nodeStats{}
}
