// Package cia402 implements the CiA 402 drive state machine (spec.md §4.9)
// on top of an SDO client and Object Dictionary: statusword decode,
// controlword transitions, and a shortest-path transition planner, in the
// bridge's own synchronous-call idiom rather than gocanopen's event-driven
// NMT/PDO state machine.
package cia402

import (
	"time"

	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/od"
)

// sdoClient is the narrow surface cia402 needs from *sdo.Client, named here
// instead of importing the sdo package directly so cia402 has no import
// cycle risk and is trivially fakeable in tests.
type sdoClient interface {
	WriteBytes(name string, data []byte, timeout time.Duration) error
	ReadBytes(name string, timeout time.Duration) ([]byte, error)
}

// State is one CiA 402 drive state.
type State int

const (
	NotReadyToSwitchOn State = iota
	SwitchOnDisabled
	ReadyToSwitchOn
	SwitchedOn
	OperationEnabled
	QuickStopActive
	FaultReactionActive
	Fault
	Unknown
)

func (s State) String() string {
	switch s {
	case NotReadyToSwitchOn:
		return "NOT_READY_TO_SWITCH_ON"
	case SwitchOnDisabled:
		return "SWITCH_ON_DISABLED"
	case ReadyToSwitchOn:
		return "READY_TO_SWITCH_ON"
	case SwitchedOn:
		return "SWITCHED_ON"
	case OperationEnabled:
		return "OPERATION_ENABLED"
	case QuickStopActive:
		return "QUICK_STOP_ACTIVE"
	case FaultReactionActive:
		return "FAULT_REACTION_ACTIVE"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// statuswordMask isolates bits 0-3 and 6, the bits compared for the states
// whose pattern leaves bit 5 (quick stop) open; statuswordQSMask adds bit 5
// for the states whose pattern includes it.
const (
	statuswordMask   = 0b0100_1111
	statuswordQSMask = 0b0110_1111
)

// Controlword commands, spec.md §4.9.
const (
	cwShutdown         uint16 = 0x0006
	cwSwitchOn         uint16 = 0x0007
	cwEnableOperation  uint16 = 0x000F
	cwDisableVoltage   uint16 = 0x0000
	cwQuickStop        uint16 = 0x0002
	cwDisableOperation uint16 = 0x0007
	cwFaultReset       uint16 = 0x0080
)

// DecodeState applies the CiA 402 statusword mask and pattern table.
func DecodeState(sw uint16) State {
	switch byte(sw) & statuswordQSMask {
	case 0b0010_0001:
		return ReadyToSwitchOn
	case 0b0010_0011:
		return SwitchedOn
	case 0b0010_0111:
		return OperationEnabled
	case 0b0000_0111:
		return QuickStopActive
	}
	switch byte(sw) & statuswordMask {
	case 0b0000_0000:
		return NotReadyToSwitchOn
	case 0b0100_0000:
		return SwitchOnDisabled
	case 0b0000_1111:
		return FaultReactionActive
	case 0b0000_1000:
		return Fault
	default:
		return Unknown
	}
}

// DefaultStateTimeout bounds how long a transition polls for its target
// statusword pattern.
const DefaultStateTimeout = time.Second

const pollInterval = 10 * time.Millisecond

// Machine drives one CiA 402 axis through an SDO client.
type Machine struct {
	sdo          sdoClient
	StateTimeout time.Duration
}

// New builds a Machine bound to client.
func New(client sdoClient) *Machine {
	return &Machine{sdo: client, StateTimeout: DefaultStateTimeout}
}

// GetStatusword reads the raw statusword register.
func (m *Machine) GetStatusword() (uint16, error) {
	raw, err := m.sdo.ReadBytes("statusword", DefaultStateTimeout)
	if err != nil {
		return 0, coerrors.Wrap("cia402.get_statusword", err)
	}
	return od.FromRaw[uint16](raw)
}

// GetCurrentState reads the statusword and decodes it. forceUpdate has no
// effect beyond documenting intent: this implementation always re-reads,
// there being no cached statusword to skip.
func (m *Machine) GetCurrentState(forceUpdate bool) (State, error) {
	sw, err := m.GetStatusword()
	if err != nil {
		return Unknown, err
	}
	return DecodeState(sw), nil
}

func (m *Machine) HasFault() (bool, error) {
	sw, err := m.GetStatusword()
	if err != nil {
		return false, err
	}
	return sw&(1<<3) != 0, nil
}

func (m *Machine) HasWarning() (bool, error) {
	sw, err := m.GetStatusword()
	if err != nil {
		return false, err
	}
	return sw&(1<<7) != 0, nil
}

func (m *Machine) TargetReached() (bool, error) {
	sw, err := m.GetStatusword()
	if err != nil {
		return false, err
	}
	return sw&(1<<10) != 0, nil
}

func (m *Machine) VoltageEnabled() (bool, error) {
	sw, err := m.GetStatusword()
	if err != nil {
		return false, err
	}
	return sw&(1<<4) != 0, nil
}

func (m *Machine) IsOperational() (bool, error) {
	state, err := m.GetCurrentState(true)
	if err != nil {
		return false, err
	}
	return state == OperationEnabled, nil
}

// Quick-stop and profile-parameter registers named but not otherwise used by
// the transition planner (original_source's cia402_registers.hpp).
const (
	objQuickStopOptionCode = "quick_stop_option_code" // 0x605A
	objProfileVelocity     = "profile_velocity"       // 0x6083
	objProfileAcceleration = "profile_acceleration"   // 0x6084
	objProfileDeceleration = "profile_deceleration"   // 0x6085
)

// QuickStopOptionCode reads object 0x605A.
func (m *Machine) QuickStopOptionCode() (int16, error) {
	raw, err := m.sdo.ReadBytes(objQuickStopOptionCode, DefaultStateTimeout)
	if err != nil {
		return 0, coerrors.Wrap("cia402.quick_stop_option_code", err)
	}
	return od.FromRaw[int16](raw)
}

// SetProfileVelocity writes object 0x6083.
func (m *Machine) SetProfileVelocity(v uint32) error {
	return coerrors.Wrap("cia402.set_profile_velocity",
		m.sdo.WriteBytes(objProfileVelocity, od.ToRaw(v), DefaultStateTimeout))
}

// SetProfileAcceleration writes object 0x6084.
func (m *Machine) SetProfileAcceleration(v uint32) error {
	return coerrors.Wrap("cia402.set_profile_acceleration",
		m.sdo.WriteBytes(objProfileAcceleration, od.ToRaw(v), DefaultStateTimeout))
}

// SetProfileDeceleration writes object 0x6085.
func (m *Machine) SetProfileDeceleration(v uint32) error {
	return coerrors.Wrap("cia402.set_profile_deceleration",
		m.sdo.WriteBytes(objProfileDeceleration, od.ToRaw(v), DefaultStateTimeout))
}

// edge is one controlword-labeled transition in the CiA 402 graph.
type edge struct {
	from, to State
	cw       uint16
}

// edges enumerates the adjacency spec.md §4.9 defines. "Any non-FAULT
// state" and "FAULT" edges are expanded explicitly per source state below
// rather than modeled as wildcards, so the shortest-path search only ever
// walks concrete states.
var edges = []edge{
	{SwitchOnDisabled, ReadyToSwitchOn, cwShutdown},
	{ReadyToSwitchOn, SwitchedOn, cwSwitchOn},
	{SwitchedOn, OperationEnabled, cwEnableOperation},
	{OperationEnabled, ReadyToSwitchOn, cwShutdown},
	{Fault, SwitchOnDisabled, cwFaultReset},
}

var disableVoltageSources = []State{
	NotReadyToSwitchOn, SwitchOnDisabled, ReadyToSwitchOn, SwitchedOn,
	OperationEnabled, QuickStopActive, FaultReactionActive,
}

func init() {
	for _, from := range disableVoltageSources {
		edges = append(edges, edge{from, SwitchOnDisabled, cwDisableVoltage})
	}
}

// shortestPath returns the controlword sequence from `from` to `to` via
// breadth-first search over the CiA 402 adjacency graph.
func shortestPath(from, to State) []uint16 {
	if from == to {
		return nil
	}
	type node struct {
		state State
		path  []uint16
	}
	visited := map[State]bool{from: true}
	queue := []node{{from, nil}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range edges {
			if e.from != cur.state || visited[e.to] {
				continue
			}
			path := append(append([]uint16{}, cur.path...), e.cw)
			if e.to == to {
				return path
			}
			visited[e.to] = true
			queue = append(queue, node{e.to, path})
		}
	}
	return nil
}

// EnableOperation drives the axis to OPERATION_ENABLED via the shortest
// controlword sequence from its current state, verifying each step's
// statusword before sending the next.
func (m *Machine) EnableOperation() error {
	return m.runPlan(OperationEnabled)
}

// DisableOperation drives the axis back to READY_TO_SWITCH_ON (the CiA 402
// "disable operation" transition is SHUTDOWN from OPERATION_ENABLED).
func (m *Machine) DisableOperation() error {
	return m.runPlan(ReadyToSwitchOn)
}

// Shutdown is the single SHUTDOWN controlword transition.
func (m *Machine) Shutdown() error { return m.writeAndWait(cwShutdown, ReadyToSwitchOn) }

// SwitchOn is the single SWITCH_ON controlword transition.
func (m *Machine) SwitchOn() error { return m.writeAndWait(cwSwitchOn, SwitchedOn) }

// QuickStop issues the quick-stop controlword without waiting for a
// specific target pattern, since the reached state depends on drive
// configuration (ramp vs. immediate).
func (m *Machine) QuickStop() error {
	return m.writeControlword(cwQuickStop)
}

// ResetFault issues FAULT_RESET (a rising edge on bit 7) and waits for
// SWITCH_ON_DISABLED.
func (m *Machine) ResetFault() error { return m.writeAndWait(cwFaultReset, SwitchOnDisabled) }

func (m *Machine) writeControlword(cw uint16) error {
	return coerrors.Wrap("cia402.write_controlword", m.sdo.WriteBytes("controlword", od.ToRaw(cw), DefaultStateTimeout))
}

// writeAndWait writes cw then polls the statusword every 10ms, up to
// StateTimeout, until DecodeState reports want.
func (m *Machine) writeAndWait(cw uint16, want State) error {
	const op = "cia402.transition"
	if err := m.writeControlword(cw); err != nil {
		return err
	}
	timeout := m.StateTimeout
	if timeout <= 0 {
		timeout = DefaultStateTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		if fault, err := m.HasFault(); err != nil {
			return err
		} else if fault {
			return coerrors.New(coerrors.KindCanNmtError, op)
		}
		state, err := m.GetCurrentState(true)
		if err != nil {
			return err
		}
		if state == want {
			return nil
		}
		if time.Now().After(deadline) {
			return coerrors.Newf(coerrors.KindTimeout, op, "did not reach %s within %s", want, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// runPlan executes the shortest controlword sequence from the current
// state to target, one transition at a time.
func (m *Machine) runPlan(target State) error {
	const op = "cia402.run_plan"
	current, err := m.GetCurrentState(true)
	if err != nil {
		return err
	}
	plan := shortestPath(current, target)
	if plan == nil && current != target {
		return coerrors.Newf(coerrors.KindCanNmtError, op, "no path from %s to %s", current, target)
	}
	for _, cw := range plan {
		// Re-derive the intended next state by replaying decode against the
		// edge table so each step's wait target is exact.
		next := stateAfter(current, cw)
		if err := m.writeAndWait(cw, next); err != nil {
			return err
		}
		current = next
	}
	return nil
}

func stateAfter(from State, cw uint16) State {
	for _, e := range edges {
		if e.from == from && e.cw == cw {
			return e.to
		}
	}
	return Unknown
}
