// Package bridge implements the SocketCAN <-> USB-CAN-A forwarding bridge
// (spec.md §4.5): two forwarding loops adapted from the teacher's
// backend_serial.go/backend_socketcan.go RX-loop idiom (select-on-ctx,
// exponential-free bounded-timeout polling, atomic+Prometheus dual
// counters), generalized from "decode onto a hub broadcast" to "decode,
// convert, forward to the other side".
package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/config"
	"github.com/wsusbcan/bridge/internal/frame"
	"github.com/wsusbcan/bridge/internal/logging"
	"github.com/wsusbcan/bridge/internal/metrics"
	"github.com/wsusbcan/bridge/internal/usbadapter"
	"github.com/wsusbcan/bridge/internal/wire"
)

// USBToCANCallback is invoked on the USB->CAN forwarding thread after a
// successful send; it must be non-blocking and thread-safe.
type USBToCANCallback func(vf *frame.VariableFrame, fr cansocket.Frame)

// CANToUSBCallback is invoked on the CAN->USB forwarding thread after a
// successful send; it must be non-blocking and thread-safe.
type CANToUSBCallback func(fr cansocket.Frame, vf *frame.VariableFrame)

type stats struct {
	usbRxFrames       atomic.Uint64
	usbTxFrames       atomic.Uint64
	usbRxErrors       atomic.Uint64
	usbTxErrors       atomic.Uint64
	socketCANRxFrames atomic.Uint64
	socketCANTxFrames atomic.Uint64
	socketCANRxErrors atomic.Uint64
	socketCANTxErrors atomic.Uint64
	conversionErrors  atomic.Uint64
}

// Statistics is a non-atomic snapshot captured field-by-field, per
// spec.md §4.5's statistics contract.
type Statistics struct {
	USBRxFrames       uint64
	USBTxFrames       uint64
	USBRxErrors       uint64
	USBTxErrors       uint64
	SocketCANRxFrames uint64
	SocketCANTxFrames uint64
	SocketCANRxErrors uint64
	SocketCANTxErrors uint64
	ConversionErrors  uint64
}

// Bridge owns a CAN socket and a USB adapter and forwards frames between
// them. Not copyable: the forwarding goroutines close over a pointer to it.
type Bridge struct {
	_ noCopy

	canSocket cansocket.CANSocket
	adapter   *usbadapter.Adapter
	cfg       config.Config

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	stats stats

	cbMu       sync.Mutex
	onUSBToCAN USBToCANCallback
	onCANToUSB CANToUSBCallback
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New constructs a Bridge, sending the initial ConfigFrame derived from cfg
// to the adapter. Failure to configure the adapter aborts construction with
// DeviceConfigError.
func New(canSocket cansocket.CANSocket, adapter *usbadapter.Adapter, cfg config.Config) (*Bridge, error) {
	const op = "bridge.new"

	version := wire.CANVersionStdFixed
	if cfg.FilterID > 0x7FF || cfg.FilterMask > 0x7FF {
		version = wire.CANVersionExtFixed
	}
	autoRTX := wire.RTXAuto
	if !cfg.AutoRetransmit {
		autoRTX = wire.RTXOff
	}
	configFrame, err := frame.NewConfigFrameBuilder().
		WithCANVersion(version).
		WithType(wire.TypeConfFixed).
		WithBaudRate(cfg.CANBaudRate).
		WithMode(cfg.CANMode).
		WithAutoRTX(autoRTX).
		WithFilter(cfg.FilterID).
		WithMask(cfg.FilterMask).
		Build()
	if err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	if err := adapter.SendFrame(configFrame); err != nil {
		return nil, coerrors.Newf(coerrors.KindDeviceConfigError, op, "send config frame: %v", err)
	}

	return &Bridge{
		canSocket: canSocket,
		adapter:   adapter,
		cfg:       cfg,
	}, nil
}

// SetUSBToCANCallback installs cb, replacing any previous registration.
func (b *Bridge) SetUSBToCANCallback(cb USBToCANCallback) {
	b.cbMu.Lock()
	defer b.cbMu.Unlock()
	b.onUSBToCAN = cb
}

// SetCANToUSBCallback installs cb, replacing any previous registration.
func (b *Bridge) SetCANToUSBCallback(cb CANToUSBCallback) {
	b.cbMu.Lock()
	defer b.cbMu.Unlock()
	b.onCANToUSB = cb
}

// Start spawns both forwarding threads. Idempotent: returns false if the
// bridge is already running.
func (b *Bridge) Start() bool {
	if !b.running.CompareAndSwap(false, true) {
		return false
	}
	b.stopCh = make(chan struct{})
	b.wg.Add(2)
	go b.usbToCANLoop()
	go b.canToUSBLoop()
	logging.L().Info("bridge_started",
		"usb_device", b.cfg.USBDevicePath, "socketcan_interface", b.cfg.SocketCANInterface)
	return true
}

// Stop sets running to false, closes stopCh, and joins both forwarding
// threads. Statistics remain observable afterward; restart requires a new
// Bridge.
func (b *Bridge) Stop() error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	close(b.stopCh)
	b.wg.Wait()
	logging.L().Info("bridge_stopped")
	return nil
}

// Close stops the bridge if running, then closes the owned adapter and CAN
// socket.
func (b *Bridge) Close() error {
	_ = b.Stop()
	adapterErr := b.adapter.Close()
	socketErr := b.canSocket.Close()
	if adapterErr != nil {
		return adapterErr
	}
	return socketErr
}

func (b *Bridge) usbToCANLoop() {
	defer b.wg.Done()
	timeoutMs := int(b.cfg.USBReadTimeoutMs)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		vf, err := b.adapter.ReceiveVariableFrame(timeoutMs)
		if err != nil {
			if coerrors.Is(err, coerrors.KindTimeout) {
				continue
			}
			b.stats.usbRxErrors.Add(1)
			metrics.IncUsbRxError()
			continue
		}
		b.stats.usbRxFrames.Add(1)
		metrics.IncUsbRx()

		fr, err := toCANFrame(vf)
		if err != nil {
			b.stats.conversionErrors.Add(1)
			metrics.IncConversionError()
			continue
		}
		if err := b.canSocket.Send(fr); err != nil {
			b.stats.socketCANTxErrors.Add(1)
			metrics.IncSocketCANTxError()
			continue
		}
		b.stats.socketCANTxFrames.Add(1)
		metrics.IncSocketCANTx()

		b.cbMu.Lock()
		cb := b.onUSBToCAN
		b.cbMu.Unlock()
		if cb != nil {
			cb(vf, fr)
		}
	}
}

func (b *Bridge) canToUSBLoop() {
	defer b.wg.Done()
	timeoutMs := int(b.cfg.SocketCANReadTimeoutMs)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		fr, ok, err := b.canSocket.Receive(timeoutMs)
		if err != nil {
			b.stats.socketCANRxErrors.Add(1)
			metrics.IncSocketCANRxError()
			continue
		}
		if !ok {
			continue
		}
		b.stats.socketCANRxFrames.Add(1)
		metrics.IncSocketCANRx()

		vf, err := fromCANFrame(fr)
		if err != nil {
			b.stats.conversionErrors.Add(1)
			metrics.IncConversionError()
			continue
		}
		if err := b.adapter.SendFrame(vf); err != nil {
			b.stats.usbTxErrors.Add(1)
			metrics.IncUsbTxError()
			continue
		}
		b.stats.usbTxFrames.Add(1)
		metrics.IncUsbTx()

		b.cbMu.Lock()
		cb := b.onCANToUSB
		b.cbMu.Unlock()
		if cb != nil {
			cb(fr, vf)
		}
	}
}

// GetStatistics returns a snapshot of the bridge's forwarding counters.
func (b *Bridge) GetStatistics() Statistics {
	return Statistics{
		USBRxFrames:       b.stats.usbRxFrames.Load(),
		USBTxFrames:       b.stats.usbTxFrames.Load(),
		USBRxErrors:       b.stats.usbRxErrors.Load(),
		USBTxErrors:       b.stats.usbTxErrors.Load(),
		SocketCANRxFrames: b.stats.socketCANRxFrames.Load(),
		SocketCANTxFrames: b.stats.socketCANTxFrames.Load(),
		SocketCANRxErrors: b.stats.socketCANRxErrors.Load(),
		SocketCANTxErrors: b.stats.socketCANTxErrors.Load(),
		ConversionErrors:  b.stats.conversionErrors.Load(),
	}
}

// ResetStatistics zeros every counter in place. Each field is its own
// atomic, so this is safe to call while the forwarding loops are running;
// a bulk b.stats = stats{} overwrite would race with their concurrent
// .Add(1) calls.
func (b *Bridge) ResetStatistics() {
	b.stats.usbRxFrames.Store(0)
	b.stats.usbTxFrames.Store(0)
	b.stats.usbRxErrors.Store(0)
	b.stats.usbTxErrors.Store(0)
	b.stats.socketCANRxFrames.Store(0)
	b.stats.socketCANTxFrames.Store(0)
	b.stats.socketCANRxErrors.Store(0)
	b.stats.socketCANTxErrors.Store(0)
	b.stats.conversionErrors.Store(0)
}
