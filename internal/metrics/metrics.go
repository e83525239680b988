// Package metrics mirrors every counter both into Prometheus (for scraping)
// and into a plain atomic (for cheap in-process logging/snapshots), the
// same dual-path pattern the teacher's internal/metrics uses for its
// serial/socketcan/hub counters, retargeted at the bridge, SDO, and PDO
// domains.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wsusbcan/bridge/internal/logging"
)

// Prometheus counters
var (
	UsbRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usb_rx_frames_total",
		Help: "Total variable frames reassembled from the USB-CAN adapter.",
	})
	UsbTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usb_tx_frames_total",
		Help: "Total frames written to the USB-CAN adapter.",
	})
	UsbRxErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usb_rx_errors_total",
		Help: "Total USB adapter read/reassembly failures.",
	})
	UsbTxErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usb_tx_errors_total",
		Help: "Total USB adapter write failures.",
	})
	SocketCANRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_rx_frames_total",
		Help: "Total frames read from the SocketCAN interface.",
	})
	SocketCANTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_tx_frames_total",
		Help: "Total frames written to the SocketCAN interface.",
	})
	SocketCANRxErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_rx_errors_total",
		Help: "Total SocketCAN read failures (short read or I/O error).",
	})
	SocketCANTxErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_tx_errors_total",
		Help: "Total SocketCAN write failures.",
	})
	ConversionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversion_errors_total",
		Help: "Total frame conversion failures between can_frame and VariableFrame.",
	})
	SdoRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdo_requests_total",
		Help: "Total SDO requests issued.",
	})
	SdoTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdo_timeouts_total",
		Help: "Total SDO requests that timed out waiting for a response.",
	})
	SdoAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdo_aborts_total",
		Help: "Total SDO requests that received an abort response.",
	})
	PdoReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdo_received_total",
		Help: "Total PDOs demultiplexed and dispatched to callbacks.",
	})
	PdoSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdo_sent_total",
		Help: "Total RPDOs transmitted.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrUsbRead        = "usb_read"
	ErrUsbWrite       = "usb_write"
	ErrSocketCANRead  = "socketcan_read"
	ErrSocketCANWrite = "socketcan_write"
	ErrConversion     = "conversion"
	ErrSdoTimeout     = "sdo_timeout"
	ErrSdoAbort       = "sdo_abort"
	ErrPdoProtocol    = "pdo_protocol"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localUsbRx          uint64
	localUsbTx          uint64
	localUsbRxErr       uint64
	localUsbTxErr       uint64
	localSocketCANRx    uint64
	localSocketCANTx    uint64
	localSocketCANRxErr uint64
	localSocketCANTxErr uint64
	localConversionErr  uint64
	localSdoRequests    uint64
	localSdoTimeouts    uint64
	localSdoAborts      uint64
	localPdoReceived    uint64
	localPdoSent        uint64
	localErrors         uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	UsbRx             uint64
	UsbTx             uint64
	UsbRxErrors       uint64
	UsbTxErrors       uint64
	SocketCANRx       uint64
	SocketCANTx       uint64
	SocketCANRxErrors uint64
	SocketCANTxErrors uint64
	ConversionErrors  uint64
	SdoRequests       uint64
	SdoTimeouts       uint64
	SdoAborts         uint64
	PdoReceived       uint64
	PdoSent           uint64
	Errors            uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		UsbRx:             atomic.LoadUint64(&localUsbRx),
		UsbTx:             atomic.LoadUint64(&localUsbTx),
		UsbRxErrors:       atomic.LoadUint64(&localUsbRxErr),
		UsbTxErrors:       atomic.LoadUint64(&localUsbTxErr),
		SocketCANRx:       atomic.LoadUint64(&localSocketCANRx),
		SocketCANTx:       atomic.LoadUint64(&localSocketCANTx),
		SocketCANRxErrors: atomic.LoadUint64(&localSocketCANRxErr),
		SocketCANTxErrors: atomic.LoadUint64(&localSocketCANTxErr),
		ConversionErrors:  atomic.LoadUint64(&localConversionErr),
		SdoRequests:       atomic.LoadUint64(&localSdoRequests),
		SdoTimeouts:       atomic.LoadUint64(&localSdoTimeouts),
		SdoAborts:         atomic.LoadUint64(&localSdoAborts),
		PdoReceived:       atomic.LoadUint64(&localPdoReceived),
		PdoSent:           atomic.LoadUint64(&localPdoSent),
		Errors:            atomic.LoadUint64(&localErrors),
	}
}

func IncUsbRx() { UsbRxFrames.Inc(); atomic.AddUint64(&localUsbRx, 1) }
func IncUsbTx() { UsbTxFrames.Inc(); atomic.AddUint64(&localUsbTx, 1) }

func IncUsbRxError() {
	UsbRxErrors.Inc()
	atomic.AddUint64(&localUsbRxErr, 1)
	IncError(ErrUsbRead)
}

func IncUsbTxError() {
	UsbTxErrors.Inc()
	atomic.AddUint64(&localUsbTxErr, 1)
	IncError(ErrUsbWrite)
}

// IncSocketCANRx increments SocketCAN receive counters.
func IncSocketCANRx() {
	SocketCANRxFrames.Inc()
	atomic.AddUint64(&localSocketCANRx, 1)
}

// IncSocketCANTx increments SocketCAN transmit counters.
func IncSocketCANTx() {
	SocketCANTxFrames.Inc()
	atomic.AddUint64(&localSocketCANTx, 1)
}

func IncSocketCANRxError() {
	SocketCANRxErrors.Inc()
	atomic.AddUint64(&localSocketCANRxErr, 1)
	IncError(ErrSocketCANRead)
}

func IncSocketCANTxError() {
	SocketCANTxErrors.Inc()
	atomic.AddUint64(&localSocketCANTxErr, 1)
	IncError(ErrSocketCANWrite)
}

func IncConversionError() {
	ConversionErrors.Inc()
	atomic.AddUint64(&localConversionErr, 1)
	IncError(ErrConversion)
}

func IncSdoRequest() { SdoRequests.Inc(); atomic.AddUint64(&localSdoRequests, 1) }

func IncSdoTimeout() {
	SdoTimeouts.Inc()
	atomic.AddUint64(&localSdoTimeouts, 1)
	IncError(ErrSdoTimeout)
}

func IncSdoAbort() {
	SdoAborts.Inc()
	atomic.AddUint64(&localSdoAborts, 1)
	IncError(ErrSdoAbort)
}

func IncPdoReceived() { PdoReceived.Inc(); atomic.AddUint64(&localPdoReceived, 1) }
func IncPdoSent()     { PdoSent.Inc(); atomic.AddUint64(&localPdoSent, 1) }

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup)
// and pre-registers known error label series so the first error of each
// kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrUsbRead, ErrUsbWrite, ErrSocketCANRead, ErrSocketCANWrite,
		ErrConversion, ErrSdoTimeout, ErrSdoAbort, ErrPdoProtocol,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
