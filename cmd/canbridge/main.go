// Command canbridge is the bridge's entrypoint: it loads configuration and
// the Object Dictionary, opens the USB adapter and two independent CAN
// sockets (one for the forwarding bridge, one shared by the SDO client and
// PDO manager), wires up the bridge/SDO/PDO/CiA 402 layers, optionally
// starts the Prometheus HTTP endpoint and mDNS advertisement, and runs
// until SIGINT/SIGTERM — the same shape as the teacher's
// cmd/can-server/main.go, generalized from "TCP hub server" to "CANopen
// bridge process".
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wsusbcan/bridge/internal/bridge"
	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/cia402"
	"github.com/wsusbcan/bridge/internal/config"
	"github.com/wsusbcan/bridge/internal/discovery"
	"github.com/wsusbcan/bridge/internal/logging"
	"github.com/wsusbcan/bridge/internal/metrics"
	"github.com/wsusbcan/bridge/internal/od"
	"github.com/wsusbcan/bridge/internal/pdo"
	"github.com/wsusbcan/bridge/internal/sdo"
	"github.com/wsusbcan/bridge/internal/serialport"
	"github.com/wsusbcan/bridge/internal/shutdown"
	"github.com/wsusbcan/bridge/internal/usbadapter"
)

func main() {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("canbridge %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if err := flags.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	l := logging.Setup("canbridge", flags.logFormat, flags.logLevel)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		l.Error("config_load_error", "error", err)
		os.Exit(1)
	}

	dict, err := od.Load(flags.odPath)
	if err != nil {
		l.Error("od_load_error", "error", err)
		os.Exit(1)
	}
	l.Info("od_loaded", "device", dict.DeviceName, "node_id", dict.NodeID, "objects_path", flags.odPath)

	shutdown.Install()

	port, err := serialport.Open(cfg.USBDevicePath, int(cfg.SerialBaudRate), 100*time.Millisecond)
	if err != nil {
		l.Error("usb_open_error", "device", cfg.USBDevicePath, "error", err)
		os.Exit(1)
	}
	adapter := usbadapter.New(port)

	// Two independent SocketCAN sockets onto the same interface: one owned
	// exclusively by the bridge's forwarding loop, one shared by the SDO
	// client and PDO manager. A raw CAN socket gets its own copy of every
	// bus frame from the kernel, so this is the correct way to give the
	// bridge and the CANopen stack independent read streams instead of
	// racing three goroutines on a single fd's blocking read().
	bridgeSocket, err := cansocket.Open(cfg.SocketCANInterface)
	if err != nil {
		l.Error("socketcan_open_error", "interface", cfg.SocketCANInterface, "error", err)
		os.Exit(1)
	}

	canopenSocket, err := cansocket.Open(cfg.SocketCANInterface)
	if err != nil {
		l.Error("socketcan_open_error", "interface", cfg.SocketCANInterface, "error", err)
		os.Exit(1)
	}

	br, err := bridge.New(bridgeSocket, adapter, cfg)
	if err != nil {
		l.Error("bridge_init_error", "error", err)
		os.Exit(1)
	}
	if !br.Start() {
		l.Error("bridge_start_error", "error", "already running")
		os.Exit(1)
	}
	l.Info("bridge_running", "usb_device", cfg.USBDevicePath, "socketcan_interface", cfg.SocketCANInterface)

	sdoClient := sdo.New(canopenSocket, dict)
	drive := cia402.New(sdoClient)
	if state, stateErr := drive.GetCurrentState(true); stateErr != nil {
		l.Warn("cia402_initial_state_unavailable", "error", stateErr)
	} else {
		l.Info("cia402_initial_state", "state", state.String())
	}

	pdoMgr := pdo.New(canopenSocket, int(cfg.SocketCANReadTimeoutMs))
	pdoMgr.Start()

	if flags.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		httpSrv := metrics.StartHTTP(flags.metricsAddr)
		defer func() { _ = httpSrv.Close() }()
	}
	metrics.SetReadinessFunc(func() bool { return !shutdown.ShouldStop() })

	var mdnsAdv *discovery.Advertisement
	if flags.mdnsEnable {
		port := 0
		if _, portStr, splitErr := net.SplitHostPort(flags.metricsAddr); splitErr == nil {
			port, _ = strconv.Atoi(portStr)
		}
		adv, advErr := discovery.Advertise(flags.mdnsName, port, dict.NodeID, dict.DeviceName, cfg.SocketCANInterface)
		if advErr != nil {
			l.Warn("mdns_start_failed", "error", advErr)
		} else {
			mdnsAdv = adv
			l.Info("mdns_started", "service", discovery.ServiceType, "node_id", dict.NodeID)
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	l.Info("shutdown_signal", "signal", sig.String())

	mdnsAdv.Shutdown()
	_ = pdoMgr.Stop()
	_ = br.Close()
	_ = canopenSocket.Close()
}
