package main

import (
	"flag"
	"fmt"
)

// cliFlags is the set of command-line switches layered on top of
// internal/config's file+env precedence, mirroring the teacher's
// cmd/can-server/config.go parseFlags shape.
type cliFlags struct {
	configPath  string
	odPath      string
	logFormat   string
	logLevel    string
	metricsAddr string
	mdnsEnable  bool
	mdnsName    string
	showVersion bool
}

func parseFlags() *cliFlags {
	f := &cliFlags{}
	flag.StringVar(&f.configPath, "config", "", "Bridge JSON config file (overlays defaults; see internal/config)")
	flag.StringVar(&f.odPath, "od", "", "Object Dictionary JSON file (required unless -version)")
	flag.StringVar(&f.logFormat, "log-format", "text", "Log format: text|json")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g. :9100); empty disables")
	flag.BoolVar(&f.mdnsEnable, "mdns-enable", false, "Advertise this bridge over mDNS")
	flag.StringVar(&f.mdnsName, "mdns-name", "", "mDNS instance name (default canbridge-<hostname>)")
	flag.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	flag.Parse()
	return f
}

func (f *cliFlags) validate() error {
	if f.showVersion {
		return nil
	}
	if f.odPath == "" {
		return fmt.Errorf("-od is required")
	}
	switch f.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid -log-format: %s", f.logFormat)
	}
	switch f.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid -log-level: %s", f.logLevel)
	}
	return nil
}
