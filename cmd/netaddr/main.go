package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcuoli/go-netaddr/internal/config"
	"github.com/marcuoli/go-netaddr/pkg/netaddr"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/iface"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/oui"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/probe"
)

const usage = `usage: netaddr [flags] <command> [args]

commands:
  local                          address this machine should advertise
  resolve <host>                 resolve a host within the timeout
  match <pattern> <host> [port]  test a host against an IP pattern
  hostname <addr>...             reverse lookups, cached
  interfaces                     list eligible interfaces
  reach <addr>                   probe an address (ICMP, TCP echo, ARP)
  route <addr>                   local address used to reach addr
  version                        print the version

flags:
`

var errUsage = errors.New("usage")

type app struct {
	loc    *netaddr.Locator
	out    io.Writer
	prober probe.Prober
}

func main() {
	var (
		configPath string
		timeout    time.Duration
		preferIPv6 bool
		logLevel   string
		logFormat  string
		ouiPath    string
	)

	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	flag.DurationVar(&timeout, "timeout", 0, "Resolution timeout (overrides the configuration)")
	flag.BoolVar(&preferIPv6, "prefer-ipv6", false, "Prefer IPv6 addresses")
	flag.StringVar(&logLevel, "log-level", "", "Log level: error, warn, info, debug, trace")
	flag.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	flag.StringVar(&ouiPath, "oui", "", "Path of the IEEE oui.txt used for vendor names")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	if timeout > 0 {
		cfg.Resolver.Timeout = timeout
	}
	if preferIPv6 {
		cfg.Network.PreferIPv6 = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if ouiPath != "" {
		cfg.OUIDatabase = ouiPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Log, os.Stderr)
	setupDebugLogging(logger)

	loc := netaddr.New(cfg.Options())
	vendors := oui.New(cfg.OUIDatabase)
	loc.Scanner().Vendor = vendors.Name

	a := &app{
		loc:    loc,
		out:    os.Stdout,
		prober: probe.Chain{probe.ICMP{}, probe.TCPEcho{}, probe.ARP{}, probe.Neighbor{}},
	}

	ctx := context.Background()
	if err := a.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if strings.EqualFold(cfg.Format, config.FormatJSON) {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// setupDebugLogging routes library debug output into logger. Debug shows
// address selection; trace adds every lookup.
func setupDebugLogging(logger *logrus.Logger) {
	switch {
	case logger.IsLevelEnabled(logrus.TraceLevel):
		netaddr.SetDebugLevel(netaddr.DebugVerbose)
	case logger.IsLevelEnabled(logrus.DebugLevel):
		netaddr.SetDebugLevel(netaddr.DebugBasic)
	default:
		netaddr.SetDebugLevel(netaddr.DebugOff)
		return
	}
	netaddr.SetDebugLogger(func(component netaddr.Component, format string, args ...interface{}) {
		logger.WithField("component", string(component)).
			Debugf(netaddr.ComponentToPrefix(component)+" "+format, args...)
	})
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "local":
		fmt.Fprintln(a.out, a.loc.LocalHost(ctx))
		return nil

	case "resolve":
		if len(args) != 1 {
			return errUsage
		}
		addr, err := a.loc.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, addr)
		return nil

	case "match":
		if len(args) < 2 || len(args) > 3 {
			return errUsage
		}
		port := 0
		if len(args) == 3 {
			p, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[2], err)
			}
			port = p
		}
		ok, err := a.loc.Match(ctx, args[0], args[1], port)
		fmt.Fprintln(a.out, ok)
		return err

	case "hostname":
		if len(args) == 0 {
			return errUsage
		}
		for _, name := range a.loc.Cache().HostNames(ctx, args, 0) {
			fmt.Fprintln(a.out, name)
		}
		return nil

	case "interfaces":
		infos, err := a.loc.Scanner().Interfaces()
		if err != nil {
			return err
		}
		printInterfaces(a.out, infos)
		return nil

	case "reach":
		if len(args) != 1 {
			return errUsage
		}
		addr, err := a.loc.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		timeout := a.loc.Options().ProbeTimeout
		fmt.Fprintln(a.out, a.prober.Reachable(ctx, addr.Addr(), timeout))
		return nil

	case "route":
		if len(args) != 1 {
			return errUsage
		}
		addr, err := a.loc.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		src, err := iface.RouteSource(ctx, addr.Addr())
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, src)
		return nil

	case "version":
		fmt.Fprintln(a.out, netaddr.VersionInfo())
		return nil

	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func printInterfaces(w io.Writer, infos []iface.Info) {
	fmt.Fprintf(w, "%-5s %-12s %-18s %-24s %s\n", "INDEX", "NAME", "MAC", "VENDOR", "ADDRESSES")
	for _, info := range infos {
		fmt.Fprintf(w, "%-5d %-12s %-18s %-24s %s\n",
			info.Index, info.Name, macString(info.HardwareAddr), info.Vendor, joinAddrs(info.Addrs))
	}
}

func macString(mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return "-"
	}
	return mac.String()
}

func joinAddrs(addrs []netip.Addr) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
