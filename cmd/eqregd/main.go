// Command eqregd runs the equipmesh broker: it accepts equipment
// connections, admits and releases their two-digit IDs, and routes
// REQ_INF/RES_INF traffic between them.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"golang.org/x/net/netutil"

	"github.com/sandia-emesh/equipmesh/internal/broker"
	"github.com/sandia-emesh/equipmesh/internal/config"
	"github.com/sandia-emesh/equipmesh/internal/registry"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

func main() {
	fs := flag.NewFlagSet("eqregd", flag.ExitOnError)
	cfg, err := config.ParseServer(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := eqlog.New(os.Stderr, cfg.LogLevel)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "eqregd: opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.AddOutput(f, cfg.LogLevel, false)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		log.Error("listen: %v", err)
		os.Exit(1)
	}
	defer ln.Close()

	// Bound open accepted connections at one more than the equipment limit,
	// so a peer arriving at a full registry is still accepted and its
	// REQ_ADD is rejected by the router's admission control, the
	// authoritative capacity check.
	ln = netutil.LimitListener(ln, cfg.MaxEquipment+1)

	reg := registry.New(cfg.MaxEquipment, log)
	b := broker.New(reg, log)

	log.Info("eqregd listening on :%d (max equipment: %d)", cfg.Port, cfg.MaxEquipment)

	if err := b.Serve(ln); err != nil {
		log.Error("serve: %v", err)
		os.Exit(1)
	}
}
