// Command eqclient connects to an eqregd broker, registers as a piece of
// equipment, and drives an interactive shell for listing the directory,
// requesting information from other equipment, and leaving gracefully.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/sandia-emesh/equipmesh/internal/client"
	"github.com/sandia-emesh/equipmesh/internal/config"
	"github.com/sandia-emesh/equipmesh/internal/transport"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

func main() {
	fs := flag.NewFlagSet("eqclient", flag.ExitOnError)
	cfg, err := config.ParseClient(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := eqlog.New(os.Stderr, cfg.LogLevel)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "eqclient: opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.AddOutput(f, cfg.LogLevel, false)
	}

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		log.Error("dial %s: %v", addr, err)
		os.Exit(1)
	}

	sess := client.New(transport.New(nc), log)
	if err := sess.Register(); err != nil {
		log.Error("register: %v", err)
		os.Exit(1)
	}

	sh := client.NewShell(sess, os.Stdout)
	defer sh.Close()

	if err := sh.Run(); err != nil {
		log.Error("session: %v", err)
		os.Exit(1)
	}
}
