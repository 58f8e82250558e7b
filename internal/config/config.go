// Package config parses the command-line flags and positional arguments
// shared by the eqregd and eqclient binaries.
package config

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

// DefaultMaxEquipment is the largest value the two-digit ID space can
// express ("01".."99").
const DefaultMaxEquipment = 99

// ServerConfig holds eqregd's runtime parameters.
type ServerConfig struct {
	Port         int
	MaxEquipment int
	LogLevel     eqlog.Level
	LogFile      string
}

// ClientConfig holds eqclient's runtime parameters.
type ClientConfig struct {
	ServerAddr string
	ServerPort int
	LogLevel   eqlog.Level
	LogFile    string
}

// ParseServer parses eqregd's flags and its single positional <port>
// argument out of args (typically os.Args[1:]).
func ParseServer(fs *flag.FlagSet, args []string) (ServerConfig, error) {
	var cfg ServerConfig
	var logLevel string

	fs.IntVar(&cfg.MaxEquipment, "max-equipment", DefaultMaxEquipment, "maximum number of concurrently registered equipment")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", "", "optional file to additionally log to")

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	if fs.NArg() != 1 {
		return ServerConfig{}, fmt.Errorf("usage: %s [flags] <port>", fs.Name())
	}

	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid port %q: %w", fs.Arg(0), err)
	}
	cfg.Port = port

	if cfg.MaxEquipment < 1 {
		cfg.MaxEquipment = 1
	}
	if cfg.MaxEquipment > 99 {
		cfg.MaxEquipment = 99
	}

	cfg.LogLevel = eqlog.ParseLevel(logLevel)

	return cfg, nil
}

// ParseClient parses eqclient's flags and its <server_addr> <port>
// positional arguments out of args.
func ParseClient(fs *flag.FlagSet, args []string) (ClientConfig, error) {
	var cfg ClientConfig
	var logLevel string

	fs.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", "", "optional file to additionally log to")

	if err := fs.Parse(args); err != nil {
		return ClientConfig{}, err
	}

	if fs.NArg() != 2 {
		return ClientConfig{}, fmt.Errorf("usage: %s [flags] <server_addr> <port>", fs.Name())
	}

	cfg.ServerAddr = fs.Arg(0)

	port, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return ClientConfig{}, fmt.Errorf("invalid port %q: %w", fs.Arg(1), err)
	}
	cfg.ServerPort = port

	cfg.LogLevel = eqlog.ParseLevel(logLevel)

	return cfg, nil
}
