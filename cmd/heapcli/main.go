package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"heapstore/config"
)

func main() {
	cfgPath := flag.String("config", "config.txt", "path to config file")
	dbPath := flag.String("dbpath", "", "database directory (overrides config if set)")
	flag.Parse()

	var cfg *config.Config
	if abs, err := filepath.Abs(*cfgPath); err == nil {
		if loaded, lerr := config.LoadConfig(abs); lerr == nil {
			cfg = loaded
		}
	}
	if cfg == nil {
		if *dbPath == "" {
			fmt.Fprintln(os.Stderr, "no config file found and -dbpath not set")
			os.Exit(2)
		}
		cfg = config.NewConfig(*dbPath)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	repl, err := NewREPL(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(2)
	}
	if err := repl.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(2)
	}
}
