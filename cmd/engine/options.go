package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

type options struct {
	DataDir       string `long:"data-dir" env:"LEADHUNT_DATA_DIR" default:"." description:"Directory holding config.yml, the database and the lock file"`
	DefaultConfig string `long:"config" env:"LEADHUNT_CONFIG" default:"config/config.yml" description:"Config copied into the data dir on first run"`
	Addr          string `long:"addr" env:"LEADHUNT_ADDR" description:"Listen address (overrides app.addr)"`
	DevLog        bool   `long:"dev-log" env:"LEADHUNT_DEV_LOG" description:"Human-readable development logging"`
	Memory        bool   `long:"memory" env:"LEADHUNT_MEMORY" description:"Keep leads in memory instead of sqlite"`
	NoRefresh     bool   `long:"no-refresh" env:"LEADHUNT_NO_REFRESH" description:"Skip the refresh at startup"`
}

// parseOptions returns nil options when help was printed.
func parseOptions(args []string) (*options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return &opts, nil
}
