package main

import (
	"flag"
	"os"
	"strings"

	"github.com/unigw/unigw/internal/console"
	"github.com/unigw/unigw/internal/tui"

	log "github.com/sirupsen/logrus"
)

// main runs the terminal console and exits on unrecoverable errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("console failed")
		os.Exit(1)
	}
}

// run parses flags, loads preferences, and hands the terminal to the
// console program until it exits.
func run(args []string) error {
	fs := flag.NewFlagSet("unigw-console", flag.ContinueOnError)
	server := fs.String("server", "", "gateway base URL (overrides the saved preference)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	settings, err := console.LoadSettings()
	if err != nil {
		return err
	}

	serverURL := settings.ServerURL()
	if strings.TrimSpace(*server) != "" {
		serverURL = strings.TrimSpace(*server)
	}

	client, err := console.NewClient(serverURL)
	if err != nil {
		return err
	}
	gate := console.NewGate(client)

	return tui.Run(client, gate, settings)
}
