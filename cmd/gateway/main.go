package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/app"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/config"
)

func main() {
	var (
		configPath string
		checkOnly  bool
	)
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file (defaults to internal/gateway/config/$ENV.yaml)")
	flag.BoolVar(&checkOnly, "check", false, "Validate the configuration, print the cluster layout and exit")
	flag.Parse()

	if checkOnly {
		if err := checkConfig(os.Stdout, configPath); err != nil {
			log.Fatalf("Invalid gateway configuration: %v", err)
		}
		return
	}

	gateway, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to start memcached gateway: %v", err)
	}

	if err := gateway.Run(); err != nil {
		log.Fatalf("Memcached gateway stopped with error: %v", err)
	}
}

// checkConfig loads and validates the configuration without dialing any
// server, then writes one line per cluster to w.
func checkConfig(w io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, cc := range cfg.Clusters {
		if _, err := cc.ClusterOptions(nil); err != nil {
			return fmt.Errorf("cluster %q: %w", cc.Name, err)
		}
		locator := cc.Locator
		if locator == "" {
			locator = "ketama"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", cc.Name, locator, strings.Join(cc.Endpoints, ","))
	}
	return nil
}
