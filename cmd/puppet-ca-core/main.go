// Command puppet-ca-core is the process entry point: it loads a JSON
// config (the "-config" convention the teacher family's commands all
// share), wires up the CA facade, and runs the requested subcommand.
// The HTTP boundary that serves agents is an external collaborator
// (spec §1); this binary exposes only initialization ("init") and CRL
// refresh ("refresh-crl").
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/puppetlabs/puppetserver-ca-core/ca"
	"github.com/puppetlabs/puppetserver-ca-core/caconfig"
	"github.com/puppetlabs/puppetserver-ca-core/calog"
)

func failOnError(log calog.Logger, err error, msg string) {
	if err != nil {
		log.AuditErrf("%s: %s", msg, err)
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

func main() {
	configFile := flag.String("config", "", "File path to the configuration file for this service")
	flag.Parse()

	log := calog.New()

	if *configFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: puppet-ca-core -config <file> <init|refresh-crl>")
		os.Exit(1)
	}
	subcommand := args[0]

	cfg, err := caconfig.Load(*configFile)
	failOnError(log, err, "reading config file")

	caSettings, err := cfg.CA.ToSettings()
	failOnError(log, err, "resolving CA settings")
	masterSettings := cfg.Master.ToSettings()

	registerer := prometheus.NewRegistry()
	metrics := ca.NewMetrics(registerer)
	facade := ca.New(log, clock.New(), metrics)

	if cfg.MetricsListenAddress != "" {
		go serveMetrics(log, cfg.MetricsListenAddress, registerer)
	}

	ctx := context.Background()
	switch subcommand {
	case "init":
		err := facade.Initialize(ctx, caSettings, masterSettings, cfg.MasterCertname, cfg.KeyBits)
		failOnError(log, err, "initializing CA")
		log.Info("initialization complete")
	case "refresh-crl":
		err := facade.RefreshCRL(ctx, caSettings)
		failOnError(log, err, "refreshing CRL")
		log.Info("CRL refreshed")
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", subcommand)
		os.Exit(1)
	}
}

func serveMetrics(log calog.Logger, addr string, registerer *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.AuditErrf("metrics server on %s failed: %s", addr, err)
	}
}
