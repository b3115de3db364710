// Command teesigner runs the enclave signing service.
//
// Usage:
//
//	teesigner [flags] [port]
//
// The single positional argument is the listen port (default 3031). The
// server binds to loopback only; the validator client is expected to run
// on the same host or behind a local proxy.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/teesigner/teesigner/attest"
	"github.com/teesigner/teesigner/beacon"
	"github.com/teesigner/teesigner/enclave"
	"github.com/teesigner/teesigner/keystore"
	"github.com/teesigner/teesigner/log"
	"github.com/teesigner/teesigner/server"
	"github.com/teesigner/teesigner/signer"
	"github.com/teesigner/teesigner/slashing"
)

// defaultPort is the listen port when no positional argument is given.
const defaultPort = 3031

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0"
var version = "v0.1.0-dev"

func main() {
	app := &cli.App{
		Name:      "teesigner",
		Usage:     "TEE remote signer for Ethereum validators",
		Version:   version,
		ArgsUsage: "[port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "sealed storage root",
				Value: "./etc",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "dummy-attestation",
				Usage: "serve deterministic dummy attestation evidence (development only)",
				Value: false,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	port := defaultPort
	if c.Args().Len() > 0 {
		if _, err := fmt.Sscanf(c.Args().First(), "%d", &port); err != nil || port <= 0 || port > 65535 {
			return cli.Exit(fmt.Sprintf("bad port %q", c.Args().First()), 1)
		}
	}

	level, err := zerolog.ParseLevel(c.String("verbosity"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("bad verbosity %q", c.String("verbosity")), 1)
	}
	log.SetDefault(log.New(level))
	logger := log.Default().Module("main")

	dataDir := c.String("data-dir")

	sealer, err := enclave.NewAESGCMSealer(measurementProvider(dataDir))
	if err != nil {
		return err
	}
	keys, err := keystore.Open(dataDir, sealer)
	if err != nil {
		return err
	}
	db, err := slashing.Open(dataDir, sealer)
	if err != nil {
		return err
	}

	var quoter attest.Quoter = attest.NewEPIDQuoter()
	if c.Bool("dummy-attestation") {
		logger.Warn("dummy attestation evidence enabled; quotes prove nothing")
		quoter = attest.NewDummyQuoter()
	}

	sgn := signer.New(keys, db, beacon.MainnetForkSchedule(), signer.DefaultTimeout)
	srv := server.New(keys, sgn, attest.New(keys, quoter))

	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting enclave signing server",
		"version", version, "addr", addr, "data_dir", dataDir,
		"attestation", quoter.Type())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	}
}
