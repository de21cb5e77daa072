// Command stem is the per-host spawn daemon of spec.md §4.5: it serves
// the local control socket (Germinate/Replace) and, when a remote port is
// configured (RemotePort > 0), mints a fresh self-signed identity and
// bridges incoming remote streams to local cell sockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/cmn/nlog"
	"github.com/cellmesh/cell/config"
	"github.com/cellmesh/cell/stem"
	"github.com/cellmesh/cell/transport/remote"
)

var (
	configPath string
	dotEnv     bool
	remoteID   string // common name for the self-signed remote identity
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the TOML config file")
	flag.BoolVar(&dotEnv, "dotenv", false, "source a .env file before loading config (dev only)")
	flag.StringVar(&remoteID, "remote-identity", "stem", "common name for the remote transport's self-signed certificate")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			cos.ExitLogf(cos.ExitCrash, "stem: panic: %v", r)
		}
	}()
	flag.Parse()

	cfg, err := config.Load(configPath, dotEnv)
	if err != nil {
		cos.ExitLogf(cos.ExitCrash, "stem: failed to load configuration: %v", err)
	}
	if err := os.MkdirAll(cfg.RuntimeDir, 0o755); err != nil {
		cos.ExitLogf(cos.ExitCrash, "stem: failed to create runtime dir %q: %v", cfg.RuntimeDir, err)
	}
	if err := nlog.SetOutput(cfg.RuntimeDir, "stem"); err != nil {
		cos.ExitLogf(cos.ExitCrash, "stem: failed to set up logger: %v", err)
	}

	s := stem.New(cfg.RuntimeDir, cfg.DNADir)

	ctx, cancel := context.WithCancel(context.Background())
	installSignalHandler(cancel)

	errCh := make(chan error, 2)
	go func() {
		nlog.Infof("stem: serving control socket at %s/stem.sock", cfg.RuntimeDir)
		errCh <- s.ServeControl(ctx)
	}()

	if cfg.RemotePort > 0 {
		id, err := remote.NewIdentity(remoteID)
		if err != nil {
			cos.ExitLogf(cos.ExitCrash, "stem: failed to mint remote identity: %v", err)
		}
		addr := fmt.Sprintf(":%d", cfg.RemotePort)
		ln, err := remote.Listen(addr, id, s.BridgeStream)
		if err != nil {
			cos.ExitLogf(cos.ExitBindFailure, "stem: failed to bind remote transport on %s: %v", addr, err)
		}
		nlog.Infof("stem: serving remote transport on %s (pubkey %x)", addr, id.Pub)
		go func() {
			errCh <- ln.Serve(ctx)
		}()
	}

	<-ctx.Done()
	if err := <-errCh; err != nil && ctx.Err() == nil {
		nlog.Errorf("stem: exiting on error: %v", err)
	}
}

func installSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		nlog.Infof("stem: signal received, shutting down")
		cancel()
	}()
}
