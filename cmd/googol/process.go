package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/googol/pkg/api"
	"github.com/cuemby/googol/pkg/client"
	"github.com/cuemby/googol/pkg/health"
	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	registryWait    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// process is the scaffolding shared by every role: a gRPC server, an
// optional admin HTTP server, the directory binding and a metrics collector.
type process struct {
	role      string
	handle    types.Handle
	pool      *client.Pool
	dir       types.DirectoryService
	server    *api.Server
	admin     *api.HealthServer
	collector *metrics.Collector
	bound     bool
	logger    zerolog.Logger
}

func newProcess(role string) *process {
	return &process{
		role:   role,
		pool:   client.NewPool(),
		server: api.NewServer(),
		admin:  api.NewHealthServer(role),
		logger: log.WithComponent(role),
	}
}

// addRoleFlags adds the listen and advertise flags every serving role takes
func addRoleFlags(cmd *cobra.Command, defaultAddr string) {
	cmd.Flags().String("addr", defaultAddr, "Address for the gRPC listener")
	cmd.Flags().String("advertise", "", "Address peers use to reach this process (defaults to the bound address)")
}

// connectRegistry waits for the directory to accept connections and dials it
func (p *process) connectRegistry(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, registryWait)
	defer cancel()

	p.logger.Info().Str("registry", cfg.Registry).Msg("Waiting for registry")
	check := health.NewTCPChecker(cfg.Registry)
	if err := health.WaitHealthy(waitCtx, check, health.Config{Interval: time.Second, Timeout: 2 * time.Second}); err != nil {
		return fmt.Errorf("registry %s not reachable: %w", cfg.Registry, err)
	}

	dir, err := p.pool.DialDirectory(cfg.Registry)
	if err != nil {
		return err
	}
	p.dir = dir
	return nil
}

// listen binds the gRPC listener and fixes the handle peers will use
func (p *process) listen(cmd *cobra.Command, name string) error {
	addr, _ := cmd.Flags().GetString("addr")
	advertise, _ := cmd.Flags().GetString("advertise")

	bound, err := p.server.Listen(addr)
	if err != nil {
		return err
	}
	if advertise == "" {
		advertise = advertiseAddr(bound)
	}
	p.handle = types.Handle{Name: name, Addr: advertise}
	return nil
}

// serve starts the gRPC server, the admin endpoints and the collector
func (p *process) serve(samplers ...metrics.Sampler) {
	go func() {
		if err := p.server.Serve(); err != nil {
			p.logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := p.admin.Start(cfg.MetricsAddr); err != nil {
				p.logger.Error().Err(err).Msg("Admin server stopped")
			}
		}()
	}

	if len(samplers) > 0 {
		p.collector = metrics.NewCollector(cfg.MetricsInterval, samplers...)
		p.collector.Start()
	}
}

// bind publishes the handle in the directory under its name
func (p *process) bind(ctx context.Context) error {
	if err := p.dir.Register(ctx, p.handle.Name, p.handle); err != nil {
		return fmt.Errorf("failed to register %s: %w", p.handle.Name, err)
	}
	p.bound = true
	p.logger.Info().Str("name", p.handle.Name).Str("addr", p.handle.Addr).Msg("Registered in directory")
	return nil
}

// shutdown unbinds the name and stops every server
func (p *process) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if p.bound {
		if err := p.dir.Unregister(ctx, p.handle.Name); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to unregister from directory")
		}
	}
	if p.collector != nil {
		p.collector.Stop()
	}
	p.server.Stop()
	if err := p.admin.Shutdown(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to stop admin server")
	}
	_ = p.pool.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// advertiseAddr replaces a wildcard host with the loopback address
func advertiseAddr(bound string) string {
	host, port, err := net.SplitHostPort(bound)
	if err != nil {
		return bound
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return bound
}
