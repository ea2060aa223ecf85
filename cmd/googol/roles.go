package main

import (
	"fmt"

	"github.com/cuemby/googol/pkg/barrel"
	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/downloader"
	"github.com/cuemby/googol/pkg/gateway"
	"github.com/cuemby/googol/pkg/queue"
	"github.com/cuemby/googol/pkg/stopwords"
	"github.com/cuemby/googol/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Run the directory service",
	Long: `Run the directory every other process registers with and resolves
its peers from. Listens on the registry address unless --addr is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if !cmd.Flags().Changed("addr") {
			_ = cmd.Flags().Set("addr", cfg.Registry)
		}

		p := newProcess("registry")
		dir := directory.New()
		p.server.RegisterDirectory(dir)
		if err := p.listen(cmd, "Directory"); err != nil {
			return err
		}
		p.serve()

		fmt.Printf("✓ Registry listening on %s\n", p.handle.Addr)
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		p.shutdown()
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Run the URL work queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		p := newProcess("queue")
		if err := p.connectRegistry(ctx); err != nil {
			return err
		}
		defer p.shutdown()

		q := queue.New(p.pool, cfg.Queue)
		p.server.RegisterQueue(q)
		if err := p.listen(cmd, types.QueueName); err != nil {
			return err
		}
		p.serve(q)
		if err := p.bind(ctx); err != nil {
			return err
		}

		fmt.Printf("✓ Queue running at %s\n", p.handle.Addr)
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		return nil
	},
}

var stopWordsCmd = &cobra.Command{
	Use:   "stopwords",
	Short: "Run the stop-word learner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		p := newProcess("stopwords")
		if err := p.connectRegistry(ctx); err != nil {
			return err
		}
		defer p.shutdown()

		learner := stopwords.New(cfg.StopWords)
		p.server.RegisterStopWords(learner)
		if err := p.listen(cmd, types.StopWordsName); err != nil {
			return err
		}
		p.serve()
		if err := p.bind(ctx); err != nil {
			return err
		}

		fmt.Printf("✓ Stop-word learner running at %s\n", p.handle.Addr)
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		return nil
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the search gateway",
	Long: `Run the gateway clients talk to. It needs a running queue, balances
searches over registered barrels and pushes statistics to subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		p := newProcess("gateway")
		if err := p.connectRegistry(ctx); err != nil {
			return err
		}
		defer p.shutdown()

		gw := gateway.New(cfg.Gateway, p.dir, p.pool)
		p.server.RegisterGateway(gw)
		if err := p.listen(cmd, types.GatewayName); err != nil {
			return err
		}
		p.serve(gw)

		if err := gw.Start(ctx); err != nil {
			return err
		}
		defer gw.Stop()

		if err := p.bind(ctx); err != nil {
			return err
		}

		fmt.Printf("✓ Gateway running at %s\n", p.handle.Addr)
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		return nil
	},
}

var barrelCmd = &cobra.Command{
	Use:   "barrel",
	Short: "Run a storage barrel",
	Long: `Run a storage barrel. It waits for the gateway, copies the index of an
active peer and only then starts accepting pages and searches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		id, _ := cmd.Flags().GetString("name")
		if id == "" {
			id = uuid.New().String()[:8]
		}

		p := newProcess("barrel")
		if err := p.connectRegistry(ctx); err != nil {
			return err
		}
		defer p.shutdown()

		if err := p.listen(cmd, types.BarrelName(id)); err != nil {
			return err
		}
		b := barrel.New(barrel.Config{Handle: p.handle, GatewayPoll: cfg.Barrel.GatewayPoll}, p.dir, p.pool)
		p.server.RegisterBarrel(b)
		p.admin.AddCheck("join", func() (bool, string) {
			state := b.State()
			return state == types.NodeStateActive, string(state)
		})
		p.serve(b)
		if err := p.bind(ctx); err != nil {
			return err
		}

		fmt.Printf("Barrel %s synchronizing...\n", p.handle.Name)
		if err := b.Start(ctx); err != nil {
			return err
		}
		defer b.Stop()

		fmt.Printf("✓ Barrel %s active at %s\n", p.handle.Name, p.handle.Addr)
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		return nil
	},
}

var downloaderCmd = &cobra.Command{
	Use:   "downloader",
	Short: "Run a crawl worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = uuid.New().String()
		}

		p := newProcess("downloader")
		if err := p.connectRegistry(ctx); err != nil {
			return err
		}
		defer p.shutdown()

		if err := p.listen(cmd, types.DownloaderName(id)); err != nil {
			return err
		}
		d := downloader.New(downloader.Config{
			ID:         id,
			Handle:     p.handle,
			Fetch:      cfg.Fetch,
			Multicast:  cfg.Downloader.Multicast,
			QueueRetry: cfg.Downloader.QueueRetry,
		}, p.dir, p.pool, nil)
		p.server.RegisterDownloader(d)
		p.serve()
		if err := p.bind(ctx); err != nil {
			return err
		}

		if err := d.Start(ctx); err != nil {
			return err
		}
		defer d.Stop()

		fmt.Printf("✓ Downloader %s crawling (%d barrels)\n", id, d.BarrelCount())
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		return nil
	},
}

func init() {
	addRoleFlags(registryCmd, "")
	addRoleFlags(queueCmd, "0.0.0.0:7001")
	addRoleFlags(gatewayCmd, "0.0.0.0:7002")
	addRoleFlags(stopWordsCmd, "0.0.0.0:7003")
	addRoleFlags(barrelCmd, "0.0.0.0:0")
	addRoleFlags(downloaderCmd, "0.0.0.0:0")

	barrelCmd.Flags().String("name", "", "Barrel name (random when empty)")
	downloaderCmd.Flags().String("id", "", "Downloader id (random when empty)")
}
