package barrel

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/types"
)

// Start waits for the gateway, registers with it and runs the join protocol.
// It returns once the barrel is ACTIVE; size reports keep flowing until Stop.
func (b *Barrel) Start(ctx context.Context) error {
	if err := b.connectGateway(ctx); err != nil {
		return err
	}

	go b.reportLoop()

	return b.Join(ctx)
}

// Stop ends background size reporting
func (b *Barrel) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// connectGateway polls the directory until the gateway is bound and accepts
// the registration.
func (b *Barrel) connectGateway(ctx context.Context) error {
	for {
		handle, err := directory.WaitFor(ctx, b.directory, types.GatewayName, b.config.GatewayPoll)
		if err != nil {
			return fmt.Errorf("failed to find gateway: %w", err)
		}

		gw, err := b.dialer.DialGateway(handle)
		if err == nil {
			err = gw.RegisterBarrel(ctx, b.handle)
		}
		if err == nil {
			b.SetGateway(gw)
			b.logger.Info().Str("gateway", handle.Addr).Msg("Registered with gateway")
			return nil
		}

		b.logger.Warn().Err(err).Msg("Gateway not ready, retrying")
		if err := sleep(ctx, b.config.GatewayPoll); err != nil {
			return fmt.Errorf("failed to register with gateway: %w", err)
		}
	}
}

// Join runs the SYNCHING to ACTIVE protocol: announce zero load, copy the
// state of the first ACTIVE peer found, then activate. It always ends ACTIVE.
func (b *Barrel) Join(ctx context.Context) error {
	if b.State() == types.NodeStateActive {
		return nil
	}

	b.report(ctx)

	peers, err := directory.Peers(ctx, b.directory, types.BarrelPrefix, b.handle.Name)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to enumerate peers")
	}

	synced := false
	for _, peer := range peers {
		ok, err := b.syncFrom(ctx, peer)
		if err != nil {
			b.logger.Warn().Err(err).Str("peer", peer.Name).Msg("Failed to sync from peer")
			continue
		}
		if ok {
			synced = true
			b.logger.Info().Str("peer", peer.Name).Msg("Synchronized from peer")
			break
		}
	}
	if !synced {
		b.logger.Info().Msg("No active peer found, starting as first barrel")
	}

	b.activate(ctx)
	return nil
}

// syncFrom copies a peer's state. It returns false without error when the
// peer is reachable but not ACTIVE.
func (b *Barrel) syncFrom(ctx context.Context, peer types.Handle) (bool, error) {
	svc, err := b.dialer.DialBarrel(peer)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}

	active, err := svc.IsActive(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to probe: %w", err)
	}
	if !active {
		return false, nil
	}

	index, err := svc.GetInvertedIndex(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to copy inverted index: %w", err)
	}
	links, err := svc.GetIncomingLinksMap(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to copy incoming links: %w", err)
	}
	pages, err := svc.GetPageMetadata(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to copy page metadata: %w", err)
	}

	b.Merge(index, links, pages)
	return true, nil
}

func (b *Barrel) activate(ctx context.Context) {
	b.mu.Lock()
	if b.state == types.NodeStateActive {
		b.mu.Unlock()
		return
	}
	b.state = types.NodeStateActive
	terms, targets := len(b.index), len(b.links)
	b.mu.Unlock()

	b.logger.Info().Int("terms", terms).Int("link_targets", targets).Msg("Barrel activated")

	b.report(ctx)
	b.notifyDownloaders(ctx)
}

// notifyDownloaders hands this barrel to every known downloader. Failures are ignored.
func (b *Barrel) notifyDownloaders(ctx context.Context) {
	workers, err := directory.Peers(ctx, b.directory, types.DownloaderPrefix, "")
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to enumerate downloaders")
		return
	}

	for _, w := range workers {
		svc, err := b.dialer.DialDownloader(w)
		if err == nil {
			err = svc.AddBarrel(ctx, b.handle)
		}
		if err != nil {
			b.logger.Debug().Err(err).Str("downloader", w.Name).Msg("Failed to notify downloader")
		}
	}
}

// report sends the current reported sizes to the gateway, if one is set
func (b *Barrel) report(ctx context.Context) {
	b.reportMu.Lock()
	defer b.reportMu.Unlock()

	if b.gateway == nil {
		return
	}

	terms, targets := b.ReportedSizes()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err := b.gateway.UpdateBarrelIndexSize(ctx, b.handle, terms, targets); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to report index size")
	}
}

// requestReport schedules a size report without blocking the caller
func (b *Barrel) requestReport() {
	select {
	case b.reportCh <- struct{}{}:
	default:
	}
}

func (b *Barrel) reportLoop() {
	for {
		select {
		case <-b.reportCh:
			b.report(context.Background())
		case <-b.stopCh:
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
