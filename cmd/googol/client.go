package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/googol/pkg/client"
	"github.com/cuemby/googol/pkg/health"
	"github.com/cuemby/googol/pkg/types"
	"github.com/spf13/cobra"
)

const topN = 10

// session is a client connection to the cluster through the registry
type session struct {
	pool *client.Pool
	dir  *client.Directory
}

func newSession() (*session, error) {
	pool := client.NewPool()
	dir, err := pool.DialDirectory(cfg.Registry)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &session{pool: pool, dir: dir}, nil
}

func (s *session) close() {
	_ = s.pool.Close()
}

func (s *session) gateway(ctx context.Context) (*client.Gateway, error) {
	h, err := s.dir.Resolve(ctx, types.GatewayName)
	if err != nil {
		return nil, fmt.Errorf("gateway not available: %w", err)
	}
	svc, err := s.pool.DialGateway(h)
	if err != nil {
		return nil, err
	}
	return svc.(*client.Gateway), nil
}

var indexCmd = &cobra.Command{
	Use:   "index URL",
	Short: "Queue a URL for crawling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		gw, err := s.gateway(cmd.Context())
		if err != nil {
			return err
		}
		msg, err := gw.IndexURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search TERM...",
	Short: "Search the index",
	Long: `Search the index for pages containing any of the terms.

With --page the results are ranked by incoming links and the given page of
ten results is returned.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		gw, err := s.gateway(cmd.Context())
		if err != nil {
			return err
		}
		results, err := gw.Search(cmd.Context(), types.WithPage(args, page))
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found")
			return nil
		}
		offset := 0
		if page > 1 {
			offset = (page - 1) * types.PageSize
		}
		for i, r := range results {
			fmt.Printf("%d. %s\n", offset+i+1, r.Metadata.Title)
			fmt.Printf("   %s\n", r.URL)
			fmt.Printf("   %s\n", r.Metadata.Citation)
		}
		return nil
	},
}

var linksCmd = &cobra.Command{
	Use:   "links URL",
	Short: "List pages linking to a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		gw, err := s.gateway(cmd.Context())
		if err != nil {
			return err
		}
		links, err := gw.GetIncomingLinks(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(links) == 0 {
			fmt.Println("No incoming links found")
			return nil
		}
		for _, l := range links {
			fmt.Println(l)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gateway statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		gw, err := s.gateway(ctx)
		if err != nil {
			return err
		}

		updates := make(chan *types.Statistics, 1)
		id, done, err := gw.Open(ctx, "", func(ctx context.Context, stats *types.Statistics) error {
			select {
			case updates <- stats:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			return err
		}
		defer func() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = gw.Unsubscribe(unsubCtx, id)
		}()

		var timeout <-chan time.Time
		if !watch {
			timeout = time.After(5 * time.Second)
		}
		for {
			select {
			case <-timeout:
				fmt.Println("No statistics published yet")
				return nil
			case stats := <-updates:
				printStatistics(stats)
				if !watch {
					return nil
				}
				fmt.Println()
			case <-done:
				return fmt.Errorf("statistics stream closed by gateway")
			case <-ctx.Done():
				return nil
			}
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cluster status",
	Long: `Show the queue size, the learned stop words, the registered processes
and the current gateway statistics. Admin endpoints given with --admin are probed for readiness.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		admins, _ := cmd.Flags().GetStringSlice("admin")
		ctx := cmd.Context()

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		names, err := s.dir.List(ctx, "")
		if err != nil {
			return fmt.Errorf("registry not available: %w", err)
		}
		fmt.Println("Registered processes:")
		for _, name := range names {
			h, err := s.dir.Resolve(ctx, name)
			if err != nil {
				continue
			}
			fmt.Printf("  %-40s %s\n", name, h.Addr)
		}
		fmt.Println()

		if h, err := s.dir.Resolve(ctx, types.QueueName); err == nil {
			q, err := s.pool.DialQueue(h)
			if err == nil {
				if size, err := q.GetQueueSize(ctx); err == nil {
					fmt.Printf("Queue size: %d\n\n", size)
				}
			}
		}

		if h, err := s.dir.Resolve(ctx, types.StopWordsName); err == nil {
			sw, err := s.pool.DialStopWords(h)
			if err == nil {
				if words, err := sw.GetStopWords(ctx); err == nil {
					fmt.Printf("%s\n\n", stopWordsLine(words, maxStopWords))
				}
			}
		}

		for _, addr := range admins {
			check := health.NewReadyChecker(addr)
			result := health.Run(ctx, check, health.DefaultConfig())
			fmt.Printf("  %-24s %s\n", addr, result.Message)
		}
		if len(admins) > 0 {
			fmt.Println()
		}

		gw, err := s.gateway(ctx)
		if err != nil {
			return err
		}
		snapshot := make(chan *types.Statistics, 1)
		id, _, err := gw.Open(ctx, "", func(ctx context.Context, stats *types.Statistics) error {
			select {
			case snapshot <- stats:
			default:
			}
			return nil
		})
		if err != nil {
			return err
		}
		defer func() { _ = gw.Unsubscribe(context.Background(), id) }()

		select {
		case stats := <-snapshot:
			printStatistics(stats)
		case <-time.After(2 * time.Second):
			fmt.Println("No statistics published yet")
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("page", 0, "Result page (ranks by incoming links)")
	statsCmd.Flags().Bool("watch", false, "Keep printing statistics as they change")
	statusCmd.Flags().StringSlice("admin", nil, "Admin addresses to probe for readiness")
}

func printStatistics(stats *types.Statistics) {
	fmt.Printf("Statistics (%s)\n", stats.GeneratedAt.Format(time.RFC3339))

	fmt.Println("Top searches:")
	for _, e := range top(stats.TopSearchTerms, topN) {
		fmt.Printf("  %-40s %d\n", e.key, e.count)
	}
	fmt.Println("Top consulted URLs:")
	for _, e := range top(stats.TopConsultedURLs, topN) {
		fmt.Printf("  %-60s %d\n", e.key, e.count)
	}

	fmt.Println("Barrels:")
	fmt.Printf("  %-24s %-10s %10s %10s %10s %10s\n", "NAME", "STATUS", "AVG MS", "REQUESTS", "TERMS", "LINKS")
	for _, b := range stats.Barrels {
		fmt.Printf("  %-24s %-10s %10.1f %10d %10d %10d\n",
			b.Name, b.Status, b.AvgResponseTimeMs, b.RequestCount, b.InvertedIndexCount, b.IncomingLinksCount)
	}
}

type entry struct {
	key   string
	count int
}

// top returns the n highest counts, ties broken by key
func top(m map[string]int, n int) []entry {
	out := make([]entry, 0, len(m))
	for k, v := range m {
		out = append(out, entry{strings.TrimSpace(k), v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

const maxStopWords = 20

// stopWordsLine summarizes the learned stop words, listing at most limit
func stopWordsLine(words []string, limit int) string {
	if len(words) == 0 {
		return "Stop words: none learned yet"
	}
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	line := fmt.Sprintf("Stop words (%d): %s", len(sorted), strings.Join(sorted[:min(len(sorted), limit)], ", "))
	if len(sorted) > limit {
		line += ", ..."
	}
	return line
}
