package stopwords

import (
	"context"
	"sort"
	"sync"

	"github.com/cuemby/googol/pkg/log"
	"github.com/rs/zerolog"
)

const (
	// DefaultMinDocs is the sample size below which no stop words are reported
	DefaultMinDocs = 100
	// DefaultThreshold is the document ratio a word must exceed
	DefaultThreshold = 0.9
)

// Config holds learner configuration
type Config struct {
	MinDocs   int     `yaml:"min_docs"`
	Threshold float64 `yaml:"threshold"`
}

// DefaultConfig returns the default learner thresholds
func DefaultConfig() Config {
	return Config{MinDocs: DefaultMinDocs, Threshold: DefaultThreshold}
}

// Learner counts, per word, how many documents contained it
type Learner struct {
	mu     sync.Mutex
	docs   int
	freq   map[string]int
	config Config
	logger zerolog.Logger
}

// New creates an empty learner. Zero config fields take defaults.
func New(cfg Config) *Learner {
	if cfg.MinDocs <= 0 {
		cfg.MinDocs = DefaultMinDocs
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	return &Learner{
		freq:   make(map[string]int),
		config: cfg,
		logger: log.WithComponent("stopwords"),
	}
}

// ProcessDoc records one document's unique words. Repeated words count once.
func (l *Learner) ProcessDoc(ctx context.Context, url string, words []string) error {
	seen := make(map[string]struct{}, len(words))

	l.mu.Lock()
	l.docs++
	docs := l.docs
	for _, w := range words {
		if _, dup := seen[w]; dup || w == "" {
			continue
		}
		seen[w] = struct{}{}
		l.freq[w]++
	}
	l.mu.Unlock()

	l.logger.Debug().Str("url", url).Int("documents", docs).Msg("Document processed")
	return nil
}

// GetStopWords returns, sorted, the words present in more than the
// threshold ratio of documents. It is empty until MinDocs documents were seen.
func (l *Learner) GetStopWords(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []string{}
	if l.docs < l.config.MinDocs {
		return out, nil
	}
	for w, n := range l.freq {
		if float64(n)/float64(l.docs) > l.config.Threshold {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Documents returns the number of processed documents
func (l *Learner) Documents() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.docs
}
