// Package catalog provides the target distribution profiles.
//
// Profiles come from three places, in order of precedence: YAML files in the
// local profile directory, the curated set compiled into the binary, and a
// remote repository fetched on demand and cached on disk.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
)

//go:embed profiles.yaml
var curatedYAML []byte

// Source records where a profile was loaded from.
type Source string

const (
	SourceCurated Source = "curated"
	SourceLocal   Source = "local"
	SourceCache   Source = "cache"
	SourceRemote  Source = "remote"
)

// Entry is a profile with its lookup key.
type Entry struct {
	Key            string `yaml:"key"`
	distro.Profile `yaml:",inline"`

	Source Source `yaml:"-"`
}

type catalogFile struct {
	Profiles []Entry `yaml:"profiles"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

const (
	defaultFetchAttempts = 3
	defaultFetchDelay    = time.Second
	maxProfileBytes      = 1 << 20
)

// Catalog resolves distribution names to profiles.
type Catalog struct {
	entries    []Entry
	profileDir string
	cacheDir   string
	repository string
	client     *http.Client
	logger     *zap.Logger
	clock      clock.Clock
	attempts   int
	delay      time.Duration
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithProfileDir overlays *.yaml profiles from dir on the curated set.
func WithProfileDir(dir string) Option { return func(c *Catalog) { c.profileDir = dir } }

// WithCacheDir stores fetched profiles under dir/profiles.
func WithCacheDir(dir string) Option { return func(c *Catalog) { c.cacheDir = dir } }

// WithRepository enables remote fetch from baseURL/<name>.yaml.
func WithRepository(baseURL string) Option {
	return func(c *Catalog) { c.repository = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets the client used for remote fetches.
func WithHTTPClient(hc *http.Client) Option { return func(c *Catalog) { c.client = hc } }

func WithLogger(l *zap.Logger) Option { return func(c *Catalog) { c.logger = l } }

// WithRetry sets how often a remote fetch is attempted on network failure
// and the initial delay between attempts. The delay doubles each time.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Catalog) { c.attempts, c.delay = attempts, delay }
}

// New loads the curated profiles and the local overlay.
func New(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
		clock:    clock.WallClock,
		attempts: defaultFetchAttempts,
		delay:    defaultFetchDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	var file catalogFile
	if err := yaml.Unmarshal(curatedYAML, &file); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSerialization, err, "decode curated profiles")
	}
	for _, e := range file.Profiles {
		e.Source = SourceCurated
		c.entries = append(c.entries, e)
	}

	if c.profileDir != "" {
		if err := c.loadOverlay(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadOverlay() error {
	paths, err := filepath.Glob(filepath.Join(c.profileDir, "*.yaml"))
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, path := range paths {
		key := strings.TrimSuffix(filepath.Base(path), ".yaml")
		e, err := readEntry(path, key)
		if err != nil {
			c.logger.Warn("skipping invalid profile", zap.String("path", path), zap.Error(err))
			continue
		}
		e.Source = SourceLocal
		c.put(*e)
	}
	return nil
}

// put replaces an entry with the same key or appends a new one.
func (c *Catalog) put(e Entry) {
	for i := range c.entries {
		if c.entries[i].Key == e.Key {
			c.entries[i] = e
			return
		}
	}
	c.entries = append(c.entries, e)
}

// Entries returns every known profile in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds a profile by exact key or name, then by case-insensitive
// substring of the name. It never touches the network.
func (c *Catalog) Lookup(name string) (*Entry, bool) {
	q := strings.TrimSpace(name)
	if q == "" {
		return nil, false
	}
	for i := range c.entries {
		e := &c.entries[i]
		if strings.EqualFold(e.Key, q) || strings.EqualFold(e.Name, q) {
			return e, true
		}
	}
	lower := strings.ToLower(q)
	for i := range c.entries {
		e := &c.entries[i]
		if strings.Contains(strings.ToLower(e.Name), lower) {
			return e, true
		}
	}
	return nil, false
}

// Resolve looks a profile up locally, then in the fetch cache, then in the
// remote repository when one is configured.
func (c *Catalog) Resolve(ctx context.Context, name string) (*Entry, error) {
	if e, ok := c.Lookup(name); ok {
		return e, nil
	}

	slug := Slug(name)
	if !slugPattern.MatchString(slug) {
		return nil, errdefs.New(errdefs.ErrUnsupportedDistro, fmt.Sprintf("invalid distribution name %q", name))
	}

	if c.cacheDir != "" {
		e, err := readEntry(c.cachePath(slug), slug)
		if err == nil {
			e.Source = SourceCache
			return e, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("ignoring unreadable cached profile", zap.String("name", slug), zap.Error(err))
		}
	}

	if c.repository == "" {
		return nil, errdefs.New(errdefs.ErrUnsupportedDistro, fmt.Sprintf("no profile for %q", name))
	}
	return c.fetch(ctx, slug)
}

// fetch downloads a profile, retrying network failures. A missing profile
// is not retried.
func (c *Catalog) fetch(ctx context.Context, slug string) (*Entry, error) {
	url := fmt.Sprintf("%s/%s.yaml", c.repository, slug)
	c.logger.Info("fetching profile", zap.String("url", url))

	var (
		data    []byte
		lastErr error
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			data, lastErr = c.download(ctx, url, slug)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errdefs.ErrNetwork) || ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			c.logger.Warn("profile fetch failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		},
		Attempts:    c.attempts,
		Delay:       c.delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if lastErr == nil {
			lastErr = errdefs.Wrap(errdefs.ErrNetwork, err, "fetch "+url)
		}
		return nil, lastErr
	}

	e, err := decodeEntry(data, slug)
	if err != nil {
		return nil, err
	}
	e.Source = SourceRemote

	if c.cacheDir != "" {
		if err := fsutil.WriteFileAtomic(c.cachePath(slug), data, 0644); err != nil {
			c.logger.Warn("failed to cache profile", zap.String("name", slug), zap.Error(err))
		}
	}
	return e, nil
}

func (c *Catalog) download(ctx context.Context, url, slug string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrConfiguration, err, "build profile request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrNetwork, err, "fetch "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errdefs.New(errdefs.ErrUnsupportedDistro, fmt.Sprintf("no profile for %q in %s", slug, c.repository))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.New(errdefs.ErrNetwork, fmt.Sprintf("fetch %s: %s", url, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrNetwork, err, "read "+url)
	}
	return data, nil
}

func (c *Catalog) cachePath(slug string) string {
	return filepath.Join(c.cacheDir, "profiles", slug+".yaml")
}

// Slug normalizes a distribution name into a file and URL component.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func readEntry(path, key string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeEntry(data, key)
}

func decodeEntry(data []byte, key string) (*Entry, error) {
	var e Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSerialization, err, "decode profile "+key)
	}
	if e.Key == "" {
		e.Key = key
	}
	if err := Validate(&e.Profile); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the fields a migration depends on and canonicalizes the
// family name.
func Validate(p *distro.Profile) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errdefs.New(errdefs.ErrConfiguration, "profile has no name")
	case p.Family == "":
		return errdefs.New(errdefs.ErrConfiguration, fmt.Sprintf("profile %q has no family", p.Name))
	case len(p.PackageManager.Install) == 0:
		return errdefs.New(errdefs.ErrConfiguration, fmt.Sprintf("profile %q has no install command", p.Name))
	}
	family, err := distro.ParseFamily(string(p.Family))
	if err != nil {
		return errdefs.Wrap(errdefs.ErrConfiguration, err, fmt.Sprintf("profile %q", p.Name))
	}
	p.Family = family
	return nil
}
