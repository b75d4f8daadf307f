package config

import (
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "dhtcrawler"

	// DefaultInterval is the minimum time between two session admissions.
	// Spreading sessions out gives each one a different view of the network.
	DefaultInterval = 60 * time.Second

	// DefaultMaxCrawlers is the maximum number of sessions running at once.
	// Every session owns its own UDP socket and node list.
	DefaultMaxCrawlers = 4

	// DefaultTimeout is how long a session waits for a new node once every
	// known node has been queried before it considers the crawl stalled.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestInterval is the minimum time between two query rounds.
	DefaultRequestInterval = 1 * time.Second

	// DefaultRequestsPerInterval is how many nodes are queried per round.
	DefaultRequestsPerInterval = 10

	// DefaultRandomRequests is how many extra queries about random known
	// nodes are sent to each queried node. They widen the area of the key
	// space each response covers.
	DefaultRandomRequests = 1

	// DefaultInitialNodesListSize is the initial node list capacity and the
	// amount it grows by when full.
	DefaultInitialNodesListSize = 4096

	// DefaultLogLevel is "info" on the 0-7 verbosity scale.
	DefaultLogLevel = 4

	// DefaultBind lets the kernel choose a port on all interfaces.
	DefaultBind = ":0"

	// DefaultInspectInterval is how often the supervisor asks the controller
	// to admit a session.
	DefaultInspectInterval = 5 * time.Second

	// DefaultRetryInterval is how long the supervisor backs off after a
	// session could not be created.
	DefaultRetryInterval = 30 * time.Second

	// MaxLogLevel is the most verbose log level ("verbose").
	MaxLogLevel = 7

	// LogFormatText and LogFormatJSON are the accepted log_format values.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Bootstrap is a well-known DHT node used to enter the network.
// At least one of IPv4 and IPv6 must be set.
type Bootstrap struct {
	// IPv4 is the node's IPv4 address, if any.
	IPv4 string `yaml:"ipv4,omitempty"`

	// IPv6 is the node's IPv6 address, if any.
	IPv6 string `yaml:"ipv6,omitempty"`

	// Port is the node's UDP port.
	Port int `yaml:"port"`

	// Key is the node's identity in base58.
	Key string `yaml:"key"`
}

// Config holds all configuration options for the crawler.
// It is loaded once at startup and treated as immutable afterwards;
// the crawler packages only ever read it.
type Config struct {
	// Interval is the minimum time between two session admissions.
	Interval time.Duration `yaml:"interval"`

	// MaxCrawlers is the maximum number of concurrently running sessions.
	MaxCrawlers int `yaml:"max_crawlers"`

	// Timeout is the per-session idle timeout.
	Timeout time.Duration `yaml:"timeout"`

	// RequestInterval is the minimum time between two query rounds.
	RequestInterval time.Duration `yaml:"request_interval"`

	// RequestsPerInterval is the number of nodes queried per round.
	RequestsPerInterval int `yaml:"requests_per_interval"`

	// RandomRequests is the number of extra randomized probes per queried node.
	RandomRequests int `yaml:"random_requests"`

	// InitialNodesListSize is the initial node list capacity and growth increment.
	InitialNodesListSize int `yaml:"initial_nodes_list_size"`

	// NodeLimit stops a session once it has discovered this many nodes.
	// Zero means unbounded.
	NodeLimit int `yaml:"node_limit"`

	// Bootstraps is the list of seed nodes every session starts from.
	Bootstraps []Bootstrap `yaml:"bootstraps"`

	// DataDir is where node list snapshots are written.
	DataDir string `yaml:"data_dir"`

	// LogLevel is the log verbosity from 0 (silent) to 7 (verbose).
	LogLevel int `yaml:"log_level"`

	// LogFile redirects logs to a file. Empty means stderr.
	LogFile string `yaml:"log_file,omitempty"`

	// LogFormat is "text" (default) or "json".
	LogFormat string `yaml:"log_format,omitempty"`

	// Database is the path to an IP2Location BIN database.
	// Empty disables location lookup.
	Database string `yaml:"database,omitempty"`

	// Bind is the local UDP address each session's DHT engine listens on.
	Bind string `yaml:"bind,omitempty"`

	// HistoryDir is the directory holding the session history database.
	// Empty disables history recording.
	HistoryDir string `yaml:"history_dir,omitempty"`

	// MetricsAddr is the listen address of the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// InspectInterval is how often the supervisor calls the controller.
	InspectInterval time.Duration `yaml:"inspect_interval"`

	// RetryInterval is the supervisor's back-off after a failed admission.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// NewConfig creates a new Config with default values.
// LoadConfigFile decodes on top of these, so keys missing from the file keep
// their defaults while keys set to zero stay zero.
func NewConfig() *Config {
	return &Config{
		Interval:             DefaultInterval,
		MaxCrawlers:          DefaultMaxCrawlers,
		Timeout:              DefaultTimeout,
		RequestInterval:      DefaultRequestInterval,
		RequestsPerInterval:  DefaultRequestsPerInterval,
		RandomRequests:       DefaultRandomRequests,
		InitialNodesListSize: DefaultInitialNodesListSize,
		DataDir:              filepath.Join(XDGDataDir(), "nodes"),
		LogLevel:             DefaultLogLevel,
		LogFormat:            LogFormatText,
		Bind:                 DefaultBind,
		HistoryDir:           XDGDataDir(),
		InspectInterval:      DefaultInspectInterval,
		RetryInterval:        DefaultRetryInterval,
	}
}

// Overrides holds values given on the command line.
// Zero fields leave the loaded configuration untouched.
type Overrides struct {
	// NodeLimit replaces node_limit when positive.
	NodeLimit int

	// LogLevel replaces log_level when positive.
	LogLevel int
}

// Apply merges the non-zero command line values into c.
func (c *Config) Apply(o Overrides) error {
	return mergo.Merge(c, Config{
		NodeLimit: o.NodeLimit,
		LogLevel:  o.LogLevel,
	}, mergo.WithOverride)
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/dhtcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors in
// errors.go, so callers can use errors.Is.
func (c *Config) Validate() error {
	if c.MaxCrawlers <= 0 {
		return ErrInvalidMaxCrawlers
	}
	if c.Interval < 0 || c.RequestInterval < 0 || c.InspectInterval <= 0 || c.RetryInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestsPerInterval <= 0 {
		return ErrInvalidRequestsPerInterval
	}
	if c.RandomRequests < 0 {
		return ErrInvalidRandomRequests
	}
	if c.InitialNodesListSize <= 0 {
		return ErrInvalidNodesListSize
	}
	if c.NodeLimit < 0 {
		return ErrInvalidNodeLimit
	}
	if c.LogLevel < 0 || c.LogLevel > MaxLogLevel {
		return ErrInvalidLogLevel
	}
	if c.LogFormat != "" && c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if len(c.Bootstraps) == 0 {
		return ErrNoBootstraps
	}
	for _, b := range c.Bootstraps {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single bootstrap entry. The key itself is not decoded
// here: a malformed key only disables that entry at crawl time.
func (b Bootstrap) Validate() error {
	if b.IPv4 == "" && b.IPv6 == "" {
		return ErrBootstrapNoAddress
	}
	if b.Port <= 0 || b.Port > 65535 {
		return ErrBootstrapInvalidPort
	}
	return nil
}
