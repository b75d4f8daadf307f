package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// We use package-level sentinel errors so callers can use errors.Is()
// while still getting human-readable messages.
var (
	// ErrInvalidMaxCrawlers is returned when max_crawlers is not positive.
	ErrInvalidMaxCrawlers = errors.New("invalid max_crawlers: must be positive")

	// ErrInvalidInterval is returned when an interval is negative, or when the
	// supervisor's inspect or retry interval is not positive.
	ErrInvalidInterval = errors.New("invalid interval: must be non-negative")

	// ErrInvalidTimeout is returned when the idle timeout is not positive.
	// A zero timeout would end every session before its first response.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRequestsPerInterval is returned when requests_per_interval is not positive.
	ErrInvalidRequestsPerInterval = errors.New("invalid requests_per_interval: must be positive")

	// ErrInvalidRandomRequests is returned when random_requests is negative.
	ErrInvalidRandomRequests = errors.New("invalid random_requests: must be non-negative")

	// ErrInvalidNodesListSize is returned when initial_nodes_list_size is not positive.
	ErrInvalidNodesListSize = errors.New("invalid initial_nodes_list_size: must be positive")

	// ErrInvalidNodeLimit is returned when node_limit is negative. Use 0 for unbounded.
	ErrInvalidNodeLimit = errors.New("invalid node_limit: must be non-negative")

	// ErrInvalidLogLevel is returned when log_level is outside 0-7.
	ErrInvalidLogLevel = errors.New("invalid log_level: must be between 0 and 7")

	// ErrInvalidLogFormat is returned when log_format is neither "text" nor "json".
	ErrInvalidLogFormat = errors.New("invalid log_format: must be text or json")

	// ErrNoDataDir is returned when data_dir is empty.
	ErrNoDataDir = errors.New("no data_dir specified")

	// ErrNoBootstraps is returned when the bootstrap list is empty.
	// Without a seed node a session can never discover anything.
	ErrNoBootstraps = errors.New("no bootstrap nodes specified")

	// ErrBootstrapNoAddress is returned when a bootstrap entry has neither ipv4 nor ipv6.
	ErrBootstrapNoAddress = errors.New("bootstrap node has no ipv4 or ipv6 address")

	// ErrBootstrapInvalidPort is returned when a bootstrap port is outside 1-65535.
	ErrBootstrapInvalidPort = errors.New("bootstrap node has an invalid port")
)
