package admission

import (
	"hash/fnv"
	"time"
)

// Identity identifies the caller of a file-access operation.
//
// Quota and block state are keyed by the (UserID, ClientID) pair.
// ClientType is carried as metadata only and never participates in
// the key, so the same user connecting through two client builds of
// the same client ID shares one usage record.
type Identity struct {
	// UserID is the authenticated user identifier
	UserID string

	// ClientID is the identifier of the connecting client instance
	ClientID string

	// ClientType describes the client software (metadata only)
	ClientType string
}

// identityKey is the composite map key for usage records and log entries.
type identityKey struct {
	userID   string
	clientID string
}

func (id Identity) key() identityKey {
	return identityKey{userID: id.UserID, clientID: id.ClientID}
}

// shard returns a stable shard index for this identity.
func (k identityKey) shard(n uint32) uint32 {
	h := fnv.New32a()
	h.Write([]byte(k.userID))
	h.Write([]byte{0})
	h.Write([]byte(k.clientID))
	return h.Sum32() % n
}

// Operation names a file-access operation subject to admission control.
type Operation string

const (
	OpListDirectory    Operation = "list_directory"
	OpReadFile         Operation = "read_file"
	OpSearchFiles      Operation = "search_files"
	OpGetFileMetadata  Operation = "get_file_metadata"
	OpCheckPermissions Operation = "check_permissions"
)

// ResourceLimits is the effective set of numeric caps consulted by
// admission checks. A single mutable set is active at any time; a
// matching RateLimitRule may override individual fields for one check.
type ResourceLimits struct {
	MaxConcurrentRequests   uint   `mapstructure:"max_concurrent_requests"`
	MaxRequestsPerMinute    uint   `mapstructure:"max_requests_per_minute"`
	MaxRequestsPerHour      uint   `mapstructure:"max_requests_per_hour"`
	MaxFileSize             uint64 `mapstructure:"max_file_size"`
	MaxDirectoryDepth       uint   `mapstructure:"max_directory_depth"`
	MaxSearchResults        uint   `mapstructure:"max_search_results"`
	MaxCacheSize            uint64 `mapstructure:"max_cache_size"`
	MaxMemoryUsage          uint64 `mapstructure:"max_memory_usage"`
	MaxDiskUsage            uint64 `mapstructure:"max_disk_usage"`
	MaxStreamingConnections uint   `mapstructure:"max_streaming_connections"`
}

// ThrottleConfig tunes the optional burst gate in front of the sliding
// windows. A zero BurstLimit disables the gate entirely.
type ThrottleConfig struct {
	WindowSize    time.Duration `mapstructure:"window_size"`
	MaxRequests   uint          `mapstructure:"max_requests"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	BurstLimit    uint          `mapstructure:"burst_limit"`
	DecayRate     float64       `mapstructure:"decay_rate"`
}

// OperationContext is the operation-specific parameter bag supplied by
// the calling handler. Recognized keys depend on the operation:
//
//	read_file:      file_size (bytes)
//	list_directory: depth
//	search_files:   max_results
//
// Unknown keys are ignored. Values are decoded weakly, so numeric
// strings and alternative integer widths are accepted.
type OperationContext map[string]any
