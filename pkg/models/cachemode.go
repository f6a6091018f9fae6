package models

// CacheMode selects how the page cache participates in a crawl
type CacheMode string

const (
	// CacheModeBypass fetches every page fresh and does not touch the cache
	CacheModeBypass CacheMode = "bypass"
	// CacheModeEnabled serves cached pages when present and stores fresh fetches
	CacheModeEnabled CacheMode = "enabled"
	// CacheModeReadOnly serves cached pages but never writes new entries
	CacheModeReadOnly CacheMode = "read_only"
	// CacheModeWriteOnly stores fresh fetches but never serves from the cache
	CacheModeWriteOnly CacheMode = "write_only"
	// CacheModeDisabled skips the cache entirely, reads and writes both
	CacheModeDisabled CacheMode = "disabled"
)

// String returns the string representation of the cache mode
func (m CacheMode) String() string {
	return string(m)
}

// IsValid checks if the cache mode is one of the defined constants
// The zero value is not valid; Validate defaults it before use
func (m CacheMode) IsValid() bool {
	switch m {
	case CacheModeBypass, CacheModeEnabled, CacheModeReadOnly, CacheModeWriteOnly, CacheModeDisabled:
		return true
	default:
		return false
	}
}

// Reads reports whether this mode consults the cache before fetching
func (m CacheMode) Reads() bool {
	return m == CacheModeEnabled || m == CacheModeReadOnly
}

// Writes reports whether this mode stores fetched pages in the cache
func (m CacheMode) Writes() bool {
	return m == CacheModeEnabled || m == CacheModeWriteOnly
}
