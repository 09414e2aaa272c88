// Package ignite provides a high-performance key/value data store
// designed for fast read and write operations. It combines an in-memory hash
// table (Index) with a page-resident hybrid log: a bounded ring of in-memory
// pages backed by append-only segment files, with large values optionally
// promoted to a side object log at flush time. It is designed for
// applications requiring fast read and write operations, such as caching,
// session management, and real-time data processing, aiming to provide a
// simple, efficient, and reliable solution for in-memory data storage in Go
// applications.
package ignite

import (
	"context"
	"time"

	"github.com/iamNilotpal/ignite/internal/engine"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/iamNilotpal/ignite/pkg/options"
)

// Represents an instance of the Ignite key/value data store.
// It encapsulates the core engine responsible for data handling and
// the configuration options for this specific database instance.
//
// Instance is the primary entry point for interacting with the Ignite store,
// providing methods for setting, getting, and deleting key-value pairs.
type Instance struct {
	engine  *engine.Engine   // The underlying database engine handling read/write operations.
	options *options.Options // Configuration options applied to this DB instance.
}

// Creates and initializes a new Ignite DB instance.
func NewInstance(context context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	// Initialize a logger for the given service.
	log := logger.New(service)

	// Initialize default options. NewDefaultOptions returns SegmentOptions
	// and HlogOptions pointers shared with the package-level defaults, so
	// they're copied here before any functional option can mutate them —
	// otherwise a single instance's overrides would leak into every other
	// instance's (and every future NewInstance call's) defaults.
	defaultOpts := options.NewDefaultOptions()
	segOpts := *defaultOpts.SegmentOptions
	hlogOpts := *defaultOpts.HlogOptions
	defaultOpts.SegmentOptions = &segOpts
	defaultOpts.HlogOptions = &hlogOpts

	// Apply any provided functional options to override defaults.
	if len(opts) > 0 {
		for _, opt := range opts {
			opt(&defaultOpts)
		}
	}

	// Create a new internal engine with the initialized logger.
	eng, err := engine.New(context, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// Set stores a key-value pair in the database.
// If the key already exists, its value will be updated.
// The record is appended to the in-memory tail of the log; it reaches the
// log device when its page is flushed.
func (i *Instance) Set(context context.Context, key string, value []byte) error {
	return i.engine.Set(context, key, value)
}

// SetX stores a key-value pair exactly as Set does. The expiry is neither
// recorded nor enforced: the entry stays readable until it is overwritten
// or deleted.
func (i *Instance) SetX(context context.Context, key string, value []byte, expiry time.Duration) error {
	return i.engine.SetX(context, key, value, expiry)
}

// Get retrieves the value associated with the given key.
func (i *Instance) Get(context context.Context, key string) ([]byte, error) {
	return i.engine.Get(context, key)
}

// Delete removes a key-value pair from the database.
// The operation marks the key as deleted; the space it occupied is
// reclaimed once compaction trims the log behind it.
func (i *Instance) Delete(context context.Context, key string) error {
	return i.engine.Delete(context, key)
}

// Close shuts down the Ignite DB instance and releases all associated
// resources. Resident pages are not flushed first, so records written since
// their page was last flushed are not persisted.
func (i *Instance) Close(context context.Context) error {
	return i.engine.Close()
}
