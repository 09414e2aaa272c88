package hlog

import (
	"github.com/iamNilotpal/ignite/internal/metrics"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// errFlushAlreadyInProgress is returned when FlushPage is called on a slot
// whose previous flush has not yet completed — a slot may only have one
// flush in flight at a time.
var errFlushAlreadyInProgress = errors.NewHlogError(
	nil, errors.ErrorCodeAllocationStall, "flush already in progress for this page",
)

// deviceIOErr wraps an async write/read completion reporting a non-zero
// error code from the underlying device, preserving the raw code so a
// caller further up (a completion callback, a test) can inspect exactly
// which failure the device reported rather than just "I/O failed".
func deviceIOErr(seg uint64, errorCode int) error {
	return errors.NewDeviceError(nil, seg).WithDeviceErrorCode(errorCode)
}

// errConfigMissingObjectDevice is returned by New when the configuration
// declares out-of-line objects but no object-log device was supplied.
var errConfigMissingObjectDevice = errors.NewConfigurationError(
	"ObjectLogDevice", "required when ObjectLogEnabled is true",
)

func allocationStallErr(slot int, page uint64, offsetBits uint) error {
	metrics.AllocationStalls.Inc()
	return errors.NewAllocationStallError(slot, page<<offsetBits)
}
