package errors

// HlogError is a specialized error type for the page-resident log allocator.
// It embeds baseError the same way StorageError and IndexError do, adding
// the context an allocator caller needs to decide whether to retry, log and
// move on, or quiesce the whole store.
type HlogError struct {
	*baseError

	// page identifies the ring-buffer page slot involved, when applicable.
	page int

	// logicalAddress identifies the logical address being translated,
	// allocated, flushed, or read when the error occurred.
	logicalAddress uint64

	// segment identifies the log or object-log segment involved.
	segment uint64

	// deviceErrorCode is the raw, device-specific completion code a Device
	// implementation reported (0 when not applicable/unknown).
	deviceErrorCode int
}

// NewHlogError creates a new allocator-specific error with the provided
// context.
func NewHlogError(err error, code ErrorCode, msg string) *HlogError {
	return &HlogError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while preserving the HlogError type.
func (he *HlogError) WithMessage(msg string) *HlogError {
	he.baseError.WithMessage(msg)
	return he
}

// WithCode sets the error code while preserving the HlogError type.
func (he *HlogError) WithCode(code ErrorCode) *HlogError {
	he.baseError.WithCode(code)
	return he
}

// WithDetail adds contextual information while preserving the HlogError type.
func (he *HlogError) WithDetail(key string, value any) *HlogError {
	he.baseError.WithDetail(key, value)
	return he
}

// WithPage records which ring-buffer page slot was involved.
func (he *HlogError) WithPage(page int) *HlogError {
	he.page = page
	return he
}

// WithLogicalAddress records which logical address was being processed.
func (he *HlogError) WithLogicalAddress(addr uint64) *HlogError {
	he.logicalAddress = addr
	return he
}

// WithSegment records which log or object-log segment was involved.
func (he *HlogError) WithSegment(segment uint64) *HlogError {
	he.segment = segment
	return he
}

// WithDeviceErrorCode records the raw completion code a Device reported, so
// callers that need to distinguish device-specific failure reasons (rather
// than just "I/O failed") can recover it from the error.
func (he *HlogError) WithDeviceErrorCode(code int) *HlogError {
	he.deviceErrorCode = code
	return he
}

// Page returns the ring-buffer page slot involved in the error.
func (he *HlogError) Page() int { return he.page }

// LogicalAddress returns the logical address being processed when the
// error occurred.
func (he *HlogError) LogicalAddress() uint64 { return he.logicalAddress }

// Segment returns the log or object-log segment involved in the error.
func (he *HlogError) Segment() uint64 { return he.segment }

// DeviceErrorCode returns the raw completion code a Device reported, or 0 if
// none was recorded.
func (he *HlogError) DeviceErrorCode() int { return he.deviceErrorCode }

// NewConfigurationError builds the error raised synchronously when an
// allocator is constructed with an invalid configuration: object log
// required but not provided, page size not a power of two, or sector size
// not a power of two.
func NewConfigurationError(field string, issue string) *HlogError {
	return NewHlogError(nil, ErrorCodeConfigurationInvalid, "invalid hlog configuration").
		WithDetail("field", field).
		WithDetail("issue", issue)
}

// NewAllocationStallError builds the non-fatal error Allocate returns when
// the target page is not yet materialized or not writable. The caller is
// expected to refresh its epoch and retry.
func NewAllocationStallError(page int, logicalAddr uint64) *HlogError {
	return NewHlogError(nil, ErrorCodeAllocationStall, "allocation stalled: page not ready").
		WithPage(page).
		WithLogicalAddress(logicalAddr)
}

// NewDeviceError wraps a non-zero I/O completion code. It is logged and
// propagated to the user completion callback unchanged; the page status
// machine still advances so the slot is released and the system doesn't
// deadlock.
func NewDeviceError(cause error, segment uint64) *HlogError {
	return NewHlogError(cause, ErrorCodeDeviceIO, "device I/O completed with an error").
		WithSegment(segment)
}

// NewOversizedObjectError builds the fatal error raised when an object-log
// fragment exceeds 2 GiB on read.
func NewOversizedObjectError(size int64) *HlogError {
	return NewHlogError(nil, ErrorCodeOversizedObject, "object-log fragment exceeds maximum fragment size").
		WithDetail("sizeBytes", size).
		WithDetail("maxBytes", int64(2)<<30)
}
