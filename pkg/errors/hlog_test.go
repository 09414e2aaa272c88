package errors_test

import (
	"testing"

	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewConfigurationErrorIsHlogError(t *testing.T) {
	err := errors.NewConfigurationError("pageSize", "must be a power of two")
	require.True(t, errors.IsHlogError(err))

	he, ok := errors.AsHlogError(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCodeConfigurationInvalid, he.Code())
	require.Equal(t, "pageSize", he.Details()["field"])
	require.Equal(t, "must be a power of two", he.Details()["issue"])
}

func TestNewAllocationStallErrorCarriesPageAndAddress(t *testing.T) {
	err := errors.NewAllocationStallError(3, 4096)

	he, ok := errors.AsHlogError(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCodeAllocationStall, he.Code())
	require.Equal(t, 3, he.Page())
	require.Equal(t, uint64(4096), he.LogicalAddress())
}

func TestNewDeviceErrorCarriesSegmentAndWrapsCause(t *testing.T) {
	cause := require.AnError
	err := errors.NewDeviceError(cause, 7)

	he, ok := errors.AsHlogError(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCodeDeviceIO, he.Code())
	require.Equal(t, uint64(7), he.Segment())
	require.ErrorIs(t, err, cause)
}

func TestNewDeviceErrorCarriesDeviceErrorCode(t *testing.T) {
	err := errors.NewDeviceError(nil, 7).WithDeviceErrorCode(5)

	he, ok := errors.AsHlogError(err)
	require.True(t, ok)
	require.Equal(t, uint64(7), he.Segment())
	require.Equal(t, 5, he.DeviceErrorCode())
}

func TestNewOversizedObjectErrorReportsSize(t *testing.T) {
	err := errors.NewOversizedObjectError(3 << 30)

	he, ok := errors.AsHlogError(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCodeOversizedObject, he.Code())
	require.Equal(t, int64(3<<30), he.Details()["sizeBytes"])
}

func TestHlogErrorFluentSettersPreserveType(t *testing.T) {
	err := errors.NewHlogError(nil, errors.ErrorCodeDeviceIO, "boom").
		WithMessage("updated").
		WithCode(errors.ErrorCodeOversizedObject).
		WithDetail("k", "v").
		WithPage(1).
		WithLogicalAddress(64).
		WithSegment(2)

	require.Equal(t, "updated", err.Error())
	require.Equal(t, errors.ErrorCodeOversizedObject, err.Code())
	require.Equal(t, "v", err.Details()["k"])
	require.Equal(t, 1, err.Page())
	require.Equal(t, uint64(64), err.LogicalAddress())
	require.Equal(t, uint64(2), err.Segment())
}

func TestIsHlogErrorFalseForUnrelatedError(t *testing.T) {
	require.False(t, errors.IsHlogError(require.AnError))

	_, ok := errors.AsHlogError(require.AnError)
	require.False(t, ok)
}

func TestGetErrorCodeFallsBackToInternalForPlainError(t *testing.T) {
	require.Equal(t, errors.ErrorCodeInternal, errors.GetErrorCode(require.AnError))
}

func TestGetErrorDetailsEmptyForPlainError(t *testing.T) {
	details := errors.GetErrorDetails(require.AnError)
	require.Empty(t, details)
}
