package recordtypes_test

import (
	"bytes"
	"testing"

	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/internal/recordtypes"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecordAndExtractValueInline(t *testing.T) {
	page := make([]byte, 256)
	key := "hello"
	value := []byte("world")

	n := recordtypes.EncodeRecord(page, 0, key, value, false, 7, false)
	require.Equal(t, int(recordtypes.RecordSize(len(key), len(value))), n)

	got, err := recordtypes.ExtractValue(page, 0)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestEncodeRecordTruncatedHeaderErrors(t *testing.T) {
	page := make([]byte, 4)
	_, err := recordtypes.ExtractValue(page, 0)
	require.Error(t, err)
}

func TestRecordInfoRoundTrip(t *testing.T) {
	page := make([]byte, 64)
	recordtypes.EncodeRecord(page, 0, "k", []byte("v"), true, 99, false)

	info := hlog.GetRecordInfo(page)
	require.True(t, info.Tombstone())
	require.True(t, info.Valid())
	require.Equal(t, uint64(99), info.Version())
}

func TestHandlerSerializeDeserializePromotedValue(t *testing.T) {
	h := recordtypes.New()
	require.False(t, h.KeyHasObjects())
	require.True(t, h.ValueHasObjects())

	page := make([]byte, 4096)
	value := bytes.Repeat([]byte("x"), recordtypes.ValueInlineThreshold+1)
	n := recordtypes.EncodeRecord(page, 0, "big", value, false, 1, true)

	var out bytes.Buffer
	patchOffsets, written, resume, err := h.Serialize(page, 0, n, 1<<20, &out)
	require.NoError(t, err)
	require.Len(t, patchOffsets, 1)
	require.Equal(t, int64(len(value)), written)
	require.Equal(t, n, resume)
	require.Equal(t, value, out.Bytes())

	addr := hlog.NewAddressInfo(128, uint32(len(value)))
	hlog.PutAddressInfo(page[patchOffsets[0]:], addr)

	decodedAddr := hlog.GetAddressInfo(page[patchOffsets[0]:])
	require.Equal(t, uint32(128), decodedAddr.Offset())
	require.Equal(t, uint32(len(value)), decodedAddr.Size())

	r := bytes.NewReader(out.Bytes())
	require.NoError(t, h.Deserialize(page, 0, n, r))

	got, err := recordtypes.ExtractValue(page, 0)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestHandlerGetObjectInfoInlineRecordReturnsZero(t *testing.T) {
	h := recordtypes.New()
	page := make([]byte, 128)
	n := recordtypes.EncodeRecord(page, 0, "k", []byte("small"), false, 1, false)

	next, start, size, err := h.GetObjectInfo(page, 0, n, 1<<20)
	require.NoError(t, err)
	require.Equal(t, n, next)
	require.Zero(t, start)
	require.Zero(t, size)
}

func TestHandlerGetObjectInfoPromotedRecord(t *testing.T) {
	h := recordtypes.New()
	page := make([]byte, 2048)
	value := make([]byte, recordtypes.ValueInlineThreshold+10)
	n := recordtypes.EncodeRecord(page, 0, "k", value, false, 1, true)

	addr := hlog.NewAddressInfo(42, uint32(len(value)))
	patchOffsets, _, _, err := h.Serialize(page, 0, n, 1<<20, &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, patchOffsets, 1)
	hlog.PutAddressInfo(page[patchOffsets[0]:], addr)

	next, start, size, err := h.GetObjectInfo(page, 0, n, 1<<20)
	require.NoError(t, err)
	require.Equal(t, n, next)
	require.Equal(t, int64(42), start)
	require.Equal(t, int64(len(value)), size)
}

func TestRecordSize(t *testing.T) {
	require.Equal(t, recordtypes.RecordSize(3, 5), recordtypes.RecordSize(3, 5))
	require.Greater(t, recordtypes.RecordSize(3, 100), recordtypes.RecordSize(3, 5))
}
