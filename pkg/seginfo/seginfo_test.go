package seginfo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"github.com/stretchr/testify/require"
)

func TestGenerateNameAndParseSegmentIDRoundTrip(t *testing.T) {
	name := seginfo.GenerateName(42, "seg")
	id, err := seginfo.ParseSegmentID(name, "seg")
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)
}

func TestGenerateNameWithEmptyPrefixStillParsesAsInvalid(t *testing.T) {
	name := seginfo.GenerateName(1, "")
	require.Contains(t, name, "INVALID_PREFIX")
}

func TestParseSegmentIDRejectsWrongPrefix(t *testing.T) {
	_, err := seginfo.ParseSegmentID("other_00001_123.seg", "seg")
	require.Error(t, err)
}

func TestParseSegmentIDRejectsMalformedName(t *testing.T) {
	_, err := seginfo.ParseSegmentID("seg_onlyonepart.seg", "seg")
	require.Error(t, err)
}

func TestGetLastSegmentNamePicksHighestID(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"seg_00001_100.seg", "seg_00003_300.seg", "seg_00002_200.seg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}

	last, err := seginfo.GetLastSegmentName(filepath.Dir(dir), filepath.Base(dir), "seg")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "seg_00003_300.seg"), last)
}

func TestGetLastSegmentNameEmptyDirReturnsEmptyString(t *testing.T) {
	dir := t.TempDir()
	last, err := seginfo.GetLastSegmentName(filepath.Dir(dir), filepath.Base(dir), "seg")
	require.NoError(t, err)
	require.Empty(t, last)
}

func TestGetLastSegmentNameRejectsBlankArgs(t *testing.T) {
	_, err := seginfo.GetLastSegmentName("", "sub", "seg")
	require.Error(t, err)
}

func TestGetLastSegmentInfoBootstrapCase(t *testing.T) {
	dir := t.TempDir()
	id, info, err := seginfo.GetLastSegmentInfo(filepath.Dir(dir), filepath.Base(dir), "seg")
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.Nil(t, info)
}

func TestGetLastSegmentInfoReturnsLatestFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg_00005_999.seg")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	id, info, err := seginfo.GetLastSegmentInfo(filepath.Dir(dir), filepath.Base(dir), "seg")
	require.NoError(t, err)
	require.EqualValues(t, 5, id)
	require.NotNil(t, info)
	require.EqualValues(t, 5, info.Size())
}

func TestGetFileInfoReturnsStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("1234"), 0644))

	info, err := seginfo.GetFileInfo(path)
	require.NoError(t, err)
	require.EqualValues(t, 4, info.Size())
}

func TestGetFileInfoMissingFileErrors(t *testing.T) {
	_, err := seginfo.GetFileInfo(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
