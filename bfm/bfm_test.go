package bfm_test

import (
	"testing"

	"github.com/odysseus-edu/storage/bfm"
	"github.com/odysseus-edu/storage/common"
	"github.com/odysseus-edu/storage/rdsm"
	"github.com/stretchr/testify/require"
)

func newTestBfM(t *testing.T, nFrames int) (*bfm.BfM, *rdsm.Manager) {
	t.Helper()
	mgr := rdsm.NewManager()
	mgr.Mount(0, rdsm.NewMemVolume())
	_, err := mgr.AllocPages(0, 64)
	require.NoError(t, err)
	b := bfm.New(mgr, bfm.Config{NPageBufs: nFrames, NLotLeafBufs: nFrames})
	return b, mgr
}

func pid(n int32) common.PageID { return common.PageID{VolNo: 0, PageNo: n} }

func TestGetTrainMissThenHitSharesFrame(t *testing.T) {
	b, _ := newTestBfM(t, 4)

	buf1, err := b.GetTrain(pid(1), bfm.PageBuf)
	require.NoError(t, err)
	buf1[0] = 0xAB

	buf2, err := b.GetTrain(pid(1), bfm.PageBuf)
	require.NoError(t, err)
	require.Same(t, &buf1[0], &buf2[0])
	require.Equal(t, byte(0xAB), buf2[0])
}

func TestSecondChanceEvictsOnlyUnpinnedFrame(t *testing.T) {
	// A pool of 4 frames, one pinned and three unpinned: pinning a 5th
	// page must evict one of the unpinned frames, never the pinned one.
	b, _ := newTestBfM(t, 4)

	_, err := b.GetTrain(pid(1), bfm.PageBuf)
	require.NoError(t, err)
	_, err = b.GetTrain(pid(2), bfm.PageBuf)
	require.NoError(t, err)
	_, err = b.GetTrain(pid(3), bfm.PageBuf)
	require.NoError(t, err)
	_, err = b.GetTrain(pid(4), bfm.PageBuf)
	require.NoError(t, err)

	require.NoError(t, b.FreeTrain(pid(1), bfm.PageBuf))
	require.NoError(t, b.FreeTrain(pid(2), bfm.PageBuf))
	require.NoError(t, b.FreeTrain(pid(3), bfm.PageBuf))
	// pid(4) stays pinned.

	// Touch 1-3 again to set their REFER bits, forcing the clock to make
	// a second pass before it can evict any of them.
	for _, n := range []int32{1, 2, 3} {
		_, err := b.GetTrain(pid(n), bfm.PageBuf)
		require.NoError(t, err)
		require.NoError(t, b.FreeTrain(pid(n), bfm.PageBuf))
	}

	_, err = b.GetTrain(pid(5), bfm.PageBuf)
	require.NoError(t, err)

	require.NotEqual(t, int32(-1), b.LookUp(pid(4), bfm.PageBuf), "pinned frame must never be evicted")

	present := 0
	for _, n := range []int32{1, 2, 3} {
		if b.LookUp(pid(n), bfm.PageBuf) != -1 {
			present++
		}
	}
	require.Equal(t, 2, present, "exactly one of the unpinned frames should have been evicted")
}

func TestAllocTrainFailsWhenAllFramesPinned(t *testing.T) {
	b, _ := newTestBfM(t, 2)

	_, err := b.GetTrain(pid(1), bfm.PageBuf)
	require.NoError(t, err)
	_, err = b.GetTrain(pid(2), bfm.PageBuf)
	require.NoError(t, err)

	_, err = b.GetTrain(pid(3), bfm.PageBuf)
	require.ErrorIs(t, err, common.ErrNoUnfixedBuf)
}

func TestBulkFlushModeRejectsAllocation(t *testing.T) {
	mgr := rdsm.NewManager()
	mgr.Mount(0, rdsm.NewMemVolume())
	_, err := mgr.AllocPages(0, 8)
	require.NoError(t, err)

	b := bfm.New(mgr, bfm.Config{NPageBufs: 4, NLotLeafBufs: 4, BulkFlush: true})
	_, err = b.GetTrain(pid(1), bfm.PageBuf)
	require.ErrorIs(t, err, common.ErrNotSupportedBfM)
}

func TestSetDirtyFlushesOnEviction(t *testing.T) {
	b, mgr := newTestBfM(t, 1)

	buf, err := b.GetTrain(pid(1), bfm.PageBuf)
	require.NoError(t, err)
	buf[0] = 0x42
	require.NoError(t, b.SetDirty(pid(1), bfm.PageBuf))
	require.NoError(t, b.FreeTrain(pid(1), bfm.PageBuf))

	_, err = b.GetTrain(pid(2), bfm.PageBuf)
	require.NoError(t, err)

	raw := make([]byte, common.PageSize)
	require.NoError(t, mgr.ReadPage(pid(1), raw))
	require.Equal(t, byte(0x42), raw[0])
}

func TestFreeTrainUnknownPageFails(t *testing.T) {
	b, _ := newTestBfM(t, 2)
	err := b.FreeTrain(pid(99), bfm.PageBuf)
	require.ErrorIs(t, err, common.ErrNotFoundBfM)
}

func TestDeleteAllClearsHashTable(t *testing.T) {
	b, _ := newTestBfM(t, 2)
	_, err := b.GetTrain(pid(1), bfm.PageBuf)
	require.NoError(t, err)
	b.DeleteAll()
	require.Equal(t, int32(-1), b.LookUp(pid(1), bfm.PageBuf))
}
