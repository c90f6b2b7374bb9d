package rdsm

import (
	"fmt"

	"github.com/dsnet/golib/memfile"
	"github.com/odysseus-edu/storage/common"
)

// MemVolume is an in-memory Volume backed by dsnet/golib/memfile, used by
// every package's tests and by embedders that don't need real
// persistence. memfile.File implements io.ReaderAt/io.WriterAt over a
// growable in-memory buffer, which is exactly the random-access page
// store rdsm.Volume needs without reaching for raw []byte slicing.
type MemVolume struct {
	f        *memfile.File
	nextPage int32
}

// NewMemVolume creates an empty in-memory volume.
func NewMemVolume() *MemVolume {
	return &MemVolume{f: memfile.New(nil)}
}

func (v *MemVolume) ReadPage(pageNo int32, buf []byte) error {
	if len(buf) != common.PageSize {
		return fmt.Errorf("rdsm: buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}
	off := int64(pageNo) * int64(common.PageSize)
	n, err := v.f.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	return err
}

func (v *MemVolume) WritePage(pageNo int32, buf []byte) error {
	if len(buf) != common.PageSize {
		return fmt.Errorf("rdsm: buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}
	off := int64(pageNo) * int64(common.PageSize)
	_, err := v.f.WriteAt(buf, off)
	return err
}

func (v *MemVolume) AllocPages(n int32) (int32, error) {
	first := v.nextPage
	zero := make([]byte, common.PageSize)
	for i := int32(0); i < n; i++ {
		if err := v.WritePage(first+i, zero); err != nil {
			return 0, err
		}
	}
	v.nextPage += n
	return first, nil
}

func (v *MemVolume) Close() error { return v.f.Close() }
