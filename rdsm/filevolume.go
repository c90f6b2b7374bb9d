package rdsm

import (
	"fmt"
	"os"
	"sync"

	"github.com/ncw/directio"
	"github.com/odysseus-edu/storage/common"
)

// FileVolume is a real, file-backed Volume using github.com/ncw/directio
// for page-aligned O_DIRECT IO, bypassing the OS page cache the way the
// raw disk manager this stands in for would. directio.AlignedBlock
// allocates the staging buffer every ReadPage/WritePage copies through,
// since O_DIRECT requires aligned memory.
type FileVolume struct {
	mu       sync.Mutex
	file     *os.File
	nextPage int32
}

// OpenFileVolume opens (creating if needed) a direct-IO-backed volume at
// path.
func OpenFileVolume(path string) (*FileVolume, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileVolume{file: f, nextPage: int32(fi.Size() / common.PageSize)}, nil
}

func (v *FileVolume) ReadPage(pageNo int32, buf []byte) error {
	if len(buf) != common.PageSize {
		return fmt.Errorf("rdsm: buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}
	aligned := directio.AlignedBlock(common.PageSize)
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.file.ReadAt(aligned, int64(pageNo)*int64(common.PageSize))
	if err != nil {
		return err
	}
	copy(buf, aligned)
	return nil
}

func (v *FileVolume) WritePage(pageNo int32, buf []byte) error {
	if len(buf) != common.PageSize {
		return fmt.Errorf("rdsm: buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}
	aligned := directio.AlignedBlock(common.PageSize)
	copy(aligned, buf)
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.file.WriteAt(aligned, int64(pageNo)*int64(common.PageSize))
	return err
}

func (v *FileVolume) AllocPages(n int32) (int32, error) {
	v.mu.Lock()
	first := v.nextPage
	v.nextPage += n
	v.mu.Unlock()

	zero := directio.AlignedBlock(common.PageSize)
	for i := int32(0); i < n; i++ {
		if err := v.WritePage(first+i, zero); err != nil {
			return 0, err
		}
	}
	return first, nil
}

func (v *FileVolume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.file.Close()
}
