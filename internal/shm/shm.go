// Package shm imports client pixel buffers shared through files, usually
// under /dev/shm, as surface native content.
package shm

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sync"

	"github.com/1broseidon/ivicomp/internal/scene"
	"golang.org/x/sys/unix"
)

// MaxDimension bounds buffer width and height.
const MaxDimension = 16384

// Mmap is a mapped file region.
type Mmap []byte

// Map maps size bytes of file.
func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}
	cerr := sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})
	if cerr != nil {
		return nil, cerr
	}
	return mmap, err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}

// BytesPerPixel returns the storage size of one pixel of f.
func BytesPerPixel(f scene.PixelFormat) int {
	switch f {
	case scene.PixelFormatR8:
		return 1
	case scene.PixelFormatRGB565, scene.PixelFormatRGBA5551, scene.PixelFormatRGBA4444:
		return 2
	case scene.PixelFormatRGB888, scene.PixelFormatRGBA6661:
		return 3
	case scene.PixelFormatRGBA8888:
		return 4
	default:
		return 0
	}
}

// Buffer is a client buffer mapped read-only into the compositor. It is
// native content for a surface: the software backend reads it through
// Image on every bind, so client writes followed by a damage request show
// up without a copy.
type Buffer struct {
	Path   string
	Width  int
	Height int
	Stride int
	Format scene.PixelFormat

	mu   sync.Mutex
	mmap Mmap
	img  image.Image
}

// Open maps the buffer stored in path. A stride of 0 means tightly packed
// rows.
func Open(path string, width, height, stride int, format scene.PixelFormat) (*Buffer, error) {
	bpp := BytesPerPixel(format)
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported pixel format %s", format)
	}
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	if stride == 0 {
		stride = width * bpp
	}
	if stride < width*bpp || stride > MaxDimension*4 {
		return nil, fmt.Errorf("stride %d out of range for %d pixels of %s", stride, width, format)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buffer: %w", err)
	}
	defer file.Close()

	size := stride * height
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat buffer: %w", err)
	}
	if info.Size() < int64(size) {
		return nil, fmt.Errorf("buffer file holds %d bytes, need %d", info.Size(), size)
	}

	mmap, err := Map(file, size, unix.PROT_READ)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer: %w", err)
	}
	b := &Buffer{
		Path:   path,
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		mmap:   mmap,
	}
	b.img = newImage(mmap, image.Rect(0, 0, width, height), stride, format)
	return b, nil
}

// Image returns a view of the mapped pixels, or nil after Close.
func (b *Buffer) Image() image.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img
}

// Close unmaps the buffer. It is safe to call more than once.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mmap == nil {
		return nil
	}
	err := b.mmap.Unmap()
	b.mmap, b.img = nil, nil
	return err
}

// Create writes img as a tightly packed RGBA_8888 buffer file in dir and
// returns its path. It is how command line clients hand images to the
// compositor.
func Create(dir string, name string, img image.Image) (path string, err error) {
	if dir == "" {
		dir = "/dev/shm"
	}
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)

	file, err := os.CreateTemp(dir, "ivicomp-"+filepath.Base(name)+"-*")
	if err != nil {
		return "", err
	}
	defer func() {
		cerr := file.Close()
		if err != nil {
			os.Remove(file.Name())
		}
		err = errors.Join(err, cerr)
	}()

	if err := file.Truncate(int64(len(nrgba.Pix))); err != nil {
		return "", err
	}
	mmap, err := Map(file, len(nrgba.Pix), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return "", fmt.Errorf("mmap buffer: %w", err)
	}
	copy(mmap, nrgba.Pix)
	if err := mmap.Unmap(); err != nil {
		return "", err
	}
	return file.Name(), nil
}
