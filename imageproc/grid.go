package imageproc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gocv.io/x/gocv"
)

// Raw numeric grid files (.grid) carry intermediate float64 pixel arrays
// between stages without quantizing to 8 bit. Layout: 6-byte magic,
// uint32 width, uint32 height (little endian), then width*height float64
// values in row-major order.
var gridMagic = []byte("THGRID")

// Grid is a raw numeric pixel array with its dimensions.
type Grid struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// WriteGrid writes a grid to path.
func WriteGrid(path string, g *Grid) error {
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("grid %dx%d has %d values", g.Width, g.Height, len(g.Pix))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create grid file %s: %v", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(gridMagic); err != nil {
		return fmt.Errorf("cannot write grid file %s: %v", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(g.Width)); err != nil {
		return fmt.Errorf("cannot write grid file %s: %v", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(g.Height)); err != nil {
		return fmt.Errorf("cannot write grid file %s: %v", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, g.Pix); err != nil {
		return fmt.Errorf("cannot write grid file %s: %v", path, err)
	}
	return w.Flush()
}

// ReadGrid reads a grid from path.
func ReadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open grid file %s: %v", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(gridMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("cannot read grid file %s: %v", path, err)
	}
	if string(magic) != string(gridMagic) {
		return nil, fmt.Errorf("not a grid file: %s", path)
	}

	var width, height uint32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, fmt.Errorf("cannot read grid file %s: %v", path, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, fmt.Errorf("cannot read grid file %s: %v", path, err)
	}

	g := NewGrid(int(width), int(height))
	if err := binary.Read(r, binary.LittleEndian, &g.Pix); err != nil {
		return nil, fmt.Errorf("cannot read grid file %s: %v", path, err)
	}
	return g, nil
}

// GridImageLoader loads raw numeric grid files as 8-bit grayscale Mats.
// Values are clamped to [0,255] on conversion.
type GridImageLoader struct {
	BaseImageLoader
}

// NewGridImageLoader creates a new loader for grid files
func NewGridImageLoader() *GridImageLoader {
	return &GridImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedExtensions: []string{".grid"},
		},
	}
}

// LoadImage loads a grid file into a grayscale Mat
func (l *GridImageLoader) LoadImage(path string) (gocv.Mat, error) {
	g, err := ReadGrid(path)
	if err != nil {
		return gocv.Mat{}, err
	}
	return GrayMatFromFloats(g.Pix, g.Width, g.Height), nil
}
