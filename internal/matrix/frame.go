package matrix

import "github.com/pion/randutil"

const (
	// Side is the edge length of the Sense HAT matrix.
	Side = 8
	// Cells is the number of pixels in one frame.
	Cells = Side * Side
	// FrameBytes is the length of a frame in interleaved RGB form.
	FrameBytes = Cells * 3
)

// Frame is one sample of pixel colours, one byte per channel per cell.
type Frame struct {
	R [Cells]byte
	G [Cells]byte
	B [Cells]byte
}

// Source yields uniformly distributed random words.
type Source interface {
	Uint64() uint64
}

// NewSource returns the default random source. It is safe for concurrent use.
func NewSource() Source {
	return randutil.NewMathRandomGenerator()
}

// Random fills every channel of a new frame from src.
func Random(src Source) Frame {
	var f Frame
	fill(src, f.R[:])
	fill(src, f.G[:])
	fill(src, f.B[:])
	return f
}

func fill(src Source, dst []byte) {
	var word uint64
	for i := range dst {
		if i%8 == 0 {
			word = src.Uint64()
		}
		dst[i] = byte(word)
		word >>= 8
	}
}

// RGB interleaves the frame as r,g,b per cell in raster order.
func (f Frame) RGB() []byte {
	out := make([]byte, FrameBytes)
	for i := 0; i < Cells; i++ {
		out[i*3+0] = f.R[i]
		out[i*3+1] = f.G[i]
		out[i*3+2] = f.B[i]
	}
	return out
}
