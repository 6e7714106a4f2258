package led

// Layout maps a raster (x, y) cell to its position along a wired strip.
type Layout struct {
	Width int
	// Serpentine reverses every odd row, as on zig-zag wired panels.
	Serpentine bool
}

// Index maps x,y -> linear strip index.
func (l Layout) Index(x, y int) int {
	xx := x
	if l.Serpentine && y%2 == 1 {
		xx = l.Width - 1 - x
	}
	return y*l.Width + xx
}

// Remap reorders raster-ordered rgb into strip order. dst and src are 3*N long.
func (l Layout) Remap(dst, src []byte) {
	if l.Width <= 0 {
		copy(dst, src)
		return
	}
	n := len(src) / 3
	for i := 0; i < n; i++ {
		j := l.Index(i%l.Width, i/l.Width)
		copy(dst[j*3:j*3+3], src[i*3:i*3+3])
	}
}
