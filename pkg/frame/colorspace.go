package frame

import (
	"fmt"
)

// Colorspace of the YUV data, as far as the YUV→RGB conversion outside of
// this repository is concerned.
type Colorspace uint

const (
	ColorspaceUnspecified = Colorspace(iota)
	ColorspaceBT601
	ColorspaceBT709
)

func (c Colorspace) String() string {
	switch c {
	case ColorspaceUnspecified:
		return "unspecified"
	case ColorspaceBT601:
		return "bt601"
	case ColorspaceBT709:
		return "bt709"
	default:
		return fmt.Sprintf("<unexpected_value_%d>", c)
	}
}
