package geo

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Input is a value to place on the map: either the name of a known
// location or a raw coordinate.
type Input struct {
	name  string
	coord orb.Point
	named bool
}

// Named returns an input resolved through the coordinate system's name
// coordinates.
func Named(name string) Input {
	return Input{name: name, named: true}
}

// Coord returns an input holding a longitude/latitude pair.
func Coord(lng, lat float64) Input {
	return Input{coord: orb.Point{lng, lat}}
}

// At returns an input holding pt.
func At(pt orb.Point) Input {
	return Input{coord: pt}
}

// Name returns the location name and whether the input is named.
func (in Input) Name() (string, bool) {
	return in.name, in.named
}

// Point returns the coordinate and whether the input is a coordinate.
func (in Input) Point() (orb.Point, bool) {
	return in.coord, !in.named
}

func (in Input) String() string {
	if in.named {
		return fmt.Sprintf("name(%s)", in.name)
	}
	return fmt.Sprintf("coord(%g, %g)", in.coord.X(), in.coord.Y())
}
