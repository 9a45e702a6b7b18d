package ports

import "context"

// SurfaceKind names a chart kind
type SurfaceKind string

const (
	SurfaceLine    SurfaceKind = "line"
	SurfaceBar     SurfaceKind = "bar"
	SurfaceScatter SurfaceKind = "scatter"
)

// SurfaceSpec describes one surface to construct
type SurfaceSpec struct {
	Kind  SurfaceKind
	Title string
}

// Point is one (index, value) pair; X is the 1-based row index
type Point struct {
	X float64
	Y float64
}

// Series is a dataset projected onto one variable
type Series struct {
	Variable string
	Points   []Point
}

// Surface is one live rendering target
type Surface interface {
	Spec() SurfaceSpec
	Destroy() error
}

// RenderEngine is the external charting engine: loaded once, then used to build surfaces
type RenderEngine interface {
	Load(ctx context.Context) error
	NewSurface(ctx context.Context, spec SurfaceSpec, series Series) (Surface, error)
}
