package world

import "math"

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f}
}

func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Finite reports whether both components are real numbers.
func (v Vector) Finite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// ClampLength shortens v to at most max. A non-positive max leaves v unchanged.
func (v Vector) ClampLength(max float64) Vector {
	if max <= 0 {
		return v
	}
	length := v.Length()
	if length <= max || length == 0 {
		return v
	}
	return v.Scale(max / length)
}

// Distance is the Euclidean distance between two positions.
func Distance(a, b Vector) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

const (
	DefaultEnvironmentWidth  = 100.0
	DefaultEnvironmentHeight = 100.0
)

// Environment is the axis-aligned arena [0,Width] x [0,Height].
type Environment struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func DefaultEnvironment() Environment {
	return Environment{Width: DefaultEnvironmentWidth, Height: DefaultEnvironmentHeight}
}

func (e Environment) Valid() bool {
	dims := Vector{X: e.Width, Y: e.Height}
	return dims.Finite() && e.Width > 0 && e.Height > 0
}

func (e Environment) Contains(p Vector) bool {
	return p.X >= 0 && p.X <= e.Width && p.Y >= 0 && p.Y <= e.Height
}

func (e Environment) Clamp(p Vector) Vector {
	return Vector{
		X: math.Max(0, math.Min(e.Width, p.X)),
		Y: math.Max(0, math.Min(e.Height, p.Y)),
	}
}

func (e Environment) Center() Vector {
	return Vector{X: e.Width / 2, Y: e.Height / 2}
}

// SpawnRing places n puppets evenly on a circle around the arena centre with a
// radius of 40% of the smaller dimension. A single puppet spawns at the centre.
func SpawnRing(env Environment, n int) []Vector {
	if n <= 0 {
		return nil
	}
	center := env.Center()
	if n == 1 {
		return []Vector{center}
	}
	radius := 0.4 * math.Min(env.Width, env.Height)
	out := make([]Vector, n)
	for i := range out {
		angle := 2 * math.Pi * float64(i) / float64(n)
		out[i] = env.Clamp(Vector{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		})
	}
	return out
}
