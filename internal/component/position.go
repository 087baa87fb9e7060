package component

import "time"

// Position is the authoritative tile location plus the visual interpolation
// state used only for outbound rendering hints.
type Position struct {
	X     int32
	Y     int32
	Floor int8

	PrevPX, PrevPY     int32 // pixel position the current step started from
	TargetPX, TargetPY int32 // pixel position of the current tile
	Progress           float64
	StepDuration       time.Duration
}

// Moving reports whether a tile transition is still in flight.
func (p *Position) Moving() bool { return p.Progress < 1 }

// Pixel returns the interpolated render position of the current step.
func (p *Position) Pixel() (int32, int32) {
	if p.Progress >= 1 {
		return p.TargetPX, p.TargetPY
	}
	t := p.Progress
	if t < 0 {
		t = 0
	}
	x := float64(p.PrevPX) + float64(p.TargetPX-p.PrevPX)*t
	y := float64(p.PrevPY) + float64(p.TargetPY-p.PrevPY)*t
	return int32(x), int32(y)
}
