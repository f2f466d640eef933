package pano

import (
	"fmt"
	"math"

	"github.com/panoflat/panoflat/internal/config"
)

// Pose is the virtual camera orientation for one frame.
// Yaw ∈ [-π, π), Pitch ∈ [-π/2, π/2], HFov ∈ (0, π), all radians.
type Pose struct {
	Yaw   float64
	Pitch float64
	HFov  float64
}

// Validate rejects poses the projector cannot render
func (p Pose) Validate() error {
	if math.IsNaN(p.Yaw) || math.IsInf(p.Yaw, 0) {
		return fmt.Errorf("pose yaw is not finite: %g", p.Yaw)
	}
	if math.IsNaN(p.Pitch) || p.Pitch < -math.Pi/2 || p.Pitch > math.Pi/2 {
		return fmt.Errorf("pose pitch out of range [-π/2, π/2]: %g", p.Pitch)
	}
	if math.IsNaN(p.HFov) || p.HFov <= 0 || p.HFov >= math.Pi {
		return fmt.Errorf("pose horizontal FOV out of range (0, π): %g", p.HFov)
	}
	return nil
}

// Path evaluates the camera pose for each frame of an extraction run: a
// linear yaw sweep at fixed pitch and FOV. A Path is immutable and
// PoseFor is a pure function of its arguments, so any worker can
// evaluate any frame in any order.
type Path struct {
	startYaw float64
	sweep    float64
	pitch    float64
	hFov     float64
}

// NewPath builds a path from camera configuration (degrees in, radians out)
func NewPath(cfg config.CameraConfig) *Path {
	return &Path{
		startYaw: cfg.StartYawDeg * math.Pi / 180,
		sweep:    cfg.SweepDeg * math.Pi / 180,
		pitch:    cfg.PitchDeg * math.Pi / 180,
		hFov:     cfg.HFovDeg * math.Pi / 180,
	}
}

// PoseFor returns the pose for one frame of a run with frameCount frames.
// Normalized time is index/frameCount, so t=1 is excluded: a full 360°
// sweep never renders the starting orientation twice.
func (p *Path) PoseFor(index, frameCount int) (Pose, error) {
	if frameCount <= 0 {
		return Pose{}, fmt.Errorf("frame count must be positive, got %d", frameCount)
	}
	if index < 0 || index >= frameCount {
		return Pose{}, fmt.Errorf("frame index %d out of range [0, %d)", index, frameCount)
	}

	t := float64(index) / float64(frameCount)
	return Pose{
		Yaw:   NormalizeYaw(p.startYaw + p.sweep*t),
		Pitch: p.pitch,
		HFov:  p.hFov,
	}, nil
}

// NormalizeYaw maps an angle onto [-π, π)
func NormalizeYaw(yaw float64) float64 {
	y := math.Mod(yaw+math.Pi, 2*math.Pi)
	if y < 0 {
		y += 2 * math.Pi
	}
	return y - math.Pi
}
