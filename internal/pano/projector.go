package pano

import (
	"fmt"
	"image"
	"math"

	"github.com/panoflat/panoflat/internal/config"
)

// Interpolation selects the sampling kernel used by Project
type Interpolation int

const (
	InterpNearest Interpolation = iota
	InterpBilinear
)

// ParseInterpolation maps a configured interpolation name to its kernel
func ParseInterpolation(v config.Interpolation) (Interpolation, error) {
	switch v {
	case config.InterpolationNearest:
		return InterpNearest, nil
	case config.InterpolationBilinear, "":
		return InterpBilinear, nil
	default:
		return 0, fmt.Errorf("unsupported interpolation: %q", v)
	}
}

// Project renders one rectilinear frame of the panorama as seen by a
// virtual camera with the given pose. Every output pixel is mapped
// through the inverse gnomonic projection onto the sphere and sampled
// from the equirectangular source. The result depends only on the
// inputs; identical calls produce identical pixels.
//
// The camera plane spans tan(hfov/2) on each side horizontally and the
// same per-pixel scale vertically, so the vertical FOV follows from the
// outH/outW aspect ratio (square pixels).
func Project(src *Source, pose Pose, outW, outH int, interp Interpolation) (*image.RGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source")
	}
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("output dimensions must be positive, got %dx%d", outW, outH)
	}
	if err := pose.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pose: %w", err)
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))

	w := float64(src.width)
	h := float64(src.height)
	halfW := float64(outW) / 2
	halfH := float64(outH) / 2
	scale := math.Tan(pose.HFov/2) / halfW

	sinPitch, cosPitch := math.Sincos(pose.Pitch)
	sinYaw, cosYaw := math.Sincos(pose.Yaw)

	// Where the optical axis itself lands in the source. Used as the
	// fallback sample if a pixel's mapping degenerates (FOV→0).
	axisU, axisV := sphereToSource(pose.Yaw, pose.Pitch, w, h)

	for py := 0; py < outH; py++ {
		y := (halfH - float64(py) - 0.5) * scale

		// Pitch rotates the ray about the horizontal axis. It only
		// depends on y, so it hoists out of the inner loop.
		y1 := y*cosPitch + sinPitch
		z1 := cosPitch - y*sinPitch

		row := out.Pix[py*out.Stride : py*out.Stride+outW*4]
		for px := 0; px < outW; px++ {
			x := (float64(px) + 0.5 - halfW) * scale

			// Yaw rotates about the vertical axis. Rotation preserves
			// length, so the norm comes from the unrotated ray (x, y, 1).
			rx := x*cosYaw + z1*sinYaw
			rz := z1*cosYaw - x*sinYaw
			norm := math.Sqrt(x*x + y*y + 1)

			lon := math.Atan2(rx, rz)
			sinLat := y1 / norm
			if sinLat > 1 {
				sinLat = 1
			} else if sinLat < -1 {
				sinLat = -1
			}
			lat := math.Asin(sinLat)

			u := (lon/math.Pi + 1) / 2 * w
			v := (0.5 - lat/math.Pi) * h
			if math.IsNaN(u) || math.IsNaN(v) {
				// Degenerate mapping; fall back to the pixel nearest
				// the optical axis rather than failing the frame.
				u, v = axisU, axisV
			}

			// Longitude is cyclic, latitude is not
			u = math.Mod(u, w)
			if u < 0 {
				u += w
			}
			if v < 0 {
				v = 0
			} else if v > h-1 {
				v = h - 1
			}

			var r, g, b, a uint8
			switch interp {
			case InterpNearest:
				r, g, b, a = src.sampleNearest(u, v)
			default:
				r, g, b, a = src.sampleBilinear(u, v)
			}

			i := px * 4
			row[i] = r
			row[i+1] = g
			row[i+2] = b
			row[i+3] = a
		}
	}

	return out, nil
}

// sphereToSource maps a (longitude, latitude) direction to source
// pixel coordinates, wrapped and clamped.
func sphereToSource(lon, lat, w, h float64) (u, v float64) {
	u = (lon/math.Pi + 1) / 2 * w
	u = math.Mod(u, w)
	if u < 0 {
		u += w
	}
	v = (0.5 - lat/math.Pi) * h
	if v < 0 {
		v = 0
	} else if v > h-1 {
		v = h - 1
	}
	return u, v
}

// sampleNearest picks the closest source pixel. u must be in [0, width),
// v in [0, height-1].
func (s *Source) sampleNearest(u, v float64) (r, g, b, a uint8) {
	x := int(u + 0.5)
	if x >= s.width {
		x -= s.width
	}
	y := int(v + 0.5)
	if y > s.height-1 {
		y = s.height - 1
	}
	return s.at(x, y)
}

// sampleBilinear blends the four nearest source pixels. The horizontal
// taps wrap so that columns width-1 and 0 interpolate as neighbors and
// the u=0 seam is invisible in the output.
func (s *Source) sampleBilinear(u, v float64) (r, g, b, a uint8) {
	u0 := math.Floor(u)
	v0 := math.Floor(v)
	fu := u - u0
	fv := v - v0

	x0 := int(u0)
	if x0 >= s.width {
		x0 = 0
	}
	x1 := x0 + 1
	if x1 == s.width {
		x1 = 0
	}
	y0 := int(v0)
	y1 := y0 + 1
	if y1 > s.height-1 {
		y1 = s.height - 1
	}

	r00, g00, b00, a00 := s.at(x0, y0)
	r10, g10, b10, a10 := s.at(x1, y0)
	r01, g01, b01, a01 := s.at(x0, y1)
	r11, g11, b11, a11 := s.at(x1, y1)

	blend := func(c00, c10, c01, c11 uint8) uint8 {
		top := float64(c00)*(1-fu) + float64(c10)*fu
		bot := float64(c01)*(1-fu) + float64(c11)*fu
		return uint8(top*(1-fv) + bot*fv + 0.5)
	}

	return blend(r00, r10, r01, r11),
		blend(g00, g10, g01, g11),
		blend(b00, b10, b01, b11),
		blend(a00, a10, a01, a11)
}
