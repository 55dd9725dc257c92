// Package headless simulates an in-order GPU behind the render driver
// contract. Submissions complete lazily, when a fence is waited on or the
// device is drained, so reuse of work the CPU never waited for shows up as an
// error instead of a race.
package headless

import (
	"errors"
	"fmt"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

var (
	// ErrDeadlock is returned when waiting on a fence nothing will signal.
	ErrDeadlock = errors.New("headless: wait would never return")
	// ErrInUse is returned when an object still owned by the GPU is touched.
	ErrInUse = errors.New("headless: object in use by the GPU")
	// ErrMisuse reports a call sequence a real driver would reject.
	ErrMisuse = errors.New("headless: invalid usage")
)

// Driver opens simulated devices. Zero value supports everything and gives
// three swapchain images.
type Driver struct {
	// Supported restricts what Open accepts. Nil lists accept any name; a
	// zero APIVersion accepts any version.
	Supported *render.Requirements
	// Images is the swapchain image count of new surfaces.
	Images int
	// Depth is the number of submissions the queue holds before the oldest
	// completes on its own. Zero means submissions only complete when waited
	// for.
	Depth int

	devices []*Device
}

// Open checks req against Supported and returns a new device.
func (d *Driver) Open(req render.Requirements) (render.Device, error) {
	if s := d.Supported; s != nil {
		if s.APIVersion != 0 && req.APIVersion > s.APIVersion {
			return nil, fmt.Errorf("%w: api version %#x", render.ErrUnsupported, req.APIVersion)
		}
		checks := []struct {
			kind      string
			want, has []string
		}{
			{"validation layer", req.ValidationLayers, s.ValidationLayers},
			{"instance extension", req.InstanceExtensions, s.InstanceExtensions},
			{"device extension", req.DeviceExtensions, s.DeviceExtensions},
			{"feature", req.Features, s.Features},
		}
		for _, c := range checks {
			if c.has == nil {
				continue
			}
			if missing := missing(c.want, c.has); missing != "" {
				return nil, fmt.Errorf("%w: %s %s", render.ErrUnsupported, c.kind, missing)
			}
		}
	}
	images := d.Images
	if images == 0 {
		images = 3
	}
	dev := &Device{req: req, images: images, depth: d.Depth}
	d.devices = append(d.devices, dev)
	render.Logger().Debug("headless device opened",
		"deviceExtensions", req.DeviceExtensions, "features", req.Features)
	return dev, nil
}

// Devices returns every device opened so far.
func (d *Driver) Devices() []*Device { return d.devices }

func missing(want, has []string) string {
	for _, w := range want {
		found := false
		for _, h := range has {
			if w == h {
				found = true
				break
			}
		}
		if !found {
			return w
		}
	}
	return ""
}

var (
	_ render.Driver          = (*Driver)(nil)
	_ render.SurfaceProvider = (*Device)(nil)
	_ render.BufferAllocator = (*Device)(nil)
	_ render.ImageAllocator  = (*Device)(nil)
	_ render.ImageClearer    = (*CommandBuffer)(nil)
	_ render.SizedImage      = (*Image)(nil)
)
