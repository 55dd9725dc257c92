package headless_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
)

func surface(t *testing.T, dev *headless.Device) *headless.Surface {
	t.Helper()
	s, err := dev.CreateSurface(render.SurfaceInfo{Title: "test", Width: 64, Height: 32})
	require.NoError(t, err)
	return s.(*headless.Surface)
}

func semaphore(t *testing.T, dev *headless.Device) render.Semaphore {
	t.Helper()
	s, err := dev.CreateSemaphore()
	require.NoError(t, err)
	return s
}

func TestSwapchainHandsOutPresentedImages(t *testing.T) {
	dev := open(t, &headless.Driver{Images: 2})
	s := surface(t, dev)
	require.Equal(t, "test", s.Title())
	sc, err := s.CreateSwapchain(nil)
	require.NoError(t, err)
	require.Equal(t, 2, sc.ImageCount())

	a, b, c := semaphore(t, dev), semaphore(t, dev), semaphore(t, dev)
	i, err := sc.Acquire(a)
	require.NoError(t, err)
	j, err := sc.Acquire(b)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, []int{i, j})

	_, err = sc.Acquire(c)
	require.ErrorIs(t, err, headless.ErrDeadlock)

	require.NoError(t, sc.Present(j, b))
	k, err := sc.Acquire(c)
	require.NoError(t, err)
	require.Equal(t, j, k)
	require.ErrorIs(t, sc.Present(j, semaphore(t, dev)), headless.ErrDeadlock)
	require.ErrorIs(t, sc.Present(5, c), headless.ErrMisuse)
}

func TestAcquireNeedsClearSemaphore(t *testing.T) {
	dev := open(t, &headless.Driver{})
	s := surface(t, dev)
	sc, err := s.CreateSwapchain(nil)
	require.NoError(t, err)
	sem := semaphore(t, dev)
	_, err = sc.Acquire(sem)
	require.NoError(t, err)
	_, err = sc.Acquire(sem)
	require.ErrorIs(t, err, headless.ErrMisuse)
}

func TestResizeMakesSwapchainStale(t *testing.T) {
	dev := open(t, &headless.Driver{})
	s := surface(t, dev)
	sc, err := s.CreateSwapchain(nil)
	require.NoError(t, err)

	var got [][2]int
	s.OnResize(func(w, h int) { got = append(got, [2]int{w, h}) })
	s.Resize(128, 64)
	_, err = sc.Acquire(semaphore(t, dev))
	require.ErrorIs(t, err, render.ErrOutOfDate)
	require.Empty(t, got)
	s.PollEvents()
	require.Equal(t, [][2]int{{128, 64}}, got)

	next, err := s.CreateSwapchain(sc)
	require.NoError(t, err)
	require.True(t, sc.(*headless.Swapchain).Retired())
	width, height := next.Extent()
	require.Equal(t, [2]uint32{128, 64}, [2]uint32{width, height})
	_, err = s.CreateSwapchain(sc)
	require.ErrorIs(t, err, headless.ErrMisuse)
	_, err = sc.Acquire(semaphore(t, dev))
	require.ErrorIs(t, err, headless.ErrMisuse)
}

func TestMinimizeRestoresOnWait(t *testing.T) {
	dev := open(t, &headless.Driver{})
	s := surface(t, dev)
	s.Minimize()
	w, h := s.FramebufferSize()
	require.Zero(t, w*h)
	_, err := s.CreateSwapchain(nil)
	require.ErrorIs(t, err, render.ErrInvalidConfig)

	s.WaitEvents()
	w, h = s.FramebufferSize()
	require.Equal(t, [2]int{64, 32}, [2]int{w, h})
}

func TestInjectedErrors(t *testing.T) {
	dev := open(t, &headless.Driver{})
	s := surface(t, dev)
	sc, err := s.CreateSwapchain(nil)
	require.NoError(t, err)

	s.FailAcquire(render.ErrOutOfDate)
	_, err = sc.Acquire(semaphore(t, dev))
	require.ErrorIs(t, err, render.ErrOutOfDate)
	require.Zero(t, s.Acquires())

	sem := semaphore(t, dev)
	s.FailAcquire(render.ErrSuboptimal)
	i, err := sc.Acquire(sem)
	require.ErrorIs(t, err, render.ErrSuboptimal)
	require.Equal(t, 1, s.Acquires())

	s.FailPresent(render.ErrSuboptimal)
	require.ErrorIs(t, sc.Present(i, sem), render.ErrSuboptimal)
	require.Equal(t, 1, s.Presents())
}

func TestDestroyReleasesEverything(t *testing.T) {
	dev := open(t, &headless.Driver{})
	s := surface(t, dev)
	sc, err := s.CreateSwapchain(nil)
	require.NoError(t, err)
	require.Equal(t, 2, dev.Live())
	sc.Destroy()
	s.Destroy()
	s.Destroy()
	require.Zero(t, dev.Live())
	require.Same(t, sc, s.Current())
	require.Equal(t, 1, s.Swapchains())
	dev.Destroy()
	require.True(t, dev.Destroyed())
}
