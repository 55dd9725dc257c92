// Package glfwinput feeds the camera from a GLFW window.
package glfwinput

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/HugoPeters1024/LovelyVulkan/src/ext/camera"
)

var keys = map[camera.Button]glfw.Key{
	camera.Forward:   glfw.KeyW,
	camera.Backward:  glfw.KeyS,
	camera.TurnUp:    glfw.KeyUp,
	camera.TurnDown:  glfw.KeyDown,
	camera.TurnLeft:  glfw.KeyLeft,
	camera.TurnRight: glfw.KeyRight,
}

type Input struct {
	window *glfw.Window
}

func New(window *glfw.Window) *Input {
	return &Input{window: window}
}

func (in *Input) Pressed(b camera.Button) bool {
	k, ok := keys[b]
	if !ok {
		return false
	}
	return in.window.GetKey(k) == glfw.Press
}
