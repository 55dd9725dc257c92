package vkgpu

import (
	"strings"

	vk "github.com/vulkan-go/vulkan"
)

func instanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(newError(vk.EnumerateInstanceExtensionProperties("", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(newError(vk.EnumerateInstanceExtensionProperties("", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

func deviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(newError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(newError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

func validationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(newError(vk.EnumerateInstanceLayerProperties(&count, nil)))
	list := make([]vk.LayerProperties, count)
	orPanic(newError(vk.EnumerateInstanceLayerProperties(&count, list)))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}

// missing returns the first name of want not found in has.
func missing(want, has []string) string {
	for _, w := range want {
		w = strings.TrimSuffix(w, "\x00")
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

// safeStrings null-terminates every name for the C side.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		if !strings.HasSuffix(s, "\x00") {
			s += "\x00"
		}
		out[i] = s
	}
	return out
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
