package vkgpu

import (
	"fmt"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Device extensions every context gets.
var baseDeviceExtensions = []string{
	"VK_KHR_swapchain",
	"VK_KHR_get_memory_requirements2",
	"VK_KHR_dedicated_allocation",
	"VK_KHR_maintenance1",
}

// Descriptor pool sizing shared by all extensions.
const (
	descriptorsPerType = 1000
	maxDescriptorSets  = 100
)

var featureFields = map[string]func(f *vk.PhysicalDeviceFeatures) *vk.Bool32{
	"samplerAnisotropy": func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.SamplerAnisotropy },
	"fillModeNonSolid":  func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.FillModeNonSolid },
	"shaderInt64":       func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.ShaderInt64 },
	"wideLines":         func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.WideLines },
	"geometryShader":    func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.GeometryShader },
	"multiDrawIndirect": func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.MultiDrawIndirect },
}

// Driver opens vulkan devices. Init must have been called.
type Driver struct {
	AppName string
	// Validation enables the Khronos validation layer when it is installed
	// and logs a warning when it is not.
	Validation bool
}

// Device is a vulkan logical device with one graphics and one present queue,
// a resettable command pool and a shared descriptor pool.
type Device struct {
	req    render.Requirements
	layers []string

	instance vk.Instance
	gpu      vk.PhysicalDevice
	gpuName  string
	memProps vk.PhysicalDeviceMemoryProperties

	device         vk.Device
	graphicsFamily uint32
	presentFamily  uint32
	graphics       vk.Queue
	present        vk.Queue

	// mu guards the pools; vulkan pools are externally synchronized.
	mu       sync.Mutex
	cmdPool  vk.CommandPool
	descPool vk.DescriptorPool

	// Single binding layouts for the descriptor set every Texture carries.
	storageLayout vk.DescriptorSetLayout
	sampledLayout vk.DescriptorSetLayout
}

type candidate struct {
	gpu            vk.PhysicalDevice
	name           string
	score          int
	graphicsFamily uint32
	presentFamily  uint32
}

// helperWindow is the hidden window used during bring-up to find a queue family
// that can present.
type helperWindow struct {
	window  *glfw.Window
	surface vk.Surface
}

func openHelper() (*helperWindow, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	defer glfw.DefaultWindowHints()
	window, err := glfw.CreateWindow(1, 1, "helper", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create helper window: %w", err)
	}
	return &helperWindow{window: window}, nil
}

func (p *helperWindow) destroy(instance vk.Instance) {
	if p.surface != vk.NullSurface && instance != nil {
		vk.DestroySurface(instance, p.surface, nil)
	}
	p.window.Destroy()
}

// Open creates an instance and a logical device satisfying req on the most
// capable GPU.
func (drv *Driver) Open(req render.Requirements) (render.Device, error) {
	req.Merge(render.Requirements{DeviceExtensions: baseDeviceExtensions})
	d := &Device{req: req}

	p, err := openHelper()
	if err != nil {
		return nil, err
	}
	err = d.bringUp(drv, p)
	p.destroy(d.instance)
	if err != nil {
		d.Destroy()
		return nil, err
	}
	render.Logger().Info("vulkan device opened", "gpu", d.gpuName,
		"graphicsFamily", d.graphicsFamily, "presentFamily", d.presentFamily,
		"layers", d.layers, "deviceExtensions", req.DeviceExtensions)
	return d, nil
}

func (d *Device) bringUp(drv *Driver, p *helperWindow) error {
	if err := d.createInstance(drv, p.window.GetRequiredInstanceExtensions()); err != nil {
		return err
	}
	surf, err := p.window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return fmt.Errorf("create helper surface: %w", err)
	}
	p.surface = vk.SurfaceFromPointer(surf)

	c, err := d.pickGPU(p.surface)
	if err != nil {
		return err
	}
	if err := d.createDevice(c); err != nil {
		return err
	}
	return d.createPools()
}

func (d *Device) createInstance(drv *Driver, windowExts []string) error {
	available, err := validationLayers()
	if err != nil {
		return fmt.Errorf("enumerate layers: %w", err)
	}
	if m := missing(d.req.ValidationLayers, available); m != "" {
		return fmt.Errorf("%w: validation layer %s", render.ErrUnsupported, m)
	}
	d.layers = append(d.layers, d.req.ValidationLayers...)
	if drv.Validation && !contains(d.layers, ValidationLayer) {
		if contains(available, ValidationLayer) {
			d.layers = append(d.layers, ValidationLayer)
		} else {
			render.Logger().Warn("validation layer not installed, continuing without it")
		}
	}

	exts := append([]string(nil), windowExts...)
	for _, e := range d.req.InstanceExtensions {
		if !contains(exts, e) {
			exts = append(exts, e)
		}
	}
	availableExts, err := instanceExtensions()
	if err != nil {
		return fmt.Errorf("enumerate instance extensions: %w", err)
	}
	if m := missing(exts, availableExts); m != "" {
		return fmt.Errorf("%w: instance extension %s", render.ErrUnsupported, m)
	}

	apiVersion := d.req.APIVersion
	if apiVersion == 0 {
		apiVersion = vk.MakeVersion(1, 1, 0)
	}
	appName := drv.AppName
	if appName == "" {
		appName = "render"
	}
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   safeStrings([]string{appName})[0],
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        "render\x00",
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         apiVersion,
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: safeStrings(exts),
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     safeStrings(d.layers),
	}, nil, &instance)
	if err := newError(ret); err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	d.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("load instance functions: %w", err)
	}
	return nil
}

func (d *Device) pickGPU(surface vk.Surface) (candidate, error) {
	var count uint32
	if err := newError(vk.EnumeratePhysicalDevices(d.instance, &count, nil)); err != nil {
		return candidate{}, fmt.Errorf("count physical devices: %w", err)
	}
	if count == 0 {
		return candidate{}, fmt.Errorf("%w: no GPU with vulkan support", render.ErrUnsupported)
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := newError(vk.EnumeratePhysicalDevices(d.instance, &count, gpus)); err != nil {
		return candidate{}, fmt.Errorf("enumerate physical devices: %w", err)
	}

	var best candidate
	var reason error
	for _, gpu := range gpus {
		c, err := d.rate(gpu, surface)
		if err != nil {
			render.Logger().Info("gpu rejected", "gpu", c.name, "err", err)
			reason = err
			continue
		}
		render.Logger().Debug("gpu candidate", "gpu", c.name, "score", c.score)
		if c.score > best.score {
			best = c
		}
	}
	if best.score == 0 {
		return candidate{}, fmt.Errorf("no suitable GPU: %w", reason)
	}
	return best, nil
}

func (d *Device) rate(gpu vk.PhysicalDevice, surface vk.Surface) (candidate, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	c := candidate{gpu: gpu, name: vk.ToString(props.DeviceName[:]), score: 1}
	if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
		c.score += 1000
	}

	exts, err := deviceExtensions(gpu)
	if err != nil {
		return c, err
	}
	if m := missing(d.req.DeviceExtensions, exts); m != "" {
		return c, fmt.Errorf("%w: device extension %s", render.ErrUnsupported, m)
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	for _, name := range d.req.Features {
		field, ok := featureFields[name]
		if !ok {
			return c, fmt.Errorf("%w: unknown feature %s", render.ErrUnsupported, name)
		}
		if *field(&features) != vk.True {
			return c, fmt.Errorf("%w: feature %s", render.ErrUnsupported, name)
		}
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, families)
	graphics, present := -1, -1
	for i, family := range families {
		family.Deref()
		if graphics < 0 && family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			graphics = i
		}
		var supported vk.Bool32
		ret := vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), surface, &supported)
		if isError(ret) {
			render.Logger().Warn("query present support", "gpu", c.name, "family", i, "err", newError(ret))
			continue
		}
		// Prefer a family that does both.
		if supported.B() && (present < 0 || i == graphics) {
			present = i
		}
	}
	if graphics < 0 || present < 0 {
		return c, fmt.Errorf("%w: no graphics and present queue families", render.ErrUnsupported)
	}
	c.graphicsFamily, c.presentFamily = uint32(graphics), uint32(present)
	return c, nil
}

func (d *Device) createDevice(c candidate) error {
	d.gpu = c.gpu
	d.gpuName = c.name
	d.graphicsFamily = c.graphicsFamily
	d.presentFamily = c.presentFamily
	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memProps)
	d.memProps.Deref()

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.graphicsFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	if d.presentFamily != d.graphicsFamily {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.presentFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	var features vk.PhysicalDeviceFeatures
	for _, name := range d.req.Features {
		*featureFields[name](&features) = vk.True
	}

	var device vk.Device
	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(d.req.DeviceExtensions)),
		PpEnabledExtensionNames: safeStrings(d.req.DeviceExtensions),
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     safeStrings(d.layers),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}, nil, &device)
	if err := newError(ret); err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	d.device = device

	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.device, d.graphicsFamily, 0, &graphics)
	vk.GetDeviceQueue(d.device, d.presentFamily, 0, &present)
	d.graphics, d.present = graphics, present
	return nil
}

func (d *Device) createPools() error {
	var cmdPool vk.CommandPool
	ret := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.graphicsFamily,
	}, nil, &cmdPool)
	if err := newError(ret); err != nil {
		return fmt.Errorf("create command pool: %w", err)
	}
	d.cmdPool = cmdPool

	types := []vk.DescriptorType{
		vk.DescriptorTypeSampler,
		vk.DescriptorTypeCombinedImageSampler,
		vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeStorageImage,
		vk.DescriptorTypeUniformTexelBuffer,
		vk.DescriptorTypeStorageTexelBuffer,
		vk.DescriptorTypeUniformBuffer,
		vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeUniformBufferDynamic,
		vk.DescriptorTypeStorageBufferDynamic,
		vk.DescriptorTypeInputAttachment,
	}
	sizes := make([]vk.DescriptorPoolSize, len(types))
	for i, t := range types {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: descriptorsPerType}
	}
	var descPool vk.DescriptorPool
	ret = vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &descPool)
	if err := newError(ret); err != nil {
		return fmt.Errorf("create descriptor pool: %w", err)
	}
	d.descPool = descPool

	var err error
	if d.storageLayout, err = d.imageLayout(vk.DescriptorTypeStorageImage); err != nil {
		return err
	}
	if d.sampledLayout, err = d.imageLayout(vk.DescriptorTypeSampledImage); err != nil {
		return err
	}
	return nil
}

func (d *Device) imageLayout(t vk.DescriptorType) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(d.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  t,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		}},
	}, nil, &layout)
	if err := newError(ret); err != nil {
		return vk.NullDescriptorSetLayout, fmt.Errorf("create image descriptor layout: %w", err)
	}
	return layout, nil
}

// ImageSetLayout returns the layout of the descriptor sets handed out with
// storage (storage true) or sampled textures.
func (d *Device) ImageSetLayout(storage bool) vk.DescriptorSetLayout {
	if storage {
		return d.storageLayout
	}
	return d.sampledLayout
}

// Instance returns the vulkan instance.
func (d *Device) Instance() vk.Instance { return d.instance }

// PhysicalDevice returns the selected GPU.
func (d *Device) PhysicalDevice() vk.PhysicalDevice { return d.gpu }

// Name is the GPU name as reported by the driver.
func (d *Device) Name() string { return d.gpuName }

// Handle returns the logical device.
func (d *Device) Handle() vk.Device { return d.device }

// GraphicsQueue returns the graphics queue and its family index.
func (d *Device) GraphicsQueue() (vk.Queue, uint32) { return d.graphics, d.graphicsFamily }

// Requirements returns what the device was created with, including the base
// device extensions.
func (d *Device) Requirements() render.Requirements { return d.req }

// AllocateDescriptorSet allocates one set of layout from the shared pool.
func (d *Device) AllocateDescriptorSet(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	if err := newError(ret); err != nil {
		return set, fmt.Errorf("allocate descriptor set: %w", err)
	}
	return set, nil
}

// FreeDescriptorSet returns set to the shared pool.
func (d *Device) FreeDescriptorSet(set vk.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vk.FreeDescriptorSets(d.device, d.descPool, 1, &set)
}

func (d *Device) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		memType := d.memProps.MemoryTypes[i]
		memType.Deref()
		if typeFilter&(1<<i) == 0 {
			continue
		}
		if memType.PropertyFlags&properties != properties {
			continue
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: no memory type with properties %#x", render.ErrUnsupported, properties)
}

func (d *Device) WaitIdle() error {
	if d.device == nil {
		return nil
	}
	return newError(vk.DeviceWaitIdle(d.device))
}

// Destroy releases the pools, the device and the instance.
func (d *Device) Destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		for _, l := range []*vk.DescriptorSetLayout{&d.storageLayout, &d.sampledLayout} {
			if *l != vk.NullDescriptorSetLayout {
				vk.DestroyDescriptorSetLayout(d.device, *l, nil)
				*l = vk.NullDescriptorSetLayout
			}
		}
		if d.descPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(d.device, d.descPool, nil)
			d.descPool = vk.NullDescriptorPool
		}
		if d.cmdPool != vk.NullCommandPool {
			vk.DestroyCommandPool(d.device, d.cmdPool, nil)
			d.cmdPool = vk.NullCommandPool
		}
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}
