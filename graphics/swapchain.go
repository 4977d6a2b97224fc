package graphics

// Usage is the bitmask of swapchain usage flags requested at creation.
type Usage uint32

const (
	// UsageUnorderedAccess marks images as writable by a compute pass.
	UsageUnorderedAccess Usage = 1 << iota
)

// SwapchainCreateInfo describes a swapchain to the host factory.
type SwapchainCreateInfo struct {
	UsageFlags  Usage
	Width       int
	Height      int
	Format      NativeFormat
	ArraySize   int
	MipCount    int
	SampleCount int
	FaceCount   int
}

// Image is one writable swapchain image between acquire and commit.
type Image struct {
	Texture *Texture
	// Index of the image in its swapchain rotation.
	Index int
}

// Swapchain is the destination surface cycle: Acquire -> write -> Release ->
// Commit. Creation is expensive; callers recreate only when dimensions
// change.
type Swapchain interface {
	Acquire() (*Image, error)
	Release() error
	// Commit submits the last released image to the compositor.
	Commit() error
	SubImage() Rect
	Info() SwapchainCreateInfo
	Destroy()
}

// SwapchainFactory is the host's surface constructor, handed to the engine
// together with the device context.
type SwapchainFactory interface {
	Create(info SwapchainCreateInfo) (Swapchain, error)
	// TranslateFormat maps an engine format to the factory's native value.
	TranslateFormat(f Format) NativeFormat
}
