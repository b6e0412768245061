package metadata

/**
 * @brief A structure to hold image resource data.
 */
type ImageResourceData struct {
	/** @brief The number of channels. */
	ChannelCount uint8
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image, RGBA8. */
	Pixels []uint8
}

type ImageCreateInfo struct {
	Name   string
	Extent Extent2D
	Format Format
	Usage  ImageUsage
}

/**
 * @brief A sampled texture ready to be written into a combined image sampler slot.
 */
type Texture struct {
	Name    string
	Width   uint32
	Height  uint32
	Image   ImageHandle
	Memory  MemoryHandle
	View    ImageViewHandle
	Sampler SamplerHandle
	Layout  ImageLayout
}
