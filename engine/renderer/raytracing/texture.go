package raytracing

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// UploadTexture copies RGBA8 pixels through a staging buffer into a
// sampled image and creates its sampler.
func UploadTexture(ctx BuildContext, name string, data metadata.ImageResourceData) (*metadata.Texture, error) {
	artifact := "texture[" + name + "]"
	if want := int(data.Width) * int(data.Height) * 4; len(data.Pixels) != want || want == 0 {
		return nil, core.NewResourceError(artifact, "validate pixels",
			errors.Newf("%dx%d image with %d bytes of RGBA8 data", data.Width, data.Height, len(data.Pixels)))
	}
	staging, err := ctx.Allocator.CreateBufferWithData(name+".staging", data.Pixels, metadata.BufferUsageTransferSrc)
	if err != nil {
		return nil, err
	}
	defer ctx.Allocator.Destroy(staging)

	extent := metadata.Extent2D{Width: data.Width, Height: data.Height}
	img, err := ctx.Allocator.CreateImage(metadata.ImageCreateInfo{
		Name:   name,
		Extent: extent,
		Format: metadata.FormatR8G8B8A8Unorm,
		Usage:  metadata.ImageUsageTransferDst | metadata.ImageUsageSampled,
	})
	if err != nil {
		return nil, err
	}

	cmd, err := ctx.Device.BeginOneTimeCommands()
	if err != nil {
		ctx.Allocator.DestroyImage(img)
		return nil, core.NewResourceError(artifact, "vkBeginCommandBuffer", err)
	}
	ctx.Device.CmdImageLayoutBarrier(cmd, img.Handle, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDstOptimal)
	ctx.Device.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, extent)
	ctx.Device.CmdImageLayoutBarrier(cmd, img.Handle, metadata.ImageLayoutTransferDstOptimal, metadata.ImageLayoutShaderReadOnlyOptimal)
	if err := ctx.Device.FlushOneTimeCommands(cmd); err != nil {
		ctx.Allocator.DestroyImage(img)
		return nil, core.NewResourceError(artifact, "flush upload", err)
	}

	sampler, err := ctx.Device.CreateSampler()
	if err != nil {
		ctx.Allocator.DestroyImage(img)
		return nil, core.NewResourceError(artifact, "vkCreateSampler", err)
	}
	return &metadata.Texture{
		Name:    img.Name,
		Width:   data.Width,
		Height:  data.Height,
		Image:   img.Handle,
		Memory:  img.Memory,
		View:    img.View,
		Sampler: sampler,
		Layout:  metadata.ImageLayoutShaderReadOnlyOptimal,
	}, nil
}

// DefaultTexture is a 1x1 white texture bound when a scene has none, so the
// texture array never has zero descriptors.
func DefaultTexture(ctx BuildContext) (*metadata.Texture, error) {
	return UploadTexture(ctx, "default-texture", metadata.ImageResourceData{
		ChannelCount: 4,
		Width:        1,
		Height:       1,
		Pixels:       []uint8{0xFF, 0xFF, 0xFF, 0xFF},
	})
}

// DestroyTexture frees a texture created by UploadTexture.
func DestroyTexture(ctx BuildContext, t *metadata.Texture) {
	if t == nil {
		return
	}
	ctx.Device.DestroySampler(t.Sampler)
	if img, ok := ctx.Allocator.LookupImage(t.Name); ok {
		ctx.Allocator.DestroyImage(img)
	}
	*t = metadata.Texture{}
}
