package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// StorageImage is the ray tracing output, kept in GENERAL layout between frames.
type StorageImage struct {
	ctx    BuildContext
	format metadata.Format
	image  *Image
}

func NewStorageImage(ctx BuildContext, extent metadata.Extent2D, format metadata.Format) (*StorageImage, error) {
	s := &StorageImage{ctx: ctx, format: format}
	if err := s.create(extent); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StorageImage) create(extent metadata.Extent2D) error {
	img, err := s.ctx.Allocator.CreateImage(metadata.ImageCreateInfo{
		Name:   "storage-image",
		Extent: extent,
		Format: s.format,
		Usage:  metadata.ImageUsageStorage | metadata.ImageUsageTransferSrc,
	})
	if err != nil {
		return err
	}
	cmd, err := s.ctx.Device.BeginOneTimeCommands()
	if err != nil {
		s.ctx.Allocator.DestroyImage(img)
		return core.NewResourceError("storage image", "vkBeginCommandBuffer", err)
	}
	s.ctx.Device.CmdImageLayoutBarrier(cmd, img.Handle, metadata.ImageLayoutUndefined, metadata.ImageLayoutGeneral)
	if err := s.ctx.Device.FlushOneTimeCommands(cmd); err != nil {
		s.ctx.Allocator.DestroyImage(img)
		return core.NewResourceError("storage image", "flush layout transition", err)
	}
	s.image = img
	return nil
}

// Recreate reallocates the image at extent. It reports false and keeps the
// current image when the extent and format are unchanged.
func (s *StorageImage) Recreate(extent metadata.Extent2D) (bool, error) {
	if s.image != nil && s.image.Extent == extent {
		return false, nil
	}
	s.Destroy()
	if err := s.create(extent); err != nil {
		return false, err
	}
	core.LogDebug("Storage image recreated at %dx%d", extent.Width, extent.Height)
	return true, nil
}

func (s *StorageImage) Handle() metadata.ImageHandle {
	if s.image == nil {
		return metadata.NullHandle
	}
	return s.image.Handle
}

func (s *StorageImage) View() metadata.ImageViewHandle {
	if s.image == nil {
		return metadata.NullHandle
	}
	return s.image.View
}

func (s *StorageImage) Extent() metadata.Extent2D {
	if s.image == nil {
		return metadata.Extent2D{}
	}
	return s.image.Extent
}

func (s *StorageImage) Format() metadata.Format {
	return s.format
}

func (s *StorageImage) Destroy() {
	s.ctx.Allocator.DestroyImage(s.image)
	s.image = nil
}
