package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImportImage uploads a local qcow2 or raw disk image into the images pool
// under imageName. The extension of imageName is forced to match the
// detected format.
func (m *Manager) ImportImage(ctx context.Context, filePath, imageName string) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat image file: %w", err)
	}

	format, err := DetectImageFormat(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to detect image format: %w", err)
	}

	ext := "." + string(format)
	if !strings.HasSuffix(imageName, ext) {
		imageName = strings.TrimSuffix(imageName, filepath.Ext(imageName)) + ext
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image file: %w", err)
	}

	spec := VolumeSpec{
		Name:          imageName,
		Type:          VolumeTypeBaseImage,
		Format:        format,
		CapacityBytes: uint64(info.Size()),
	}
	if err := m.CreateVolume(ctx, DefaultImagesPool, spec); err != nil {
		return "", fmt.Errorf("failed to create image volume: %w", err)
	}

	if err := m.WriteVolumeData(ctx, DefaultImagesPool, imageName, data); err != nil {
		_ = m.DeleteVolume(ctx, DefaultImagesPool, imageName)
		return "", fmt.Errorf("failed to upload image data: %w", err)
	}

	return imageName, nil
}

// ListImages lists all base images in the images pool.
func (m *Manager) ListImages(ctx context.Context) ([]VolumeInfo, error) {
	return m.ListVolumes(ctx, DefaultImagesPool)
}

// DeleteImage deletes a base image from the images pool. Templates built on
// the image become unusable.
func (m *Manager) DeleteImage(ctx context.Context, imageName string) error {
	return m.DeleteVolume(ctx, DefaultImagesPool, imageName)
}

// ImageExists checks if a base image exists in the images pool.
func (m *Manager) ImageExists(ctx context.Context, imageName string) (bool, error) {
	return m.VolumeExists(ctx, DefaultImagesPool, imageName)
}
