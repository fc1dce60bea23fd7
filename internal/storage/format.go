package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

var (
	// qcow2Magic is "QFI\xfb", the first four bytes of every qcow2 header.
	// https://www.qemu.org/docs/master/interop/qcow2.html
	qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

	// bootSignature sits at offset 510 of an MBR or protective (GPT) MBR.
	bootSignature = []byte{0x55, 0xaa}
)

// DetectImageFormat identifies a disk image by its magic bytes. Anything
// that is neither qcow2 nor a bootable raw disk is rejected.
func DetectImageFormat(filePath string) (VolumeFormat, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if n >= len(qcow2Magic) && bytes.Equal(header[:len(qcow2Magic)], qcow2Magic) {
		return VolumeFormatQCOW2, nil
	}
	if err != nil {
		return "", fmt.Errorf("file too small to be a bootable image (%d bytes)", n)
	}
	if bytes.Equal(header[510:512], bootSignature) {
		return VolumeFormatRaw, nil
	}

	return "", fmt.Errorf("unsupported image: not qcow2 and missing boot sector signature")
}
