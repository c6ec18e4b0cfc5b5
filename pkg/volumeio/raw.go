package volumeio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
)

// DType is the voxel storage type of a raw volume
type DType string

const (
	Int16   DType = "int16"
	Uint16  DType = "uint16"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Size returns the number of bytes per voxel, or 0 for an unknown type
func (d DType) Size() int {
	switch d {
	case Int16, Uint16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// RawHeader describes a headerless voxel dump stored x fastest, then y,
// then z
type RawHeader struct {
	Width, Height, Depth int
	DType                DType
	BigEndian            bool
	Spacing              models.Spacing

	// Window overrides the automatic VOI window when it is valid
	Window models.VOIWindow
}

func (h RawHeader) order() binary.ByteOrder {
	if h.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ReadRaw decodes Width*Height*Depth voxels from r
func ReadRaw(r io.Reader, h RawHeader) (*models.Volume, error) {
	if h.Width <= 0 || h.Height <= 0 || h.Depth <= 0 {
		return nil, fmt.Errorf("raw dimensions must be positive, got %dx%dx%d", h.Width, h.Height, h.Depth)
	}
	if h.DType.Size() == 0 {
		return nil, fmt.Errorf("unsupported voxel type %q", h.DType)
	}

	n := h.Width * h.Height * h.Depth
	data := make([]float64, n)
	var err error
	switch h.DType {
	case Int16:
		buf := make([]int16, n)
		if err = binary.Read(r, h.order(), buf); err == nil {
			for i, v := range buf {
				data[i] = float64(v)
			}
		}
	case Uint16:
		buf := make([]uint16, n)
		if err = binary.Read(r, h.order(), buf); err == nil {
			for i, v := range buf {
				data[i] = float64(v)
			}
		}
	case Float32:
		buf := make([]float32, n)
		if err = binary.Read(r, h.order(), buf); err == nil {
			for i, v := range buf {
				data[i] = float64(v)
			}
		}
	case Float64:
		err = binary.Read(r, h.order(), data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %d %s voxels: %w", n, h.DType, err)
	}

	vol := &models.Volume{
		Data:    data,
		Width:   h.Width,
		Height:  h.Height,
		Depth:   h.Depth,
		Window:  h.Window,
		Spacing: h.Spacing,
	}
	if vol.Window.Validate() != nil {
		vol.Window = AutoWindow(data)
	}
	return vol, nil
}

// LoadRaw reads a raw volume file
func LoadRaw(path string, h RawHeader) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vol, err := ReadRaw(bufio.NewReader(f), h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"path":   path,
		"dims":   fmt.Sprintf("%dx%dx%d", h.Width, h.Height, h.Depth),
		"size":   humanize.Bytes(uint64(len(vol.Data) * h.DType.Size())),
		"window": fmt.Sprintf("[%g, %g]", vol.Window.Lower, vol.Window.Upper),
	}).Info("Raw volume loaded")
	return vol, nil
}
