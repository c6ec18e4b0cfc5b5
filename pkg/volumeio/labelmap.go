package volumeio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
)

// labelmapMagic starts every labelmap file
const labelmapMagic = "SEGLMAP1"

// maxIDLen bounds the segmentation id stored in a file header
const maxIDLen = 1 << 12

// maxLabelmapVoxels bounds the voxel count a file header may declare
const maxLabelmapVoxels = 1 << 30

// ErrNotLabelmap is returned when a file does not start with the labelmap
// magic
var ErrNotLabelmap = errors.New("not a labelmap file")

type labelmapHeader struct {
	Width, Height, Depth uint32
	SpacingX             float64
	SpacingY             float64
	SpacingZ             float64
	IDLen                uint32
}

// WriteLabelmap encodes lm as a fixed header followed by the zstd
// compressed little-endian voxel labels.
func WriteLabelmap(w io.Writer, lm *models.Labelmap) error {
	if err := lm.Validate(); err != nil {
		return err
	}
	if len(lm.ID) > maxIDLen {
		return fmt.Errorf("labelmap id is %d bytes, limit %d", len(lm.ID), maxIDLen)
	}

	if _, err := io.WriteString(w, labelmapMagic); err != nil {
		return err
	}
	hdr := labelmapHeader{
		Width:    uint32(lm.Width),
		Height:   uint32(lm.Height),
		Depth:    uint32(lm.Depth),
		SpacingX: lm.Spacing.X,
		SpacingY: lm.Spacing.Y,
		SpacingZ: lm.Spacing.Z,
		IDLen:    uint32(len(lm.ID)),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err := io.WriteString(w, lm.ID); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := binary.Write(enc, binary.LittleEndian, lm.Data); err != nil {
		enc.Close()
		return fmt.Errorf("failed to compress labels: %w", err)
	}
	return enc.Close()
}

// ReadLabelmap decodes a labelmap written by WriteLabelmap
func ReadLabelmap(r io.Reader) (*models.Labelmap, error) {
	magic := make([]byte, len(labelmapMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotLabelmap, err)
	}
	if string(magic) != labelmapMagic {
		return nil, ErrNotLabelmap
	}

	var hdr labelmapHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read labelmap header: %w", err)
	}
	if hdr.IDLen > maxIDLen {
		return nil, fmt.Errorf("labelmap id length %d exceeds %d", hdr.IDLen, maxIDLen)
	}
	id := make([]byte, hdr.IDLen)
	if _, err := io.ReadFull(r, id); err != nil {
		return nil, fmt.Errorf("failed to read labelmap id: %w", err)
	}

	voxels := uint64(hdr.Width) * uint64(hdr.Height) * uint64(hdr.Depth)
	if voxels > maxLabelmapVoxels {
		return nil, fmt.Errorf("labelmap of %dx%dx%d voxels exceeds %s voxels",
			hdr.Width, hdr.Height, hdr.Depth, humanize.Comma(maxLabelmapVoxels))
	}

	lm := &models.Labelmap{
		ID:      string(id),
		Width:   int(hdr.Width),
		Height:  int(hdr.Height),
		Depth:   int(hdr.Depth),
		Spacing: models.Spacing{X: hdr.SpacingX, Y: hdr.SpacingY, Z: hdr.SpacingZ},
	}
	if lm.Width <= 0 || lm.Height <= 0 || lm.Depth <= 0 {
		return nil, fmt.Errorf("labelmap dimensions must be positive, got %dx%dx%d", lm.Width, lm.Height, lm.Depth)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	lm.Data = make([]int32, lm.Width*lm.Height*lm.Depth)
	if err := binary.Read(dec, binary.LittleEndian, lm.Data); err != nil {
		return nil, fmt.Errorf("failed to decompress labels: %w", err)
	}
	if err := lm.Validate(); err != nil {
		return nil, err
	}
	return lm, nil
}

// SaveLabelmap writes lm to path
func SaveLabelmap(path string, lm *models.Labelmap) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteLabelmap(bw, lm); err != nil {
		f.Close()
		return fmt.Errorf("failed to write labelmap %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		log.WithFields(log.Fields{
			"path": path,
			"size": humanize.Bytes(uint64(info.Size())),
			"raw":  humanize.Bytes(uint64(len(lm.Data) * 4)),
		}).Info("Labelmap saved")
	}
	return nil
}

// LoadLabelmap reads a labelmap file
func LoadLabelmap(path string) (*models.Labelmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lm, err := ReadLabelmap(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lm, nil
}
