package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
	"segcaliper/pkg/config"
	"segcaliper/pkg/kernel"
	"segcaliper/pkg/logging"
	"segcaliper/pkg/segmentation"
	"segcaliper/pkg/visualization"
	"segcaliper/pkg/volumeio"
)

func main() {
	configPath := flag.String("config", "segcaliper.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	inputDir := flag.String("input", "", "Directory containing 2D slice images")
	rawPath := flag.String("raw", "", "Raw voxel file (alternative to -input)")
	dims := flag.String("dims", "", "Raw volume dimensions as WxHxD")
	dtype := flag.String("dtype", "int16", "Raw voxel type: int16, uint16, float32 or float64")
	bigEndian := flag.Bool("big-endian", false, "Raw voxels are big endian")
	window := flag.String("window", "", "VOI window as lower,upper (default: data range)")
	spacing := flag.String("spacing", "1,1,1", "Voxel spacing in mm as x,y,z")
	labelmapIn := flag.String("labelmap", "", "Existing labelmap file to edit")
	labelmapOut := flag.String("output", "segmentation.lmap", "Output labelmap file")
	seedFlag := flag.String("seed", "", "Brush click as x,y,z")
	segment := flag.Int("segment", 1, "Segment index to paint")
	radius := flag.Int("radius", 0, "Brush radius in voxels (default from config)")
	sensitivity := flag.Float64("sensitivity", -1, "Brush sensitivity (default from config)")
	noPropagate := flag.Bool("no-propagate", false, "Do not propagate to neighbouring slices")
	measure := flag.Bool("measure", false, "Measure the segment diameter")
	overlays := flag.Bool("overlays", false, "Render modified slices to the overlay directory")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *inputDir == "" && *rawPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *radius > 0 {
		cfg.Brush.Radius = *radius
	}
	if *sensitivity >= 0 {
		cfg.Brush.Sensitivity = *sensitivity
	}
	if *noPropagate {
		cfg.Propagation.Enabled = false
	}

	closer := logging.FromConfig(cfg).SetLogger()
	defer closer.Close()

	fmt.Println("================================")
	fmt.Println("SEGCALIPER: SMART BRUSH SEGMENTATION AND DIAMETER MEASUREMENT")
	fmt.Println("================================")

	vol, err := loadVolume(*inputDir, *rawPath, *dims, *dtype, *bigEndian, *window, *spacing)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	fmt.Printf("Volume: %dx%dx%d voxels (%s), window [%g, %g]\n",
		vol.Width, vol.Height, vol.Depth,
		humanize.Bytes(uint64(len(vol.Data)*8)), vol.Window.Lower, vol.Window.Upper)

	lm, err := openLabelmap(*labelmapIn, vol)
	if err != nil {
		log.Fatalf("Failed to open labelmap: %v", err)
	}

	opts := cfg.EngineOptions()
	var writer *visualization.OverlayWriter
	if *overlays {
		writer = &visualization.OverlayWriter{
			Viewer: visualization.NewViewer(vol, lm, cfg.Output.OverlayScale),
			Dir:    cfg.Output.OverlayDir,
		}
	}
	opts.Notifier = segmentation.NotifierFunc(func(id string, slices []int) {
		fmt.Printf("Modified slices of %s: %v\n", id, slices)
		if writer != nil {
			writer.SegmentationDataModified(id, slices)
		}
	})

	engine := segmentation.New(kernel.Builtin(), opts)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = engine.Init(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	seg := int32(*segment)
	seedSlice := -1
	if *seedFlag != "" {
		xyz, err := parseInts(*seedFlag, 3)
		if err != nil {
			log.Fatalf("Invalid seed: %v", err)
		}
		seed := models.Seed{
			X: xyz[0], Y: xyz[1], Z: xyz[2],
			Radius:      cfg.Brush.Radius,
			Sensitivity: cfg.Brush.Sensitivity,
		}
		seedSlice = seed.Z

		fmt.Println("Growing and refining region...")
		start := time.Now()
		slices, err := engine.Segment(vol, lm, seed, seg, cfg.Propagation.Enabled)
		if err != nil {
			log.Fatalf("Segmentation failed: %v", err)
		}
		fmt.Printf("Segment %d written on %d slices in %.2f seconds\n",
			seg, slices.Len(), time.Since(start).Seconds())
	}

	if *measure {
		m, err := measureSegment(engine, lm, seg, seedSlice, cfg.Measurement.AutoDiameter)
		switch {
		case errors.Is(err, segmentation.ErrDegenerateRegion):
			log.Warnf("Segment %d is too small to measure", seg)
		case err != nil:
			log.Fatalf("Measurement failed: %v", err)
		default:
			printMeasurement(m, lm.Spacing)
			if writer != nil {
				writer.Measurements = append(writer.Measurements, m)
				writer.SegmentationDataModified(lm.ID, []int{m.Slice})
			}
		}
	}

	if err := volumeio.SaveLabelmap(*labelmapOut, lm); err != nil {
		log.Fatalf("Failed to save labelmap: %v", err)
	}
	fmt.Printf("\nLabelmap saved to: %s\n", *labelmapOut)
	if writer != nil && len(writer.Written) > 0 {
		fmt.Printf("Overlays saved to: %s\n", filepath.Join(cfg.Output.OverlayDir, lm.ID))
	}
}

func loadVolume(inputDir, rawPath, dims, dtype string, bigEndian bool, window, spacing string) (*models.Volume, error) {
	sp, err := parseFloats(spacing, 3)
	if err != nil {
		return nil, fmt.Errorf("invalid spacing: %w", err)
	}
	voxel := models.Spacing{X: sp[0], Y: sp[1], Z: sp[2]}

	var win models.VOIWindow
	if window != "" {
		w, err := parseFloats(window, 2)
		if err != nil {
			return nil, fmt.Errorf("invalid window: %w", err)
		}
		win = models.VOIWindow{Lower: w[0], Upper: w[1]}
		if err := win.Validate(); err != nil {
			return nil, err
		}
	}

	var vol *models.Volume
	if rawPath != "" {
		d, err := parseInts(strings.ReplaceAll(dims, "x", ","), 3)
		if err != nil {
			return nil, fmt.Errorf("invalid dims: %w", err)
		}
		vol, err = volumeio.LoadRaw(rawPath, volumeio.RawHeader{
			Width:     d[0],
			Height:    d[1],
			Depth:     d[2],
			DType:     volumeio.DType(dtype),
			BigEndian: bigEndian,
			Spacing:   voxel,
			Window:    win,
		})
		if err != nil {
			return nil, err
		}
	} else {
		vol, err = volumeio.LoadSliceStack(inputDir, voxel)
		if err != nil {
			return nil, err
		}
		if window != "" {
			vol.Window = win
		}
	}
	return vol, vol.Validate()
}

func openLabelmap(path string, vol *models.Volume) (*models.Labelmap, error) {
	if path == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		return models.NewLabelmap(id.String(), vol), nil
	}
	lm, err := volumeio.LoadLabelmap(path)
	if err != nil {
		return nil, err
	}
	if !lm.SameShape(vol) {
		return nil, fmt.Errorf("%w: %s", segmentation.ErrDimensionMismatch, path)
	}
	return lm, nil
}

func measureSegment(engine *segmentation.Engine, lm *models.Labelmap, seg int32, seedSlice int, auto bool) (*segmentation.Measurement, error) {
	if auto || seedSlice < 0 {
		fmt.Println("Measuring diameter across all slices...")
		return engine.MeasureVolume(lm, seg)
	}
	fmt.Printf("Measuring diameter on slice %d...\n", seedSlice)
	return engine.MeasureSlice(lm, seedSlice, seg)
}

func printMeasurement(m *segmentation.Measurement, spacing models.Spacing) {
	d, o := m.Extended()
	dmm, omm := m.LengthMM(spacing)
	fmt.Printf("\nMeasurement on slice %d:\n", m.Slice)
	fmt.Printf("=======================================\n")
	fmt.Printf("%s: %.2f mm (%.1f,%.1f) -> (%.1f,%.1f)\n", m.MaxLabel, dmm,
		d.First.X, d.First.Y, d.Second.X, d.Second.Y)
	if m.HasOrthogonal {
		fmt.Printf("%s: %.2f mm (%.1f,%.1f) -> (%.1f,%.1f)\n", m.OrthogonalLabel, omm,
			o.First.X, o.First.Y, o.Second.X, o.Second.Y)
	} else {
		fmt.Printf("%s: not found\n", m.OrthogonalLabel)
	}
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
