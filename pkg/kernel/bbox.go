package kernel

import "segcaliper/internal/models"

// LabelBox scans a label slice for the extent of one segment
type LabelBox struct{}

// BoundingBox returns models.EmptyBox when the segment is absent
func (LabelBox) BoundingBox(labels []int32, segment int32, height, width int) models.BoundingBox {
	box := models.BoundingBox{MinX: width, MinY: height, MaxX: -1, MaxY: -1}
	for y := 0; y < height; y++ {
		row := labels[y*width : (y+1)*width]
		for x, v := range row {
			if v != segment {
				continue
			}
			if x < box.MinX {
				box.MinX = x
			}
			if x > box.MaxX {
				box.MaxX = x
			}
			if y < box.MinY {
				box.MinY = y
			}
			box.MaxY = y
		}
	}
	if box.MaxX < 0 {
		return models.EmptyBox
	}
	return box
}
