package volumeio

import (
	"gonum.org/v1/gonum/floats"

	"segcaliper/internal/models"
)

// AutoWindow spans the full intensity range of data. A constant volume gets
// a unit-width window so normalization stays defined.
func AutoWindow(data []float64) models.VOIWindow {
	if len(data) == 0 {
		return models.VOIWindow{Lower: 0, Upper: 1}
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if !(hi > lo) {
		hi = lo + 1
	}
	return models.VOIWindow{Lower: lo, Upper: hi}
}
