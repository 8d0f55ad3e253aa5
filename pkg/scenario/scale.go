package scenario

import "math"

// ScaleEstimate is a back-of-envelope projection of lookup cost for a
// table of Rows rows. It is a teaching aid, not a measurement.
type ScaleEstimate struct {
	Rows            int64 `json:"rows"`
	TableScanMillis int64 `json:"tableScanMs"`
	IndexScanMillis int64 `json:"indexScanMs"`
}

// EstimateScale assumes a full scan reads about 1000 rows per millisecond
// and an index search costs about one millisecond per B-tree level.
// Non-positive row counts estimate to zero.
func EstimateScale(rows int64) ScaleEstimate {
	if rows <= 0 {
		return ScaleEstimate{}
	}
	return ScaleEstimate{
		Rows:            rows,
		TableScanMillis: int64(math.Round(float64(rows) / 1000)),
		IndexScanMillis: int64(math.Round(math.Log2(float64(rows)))),
	}
}
