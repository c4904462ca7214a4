package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/geo"
	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

// ErrBadPayload is returned when a stored payload cannot be decoded.
var ErrBadPayload = errors.New("malformed entry payload")

// arrayPayload is the JSON form of a raster array. Float values are stored
// as nullable numbers because JSON has no NaN; null decodes back to NaN.
type arrayPayload struct {
	DType raster.DType `json:"dtype"`
	Shape []int        `json:"shape"`
	Float []*float64   `json:"float,omitempty"`
	Int   []int64      `json:"int,omitempty"`
	Bool  []bool       `json:"bool,omitempty"`
}

// tablePayload is the JSON form of a geometry table.
type tablePayload struct {
	CRS     string           `json:"crs"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// metaPayload wraps an opaque metadata value.
type metaPayload struct {
	Value any `json:"value"`
}

// bboxPayload is the JSON form of a bounding box.
type bboxPayload struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
	CRS  string  `json:"crs"`
}

func encodeValue(kind features.Kind, value any) ([]byte, error) {
	switch val := value.(type) {
	case *raster.Array:
		payload := arrayPayload{DType: val.DType(), Shape: val.Shape()}
		switch val.DType() {
		case raster.Float64:
			payload.Float = make([]*float64, len(val.Float64s()))
			for i, f := range val.Float64s() {
				if !math.IsNaN(f) {
					v := f
					payload.Float[i] = &v
				}
			}
		case raster.Int64:
			payload.Int = val.Int64s()
		case raster.Bool:
			payload.Bool = val.Bools()
		}
		return json.Marshal(payload)

	case *vector.Table:
		payload := tablePayload{CRS: val.CRS(), Columns: val.Columns(), Rows: make([]map[string]any, val.Len())}
		for i := 0; i < val.Len(); i++ {
			payload.Rows[i] = val.Row(i)
		}
		return json.Marshal(payload)

	default:
		if kind != features.KindMetaInfo {
			return nil, fmt.Errorf("%w: %s entry holds %T", ErrBadPayload, kind, value)
		}
		return json.Marshal(metaPayload{Value: value})
	}
}

func decodeValue(kind features.Kind, data []byte) (any, error) {
	switch {
	case kind.IsArray():
		var payload arrayPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		switch payload.DType {
		case raster.Float64:
			values := make([]float64, len(payload.Float))
			for i, f := range payload.Float {
				if f == nil {
					values[i] = math.NaN()
				} else {
					values[i] = *f
				}
			}
			return raster.NewFloat64(payload.Shape, values)
		case raster.Int64:
			return raster.NewInt64(payload.Shape, payload.Int)
		case raster.Bool:
			return raster.NewBool(payload.Shape, payload.Bool)
		default:
			return nil, fmt.Errorf("%w: dtype %q", ErrBadPayload, payload.DType)
		}

	case kind.IsVector():
		var payload tablePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		table := vector.New(payload.CRS, payload.Columns...)
		for _, row := range payload.Rows {
			if err := table.AppendRow(row); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
			}
		}
		return table, nil

	default:
		var payload metaPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return payload.Value, nil
	}
}

func encodeBBox(b *geo.BBox) (any, error) {
	if b == nil {
		return nil, nil
	}
	minX, minY, maxX, maxY := b.Extent()
	data, err := json.Marshal(bboxPayload{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, CRS: b.CRS()})
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeBBox(column []byte) (*geo.BBox, error) {
	if len(column) == 0 {
		return nil, nil
	}
	var payload bboxPayload
	if err := json.Unmarshal(column, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return geo.New(payload.MinX, payload.MinY, payload.MaxX, payload.MaxY, payload.CRS)
}

func encodeTimestamps(ts []time.Time) (any, error) {
	if ts == nil {
		return nil, nil
	}
	strs := make([]string, len(ts))
	for i, t := range ts {
		strs[i] = t.UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(strs)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeTimestamps(column []byte) ([]time.Time, error) {
	if len(column) == 0 {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal(column, &strs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	out := make([]time.Time, len(strs))
	for i, s := range strs {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		out[i] = ts
	}
	return out, nil
}
