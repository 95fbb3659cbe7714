package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	totalX, totalY, totalZ float64
	count                  int
}

// NewMetaData returns an empty MetaData ready for Merge.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the bounds and running totals with v.
func (meta *MetaData) Merge(v r3.Vector) {
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)

	meta.totalX += v.X
	meta.totalY += v.Y
	meta.totalZ += v.Z
	meta.count++
}

// Combine returns the metadata of the union of two clouds.
func (meta MetaData) Combine(other MetaData) MetaData {
	if other.count == 0 {
		return meta
	}
	if meta.count == 0 {
		return other
	}
	return MetaData{
		HasColor: meta.HasColor || other.HasColor,
		MinX:     math.Min(meta.MinX, other.MinX),
		MaxX:     math.Max(meta.MaxX, other.MaxX),
		MinY:     math.Min(meta.MinY, other.MinY),
		MaxY:     math.Max(meta.MaxY, other.MaxY),
		MinZ:     math.Min(meta.MinZ, other.MinZ),
		MaxZ:     math.Max(meta.MaxZ, other.MaxZ),
		totalX:   meta.totalX + other.totalX,
		totalY:   meta.totalY + other.totalY,
		totalZ:   meta.totalZ + other.totalZ,
		count:    meta.count + other.count,
	}
}

// Centroid returns the mean of every merged point, or the origin when there are none.
func (meta MetaData) Centroid() r3.Vector {
	if meta.count == 0 {
		return r3.Vector{}
	}
	n := float64(meta.count)
	return r3.Vector{X: meta.totalX / n, Y: meta.totalY / n, Z: meta.totalZ / n}
}

// Extent returns the size of the bounding box along each axis.
func (meta MetaData) Extent() r3.Vector {
	if meta.count == 0 {
		return r3.Vector{}
	}
	return r3.Vector{X: meta.MaxX - meta.MinX, Y: meta.MaxY - meta.MinY, Z: meta.MaxZ - meta.MinZ}
}

func computeMetaData(points []r3.Vector, hasColor bool) MetaData {
	meta := NewMetaData()
	meta.HasColor = hasColor
	for _, p := range points {
		meta.Merge(p)
	}
	return meta
}
