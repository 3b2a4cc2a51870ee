package core

// SectorCoord identifies one streaming grid cell on the XZ plane
type SectorCoord struct {
	X, Z int32
}

// DistanceSq returns the squared grid distance between two sector coordinates
func (c SectorCoord) DistanceSq(o SectorCoord) int64 {
	dx := int64(c.X - o.X)
	dz := int64(c.Z - o.Z)
	return dx*dx + dz*dz
}

// SectorFromWorld maps a world-space position to its owning sector coordinate
// sectorSize is the edge length of one sector in world units
func SectorFromWorld(x, z float64, sectorSize float64) SectorCoord {
	return SectorCoord{
		X: int32(floorDiv(x, sectorSize)),
		Z: int32(floorDiv(z, sectorSize)),
	}
}

// floorDiv divides with floor semantics so negative coordinates map correctly
func floorDiv(v, size float64) float64 {
	q := v / size
	f := float64(int64(q))
	if q < 0 && q != f {
		f--
	}
	return f
}

// Hash32 mixes a 32-bit input into a well-distributed 32-bit output
// Murmur-finalizer style avalanche, stable across versions
func Hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// Hash2 returns a stable hash for a 2D sector coordinate and seed
// Large odd constants decorrelate the axes
func Hash2(seed uint32, x, z int32) uint32 {
	h := seed
	h ^= uint32(x) * 0x9e3779b1
	h ^= uint32(z) * 0x85ebca6b
	return Hash32(h)
}
