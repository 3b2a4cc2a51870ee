package core

// Entity is an opaque handle packing a 24-bit slot index and an 8-bit generation
// The all-ones value is reserved as the invalid handle
type Entity uint32

const (
	// IndexBits is the width of the slot index portion of an Entity
	IndexBits = 24

	// GenerationBits is the width of the generation portion of an Entity
	GenerationBits = 8

	indexMask      = (1 << IndexBits) - 1
	generationMask = (1 << GenerationBits) - 1

	// MaxEntities is the number of addressable entity slots
	MaxEntities = 1 << IndexBits

	// NilEntity is the reserved invalid handle
	NilEntity Entity = 0xFFFFFFFF
)

// MakeEntity builds a handle from a slot index and generation
func MakeEntity(index uint32, generation uint8) Entity {
	return Entity(index&indexMask | uint32(generation)<<IndexBits)
}

// Index returns the slot index portion of the handle
func (e Entity) Index() uint32 {
	return uint32(e) & indexMask
}

// Generation returns the generation portion of the handle
func (e Entity) Generation() uint8 {
	return uint8(uint32(e) >> IndexBits & generationMask)
}

// IsNil reports whether the handle is the reserved invalid value
func (e Entity) IsNil() bool {
	return e == NilEntity
}
