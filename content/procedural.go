package content

import (
	"fmt"

	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/streaming"
	"github.com/lixenwraith/simkit/vmath"
)

// propKind is one entry of the procedural spawn table
type propKind struct {
	name       string
	meshID     uint32
	materialID uint32
	halfExtent float64
}

// Spawn table; weights are implicit in hash bucketing
var propKinds = []propKind{
	{"rock", 1, 1, 0.8},
	{"boulder", 2, 1, 2.0},
	{"tree", 3, 2, 1.2},
	{"shrub", 4, 2, 0.5},
	{"ruin", 5, 3, 4.0},
}

// ProceduralLoader generates sector payloads from hashed coordinates
// Pure: sector coordinate + seed always produce the same records, with
// no RNG walking, so neighboring sectors stay seam-safe no matter the
// order they load in
type ProceduralLoader struct {
	seed       uint32
	sectorSize float64
	maxProps   int
}

// NewProceduralLoader creates a loader spawning up to maxProps records
// per sector
func NewProceduralLoader(seed uint32, sectorSize float64, maxProps int) *ProceduralLoader {
	if maxProps <= 0 {
		maxProps = 12
	}
	return &ProceduralLoader{seed: seed, sectorSize: sectorSize, maxProps: maxProps}
}

// LoadSector implements streaming.Loader
func (l *ProceduralLoader) LoadSector(coord core.SectorCoord) ([]streaming.SpawnRecord, error) {
	base := core.Hash2(l.seed, coord.X, coord.Z)
	count := int(base % uint32(l.maxProps+1))

	records := make([]streaming.SpawnRecord, 0, count)
	originX := float64(coord.X) * l.sectorSize
	originZ := float64(coord.Z) * l.sectorSize

	for i := 0; i < count; i++ {
		h := core.Hash32(base + uint32(i)*0x6d2b79f5)
		kind := propKinds[h%uint32(len(propKinds))]

		// Two independent 16-bit lanes for the local offset
		fx := float64(h&0xFFFF) / 0x10000
		fz := float64(h>>16) / 0x10000

		pos := vmath.Vec3F{
			X: originX + fx*l.sectorSize,
			Z: originZ + fz*l.sectorSize,
		}
		he := kind.halfExtent
		records = append(records, streaming.SpawnRecord{
			Name:       fmt.Sprintf("%s_%d_%d_%d", kind.name, coord.X, coord.Z, i),
			Position:   pos,
			MeshID:     kind.meshID,
			MaterialID: kind.materialID,
			Bounds: streaming.Bounds{
				Min: vmath.Vec3F{X: -he, Y: 0, Z: -he},
				Max: vmath.Vec3F{X: he, Y: 2 * he, Z: he},
			},
		})
	}
	return records, nil
}
