package content

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/streaming"
	"github.com/lixenwraith/simkit/vmath"
)

// SQLiteLoader serves sector payloads from an authored spawn database
//
// Expected schema:
//
//	CREATE TABLE spawns (
//	    sector_x INTEGER NOT NULL,
//	    sector_z INTEGER NOT NULL,
//	    name     TEXT NOT NULL,
//	    x REAL NOT NULL, y REAL NOT NULL, z REAL NOT NULL,
//	    mesh_id INTEGER NOT NULL, material_id INTEGER NOT NULL,
//	    min_x REAL, min_y REAL, min_z REAL,
//	    max_x REAL, max_y REAL, max_z REAL
//	);
//	CREATE INDEX spawns_sector ON spawns(sector_x, sector_z);
//
// sql.DB pools connections internally, so concurrent loads of different
// sectors are safe
type SQLiteLoader struct {
	db *sql.DB
}

// OpenSQLiteLoader opens the spawn database read-only
func OpenSQLiteLoader(path string) (*SQLiteLoader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open spawn db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping spawn db %s: %w", path, err)
	}
	return &SQLiteLoader{db: db}, nil
}

// Close releases the database handle
func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}

// LoadSector implements streaming.Loader
func (l *SQLiteLoader) LoadSector(coord core.SectorCoord) ([]streaming.SpawnRecord, error) {
	rows, err := l.db.Query(
		`SELECT name, x, y, z, mesh_id, material_id,
		        COALESCE(min_x,0), COALESCE(min_y,0), COALESCE(min_z,0),
		        COALESCE(max_x,0), COALESCE(max_y,0), COALESCE(max_z,0)
		 FROM spawns WHERE sector_x = ? AND sector_z = ?`,
		coord.X, coord.Z,
	)
	if err != nil {
		return nil, fmt.Errorf("spawn query for sector %v failed: %w", coord, err)
	}
	defer rows.Close()

	var records []streaming.SpawnRecord
	for rows.Next() {
		var rec streaming.SpawnRecord
		var pos, bmin, bmax vmath.Vec3F
		if err := rows.Scan(
			&rec.Name, &pos.X, &pos.Y, &pos.Z,
			&rec.MeshID, &rec.MaterialID,
			&bmin.X, &bmin.Y, &bmin.Z,
			&bmax.X, &bmax.Y, &bmax.Z,
		); err != nil {
			return nil, fmt.Errorf("spawn row scan for sector %v failed: %w", coord, err)
		}
		rec.Position = pos
		rec.Bounds = streaming.Bounds{Min: bmin, Max: bmax}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("spawn rows for sector %v failed: %w", coord, err)
	}
	return records, nil
}
