// Package gpkg writes tile footprints to GeoPackages.
package gpkg

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/pdok/tilepyramid/processing"
)

const geometryColumn = "geom"

type column struct {
	name    string
	ctype   string
	notnull int
	pk      int
}

type Table struct {
	Name    string
	columns []column
	gcolumn string
	srs     gpkg.SpatialReferenceSystem
}

// TileTable describes a table holding the features of processing.LayerTiles.
func TileTable(name string, srs gpkg.SpatialReferenceSystem) Table {
	columns := []column{{name: "fid", ctype: "INTEGER", notnull: 1, pk: 1}}
	for _, c := range processing.TileColumns {
		ctype := "INTEGER"
		if c == "tile_key" || c == "state" {
			ctype = "TEXT"
		}
		columns = append(columns, column{name: c, ctype: ctype, notnull: 1})
	}
	columns = append(columns, column{name: geometryColumn, ctype: "POLYGON"})
	return Table{Name: name, columns: columns, gcolumn: geometryColumn, srs: srs}
}

// SRS returns the spatial reference system of a CRS code like "EPSG:3857". Codes outside the EPSG
// registry map onto the undefined cartesian SRS every GeoPackage has.
func SRS(code string) gpkg.SpatialReferenceSystem {
	id, err := strconv.Atoi(strings.TrimPrefix(code, "EPSG:"))
	if !strings.HasPrefix(code, "EPSG:") || err != nil {
		return gpkg.SpatialReferenceSystem{
			Name:                   "Undefined cartesian SRS",
			ID:                     -1,
			Organization:           "NONE",
			OrganizationCoordsysID: -1,
			Definition:             "undefined",
		}
	}
	return gpkg.SpatialReferenceSystem{
		Name:                   code,
		ID:                     id,
		Organization:           "EPSG",
		OrganizationCoordsysID: id,
		Definition:             "undefined",
	}
}

type TargetGeopackage struct {
	Table    Table
	pagesize int
	handle   *gpkg.Handle
	err      error
}

// Init opens (or creates) the GeoPackage at file. With overwrite an existing file is removed first.
func (target *TargetGeopackage) Init(file string, pagesize int, overwrite bool) error {
	if overwrite {
		err := os.Remove(file)
		var pathError *os.PathError
		if err != nil && !(errors.As(err, &pathError) && errors.Is(pathError.Err, syscall.ENOENT)) {
			return fmt.Errorf("could not remove target file: %w", err)
		}
	}
	handle, err := gpkg.Open(file)
	if err != nil {
		return fmt.Errorf("error opening GeoPackage: %w", err)
	}
	target.pagesize = max(pagesize, 1)
	target.handle = handle
	return nil
}

func (target *TargetGeopackage) Close() error {
	return target.handle.Close()
}

// Err returns the first error WriteFeatures ran into.
func (target *TargetGeopackage) Err() error {
	return target.err
}

func (target *TargetGeopackage) CreateTable(table Table) error {
	if table.srs.ID > 0 {
		if err := target.handle.UpdateSRS(table.srs); err != nil {
			return err
		}
	}
	if err := buildTable(target.handle, table); err != nil {
		return err
	}
	target.Table = table
	return nil
}

func (target *TargetGeopackage) WriteFeatures(features <-chan processing.Feature) {
	var page []processing.Feature
	for feature := range features {
		page = append(page, feature)
		if len(page)%target.pagesize == 0 {
			target.writeFeatures(page)
			page = nil
		}
	}
	target.writeFeatures(page)
}

func (target *TargetGeopackage) writeFeatures(features []processing.Feature) {
	if len(features) == 0 || target.err != nil {
		return
	}
	if err := target.writePage(features); err != nil {
		target.err = err
	}
}

func (target *TargetGeopackage) writePage(features []processing.Feature) error {
	tx, err := target.handle.Begin()
	if err != nil {
		return fmt.Errorf("could not start a transaction: %w", err)
	}
	stmt, err := tx.Prepare(target.Table.insertSQL())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("could not prepare a statement: %w", err)
	}

	var ext *geom.Extent
	for _, f := range features {
		sb, err := gpkg.NewBinary(int32(target.Table.srs.ID), f.Geometry())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("could not create a binary geometry: %w", err)
		}
		data := append(f.Columns(), sb)
		if _, err = stmt.Exec(data...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("could not insert tile %v: %w", data[0], err)
		}

		if ext == nil {
			ext, err = geom.NewExtentFromGeometry(f.Geometry())
			if err != nil {
				ext = nil
				log.Println("Failed to create new extent:", err)
				continue
			}
		} else {
			ext.AddGeometry(f.Geometry())
		}
	}
	stmt.Close()
	if err = tx.Commit(); err != nil {
		return err
	}
	return target.handle.UpdateGeometryExtent(target.Table.Name, ext)
}

// createSQL creates a CREATE statement on the given table and column information
func (t Table) createSQL() string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%v"`, t.Name)
	var columnparts []string
	for _, column := range t.columns {
		columnpart := column.name + ` ` + column.ctype
		if column.notnull == 1 {
			columnpart = columnpart + ` NOT NULL`
		}
		if column.pk == 1 {
			columnpart = columnpart + ` PRIMARY KEY`
		}
		columnparts = append(columnparts, columnpart)
	}
	return create + `(` + strings.Join(columnparts, `, `) + `);`
}

// insertSQL builds the INSERT statement for all columns but the primary key, geometry last
func (t Table) insertSQL() string {
	var csql, vsql []string
	for _, c := range t.columns {
		if c.name != t.gcolumn && c.pk != 1 {
			csql = append(csql, c.name)
			vsql = append(vsql, `?`)
		}
	}
	csql = append(csql, t.gcolumn)
	vsql = append(vsql, `?`)
	return `INSERT INTO "` + t.Name + `"(` + strings.Join(csql, `,`) + `) VALUES(` + strings.Join(vsql, `,`) + `)`
}

// buildTable creates a given destination table with the necessary gpkg_ information
func buildTable(h *gpkg.Handle, t Table) error {
	if _, err := h.Exec(t.createSQL()); err != nil {
		return fmt.Errorf("error building table in target GeoPackage: %w", err)
	}
	err := h.AddGeometryTable(gpkg.TableDescription{
		Name:          t.Name,
		ShortName:     t.Name,
		Description:   "tile footprints",
		GeometryField: t.gcolumn,
		GeometryType:  gpkg.Polygon,
		SRS:           int32(t.srs.ID),
		Z:             gpkg.Prohibited,
		M:             gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding geometry table in target GeoPackage: %w", err)
	}
	return nil
}
