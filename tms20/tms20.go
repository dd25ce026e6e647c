// Package tms20 reads OGC Tile Matrix Set (v2.0) documents, so a tile layer can be configured
// from a well-known tiling scheme instead of hand-picked zoom limits and tile sizes.
// See https://www.ogc.org/standard/tms/
package tms20

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"
	"github.com/perimeterx/marshmallow"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const embeddedDir = "tilematrixsets"

var (
	//go:embed tilematrixsets/*.json
	embeddedTileMatrixSetsJSONFS embed.FS
	embeddedTileMatrixSetsCache  = make(map[string]*TileMatrixSet)
	embeddedTileMatrixSetsMu     sync.Mutex
)

// EmbeddedIDs lists the identifiers of the tile matrix sets shipped with this package.
func EmbeddedIDs() []string {
	entries, err := fs.ReadDir(embeddedTileMatrixSetsJSONFS, embeddedDir)
	if err != nil {
		panic(fmt.Errorf("embedded tile matrix sets unreadable: %w", err))
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids
}

func LoadEmbeddedTileMatrixSet(id string) (TileMatrixSet, error) {
	embeddedTileMatrixSetsMu.Lock()
	defer embeddedTileMatrixSetsMu.Unlock()

	var tms TileMatrixSet
	if cached, ok := embeddedTileMatrixSetsCache[id]; ok {
		return *cached, nil
	}
	tmsJSON, err := embeddedTileMatrixSetsJSONFS.ReadFile(embeddedDir + "/" + id + ".json")
	if err != nil {
		return tms, fmt.Errorf("unknown tile matrix set %q: %w", id, err)
	}
	if err = json.Unmarshal(tmsJSON, &tms); err != nil {
		return tms, fmt.Errorf("could not parse tile matrix set %q: %w", id, err)
	}
	embeddedTileMatrixSetsCache[id] = &tms
	return tms, nil
}

// LoadJSONTileMatrixSet reads a tile matrix set document from disk.
func LoadJSONTileMatrixSet(path string) (TileMatrixSet, error) {
	var tms TileMatrixSet
	tmsJSON, err := os.ReadFile(path)
	if err != nil {
		return tms, err
	}
	if err = json.Unmarshal(tmsJSON, &tms); err != nil {
		return tms, fmt.Errorf("could not parse tile matrix set %v: %w", path, err)
	}
	return tms, nil
}

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier. Implementation of 'identifier'
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Brief narrative description of this tile matrix set, normally available for display to a human
	Description string `json:"description,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitnil,min=1" json:"orderedAxes"`
	// Coordinate Reference System (CRS)
	CRS URICRS `json:"-"`
	// Reference to a well-known scale set
	WellKnownScaleSet string `validate:"omitempty,uri" json:"wellKnownScaleSet,omitempty"`
	// Describes scale levels and its tile matrices
	TileMatrices map[int]TileMatrix `validate:"required,min=1" json:"-"`
}

func (tms *TileMatrixSet) MarshalJSON() ([]byte, error) {
	zooms := maps.Keys(tms.TileMatrices)
	slices.Sort(zooms)
	tileMatrices := make([]*TileMatrix, 0, len(zooms))
	for _, z := range zooms {
		tm := tms.TileMatrices[z]
		tileMatrices = append(tileMatrices, &tm)
	}
	return json.Marshal(struct {
		TileMatrixSet                     // not a pointer, because it would cause recursion to this function
		SpecialCRS          *URICRS       `json:"crs"`
		SpecialTileMatrices []*TileMatrix `json:"tileMatrices"`
	}{
		TileMatrixSet:       *tms,
		SpecialCRS:          &tms.CRS,
		SpecialTileMatrices: tileMatrices,
	})
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	err := defaults.Set(tms)
	if err != nil {
		return err
	}

	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return fmt.Errorf(`missing key "crs"`)
	}
	if err = tms.CRS.UnmarshalJSONFromMap(rawCrs); err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return fmt.Errorf(`missing key "tileMatrices"`)
	}
	tms.TileMatrices, err = unmarshalTileMatrices(rawTileMatrices)
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tms)
}

func unmarshalTileMatrices(rawTileMatrices interface{}) (map[int]TileMatrix, error) {
	rawTileMatricesList, ok := rawTileMatrices.([]interface{})
	if !ok {
		return nil, fmt.Errorf(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[int]TileMatrix, len(rawTileMatricesList))
	for _, rawTileMatrix := range rawTileMatricesList {
		var tileMatrix TileMatrix
		if err := tileMatrix.UnmarshalJSONFromMap(rawTileMatrix); err != nil {
			return nil, err
		}
		tileMatrixID, err := strconv.ParseInt(tileMatrix.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("only integer-like ids are supported for tile matrices: %w", err)
		}
		tileMatrices[int(tileMatrixID)] = tileMatrix
	}
	return tileMatrices, nil
}

var (
	crsURIRegexURL = regexp.MustCompile("https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$")
	crsURIRegexURN = regexp.MustCompile("^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$")
)

// URICRS is a CRS referenced by an OGC URI (or URN), like http://www.opengis.net/def/crs/EPSG/0/3857
type URICRS struct {
	description   string
	uri           string
	authorityName string
	authorityCode string
	// Whether it should be marshalled as just a string
	asString bool
}

func (crs *URICRS) MarshalJSON() ([]byte, error) {
	if crs.asString {
		return json.Marshal(crs.uri)
	}
	return json.Marshal(struct {
		Description string `json:"description,omitempty"`
		URI         string `json:"uri"`
	}{
		Description: crs.description,
		URI:         crs.uri,
	})
}

// UnmarshalJSONFromMap accepts both the plain string and the {"uri": ...} object form.
func (crs *URICRS) UnmarshalJSONFromMap(data interface{}) error {
	var dataMap map[string]interface{}
	switch d := data.(type) {
	case string:
		dataMap = map[string]interface{}{"uri": d}
		crs.asString = true
	case map[string]interface{}:
		dataMap = d
	default:
		return fmt.Errorf(`wrong type for crs: %T`, data)
	}

	if rawDescription, ok := dataMap["description"]; ok {
		if crs.description, ok = rawDescription.(string); !ok {
			return fmt.Errorf(`description property is not a string but a %T`, rawDescription)
		}
	}

	rawURI, ok := dataMap["uri"]
	if !ok {
		return fmt.Errorf(`uri property not found, only uri crs references are supported`)
	}
	if crs.uri, ok = rawURI.(string); !ok {
		return fmt.Errorf(`uri property is not a string but a %T`, rawURI)
	}

	uriParts := crsURIRegexURL.FindStringSubmatch(crs.uri)
	if uriParts == nil {
		uriParts = crsURIRegexURN.FindStringSubmatch(crs.uri)
	}
	if uriParts == nil {
		return fmt.Errorf(`could not parse crs uri "%v"`, crs.uri)
	}
	crs.authorityName = uriParts[1]
	crs.authorityCode = uriParts[2]
	return nil
}

func (crs *URICRS) Description() string {
	return crs.description
}

func (crs *URICRS) AuthorityName() string {
	return crs.authorityName
}

func (crs *URICRS) AuthorityCode() string {
	return crs.authorityCode
}

// Code is the CRS as AUTHORITY:CODE, e.g. EPSG:3857 or OGC:CRS84
func (crs *URICRS) Code() string {
	return crs.authorityName + ":" + crs.authorityCode
}

// A 2D Point in the CRS indicated elsewhere
type TwoDPoint [2]float64

func (p TwoDPoint) XY() [2]float64 {
	return p
}

// A tile matrix, usually corresponding to a particular zoom level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier selecting one of the scales defined in the TileMatrixSet and representing the scaleDenominator the tile.
	ID string `validate:"required" json:"id"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix (_topLeft_ or _bottomLeft_) used as the origin for numbering tile rows and columns.
	CornerOfOrigin CornerOfOrigin `validate:"omitempty,oneof=topLeft bottomLeft" json:"cornerOfOrigin,omitempty"`
	// Position in CRS coordinates of the corner of origin. This position is also a corner of the (0, 0) tile.
	PointOfOrigin TwoDPoint `json:"pointOfOrigin"`
	// Width of each tile of this tile matrix in pixels
	TileWidth uint `validate:"required,min=1" json:"tileWidth"`
	// Height of each tile of this tile matrix in pixels
	TileHeight uint `validate:"required,min=1" json:"tileHeight"`
	// Width of the matrix (number of tiles in width)
	MatrixWidth uint `validate:"required,min=1" json:"matrixWidth"`
	// Height of the matrix (number of tiles in height)
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data interface{}) error {
	err := defaults.Set(tm)
	if err != nil {
		return err
	}

	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`data is not a map but a %T`, data)
	}

	rest, err := marshmallow.UnmarshalFromJSONMap(dataMap, tm, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	if _, ok := rest["variableMatrixWidths"]; ok {
		return fmt.Errorf(`tile matrix %v: variable matrix widths are not supported`, tm.ID)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tm)
}

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

func (c *CornerOfOrigin) UnmarshalJSONFromMap(data interface{}) error {
	dataString, ok := data.(string)
	if !ok {
		return fmt.Errorf(`CornerOfOrigin data is not a string but a %T`, data)
	}
	switch dataString {
	case "", string(TopLeft):
		*c = TopLeft
	case string(BottomLeft):
		*c = BottomLeft
	default:
		return fmt.Errorf(`unknown CornerOfOrigin: %v`, data)
	}
	return nil
}

// SRID is the numeric authority code. It panics for non-numeric codes like CRS84.
func (tms *TileMatrixSet) SRID() uint {
	code, err := strconv.ParseUint(tms.CRS.AuthorityCode(), 10, 64)
	if err != nil {
		panic(fmt.Errorf(`could not parse uri authority code "%w"`, err))
	}
	return uint(code)
}

// ZoomRange returns the lowest and highest tile matrix id.
func (tms *TileMatrixSet) ZoomRange() (int, int) {
	zooms := maps.Keys(tms.TileMatrices)
	sort.Ints(zooms)
	return zooms[0], zooms[len(zooms)-1]
}

// TileSize returns the width and height in pixels of the tiles of the lowest tile matrix.
func (tms *TileMatrixSet) TileSize() (uint, uint) {
	minZoom, _ := tms.ZoomRange()
	tm := tms.TileMatrices[minZoom]
	return tm.TileWidth, tm.TileHeight
}

// Size returns the number of tiles in width and height as the X and Y of a slippy.Tile.
func (tms *TileMatrixSet) Size(zoom uint) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrices[int(zoom)]
	if !ok {
		return nil, false
	}
	return slippy.NewTile(zoom, tm.MatrixWidth, tm.MatrixHeight), true
}

// FromNative returns the tile containing pt, a point in the tile matrix set's CRS.
func (tms *TileMatrixSet) FromNative(zoom uint, pt geom.Point) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrices[int(zoom)]
	if !ok {
		return nil, false
	}

	tileSizeX := float64(tm.TileWidth) * tm.CellSize
	minX := tm.PointOfOrigin.XY()[0]
	x := int(math.Floor((pt.X() - minX) / tileSizeX))
	if x < 0 || uint(x) >= tm.MatrixWidth {
		return nil, false
	}

	tileSizeY := float64(tm.TileHeight) * tm.CellSize
	var y int
	switch tm.CornerOfOrigin {
	case BottomLeft:
		minY := tm.PointOfOrigin.XY()[1]
		y = int(math.Floor((pt.Y() - minY) / tileSizeY))
	default:
		maxY := tm.PointOfOrigin.XY()[1]
		y = int(math.Floor((maxY - pt.Y()) / tileSizeY))
	}
	if y < 0 || uint(y) >= tm.MatrixHeight {
		return nil, false
	}

	return slippy.NewTile(zoom, uint(x), uint(y)), true
}

// ToNative returns the top left corner of tile in the tile matrix set's CRS.
func (tms *TileMatrixSet) ToNative(tile *slippy.Tile) (geom.Point, bool) {
	topLeftPt := geom.Point{}
	tm, ok := tms.TileMatrices[int(tile.Z)]
	if !ok {
		return topLeftPt, false
	}
	if tile.X > tm.MatrixWidth || tile.Y > tm.MatrixHeight {
		// >, not >= because "should be able to take tiles with x and y values 1 higher than the max"
		return topLeftPt, false
	}

	tileSizeX := float64(tm.TileWidth) * tm.CellSize
	topLeftPt[0] = tm.PointOfOrigin.XY()[0] + float64(tile.X)*tileSizeX

	tileSizeY := float64(tm.TileHeight) * tm.CellSize
	switch tm.CornerOfOrigin {
	case BottomLeft:
		topLeftPt[1] = tm.PointOfOrigin.XY()[1] + float64(tile.Y+1)*tileSizeY
	default:
		topLeftPt[1] = tm.PointOfOrigin.XY()[1] - float64(tile.Y)*tileSizeY
	}

	return topLeftPt, true
}

// Extent returns the extent of tile in the tile matrix set's CRS.
func (tms *TileMatrixSet) Extent(tile *slippy.Tile) (geom.Extent, bool) {
	topLeft, ok := tms.ToNative(tile)
	if !ok {
		return geom.Extent{}, false
	}
	tm := tms.TileMatrices[int(tile.Z)]
	tileSizeX := float64(tm.TileWidth) * tm.CellSize
	tileSizeY := float64(tm.TileHeight) * tm.CellSize
	return geom.Extent{topLeft.X(), topLeft.Y() - tileSizeY, topLeft.X() + tileSizeX, topLeft.Y()}, true
}
