package booking

import (
	"encoding/binary"
	"encoding/json"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// Van is the mobile unit serving a town and where it parks.
type Van struct {
	ID       string
	Name     string
	Location string
	// Lon/Lat of the parking spot, zero when unknown.
	Lon, Lat float64
}

var vanDirectory = map[string]Van{
	"Cape Town": {
		ID: "VAN-001", Name: "Radhiant Mobile Unit Alpha", Location: "Tygerberg Hospital Parking",
		Lon: 18.6130, Lat: -33.9133,
	},
	"Johannesburg": {
		ID: "VAN-002", Name: "Radhiant Mobile Unit Beta", Location: "Charlotte Maxeke Hospital Parking",
		Lon: 28.0436, Lat: -26.1745,
	},
	"Durban": {
		ID: "VAN-003", Name: "Radhiant Mobile Unit Gamma", Location: "Addington Hospital Parking",
		Lon: 31.0445, Lat: -29.8640,
	},
}

// VanForTown resolves the van scheduled for town, or a placeholder unit when
// the town has no fixed schedule.
func VanForTown(town string) Van {
	if v, ok := vanDirectory[town]; ok {
		return v
	}
	return Van{ID: "VAN-000", Name: "Radhiant Mobile Unit", Location: town + " - Location TBD"}
}

func (v Van) hasPoint() bool { return v.Lon != 0 || v.Lat != 0 }

func (v Van) point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{v.Lon, v.Lat}).SetSRID(4326)
}

// WKB encodes the parking spot for storage. Unknown spots encode to nil.
func (v Van) WKB() ([]byte, error) {
	if !v.hasPoint() {
		return nil, nil
	}
	return wkb.Marshal(v.point(), binary.LittleEndian)
}

// pointGeoJSON turns a stored WKB point back into GeoJSON.
func pointGeoJSON(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
