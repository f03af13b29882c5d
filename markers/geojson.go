package markers

import (
	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollection encodes the current marker set as GeoJSON for map
// clients. Geometry is [lng, lat] per the GeoJSON spec.
func (p *Projection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range p.Markers() {
		f := geojson.NewPointFeature([]float64{m.Longitude, m.Latitude})
		f.ID = m.ID
		f.SetProperty("glyph", string(m.Glyph))
		f.SetProperty("title", m.Popup.Title)
		if m.Popup.Description != "" {
			f.SetProperty("description", m.Popup.Description)
		}
		if m.Popup.Author != "" {
			f.SetProperty("author", m.Popup.Author)
		}
		if m.Popup.ReportedAt != "" {
			f.SetProperty("reported_at", m.Popup.ReportedAt)
		}
		f.SetProperty("coordinates", m.Popup.Coordinates)
		fc.AddFeature(f)
	}

	return fc
}
