// Package markers maintains a 1:1 mapping between the current report
// snapshot and visual map markers, plus one singleton marker for the
// viewer's live position.
package markers

import (
	"fmt"
	"sync"

	"safemap/models"
)

// Glyph selects the icon rendered for a marker.
type Glyph string

const (
	GlyphSafe    Glyph = "safe"
	GlyphUnsafe  Glyph = "unsafe"
	GlyphCurrent Glyph = "current"
)

// LiveMarkerID identifies the viewer's position marker.
const LiveMarkerID = "live-position"

// Popup is the detail panel shown when a marker is clicked.
type Popup struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	ReportedAt  string `json:"reported_at"`
	Coordinates string `json:"coordinates"`
}

// Marker is one renderable map marker.
type Marker struct {
	ID        string  `json:"id"`
	Glyph     Glyph   `json:"glyph"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Popup     Popup   `json:"popup"`
}

// Projection reconciles the marker set against each snapshot. Markers for
// reports that did not change keep their identity across updates so the
// renderer never re-creates them.
type Projection struct {
	mu      sync.RWMutex
	byID    map[string]*Marker
	order   []string
	live    *Marker
}

// NewProjection creates an empty projection.
func NewProjection() *Projection {
	return &Projection{byID: make(map[string]*Marker)}
}

// Apply reconciles the marker set with a snapshot: markers absent from
// the snapshot are removed, new entries get fresh markers, unchanged
// entries keep their existing marker untouched. Returns how many markers
// were added and removed.
func (p *Projection) Apply(snapshot models.Snapshot) (added, removed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(snapshot.Reports))
	order := make([]string, 0, len(snapshot.Reports))

	for _, report := range snapshot.Reports {
		seen[report.ID] = true
		order = append(order, report.ID)
		if _, ok := p.byID[report.ID]; ok {
			continue
		}
		p.byID[report.ID] = markerForReport(report)
		added++
	}

	for id := range p.byID {
		if !seen[id] {
			delete(p.byID, id)
			removed++
		}
	}

	p.order = order
	return added, removed
}

// SetLivePosition places or moves the viewer's position marker. The
// marker is created once and then repositioned in place; it never goes
// back to absent.
func (p *Projection) SetLivePosition(lat, lng float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	coords := fmt.Sprintf("%.6f, %.6f", lat, lng)
	if p.live != nil {
		p.live.Latitude = lat
		p.live.Longitude = lng
		p.live.Popup.Coordinates = coords
		return
	}
	p.live = &Marker{
		ID:        LiveMarkerID,
		Glyph:     GlyphCurrent,
		Latitude:  lat,
		Longitude: lng,
		Popup: Popup{
			Title:       "Your Location",
			Coordinates: coords,
		},
	}
}

// LiveMarker returns the live-position marker, if one has been placed.
func (p *Projection) LiveMarker() (Marker, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.live == nil {
		return Marker{}, false
	}
	return *p.live, true
}

// Markers returns the report markers in snapshot order, followed by the
// live-position marker when present.
func (p *Projection) Markers() []*Marker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Marker, 0, len(p.order)+1)
	for _, id := range p.order {
		if m, ok := p.byID[id]; ok {
			out = append(out, m)
		}
	}
	if p.live != nil {
		out = append(out, p.live)
	}
	return out
}

// Get returns the marker for a report id.
func (p *Projection) Get(id string) (*Marker, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.byID[id]
	return m, ok
}

func markerForReport(report models.Report) *Marker {
	glyph := GlyphSafe
	title := "Verified Safe Zone"
	if report.Type == models.ReportUnsafe {
		glyph = GlyphUnsafe
		title = "Caution Required"
	}

	return &Marker{
		ID:        report.ID,
		Glyph:     glyph,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Popup: Popup{
			Title:       title,
			Description: report.Description,
			Author:      report.AuthorDisplayName,
			ReportedAt:  report.CreatedAt.Format("Jan 2, 2006, 3:04 PM"),
			Coordinates: fmt.Sprintf("%.6f, %.6f", report.Latitude, report.Longitude),
		},
	}
}
