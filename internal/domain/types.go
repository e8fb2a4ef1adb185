package domain

// StorageKey is the key the report blob is kept under in the local store.
const StorageKey = "reportData"

// RevisionKey holds a counter bumped whenever records are removed or the
// report is reset, so forms rendered before the change can be recognised.
const RevisionKey = "reportRevision"

// DefaultLocation names the report when the user leaves the location empty.
const DefaultLocation = "Workshop"

// ReportData is the full form state: the site location plus one record per
// inspection card.
type ReportData struct {
	Location    string             `json:"location"`
	Timestamp   string             `json:"timestamp"`
	Inspections []InspectionRecord `json:"inspections"`
	// Revision is the record-list revision the form was rendered from.
	Revision int64 `json:"revision,omitempty"`
}

// InspectionRecord is a single inspection card.
type InspectionRecord struct {
	PhotoNo      string `json:"photoNo"`
	Location     string `json:"location"`
	Comments     string `json:"comments"`
	PhotoDataURL string `json:"photoDataUrl,omitempty"`
	// PhotoKey points at the original upload in the photo store.
	PhotoKey string `json:"photoKey,omitempty"`
}

// HasPhoto reports whether a compressed photo is attached.
func (r InspectionRecord) HasPhoto() bool {
	return r.PhotoDataURL != ""
}

// NewReport returns a blank report with n empty inspection records.
func NewReport(n int) *ReportData {
	return &ReportData{Inspections: make([]InspectionRecord, n)}
}

// DisplayLocation returns the report location, or DefaultLocation when unset.
func (d *ReportData) DisplayLocation() string {
	if d == nil || d.Location == "" {
		return DefaultLocation
	}
	return d.Location
}
