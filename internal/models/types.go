package models

// SourceID identifies one of the upstream catalog sites. Exactly one source
// is active at a time; each source owns its own catalog database file.
type SourceID string

const (
	SourceFarsiland SourceID = "farsiland"
	SourceFarsiplex SourceID = "farsiplex"
	SourceNamakade  SourceID = "namakade"
)

// AllSources lists every known source in a stable order.
var AllSources = []SourceID{SourceFarsiland, SourceFarsiplex, SourceNamakade}

// Valid reports whether s names a known source.
func (s SourceID) Valid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// ContentType distinguishes catalog item kinds.
type ContentType string

const (
	ContentTypeMovie   ContentType = "movie"
	ContentTypeSeries  ContentType = "series"
	ContentTypeEpisode ContentType = "episode"
)

// VideoQuality is the quality label of a direct stream URL.
type VideoQuality string

const (
	Quality480p  VideoQuality = "480p"
	Quality720p  VideoQuality = "720p"
	Quality1080p VideoQuality = "1080p"
	QualityAuto  VideoQuality = "auto"
)
