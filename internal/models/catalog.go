package models

import (
	"encoding/json"
	"strings"
)

// GenreDelimiter separates genre names in the persisted denormalized form.
const GenreDelimiter = "|"

// Movie is a catalog row for a single film.
//
// SourceURL is the natural key: upserts match on it and preserve the
// existing surrogate ID and DateAdded. DateAdded is the first-seen-by-us
// timestamp (immutable); LastUpdated is the upstream modification timestamp
// used by the incremental sync comparison.
type Movie struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Title       string  `gorm:"column:title;not null" json:"title"`
	PosterURL   string  `gorm:"column:posterUrl" json:"poster_url"`
	SourceURL   string  `gorm:"column:farsilandUrl;not null;uniqueIndex:index_cached_movies_farsilandUrl" json:"source_url"`
	Description string  `gorm:"column:description" json:"description"`
	Year        int     `gorm:"column:year" json:"year"`
	Rating      float64 `gorm:"column:rating" json:"rating"`
	Runtime     int     `gorm:"column:runtime" json:"runtime"`
	Director    string  `gorm:"column:director" json:"director"`
	Cast        string  `gorm:"column:cast" json:"cast"`
	Genres      string  `gorm:"column:genres" json:"-"`
	DateAdded   int64   `gorm:"column:dateAdded;not null" json:"date_added"`
	LastUpdated int64   `gorm:"column:lastUpdated;not null" json:"last_updated"`
}

func (Movie) TableName() string { return "cached_movies" }

// GenreList explodes the persisted delimited genre string.
func (m *Movie) GenreList() []string { return SplitGenres(m.Genres) }

// MarshalJSON emits the genres as a list; the delimited storage form never
// leaves the process.
func (m Movie) MarshalJSON() ([]byte, error) {
	type plain Movie
	return json.Marshal(struct {
		plain
		Genres []string `json:"genres"`
	}{plain(m), m.GenreList()})
}

// Series is a catalog row for a show. TotalSeasons and TotalEpisodes are
// derived from the persisted episode rows after each episode sync, not
// authoritative on their own.
type Series struct {
	ID            int64   `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Title         string  `gorm:"column:title;not null" json:"title"`
	PosterURL     string  `gorm:"column:posterUrl" json:"poster_url"`
	BackdropURL   string  `gorm:"column:backdropUrl" json:"backdrop_url"`
	SourceURL     string  `gorm:"column:farsilandUrl;not null;uniqueIndex:index_cached_series_farsilandUrl" json:"source_url"`
	Description   string  `gorm:"column:description" json:"description"`
	Year          int     `gorm:"column:year" json:"year"`
	Rating        float64 `gorm:"column:rating" json:"rating"`
	TotalSeasons  int     `gorm:"column:totalSeasons;not null" json:"total_seasons"`
	TotalEpisodes int     `gorm:"column:totalEpisodes;not null" json:"total_episodes"`
	Cast          string  `gorm:"column:cast" json:"cast"`
	Genres        string  `gorm:"column:genres" json:"-"`
	DateAdded     int64   `gorm:"column:dateAdded;not null" json:"date_added"`
	LastUpdated   int64   `gorm:"column:lastUpdated;not null" json:"last_updated"`
}

func (Series) TableName() string { return "cached_series" }

func (s *Series) GenreList() []string { return SplitGenres(s.Genres) }

func (s Series) MarshalJSON() ([]byte, error) {
	type plain Series
	return json.Marshal(struct {
		plain
		Genres []string `json:"genres"`
	}{plain(s), s.GenreList()})
}

// Episode is a catalog row for one episode. SeriesID is a soft reference to
// Series.ID with no enforced foreign key. Episode holds the scaled episode
// number (see EncodeEpisodeNumber) so fractional upstream numbering like
// 14.5 survives the integer column.
type Episode struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	SeriesID     int64  `gorm:"column:seriesId;not null;uniqueIndex:index_cached_episodes_series_season_episode,priority:1" json:"series_id"`
	SeriesTitle  string `gorm:"column:seriesTitle" json:"series_title"`
	Season       int    `gorm:"column:season;not null;uniqueIndex:index_cached_episodes_series_season_episode,priority:2" json:"season"`
	Episode      int    `gorm:"column:episode;not null;uniqueIndex:index_cached_episodes_series_season_episode,priority:3" json:"-"`
	Title        string `gorm:"column:title;not null" json:"title"`
	Description  string `gorm:"column:description" json:"description"`
	ThumbnailURL string `gorm:"column:thumbnailUrl" json:"thumbnail_url"`
	SourceURL    string `gorm:"column:farsilandUrl;not null;uniqueIndex:index_cached_episodes_farsilandUrl" json:"source_url"`
	AirDate      string `gorm:"column:airDate" json:"air_date"`
	Runtime      int    `gorm:"column:runtime" json:"runtime"`
	DateAdded    int64  `gorm:"column:dateAdded;not null" json:"date_added"`
	LastUpdated  int64  `gorm:"column:lastUpdated;not null" json:"last_updated"`
}

func (Episode) TableName() string { return "cached_episodes" }

// EpisodeNumber decodes the stored scaled value back to the upstream number.
func (e *Episode) EpisodeNumber() float64 { return DecodeEpisodeNumber(e.Episode) }

// MarshalJSON emits the decoded episode number (14.5, never the stored 145).
func (e Episode) MarshalJSON() ([]byte, error) {
	type plain Episode
	return json.Marshal(struct {
		plain
		Episode float64 `json:"episode"`
	}{plain(e), e.EpisodeNumber()})
}

// Genre is a catalog taxonomy row.
type Genre struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`
	Slug string `gorm:"column:slug;not null" json:"slug"`
}

func (Genre) TableName() string { return "cached_genres" }

// VideoVariant is one direct media URL for a content item at one quality.
// Uniqueness is (contentId, contentType, quality): one row per quality.
type VideoVariant struct {
	ID          int64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContentID   int64        `gorm:"column:contentId;not null;uniqueIndex:index_cached_video_urls_content_quality,priority:1" json:"content_id"`
	ContentType ContentType  `gorm:"column:contentType;not null;uniqueIndex:index_cached_video_urls_content_quality,priority:2" json:"content_type"`
	Quality     VideoQuality `gorm:"column:quality;not null;uniqueIndex:index_cached_video_urls_content_quality,priority:3" json:"quality"`
	MP4URL      string       `gorm:"column:mp4Url;not null" json:"mp4_url"`
	FileSizeMB  float64      `gorm:"column:fileSizeMB" json:"file_size_mb"`
	CachedAt    int64        `gorm:"column:cachedAt;not null" json:"cached_at"`
}

func (VideoVariant) TableName() string { return "cached_video_urls" }

// episodeScale is the factor applied when persisting episode numbers.
// Upstream sites occasionally publish fractional episodes (specials aired
// between regular episodes, e.g. 14.5); scaling by 10 keeps them in an
// integer column without precision loss.
const episodeScale = 10

// EncodeEpisodeNumber converts an upstream episode number to its stored
// integer form (14.5 -> 145, 7 -> 70).
func EncodeEpisodeNumber(n float64) int {
	if n < 0 {
		n = 0
	}
	return int(n*episodeScale + 0.5)
}

// DecodeEpisodeNumber converts the stored form back (145 -> 14.5).
func DecodeEpisodeNumber(v int) float64 {
	return float64(v) / episodeScale
}

// SplitGenres explodes a delimited genre string, dropping empty segments.
func SplitGenres(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, GenreDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinGenres builds the persisted delimited form.
func JoinGenres(genres []string) string {
	return strings.Join(genres, GenreDelimiter)
}
