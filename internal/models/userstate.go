package models

import "time"

// User-state records live in their own database file, physically separate
// from the per-source catalog databases, so they survive catalog resyncs and
// source switches. All content references here are soft: plain IDs with no
// foreign key, and a dangling reference means "unavailable", never an error.

// WatchlistMovie marks a movie the user wants to watch.
type WatchlistMovie struct {
	MovieID int64     `gorm:"column:movieId;primaryKey;autoIncrement:false" json:"movie_id"`
	Title   string    `gorm:"column:title" json:"title"`
	AddedAt time.Time `gorm:"column:addedAt;not null" json:"added_at"`
}

func (WatchlistMovie) TableName() string { return "watchlist_movies" }

// MonitoredSeries marks a series the user follows for new episodes.
type MonitoredSeries struct {
	SeriesID int64     `gorm:"column:seriesId;primaryKey;autoIncrement:false" json:"series_id"`
	Title    string    `gorm:"column:title" json:"title"`
	AddedAt  time.Time `gorm:"column:addedAt;not null" json:"added_at"`
}

func (MonitoredSeries) TableName() string { return "monitored_series" }

// Favorite marks any content item as a favorite.
type Favorite struct {
	ID          int64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContentID   int64       `gorm:"column:contentId;not null;uniqueIndex:index_favorites_content,priority:1" json:"content_id"`
	ContentType ContentType `gorm:"column:contentType;not null;uniqueIndex:index_favorites_content,priority:2" json:"content_type"`
	Title       string      `gorm:"column:title" json:"title"`
	AddedAt     time.Time   `gorm:"column:addedAt;not null" json:"added_at"`
}

func (Favorite) TableName() string { return "favorites" }

// PlaybackPosition tracks resume state for one content item. The composite
// key (contentId, contentType) admits exactly one row per item; conflicting
// writes are last-write-wins.
type PlaybackPosition struct {
	ContentID     int64        `gorm:"column:contentId;primaryKey;autoIncrement:false" json:"content_id"`
	ContentType   ContentType  `gorm:"column:contentType;primaryKey" json:"content_type"`
	PositionMs    int64        `gorm:"column:positionMs;not null" json:"position_ms"`
	DurationMs    int64        `gorm:"column:durationMs;not null" json:"duration_ms"`
	Quality       VideoQuality `gorm:"column:quality" json:"quality"`
	LastWatchedAt time.Time    `gorm:"column:lastWatchedAt;not null" json:"last_watched_at"`
	IsCompleted   bool         `gorm:"column:isCompleted;not null" json:"is_completed"`
	CompletedAt   *time.Time   `gorm:"column:completedAt" json:"completed_at,omitempty"`
}

func (PlaybackPosition) TableName() string { return "playback_positions" }

// EpisodeProgress tracks per-episode watch state for season-completion
// queries. EpisodeID is globally unique; (seriesId, isCompleted) carries a
// composite index for "how much of this season is watched" lookups.
type EpisodeProgress struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EpisodeID     int64      `gorm:"column:episodeId;not null;uniqueIndex:index_episode_progress_episodeId" json:"episode_id"`
	SeriesID      int64      `gorm:"column:seriesId;not null;index:index_episode_progress_series_completed,priority:1" json:"series_id"`
	Season        int        `gorm:"column:season;not null" json:"season"`
	Episode       int        `gorm:"column:episode;not null" json:"episode"`
	PositionMs    int64      `gorm:"column:positionMs;not null" json:"position_ms"`
	DurationMs    int64      `gorm:"column:durationMs;not null" json:"duration_ms"`
	LastWatchedAt time.Time  `gorm:"column:lastWatchedAt;not null" json:"last_watched_at"`
	IsCompleted   bool       `gorm:"column:isCompleted;not null;index:index_episode_progress_series_completed,priority:2" json:"is_completed"`
	CompletedAt   *time.Time `gorm:"column:completedAt" json:"completed_at,omitempty"`
}

func (EpisodeProgress) TableName() string { return "episode_progress" }

// Playlist is a named, user-ordered collection of content items.
type Playlist struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatedAt time.Time `gorm:"column:createdAt;not null" json:"created_at"`
}

func (Playlist) TableName() string { return "playlists" }

// PlaylistItem is one entry in a playlist. Position is the user ordering.
type PlaylistItem struct {
	ID          int64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PlaylistID  int64       `gorm:"column:playlistId;not null;index:index_playlist_items_playlistId" json:"playlist_id"`
	ContentID   int64       `gorm:"column:contentId;not null" json:"content_id"`
	ContentType ContentType `gorm:"column:contentType;not null" json:"content_type"`
	Title       string      `gorm:"column:title" json:"title"`
	Position    int         `gorm:"column:position;not null" json:"position"`
	AddedAt     time.Time   `gorm:"column:addedAt;not null" json:"added_at"`
}

func (PlaylistItem) TableName() string { return "playlist_items" }

// SearchHistory records one aggregated search.
type SearchHistory struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Query      string    `gorm:"column:query;not null" json:"query"`
	SearchedAt time.Time `gorm:"column:searchedAt;not null" json:"searched_at"`
}

func (SearchHistory) TableName() string { return "search_history" }

// Notification is a user-visible message, written for example when a sync
// cycle exhausts its retry budget.
type Notification struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"column:kind;not null" json:"kind"`
	Message   string    `gorm:"column:message;not null" json:"message"`
	CreatedAt time.Time `gorm:"column:createdAt;not null" json:"created_at"`
	Read      bool      `gorm:"column:read;not null" json:"read"`
}

func (Notification) TableName() string { return "notifications" }

// NotificationKindSyncFailed marks notifications about failed sync cycles.
const NotificationKindSyncFailed = "sync_failed"

// Preference is a single key/value app preference (active source, whether
// notifications are enabled, ...).
type Preference struct {
	Key   string `gorm:"column:key;primaryKey" json:"key"`
	Value string `gorm:"column:value;not null" json:"value"`
}

func (Preference) TableName() string { return "app_preferences" }

// Preference keys.
const (
	PrefActiveSource         = "active_source"
	PrefNotificationsEnabled = "notifications_enabled"
)

// completionThreshold is the watched fraction at which an item counts as
// completed even without an explicit mark.
const completionThreshold = 0.95

// IsWatchedEnough applies the unified completion policy: completed when at
// least 95% watched or when explicitly marked. Both PlaybackPosition and
// EpisodeProgress writes go through this so the two never disagree.
func IsWatchedEnough(positionMs, durationMs int64, explicit bool) bool {
	if explicit {
		return true
	}
	if durationMs <= 0 {
		return false
	}
	return float64(positionMs)/float64(durationMs) >= completionThreshold
}
