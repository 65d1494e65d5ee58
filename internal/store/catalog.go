package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// CatalogStore is the scraped-content database for one source. It is
// ephemeral by design: the whole file can be deleted and rebuilt from the
// seed asset plus a full sync without losing anything the user owns.
type CatalogStore struct {
	db     *gorm.DB
	source models.SourceID
	logger *logrus.Logger
}

// OpenCatalog opens (and if necessary creates) the catalog database for a
// source. The schema is append/alter-only; AutoMigrate never drops columns.
func OpenCatalog(path string, source models.SourceID, logger *logrus.Logger) (*CatalogStore, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Movie{},
		&models.Series{},
		&models.Episode{},
		&models.Genre{},
		&models.VideoVariant{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	if err := createSearchIndex(db); err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}

	return &CatalogStore{db: db, source: source, logger: logger}, nil
}

// Source returns the source this store was opened for.
func (s *CatalogStore) Source() models.SourceID { return s.source }

// Close releases the underlying connection.
func (s *CatalogStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertMovie writes a movie by its natural key (source URL). A row already
// present under that URL keeps its surrogate ID and DateAdded; its remaining
// fields are replaced only when the incoming LastUpdated is strictly newer.
// Returns true when a row was inserted or replaced.
func (s *CatalogStore) UpsertMovie(incoming *models.Movie) (bool, error) {
	now := time.Now().Unix()

	var existing models.Movie
	err := s.db.Where("farsilandUrl = ?", incoming.SourceURL).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if incoming.DateAdded == 0 {
			incoming.DateAdded = now
		}
		if incoming.LastUpdated == 0 {
			incoming.LastUpdated = now
		}
		if err := s.db.Create(incoming).Error; err != nil {
			return false, fmt.Errorf("failed to insert movie: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if incoming.LastUpdated <= existing.LastUpdated {
		return false, nil
	}

	incoming.ID = existing.ID
	incoming.DateAdded = existing.DateAdded
	if err := s.db.Save(incoming).Error; err != nil {
		return false, fmt.Errorf("failed to update movie: %w", err)
	}
	return true, nil
}

// UpsertSeries has the same URL-keyed replace semantics as UpsertMovie.
// Derived season/episode totals are preserved from the existing row; they
// are owned by RecomputeSeriesTotals, not by the scraper.
func (s *CatalogStore) UpsertSeries(incoming *models.Series) (bool, error) {
	now := time.Now().Unix()

	var existing models.Series
	err := s.db.Where("farsilandUrl = ?", incoming.SourceURL).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if incoming.DateAdded == 0 {
			incoming.DateAdded = now
		}
		if incoming.LastUpdated == 0 {
			incoming.LastUpdated = now
		}
		if err := s.db.Create(incoming).Error; err != nil {
			return false, fmt.Errorf("failed to insert series: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if incoming.LastUpdated <= existing.LastUpdated {
		return false, nil
	}

	incoming.ID = existing.ID
	incoming.DateAdded = existing.DateAdded
	if incoming.TotalSeasons == 0 {
		incoming.TotalSeasons = existing.TotalSeasons
	}
	if incoming.TotalEpisodes == 0 {
		incoming.TotalEpisodes = existing.TotalEpisodes
	}
	if err := s.db.Save(incoming).Error; err != nil {
		return false, fmt.Errorf("failed to update series: %w", err)
	}
	return true, nil
}

// UpsertEpisode writes an episode by source URL, preserving surrogate ID and
// DateAdded like the other catalog types.
func (s *CatalogStore) UpsertEpisode(incoming *models.Episode) (bool, error) {
	now := time.Now().Unix()

	var existing models.Episode
	err := s.db.Where("farsilandUrl = ?", incoming.SourceURL).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if incoming.DateAdded == 0 {
			incoming.DateAdded = now
		}
		if incoming.LastUpdated == 0 {
			incoming.LastUpdated = now
		}
		if err := s.db.Create(incoming).Error; err != nil {
			return false, fmt.Errorf("failed to insert episode: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if incoming.LastUpdated <= existing.LastUpdated {
		return false, nil
	}

	incoming.ID = existing.ID
	incoming.DateAdded = existing.DateAdded
	if err := s.db.Save(incoming).Error; err != nil {
		return false, fmt.Errorf("failed to update episode: %w", err)
	}
	return true, nil
}

// GetMovieByURL looks a movie up by its natural key.
func (s *CatalogStore) GetMovieByURL(url string) (*models.Movie, error) {
	var movie models.Movie
	err := s.db.Where("farsilandUrl = ?", url).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetMovieByID looks a movie up by surrogate ID.
func (s *CatalogStore) GetMovieByID(id int64) (*models.Movie, error) {
	var movie models.Movie
	err := s.db.Where("id = ?", id).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetSeriesByURL looks a series up by its natural key.
func (s *CatalogStore) GetSeriesByURL(url string) (*models.Series, error) {
	var series models.Series
	err := s.db.Where("farsilandUrl = ?", url).First(&series).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// GetSeriesByID looks a series up by surrogate ID.
func (s *CatalogStore) GetSeriesByID(id int64) (*models.Series, error) {
	var series models.Series
	err := s.db.Where("id = ?", id).First(&series).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// GetEpisodeByURL looks an episode up by its natural key.
func (s *CatalogStore) GetEpisodeByURL(url string) (*models.Episode, error) {
	var episode models.Episode
	err := s.db.Where("farsilandUrl = ?", url).First(&episode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

// GetEpisodeByID looks an episode up by surrogate ID.
func (s *CatalogStore) GetEpisodeByID(id int64) (*models.Episode, error) {
	var episode models.Episode
	err := s.db.Where("id = ?", id).First(&episode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

// RecentMovies returns one page of movies ordered by first-seen timestamp.
// Ordering by dateAdded (not lastUpdated) keeps routine upstream metadata
// refreshes from bubbling old items back to the top of the feed.
func (s *CatalogStore) RecentMovies(page, pageSize int) ([]models.Movie, error) {
	var movies []models.Movie
	err := s.db.Order("dateAdded DESC, id DESC").
		Offset(page * pageSize).Limit(pageSize).
		Find(&movies).Error
	return movies, err
}

// RecentSeries returns one page of series ordered by first-seen timestamp.
func (s *CatalogStore) RecentSeries(page, pageSize int) ([]models.Series, error) {
	var series []models.Series
	err := s.db.Order("dateAdded DESC, id DESC").
		Offset(page * pageSize).Limit(pageSize).
		Find(&series).Error
	return series, err
}

// RecentEpisodes returns one page of episodes ordered by first-seen timestamp.
func (s *CatalogStore) RecentEpisodes(page, pageSize int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := s.db.Order("dateAdded DESC, id DESC").
		Offset(page * pageSize).Limit(pageSize).
		Find(&episodes).Error
	return episodes, err
}

// EpisodesBySeries returns all episodes of a series in airing order.
func (s *CatalogStore) EpisodesBySeries(seriesID int64) ([]models.Episode, error) {
	var episodes []models.Episode
	err := s.db.Where("seriesId = ?", seriesID).
		Order("season ASC, episode ASC").
		Find(&episodes).Error
	return episodes, err
}

// RecomputeSeriesTotals rewrites a series' cached season/episode counts from
// the persisted episode rows. Called after episode sync touches the series.
func (s *CatalogStore) RecomputeSeriesTotals(seriesID int64) error {
	var totals struct {
		Seasons  int
		Episodes int
	}
	err := s.db.Model(&models.Episode{}).
		Select("COUNT(DISTINCT season) AS seasons, COUNT(*) AS episodes").
		Where("seriesId = ?", seriesID).
		Scan(&totals).Error
	if err != nil {
		return fmt.Errorf("failed to count episodes: %w", err)
	}

	return s.db.Model(&models.Series{}).
		Where("id = ?", seriesID).
		Updates(map[string]interface{}{
			"totalSeasons":  totals.Seasons,
			"totalEpisodes": totals.Episodes,
		}).Error
}

// UpsertGenres writes the genre taxonomy rows, replacing on conflict.
func (s *CatalogStore) UpsertGenres(genres []models.Genre) error {
	if len(genres) == 0 {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&genres).Error
}

// Genres returns the full genre taxonomy.
func (s *CatalogStore) Genres() ([]models.Genre, error) {
	var genres []models.Genre
	err := s.db.Order("name ASC").Find(&genres).Error
	return genres, err
}

// ReplaceVideoVariants swaps the stored stream URLs for one content item.
// One row per quality; the whole set is replaced atomically.
func (s *CatalogStore) ReplaceVideoVariants(contentID int64, contentType models.ContentType, variants []models.VideoVariant) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contentId = ? AND contentType = ?", contentID, contentType).
			Delete(&models.VideoVariant{}).Error; err != nil {
			return err
		}
		if len(variants) == 0 {
			return nil
		}
		now := time.Now().Unix()
		for i := range variants {
			variants[i].ID = 0
			variants[i].ContentID = contentID
			variants[i].ContentType = contentType
			if variants[i].CachedAt == 0 {
				variants[i].CachedAt = now
			}
		}
		return tx.Create(&variants).Error
	})
}

// VideoVariantsFor returns the stored stream URLs for one content item.
func (s *CatalogStore) VideoVariantsFor(contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	var variants []models.VideoVariant
	err := s.db.Where("contentId = ? AND contentType = ?", contentID, contentType).
		Order("quality ASC").
		Find(&variants).Error
	return variants, err
}

// Counts returns row counts per content type, for the status endpoint.
func (s *CatalogStore) Counts() (map[models.ContentType]int64, error) {
	counts := make(map[models.ContentType]int64, 3)

	var n int64
	if err := s.db.Model(&models.Movie{}).Count(&n).Error; err != nil {
		return nil, err
	}
	counts[models.ContentTypeMovie] = n

	if err := s.db.Model(&models.Series{}).Count(&n).Error; err != nil {
		return nil, err
	}
	counts[models.ContentTypeSeries] = n

	if err := s.db.Model(&models.Episode{}).Count(&n).Error; err != nil {
		return nil, err
	}
	counts[models.ContentTypeEpisode] = n

	return counts, nil
}
