package store

import (
	"strings"
	"unicode"

	"github.com/farsilandtv/farsihub/internal/models"
	"gorm.io/gorm"
)

// The full-text index is a companion FTS5 table mirrored from the movie and
// series tables by triggers, so it can never drift from the primary rows.

const searchSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS catalog_fts USING fts5(
	title,
	description,
	contentType UNINDEXED,
	contentId UNINDEXED
);

CREATE TRIGGER IF NOT EXISTS cached_movies_fts_insert AFTER INSERT ON cached_movies BEGIN
	INSERT INTO catalog_fts(title, description, contentType, contentId)
	VALUES (new.title, new.description, 'movie', new.id);
END;

CREATE TRIGGER IF NOT EXISTS cached_movies_fts_update AFTER UPDATE ON cached_movies BEGIN
	DELETE FROM catalog_fts WHERE contentType = 'movie' AND contentId = old.id;
	INSERT INTO catalog_fts(title, description, contentType, contentId)
	VALUES (new.title, new.description, 'movie', new.id);
END;

CREATE TRIGGER IF NOT EXISTS cached_movies_fts_delete AFTER DELETE ON cached_movies BEGIN
	DELETE FROM catalog_fts WHERE contentType = 'movie' AND contentId = old.id;
END;

CREATE TRIGGER IF NOT EXISTS cached_series_fts_insert AFTER INSERT ON cached_series BEGIN
	INSERT INTO catalog_fts(title, description, contentType, contentId)
	VALUES (new.title, new.description, 'series', new.id);
END;

CREATE TRIGGER IF NOT EXISTS cached_series_fts_update AFTER UPDATE ON cached_series BEGIN
	DELETE FROM catalog_fts WHERE contentType = 'series' AND contentId = old.id;
	INSERT INTO catalog_fts(title, description, contentType, contentId)
	VALUES (new.title, new.description, 'series', new.id);
END;

CREATE TRIGGER IF NOT EXISTS cached_series_fts_delete AFTER DELETE ON cached_series BEGIN
	DELETE FROM catalog_fts WHERE contentType = 'series' AND contentId = old.id;
END;
`

func createSearchIndex(db *gorm.DB) error {
	for _, stmt := range splitStatements(searchSchema) {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// splitStatements breaks the schema into single statements; trigger bodies
// contain semicolons, so the split key is the END/"no BEGIN yet" structure.
func splitStatements(schema string) []string {
	var stmts []string
	var current strings.Builder
	inTrigger := false

	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && current.Len() == 0 {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		upper := strings.ToUpper(trimmed)
		if strings.Contains(upper, "BEGIN") {
			inTrigger = true
		}
		if inTrigger {
			if strings.HasPrefix(upper, "END;") {
				stmts = append(stmts, current.String())
				current.Reset()
				inTrigger = false
			}
		} else if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, current.String())
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// SearchHit is one full-text match.
type SearchHit struct {
	ContentID   int64              `json:"content_id"`
	ContentType models.ContentType `json:"content_type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
}

// SanitizeFTSQuery rewrites user-entered text into an FTS5 query that cannot
// reach the engine's operator syntax: input is cut into letter/digit runs
// and each run is emitted as a quoted prefix token. Operator characters
// ("*", quotes, parens, NEAR, column filters) and LIKE wildcards all land
// between runs and vanish, so a raw "%" or "\"" never parses as an operator
// and never matches the whole catalog. An empty result means "match
// nothing".
func SanitizeFTSQuery(raw string) string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, `"`+current.String()+`"*`)
			current.Reset()
		}
	}

	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return strings.Join(tokens, " ")
}

// Search runs a sanitized full-text query over movie and series titles and
// descriptions. Unsearchable input (nothing but operator characters) returns
// no hits rather than everything.
func (s *CatalogStore) Search(query string, limit int) ([]SearchHit, error) {
	sanitized := SanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var hits []SearchHit
	err := s.db.Raw(`
		SELECT contentId AS content_id, contentType AS content_type, title, description
		FROM catalog_fts
		WHERE catalog_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, sanitized, limit).Scan(&hits).Error
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// SearchMovies resolves full-text hits back to movie rows, optionally
// filtered by genres (OR semantics applied by the caller on the exploded
// genre list).
func (s *CatalogStore) SearchMovies(query string, limit int) ([]models.Movie, error) {
	hits, err := s.Search(query, limit)
	if err != nil {
		return nil, err
	}

	var movies []models.Movie
	for _, hit := range hits {
		if hit.ContentType != models.ContentTypeMovie {
			continue
		}
		movie, err := s.GetMovieByID(hit.ContentID)
		if err != nil {
			return nil, err
		}
		if movie != nil {
			movies = append(movies, *movie)
		}
	}
	return movies, nil
}
