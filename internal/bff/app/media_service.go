package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
	"github.com/aelexs/jellyfin-bff/internal/observability"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

// ticksPerSecond is the Jellyfin RunTimeTicks resolution (100ns ticks).
const ticksPerSecond = 10_000_000

// Catalog is the slice of the Jellyfin client the media endpoints need.
type Catalog interface {
	Items(ctx context.Context, token domain.SecretString, userID string, itemType jellyfin.ItemType) ([]jellyfin.Item, error)
	Seasons(ctx context.Context, token domain.SecretString, seriesID string) ([]jellyfin.Item, error)
	Episodes(ctx context.Context, token domain.SecretString, seasonID string) ([]jellyfin.Item, error)
	Resume(ctx context.Context, token domain.SecretString, userID string) ([]jellyfin.Item, error)
	TopRated(ctx context.Context, token domain.SecretString, userID string) (*jellyfin.Item, error)
	UserItem(ctx context.Context, token domain.SecretString, userID, itemID string) (*jellyfin.Item, error)
	Subtitle(ctx context.Context, token domain.SecretString, path string) (*jellyfin.Stream, error)
	Image(ctx context.Context, token domain.SecretString, itemID string, imageType domain.ImageType) (*jellyfin.Stream, error)
	RefreshLibrary(ctx context.Context, token domain.SecretString) error
}

// MediaItem is the browser-facing shape of a movie or show.
type MediaItem struct {
	ID          string  `json:"Id"`
	Name        string  `json:"Name"`
	Type        string  `json:"Type"`
	AgeRating   string  `json:"AgeRating"`
	Rating      float64 `json:"Rating"`
	ReleaseYear int     `json:"ReleaseYear"`
	Overview    string  `json:"Overview"`
	Duration    string  `json:"Duration"`
	ImageURL    string  `json:"ImageUrl"`
}

// MediaService serves the catalog listings on behalf of a resolved session.
type MediaService struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewMediaService creates a MediaService.
func NewMediaService(catalog Catalog, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{catalog: catalog, logger: logger}
}

// Movies lists the session user's movies.
func (s *MediaService) Movies(ctx context.Context, rec session.Record) ([]MediaItem, error) {
	return s.list(ctx, rec, jellyfin.ItemMovie)
}

// Shows lists the session user's series.
func (s *MediaService) Shows(ctx context.Context, rec session.Record) ([]MediaItem, error) {
	return s.list(ctx, rec, jellyfin.ItemSeries)
}

func (s *MediaService) list(ctx context.Context, rec session.Record, itemType jellyfin.ItemType) ([]MediaItem, error) {
	ctx, span := tracer.Start(ctx, "media.list")
	defer span.End()
	span.SetAttributes(attribute.String("media.item_type", string(itemType)))

	items, err := s.catalog.Items(ctx, rec.JellyfinToken, rec.UserID, itemType)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", itemType, err)
	}

	out := make([]MediaItem, 0, len(items))
	for _, it := range items {
		out = append(out, reshape(it))
	}
	return out, nil
}

// Image opens an artwork stream for itemID. The caller must Close it.
func (s *MediaService) Image(ctx context.Context, rec session.Record, itemID string, imageType domain.ImageType) (*jellyfin.Stream, error) {
	if itemID == "" {
		return nil, &domain.InputError{Field: "itemId"}
	}
	if !domain.IsValidImageType(imageType) {
		return nil, fmt.Errorf("%w: unsupported image type %q", domain.ErrInvalidInput, imageType)
	}
	return s.catalog.Image(ctx, rec.JellyfinToken, itemID, imageType)
}

// RefreshLibrary triggers an upstream library rescan.
func (s *MediaService) RefreshLibrary(ctx context.Context, rec session.Record) error {
	if err := s.catalog.RefreshLibrary(ctx, rec.JellyfinToken); err != nil {
		return fmt.Errorf("refresh library: %w", err)
	}
	observability.WithTraceID(ctx, s.logger).InfoContext(ctx, "media.library_refresh", "user_id", rec.UserID)
	return nil
}

func reshape(it jellyfin.Item) MediaItem {
	year := 0
	if it.ProductionYear != nil {
		year = *it.ProductionYear
	}
	return MediaItem{
		ID:          it.ID,
		Name:        it.Name,
		Type:        it.Type,
		AgeRating:   it.OfficialRating,
		Rating:      RoundRating(it.CommunityRating),
		ReleaseYear: year,
		Overview:    it.Overview,
		Duration:    FormatRuntimeTicks(it.RunTimeTicks),
		ImageURL:    ImageURL(it.ID),
	}
}

// ImageURL is the same-origin proxy path for an item's primary image.
func ImageURL(itemID string) string {
	return ArtworkURL(itemID, domain.ImagePrimary)
}

// ArtworkURL is the same-origin proxy path for an item image of any type.
func ArtworkURL(itemID string, imageType domain.ImageType) string {
	return "/api/media/images/" + url.PathEscape(itemID) + "/" + string(imageType)
}

// FormatRuntimeTicks renders a runtime as "1h 5m" or "4m 30s". Seconds are
// shown only for runtimes under an hour. Missing or non-positive runtimes
// are "Unknown".
func FormatRuntimeTicks(ticks *int64) string {
	if ticks == nil || *ticks <= 0 {
		return "Unknown"
	}
	total := *ticks / ticksPerSecond
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var out string
	if hours > 0 {
		out = fmt.Sprintf("%dh ", hours)
	}
	if minutes > 0 {
		out += fmt.Sprintf("%dm ", minutes)
	}
	if seconds > 0 && hours == 0 {
		out += fmt.Sprintf("%ds", seconds)
	}
	if len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	if out == "" {
		return "Unknown"
	}
	return out
}

// RoundRating rounds a community rating to one decimal. Unrated is 0.
func RoundRating(r *float64) float64 {
	if r == nil {
		return 0
	}
	return math.Round(*r*10) / 10
}
