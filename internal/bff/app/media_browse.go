package app

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

// seriesLookupConcurrency bounds the parallel series fetches behind the
// continue-watching row.
const seriesLookupConcurrency = 4

// Season is one season of a series.
type Season struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	IndexNumber    *int   `json:"IndexNumber,omitempty"`
	ChildCount     *int   `json:"ChildCount,omitempty"`
	ProductionYear *int   `json:"ProductionYear,omitempty"`
	Overview       string `json:"Overview"`
}

// Episode is one episode of a season.
type Episode struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	IndexNumber       *int   `json:"IndexNumber,omitempty"`
	ParentIndexNumber *int   `json:"ParentIndexNumber,omitempty"`
	Overview          string `json:"Overview"`
	Duration          string `json:"Duration"`
	RunTimeTicks      *int64 `json:"RunTimeTicks,omitempty"`
	ImageURL          string `json:"ImageUrl"`
	SeriesID          string `json:"SeriesId"`
	SeasonID          string `json:"SeasonId"`
}

// ResumeItem is a partially watched movie or episode.
type ResumeItem struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	Duration          string            `json:"Duration"`
	DurationTicks     *int64            `json:"DurationTicks,omitempty"`
	ContinueFrom      int64             `json:"ContinueFrom"`
	PlayCount         int               `json:"PlayCount"`
	ImageURL          string            `json:"ImageUrl"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	SeasonName        string            `json:"SeasonName,omitempty"`
	SeriesID          string            `json:"SeriesId,omitempty"`
	SeasonID          string            `json:"SeasonId,omitempty"`
	IndexNumber       *int              `json:"IndexNumber,omitempty"`
	ParentIndexNumber *int              `json:"ParentIndexNumber,omitempty"`
	ProductionYear    *int              `json:"ProductionYear,omitempty"`
	CommunityRating   *float64          `json:"CommunityRating,omitempty"`
	ImageTags         map[string]string `json:"ImageTags,omitempty"`
}

// ItemDetails is the detail page of a movie or series.
type ItemDetails struct {
	MediaItem
	BackdropURL     *string             `json:"BackdropUrl"`
	LogoURL         *string             `json:"LogoUrl"`
	Genres          []string            `json:"Genres"`
	Studios         []jellyfin.NamedRef `json:"Studios"`
	People          []jellyfin.Person   `json:"People"`
	CommunityRating *float64            `json:"CommunityRating"`
	CriticRating    *float64            `json:"CriticRating"`
	ImdbRating      *float64            `json:"ImdbRating"`
	ImdbID          *string             `json:"ImdbId"`
	Taglines        []string            `json:"Taglines"`
	RunTimeTicks    *int64              `json:"RunTimeTicks,omitempty"`
}

// FeaturedItem is the hero banner entry: the top rated title in the library.
type FeaturedItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Overview string  `json:"overview"`
	Type     string  `json:"type"`
	Rating   float64 `json:"rating"`
	Runtime  string  `json:"runtimeTicks"`
	Image    string  `json:"image"`
	ImageBg  string  `json:"imageBg"`
	Logo     string  `json:"imageLogo"`
}

// Seasons lists the seasons of seriesID.
func (s *MediaService) Seasons(ctx context.Context, rec session.Record, seriesID string) ([]Season, error) {
	if seriesID == "" {
		return nil, &domain.InputError{Field: "seriesId"}
	}
	items, err := s.catalog.Seasons(ctx, rec.JellyfinToken, seriesID)
	if err != nil {
		return nil, fmt.Errorf("seasons of %s: %w", seriesID, err)
	}

	out := make([]Season, 0, len(items))
	for _, it := range items {
		out = append(out, Season{
			ID:             it.ID,
			Name:           it.Name,
			IndexNumber:    it.IndexNumber,
			ChildCount:     it.ChildCount,
			ProductionYear: it.ProductionYear,
			Overview:       it.Overview,
		})
	}
	return out, nil
}

// Episodes lists the episodes of seasonID.
func (s *MediaService) Episodes(ctx context.Context, rec session.Record, seasonID string) ([]Episode, error) {
	if seasonID == "" {
		return nil, &domain.InputError{Field: "seasonId"}
	}
	items, err := s.catalog.Episodes(ctx, rec.JellyfinToken, seasonID)
	if err != nil {
		return nil, fmt.Errorf("episodes of %s: %w", seasonID, err)
	}

	out := make([]Episode, 0, len(items))
	for _, it := range items {
		out = append(out, Episode{
			ID:                it.ID,
			Name:              it.Name,
			IndexNumber:       it.IndexNumber,
			ParentIndexNumber: it.ParentIndexNumber,
			Overview:          it.Overview,
			Duration:          FormatRuntimeTicks(it.RunTimeTicks),
			RunTimeTicks:      it.RunTimeTicks,
			ImageURL:          ImageURL(it.ID),
			SeriesID:          it.SeriesID,
			SeasonID:          it.SeasonID,
		})
	}
	return out, nil
}

// ContinueWatching lists the user's in-progress items. Episodes use their
// series' Thumb artwork when the series has one, movies their own Thumb, and
// everything else the primary image.
func (s *MediaService) ContinueWatching(ctx context.Context, rec session.Record) ([]ResumeItem, error) {
	ctx, span := tracer.Start(ctx, "media.continue_watching")
	defer span.End()

	items, err := s.catalog.Resume(ctx, rec.JellyfinToken, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("continue watching: %w", err)
	}
	span.SetAttributes(attribute.Int("media.item_count", len(items)))

	thumbs := s.seriesThumbs(ctx, rec, items)

	out := make([]ResumeItem, 0, len(items))
	for _, it := range items {
		ri := ResumeItem{
			ID:                it.ID,
			Name:              it.Name,
			Type:              it.Type,
			Duration:          FormatRuntimeTicks(it.RunTimeTicks),
			DurationTicks:     it.RunTimeTicks,
			ImageURL:          resumeArtwork(it, thumbs),
			SeriesName:        it.SeriesName,
			SeasonName:        it.SeasonName,
			SeriesID:          it.SeriesID,
			SeasonID:          it.SeasonID,
			IndexNumber:       it.IndexNumber,
			ParentIndexNumber: it.ParentIndexNumber,
			ProductionYear:    it.ProductionYear,
			CommunityRating:   it.CommunityRating,
			ImageTags:         it.ImageTags,
		}
		if it.UserData != nil {
			ri.ContinueFrom = it.UserData.PlaybackPositionTicks
			ri.PlayCount = it.UserData.PlayCount
		}
		out = append(out, ri)
	}
	return out, nil
}

// seriesThumbs reports, per series of the resumed episodes, whether the
// series has Thumb artwork. A failed lookup counts as no Thumb.
func (s *MediaService) seriesThumbs(ctx context.Context, rec session.Record, items []jellyfin.Item) map[string]bool {
	seen := map[string]bool{}
	var ids []string
	for _, it := range items {
		if it.Type == string(jellyfin.ItemEpisode) && it.SeriesID != "" && !seen[it.SeriesID] {
			seen[it.SeriesID] = true
			ids = append(ids, it.SeriesID)
		}
	}

	var mu sync.Mutex
	thumbs := make(map[string]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seriesLookupConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			series, err := s.catalog.UserItem(gctx, rec.JellyfinToken, rec.UserID, id)
			if err != nil {
				s.logger.WarnContext(gctx, "media.series_lookup_failed", "series_id", id, "error", err)
				return nil
			}
			mu.Lock()
			thumbs[id] = series.HasImage(domain.ImageThumb)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return thumbs
}

func resumeArtwork(it jellyfin.Item, seriesThumbs map[string]bool) string {
	switch {
	case it.ID == "":
		return ""
	case it.Type == string(jellyfin.ItemEpisode) && it.SeriesID != "":
		if seriesThumbs[it.SeriesID] {
			return ArtworkURL(it.SeriesID, domain.ImageThumb)
		}
	case it.Type == string(jellyfin.ItemMovie) && it.HasImage(domain.ImageThumb):
		return ArtworkURL(it.ID, domain.ImageThumb)
	}
	return ImageURL(it.ID)
}

// ItemDetails returns the detail view of itemID.
func (s *MediaService) ItemDetails(ctx context.Context, rec session.Record, itemID string) (*ItemDetails, error) {
	if itemID == "" {
		return nil, &domain.InputError{Field: "itemId"}
	}
	it, err := s.catalog.UserItem(ctx, rec.JellyfinToken, rec.UserID, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", itemID, err)
	}

	d := &ItemDetails{
		MediaItem:       reshape(*it),
		Genres:          nonNil(it.Genres),
		Studios:         nonNil(it.Studios),
		People:          nonNil(it.People),
		CommunityRating: it.CommunityRating,
		CriticRating:    it.CriticRating,
		ImdbRating:      it.CommunityRating,
		Taglines:        nonNil(it.Taglines),
		RunTimeTicks:    it.RunTimeTicks,
	}
	if it.HasImage(domain.ImageBackdrop) {
		u := ArtworkURL(it.ID, domain.ImageBackdrop)
		d.BackdropURL = &u
	}
	if it.HasImage(domain.ImageLogo) {
		u := ArtworkURL(it.ID, domain.ImageLogo)
		d.LogoURL = &u
	}
	if imdb := it.ProviderIDs["Imdb"]; imdb != "" {
		d.ImdbID = &imdb
	}
	return d, nil
}

// MostPopular returns the featured title for the home page banner.
func (s *MediaService) MostPopular(ctx context.Context, rec session.Record) (*FeaturedItem, error) {
	it, err := s.catalog.TopRated(ctx, rec.JellyfinToken, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("most popular: %w", err)
	}
	return &FeaturedItem{
		ID:       it.ID,
		Name:     it.Name,
		Overview: it.Overview,
		Type:     it.Type,
		Rating:   RoundRating(it.CommunityRating),
		Runtime:  FormatRuntimeTicks(it.RunTimeTicks),
		Image:    ImageURL(it.ID),
		ImageBg:  ArtworkURL(it.ID, domain.ImageBackdrop),
		Logo:     ArtworkURL(it.ID, domain.ImageLogo),
	}, nil
}

// Subtitle opens a subtitle track. Only upstream /Videos/.../Subtitles/...
// paths are forwarded.
func (s *MediaService) Subtitle(ctx context.Context, rec session.Record, rawPath string) (*jellyfin.Stream, error) {
	if rawPath == "" {
		return nil, &domain.InputError{Field: "path"}
	}
	target, ok := subtitleTarget(rawPath)
	if !ok {
		return nil, fmt.Errorf("%w: subtitle path %q", domain.ErrInvalidInput, rawPath)
	}
	return s.catalog.Subtitle(ctx, rec.JellyfinToken, target)
}

// subtitleTarget returns the request URI to forward for rawPath. It must be
// a clean, host-less path under /Videos/ naming a subtitle stream.
func subtitleTarget(rawPath string) (string, bool) {
	u, err := url.Parse(rawPath)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/Videos/") || !strings.Contains(u.Path, "/Subtitles/") {
		return "", false
	}
	if path.Clean(u.Path) != u.Path {
		return "", false
	}
	return u.RequestURI(), true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
