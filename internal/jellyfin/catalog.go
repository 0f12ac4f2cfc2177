package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// ItemType selects a library slice.
type ItemType string

const (
	ItemMovie   ItemType = "Movie"
	ItemSeries  ItemType = "Series"
	ItemEpisode ItemType = "Episode"
)

const (
	// itemFields are the extra fields the media listings reshape.
	itemFields = "PrimaryImageAspectRatio,Overview,Path,CommunityRating,RunTimeTicks,OfficialRating,ProductionYear"
	// episodeFields back the episode list of a season.
	episodeFields = "Overview,MediaStreams,Path"
	// detailFields back the item details page.
	detailFields = "ProviderIds,ExternalUrls,Genres,Studios,People,Taglines,Overview"
)

// Item is a catalog entry as Jellyfin returns it. Optional numeric fields are
// pointers because Jellyfin omits them for unrated or unscanned items.
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	OfficialRating    string            `json:"OfficialRating"`
	CommunityRating   *float64          `json:"CommunityRating"`
	CriticRating      *float64          `json:"CriticRating"`
	ProductionYear    *int              `json:"ProductionYear"`
	Overview          string            `json:"Overview"`
	RunTimeTicks      *int64            `json:"RunTimeTicks"`
	IndexNumber       *int              `json:"IndexNumber"`
	ParentIndexNumber *int              `json:"ParentIndexNumber"`
	ChildCount        *int              `json:"ChildCount"`
	SeriesID          string            `json:"SeriesId"`
	SeriesName        string            `json:"SeriesName"`
	SeasonID          string            `json:"SeasonId"`
	SeasonName        string            `json:"SeasonName"`
	ImageTags         map[string]string `json:"ImageTags"`
	BackdropImageTags []string          `json:"BackdropImageTags"`
	Genres            []string          `json:"Genres"`
	Studios           []NamedRef        `json:"Studios"`
	People            []Person          `json:"People"`
	Taglines          []string          `json:"Taglines"`
	ProviderIDs       map[string]string `json:"ProviderIds"`
	UserData          *UserData         `json:"UserData"`
}

// HasImage reports whether the item carries artwork of the given type.
func (it Item) HasImage(t domain.ImageType) bool {
	if t == domain.ImageBackdrop {
		return len(it.BackdropImageTags) > 0
	}
	return it.ImageTags[string(t)] != ""
}

// NamedRef is a name/id pair such as a studio.
type NamedRef struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

// Person is a cast or crew credit.
type Person struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
	Role string `json:"Role,omitempty"`
	Type string `json:"Type"`
}

// UserData is the per-user playback state of an item.
type UserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	PlayCount             int   `json:"PlayCount"`
	Played                bool  `json:"Played"`
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Stream is an upstream body being passed through (artwork, subtitles).
// Close releases the upstream connection and its deadline.
type Stream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Close implements io.Closer.
func (s *Stream) Close() error { return s.Body.Close() }

// Items lists a user's library items of one type, sorted by name.
func (c *Client) Items(ctx context.Context, token domain.SecretString, userID string, itemType ItemType) ([]Item, error) {
	q := url.Values{}
	q.Set("IncludeItemTypes", string(itemType))
	q.Set("SortBy", "SortName")
	q.Set("Recursive", "true")
	q.Set("Fields", itemFields)

	return c.listItems(ctx, "items", "/Users/"+url.PathEscape(userID)+"/Items?"+q.Encode(), token,
		attribute.String("jellyfin.item_type", string(itemType)))
}

// Seasons lists the seasons of a series.
func (c *Client) Seasons(ctx context.Context, token domain.SecretString, seriesID string) ([]Item, error) {
	return c.listItems(ctx, "seasons", "/Shows/"+url.PathEscape(seriesID)+"/Seasons", token,
		attribute.String("jellyfin.series_id", seriesID))
}

// Episodes lists the episodes under a season.
func (c *Client) Episodes(ctx context.Context, token domain.SecretString, seasonID string) ([]Item, error) {
	q := url.Values{}
	q.Set("ParentId", seasonID)
	q.Set("Fields", episodeFields)

	return c.listItems(ctx, "episodes", "/Items?"+q.Encode(), token,
		attribute.String("jellyfin.season_id", seasonID))
}

// Resume lists the items the user has started but not finished.
func (c *Client) Resume(ctx context.Context, token domain.SecretString, userID string) ([]Item, error) {
	return c.listItems(ctx, "resume", "/Users/"+url.PathEscape(userID)+"/Items/Resume", token)
}

// TopRated returns the user's best-rated, most-played movie or series.
// domain.ErrNotFound means the library is empty.
func (c *Client) TopRated(ctx context.Context, token domain.SecretString, userID string) (*Item, error) {
	q := url.Values{}
	q.Set("IncludeItemTypes", string(ItemMovie)+","+string(ItemSeries))
	q.Set("SortBy", "CommunityRating,PlayCount")
	q.Set("SortOrder", "Descending")
	q.Set("Recursive", "true")
	q.Set("Limit", "1")
	q.Set("Fields", itemFields)

	items, err := c.listItems(ctx, "top_rated", "/Users/"+url.PathEscape(userID)+"/Items?"+q.Encode(), token)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: top rated item", domain.ErrNotFound)
	}
	return &items[0], nil
}

// UserItem fetches one item as seen by the user, with the detail fields.
func (c *Client) UserItem(ctx context.Context, token domain.SecretString, userID, itemID string) (*Item, error) {
	q := url.Values{}
	q.Set("Fields", detailFields)

	var item Item
	path := "/Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(itemID) + "?" + q.Encode()
	if err := c.getJSON(ctx, "user_item", path, token, &item, attribute.String("jellyfin.item_id", itemID)); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) listItems(ctx context.Context, op, path string, token domain.SecretString, attrs ...attribute.KeyValue) ([]Item, error) {
	var body itemsResponse
	if err := c.getJSON(ctx, op, path, token, &body, attrs...); err != nil {
		return nil, err
	}
	if body.Items == nil {
		return []Item{}, nil
	}
	return body.Items, nil
}

// getJSON runs one catalog GET under its own span and the catalog deadline.
func (c *Client) getJSON(ctx context.Context, op, path string, token domain.SecretString, out any, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, "jellyfin."+op)
	defer span.End()
	span.SetAttributes(attrs...)

	ctx, cancel := context.WithTimeout(ctx, c.catalogTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return err
	}
	defer resp.Body.Close()

	if err := c.checkCatalogStatus(ctx, op, resp); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		span.SetStatus(codes.Error, "decode")
		return fmt.Errorf("%w: decode %s: %w", domain.ErrUpstreamUnavailable, op, err)
	}
	return nil
}

// Image opens an item image stream. The catalog deadline covers the whole
// transfer, so callers must Close the Stream.
func (c *Client) Image(ctx context.Context, token domain.SecretString, itemID string, imageType domain.ImageType) (*Stream, error) {
	if itemID == "" || !domain.IsValidImageType(imageType) {
		return nil, fmt.Errorf("%w: image %q/%q", domain.ErrInvalidInput, itemID, imageType)
	}
	return c.openStream(ctx, "image",
		"/Items/"+url.PathEscape(itemID)+"/Images/"+string(imageType), token, "image/*")
}

// Subtitle opens a subtitle track. path is an upstream-relative path such as
// /Videos/{id}/{source}/Subtitles/{index}/0/Stream.vtt and must already be
// validated by the caller.
func (c *Client) Subtitle(ctx context.Context, token domain.SecretString, path string) (*Stream, error) {
	return c.openStream(ctx, "subtitle", path, token, "text/vtt, */*")
}

func (c *Client) openStream(ctx context.Context, op, path string, token domain.SecretString, accept string) (*Stream, error) {
	ctx, span := tracer.Start(ctx, "jellyfin."+op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.catalogTimeout)

	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := c.do(req)
	if err != nil {
		cancel()
		span.SetStatus(codes.Error, "transport")
		return nil, err
	}

	if err := c.checkCatalogStatus(ctx, op, resp); err != nil {
		resp.Body.Close()
		cancel()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &Stream{
		Body:          &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// RefreshLibrary asks the upstream to rescan all libraries.
func (c *Client) RefreshLibrary(ctx context.Context, token domain.SecretString) error {
	ctx, span := tracer.Start(ctx, "jellyfin.refresh_library")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.catalogTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, "/Library/Refresh", token, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		span.SetStatus(codes.Error, "transport")
		return err
	}
	defer resp.Body.Close()

	if err := c.checkCatalogStatus(ctx, "refresh_library", resp); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return nil
}

// checkCatalogStatus maps a catalog answer: 401 means the embedded token was
// rejected, 404 is not found, anything else non-2xx is an upstream failure.
// It consumes the body on failure.
func (c *Client) checkCatalogStatus(ctx context.Context, op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.ErrorContext(ctx, "jellyfin.catalog_error",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("body", excerpt(raw)),
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &domain.UpstreamError{StatusCode: resp.StatusCode, Message: "Authentication failed with Jellyfin server"}
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s status %d", domain.ErrUpstreamUnavailable, op, resp.StatusCode)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
