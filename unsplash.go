package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// PageSize is the number of photos requested per page.
const PageSize int = 21

type UnsplashPhoto struct {
	Id             string             `json:"id"`
	Width          int                `json:"width"`
	Height         int                `json:"height"`
	Color          string             `json:"color"`
	Description    *string            `json:"description"`
	AltDescription *string            `json:"alt_description"`
	Views          int                `json:"views"`
	Likes          int                `json:"likes"`
	User           UnsplashUser       `json:"user"`
	Urls           UnsplashUrls       `json:"urls"`
	Links          UnsplashPhotoLinks `json:"links"`
	Exif           *UnsplashExif      `json:"exif"`
	Location       *UnsplashLocation  `json:"location"`
}

type UnsplashUser struct {
	Id           string               `json:"id"`
	Username     string               `json:"username"`
	Name         string               `json:"name"`
	Links        UnsplashUserLinks    `json:"links"`
	ProfileImage UnsplashProfileImage `json:"profile_image"`
}

type UnsplashProfileImage struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type UnsplashPhotoLinks struct {
	Self     string `json:"self"`
	Html     string `json:"html"`
	Download string `json:"download"`
}

type UnsplashUserLinks struct {
	Self   string `json:"self"`
	Html   string `json:"html"`
	Photos string `json:"photos"`
	Likes  string `json:"likes"`
}

type UnsplashUrls struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

type UnsplashExif struct {
	Make  string `json:"make"`
	Model string `json:"model"`
}

type UnsplashLocation struct {
	Name string `json:"name"`
}

type UnsplashSearchResult struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []UnsplashPhoto `json:"results"`
}

// ErrNotFound is returned when the API has no photo for an id.
var ErrNotFound = errors.New("photo not found")

// APIError is a non-2xx answer from the photo API.
type APIError struct {
	Status int
	Url    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unsplash: %s returned %d %s", e.Url, e.Status, http.StatusText(e.Status))
}

type UnsplashApi struct {
	Http      *http.Client
	cache     *ReqCache
	accessKey string
	baseUrl   string
	ttl       int
	log       *zap.Logger
}

func NewUnsplashApi(cfg *Config, cache *ReqCache, logger *zap.Logger) *UnsplashApi {
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 86400
	}
	return &UnsplashApi{
		Http:      &http.Client{},
		cache:     cache,
		accessKey: cfg.Unsplash.AccessKey,
		baseUrl:   cfg.Unsplash.BaseUrl,
		ttl:       ttl,
		log:       logger.Named("unsplash"),
	}
}

func (unsp *UnsplashApi) Type() string {
	return "unsplash"
}

func (unsp *UnsplashApi) TTL() int {
	return unsp.ttl
}

func (unsp *UnsplashApi) PageSize() int { return PageSize }

func (unsp *UnsplashApi) pageParams(page int) url.Values {
	qParam := url.Values{}
	qParam.Add("page", strconv.Itoa(page))
	qParam.Add("per_page", strconv.Itoa(unsp.PageSize()))
	qParam.Add("content_filter", "high")
	return qParam
}

// ListPhotos fetches one page of the unfiltered listing.
func (unsp *UnsplashApi) ListPhotos(ctx context.Context, page int) ([]UnsplashPhoto, error) {
	var data []UnsplashPhoto
	if err := unsp.get(ctx, "/photos", unsp.pageParams(page), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (unsp *UnsplashApi) SearchPhotos(ctx context.Context, page int, query string) (UnsplashSearchResult, error) {
	qParam := unsp.pageParams(page)
	qParam.Add("query", query)
	data := UnsplashSearchResult{}
	err := unsp.get(ctx, "/search/photos", qParam, &data)
	return data, err
}

// Photo fetches a single photo for the detail view.
func (unsp *UnsplashApi) Photo(ctx context.Context, id string) (UnsplashPhoto, error) {
	data := UnsplashPhoto{}
	if id == "" {
		return data, ErrNotFound
	}
	err := unsp.get(ctx, "/photos/"+url.PathEscape(id), nil, &data)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return data, fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return data, err
}

// FetchPage fetches and normalizes one gallery page. An empty keyword reads
// the unfiltered listing, which reports no total page count.
func (unsp *UnsplashApi) FetchPage(ctx context.Context, page int, keyword string) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("invalid page %d", page)
	}
	var raws []UnsplashPhoto
	var totalPages *int
	if keyword == "" {
		photos, err := unsp.ListPhotos(ctx, page)
		if err != nil {
			return Page{}, fmt.Errorf("fetch page %d: %w", page, err)
		}
		raws = photos
	} else {
		res, err := unsp.SearchPhotos(ctx, page, keyword)
		if err != nil {
			return Page{}, fmt.Errorf("search %q page %d: %w", keyword, page, err)
		}
		raws = res.Results
		totalPages = intPtr(res.TotalPages)
		if len(res.Results) == 0 {
			totalPages = intPtr(0)
		}
	}
	items, rejected := NormalizeAll(raws)
	if len(rejected) > 0 {
		unsp.log.Debug("dropped invalid records",
			zap.Int("page", page),
			zap.String("keyword", keyword),
			zap.Int("dropped", len(rejected)))
	}
	return Page{TotalPages: totalPages, Items: items}, nil
}

func (unsp *UnsplashApi) get(ctx context.Context, path string, qParam url.Values, out any) error {
	target := unsp.baseUrl + path
	if len(qParam) > 0 {
		target += "?" + qParam.Encode()
	}
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		unsp.log.Error("failed to create http request", zap.Error(err))
		return err
	}
	getReq.Header.Set("Accept-Version", "v1")
	getReq.Header.Set("Content-Type", "application/json")
	getReq.Header.Set("Authorization", "Client-ID "+unsp.accessKey)

	var res *http.Response
	if unsp.cache != nil {
		res, err = unsp.cache.CachedFetch(getReq, unsp.Http, unsp.TTL())
	} else {
		res, err = unsp.Http.Do(getReq)
	}
	if err != nil {
		if ctx.Err() == nil {
			unsp.log.Warn("failed to fetch", zap.String("path", path), zap.Error(err))
		}
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, res.Body)
		return &APIError{Status: res.StatusCode, Url: path}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		unsp.log.Warn("failed to decode response", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
