package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/apibillme/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MissingImageMessage is the detail view answer for any unavailable photo.
const MissingImageMessage = "This image doesn't exist"

// PhotoSource is what the gallery server needs from the photo API.
type PhotoSource interface {
	PhotoFetcher
	Photo(ctx context.Context, id string) (UnsplashPhoto, error)
}

type Server struct {
	cfg         *Config
	source      PhotoSource
	store       *Store
	log         *zap.Logger
	detailCache cache.Cache
}

func NewServer(cfg *Config, source PhotoSource, store *Store, logger *zap.Logger) *Server {
	return &Server{
		cfg:         cfg,
		source:      source,
		store:       store,
		log:         logger.Named("server"),
		detailCache: cache.New(512, cache.WithTTL(10*time.Minute)),
	}
}

type listingItem struct {
	NormalizedImage
	RenderHeight *float64 `json:"renderHeight,omitempty"`
}

type listingResponse struct {
	Keyword    string        `json:"keyword"`
	Page       int           `json:"page"`
	TotalPages *int          `json:"totalPages"`
	HasMore    bool          `json:"hasMore"`
	Columns    int           `json:"columns,omitempty"`
	Items      []listingItem `json:"items"`
}

type layoutResponse struct {
	Columns int     `json:"columns"`
	Height  float64 `json:"height"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "Not Found")
	})
	mux.HandleFunc("GET /api/photos", srv.handleListing)
	mux.HandleFunc("GET /api/photos/{id}", srv.handleDetail)
	mux.HandleFunc("GET /api/layout", srv.handleLayout)

	var h http.Handler = mux
	if srv.cfg.Auth.Required {
		h = srv.requireUser(h)
	}
	return srv.withRequestID(h)
}

func (srv *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		srv.log.Debug("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func (srv *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || srv.store == nil || !srv.store.TestUser(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="unswash"`)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	keyword := KeywordFromURL(r.URL)
	page := ParsePage(r.URL.Query().Get("page"))
	metrics, hasMetrics := viewportFromQuery(r)

	p, err := srv.source.FetchPage(r.Context(), page, keyword)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		srv.log.Error("error connecting to upstream service", zap.Error(err))
		srv.writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "upstream unavailable"})
		return
	}

	res := listingResponse{
		Keyword:    keyword,
		Page:       page,
		TotalPages: p.TotalPages,
		HasMore:    HasMore(page, p.TotalPages),
		Items:      make([]listingItem, len(p.Items)),
	}
	if hasMetrics {
		res.Columns = ColumnCount(metrics.ViewportWidth)
	}
	for i, img := range p.Items {
		res.Items[i].NormalizedImage = img
		if hasMetrics {
			h := ComputeImageHeight(metrics.ViewportWidth, metrics.ColumnContainerWidth, img.OriginalWidth, img.OriginalHeight)
			res.Items[i].RenderHeight = &h
		}
	}
	srv.writeJSON(w, r, http.StatusOK, res)
}

func (srv *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if cached, ok := srv.detailCache.Get(id); ok {
		srv.writeJSON(w, r, http.StatusOK, cached.(NormalizedImage))
		return
	}
	raw, err := srv.source.Photo(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled) {
			srv.log.Warn("photo lookup failed", zap.String("id", id), zap.Error(err))
		}
		srv.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: MissingImageMessage})
		return
	}
	res := Normalize(raw)
	if !res.Valid || res.Image.ExternalLink == "" {
		srv.log.Debug("photo rejected", zap.String("id", id), zap.String("reason", res.Reason))
		srv.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: MissingImageMessage})
		return
	}
	srv.detailCache.Set(id, res.Image)
	srv.writeJSON(w, r, http.StatusOK, res.Image)
}

func (srv *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metrics, _ := viewportFromQuery(r)
	width, _ := strconv.Atoi(q.Get("width"))
	height, _ := strconv.Atoi(q.Get("height"))
	srv.writeJSON(w, r, http.StatusOK, layoutResponse{
		Columns: ColumnCount(metrics.ViewportWidth),
		Height:  ComputeImageHeight(metrics.ViewportWidth, metrics.ColumnContainerWidth, width, height),
	})
}

func viewportFromQuery(r *http.Request) (ViewportMetrics, bool) {
	q := r.URL.Query()
	viewport, errV := strconv.Atoi(q.Get("viewport"))
	container, errC := strconv.Atoi(q.Get("container"))
	if errV != nil || errC != nil {
		return ViewportMetrics{}, false
	}
	return ViewportMetrics{ViewportWidth: viewport, ColumnContainerWidth: container}, true
}

func (srv *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	body := brotli.HTTPCompressor(w, r)
	defer body.Close()
	w.WriteHeader(status)
	enc := json.NewEncoder(body)
	indent := ""
	if srv.cfg.Debug.PrettyJson {
		indent = "  "
	}
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		srv.log.Warn("failed to write response", zap.Error(err))
	}
}
