package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httputil"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ReqCache stores raw upstream responses keyed by a hash of the request.
// Identical requests in flight at the same time share one upstream call.
type ReqCache struct {
	store  *Store
	log    *zap.Logger
	flight singleflight.Group
}

func NewReqCache(store *Store, logger *zap.Logger) *ReqCache {
	return &ReqCache{
		store: store,
		log:   logger.Named("cache"),
	}
}

// Run purges expired responses every interval until ctx is done.
func (rc *ReqCache) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		rc.purgeExpired()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (rc *ReqCache) purgeExpired() {
	n, err := rc.store.DeleteBefore(time.Now().Unix())
	if err != nil {
		rc.log.Warn("purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		rc.log.Debug("purged expired responses", zap.Int64("count", n))
	}
}

func requestHash(req *http.Request) (string, error) {
	reqBytes, err := httputil.DumpRequest(req, false)
	if err != nil {
		return "", err
	}
	md5Hash := md5.Sum(reqBytes)
	return hex.EncodeToString(md5Hash[:]), nil
}

// CachedFetch answers req from the store when possible. Only 2xx responses
// are cached, for ttl seconds. The caller's context bounds the wait, not the
// shared upstream call, so a cancelled caller still leaves a warm cache.
func (rc *ReqCache) CachedFetch(req *http.Request, client *http.Client, ttl int) (*http.Response, error) {
	reqHash, err := requestHash(req)
	if err != nil {
		rc.log.Warn("uncacheable request", zap.String("path", req.URL.Path), zap.Error(err))
		return client.Do(req)
	}
	data, ok := rc.store.GetResponse(reqHash)
	if ok {
		res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
		if err == nil {
			return res, nil
		}
		rc.log.Warn("problems decoding cached result", zap.Error(err))
	}

	ch := rc.flight.DoChan(reqHash, func() (any, error) {
		upstream := req.Clone(context.WithoutCancel(req.Context()))
		resp, err := client.Do(upstream)
		if err != nil {
			return nil, err
		}
		respBytes, err := httputil.DumpResponse(resp, true)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		rc.log.Debug("MISS", zap.String("host", req.URL.Host), zap.String("path", req.URL.Path))
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if err := rc.store.StoreResponse(reqHash, respBytes, time.Now().Unix()+int64(ttl)); err != nil {
				rc.log.Warn("failed to store response", zap.Error(err))
			}
		}
		return respBytes, nil
	})

	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return http.ReadResponse(bufio.NewReader(bytes.NewReader(res.Val.([]byte))), req)
	}
}
