package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

const defaultConfigFile = "conf/config.json"

type Config struct {
	Unsplash struct {
		AccessKey string `json:"access"`
		SecretKey string `json:"secret"`
		BaseUrl   string `json:"baseUrl"`
	} `json:"unsplash.com"`
	Database string `json:"database"`
	Listen   string `json:"listen"`
	Cache    struct {
		TTL int `json:"ttl"`
	} `json:"cache"`
	Auth struct {
		Required bool `json:"required"`
	} `json:"auth"`
	Debug struct {
		PrettyJson bool `json:"prettyJson"`
	} `json:"debug"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Unsplash.BaseUrl = "https://api.unsplash.com"
	cfg.Database = dbFile
	cfg.Listen = ":8081"
	cfg.Cache.TTL = 86400
	return cfg
}

// loadConfig reads the JSON configuration at path over the defaults. A
// missing file is not an error; the access key may come from the
// environment alone.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		defer f.Close()
		if err := decodeConfig(f, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if key := os.Getenv("UNSPLASH_ACCESS_KEY"); key != "" {
		cfg.Unsplash.AccessKey = key
	}
	return cfg, nil
}

func decodeConfig(r io.ReadSeeker, cfg *Config) error {
	err := json.NewDecoder(r).Decode(cfg)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
		return err
	}
	line, col, posErr := lineCol(r, syntaxErr.Offset)
	if posErr != nil {
		return err
	}
	return fmt.Errorf("unable to decode configuration (Line: %d, Pos: %d): %w", line, col, err)
}

// lineCol turns a byte offset into a 1-based line and a 0-based column.
func lineCol(r io.Reader, offset int64) (line, col int, err error) {
	head, err := io.ReadAll(io.LimitReader(r, offset))
	if err != nil {
		return 0, 0, err
	}
	line = 1 + bytes.Count(head, []byte{'\n'})
	col = len(head) - 1 - bytes.LastIndexByte(head, '\n')
	return line, col, nil
}
