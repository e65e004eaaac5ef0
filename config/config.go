// Package config holds the tunables for the heap file storage layer:
// where heap files live on disk, the fixed page size they are built from,
// and how the shared buffer pool is sized and replaces pages.
package config

import (
	"bufio"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config holds basic configuration for the heap file storage layer.
type Config struct {
	DBPath        string `json:"dbpath"`
	PageSize      int    `json:"pagesize"`
	BMBufferCount int    `json:"bm_buffercount"`
	BMPolicy      string `json:"bm_policy"`
	LogLevel      string `json:"log_level"`
}

// NewConfig constructs an instance from an in-memory path with default params.
func NewConfig(dbpath string) *Config {
	return &Config{DBPath: dbpath, PageSize: 4096, BMBufferCount: 16, BMPolicy: "LRU", LogLevel: "info"}
}

// NewConfigWithParams constructs a Config with an explicit page size.
func NewConfigWithParams(dbpath string, pageSize int) *Config {
	return &Config{DBPath: dbpath, PageSize: pageSize, BMBufferCount: 16, BMPolicy: "LRU", LogLevel: "info"}
}

// LoadConfig loads configuration from a text file. The loader accepts either JSON
// (e.g. {"dbpath":"./DB"}) or a simple key=value format (e.g. dbpath = '../DB').
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	if len(data) == 0 {
		return nil, errors.New("empty config file")
	}

	var c Config
	// try JSON first
	if err := json.Unmarshal(data, &c); err == nil && c.DBPath != "" {
		applyDefaults(&c)
		return &c, nil
	}

	// fallback to simple key=value (or key: value) parser
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := "="
		if !strings.Contains(line, "=") && strings.Contains(line, ":") {
			sep = ":"
		}
		parts := strings.SplitN(line, sep, 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		switch key {
		case "dbpath":
			c.DBPath = val
		case "pagesize":
			if v, err := strconv.Atoi(val); err == nil {
				c.PageSize = v
			}
		case "bm_buffercount":
			if v, err := strconv.Atoi(val); err == nil {
				c.BMBufferCount = v
			}
		case "bm_policy":
			c.BMPolicy = val
		case "log_level":
			c.LogLevel = val
		}
	}
	if c.DBPath == "" {
		return nil, errors.New("dbpath not found in config")
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.PageSize == 0 {
		c.PageSize = 4096
	}
	if c.BMBufferCount == 0 {
		c.BMBufferCount = 16
	}
	if c.BMPolicy == "" {
		c.BMPolicy = "LRU"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
