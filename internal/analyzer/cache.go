package analyzer

import (
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/moolen/mergetrace/internal/logging"
)

type cachedResult struct {
	modTime time.Time
	size    int64
	result  *Result
}

// resultCache keeps recent results keyed by path. An entry is only served
// while the file's mtime and size are unchanged.
type resultCache struct {
	lru    *lru.Cache[string, cachedResult]
	logger *logging.Logger
}

func newResultCache(size int) (*resultCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, cachedResult](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c, logger: logging.GetLogger("analyzer.cache")}, nil
}

func (c *resultCache) get(path string, info os.FileInfo) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.lru.Get(path)
	if !ok {
		return nil, false
	}
	if !cached.modTime.Equal(info.ModTime()) || cached.size != info.Size() {
		c.lru.Remove(path)
		c.logger.Debug("Result cache invalidated: path=%s", path)
		return nil, false
	}
	return cached.result, true
}

func (c *resultCache) add(path string, info os.FileInfo, r *Result) {
	if c == nil {
		return
	}
	c.lru.Add(path, cachedResult{modTime: info.ModTime(), size: info.Size(), result: r})
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
