//go:build govips && cgo

package pipeline

import (
	"log"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newNormalizer(opts NormalizeOptions, logger *log.Logger) (Normalizer, error) {
	if err := Startup(); err != nil {
		return nil, err
	}
	return vipsNormalizer{
		opts:     opts,
		logger:   logger,
		fallback: goNormalizer{opts: opts, logger: logger},
	}, nil
}
