//go:build !govips || !cgo

package pipeline

import "log"

func Startup() error {
	return nil
}

func Shutdown() {}

func newNormalizer(opts NormalizeOptions, logger *log.Logger) (Normalizer, error) {
	return goNormalizer{opts: opts, logger: logger}, nil
}
