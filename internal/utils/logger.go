package utils

import "go.uber.org/zap"

// NewLogger builds a development logger when dev is set, otherwise a JSON
// production logger.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
