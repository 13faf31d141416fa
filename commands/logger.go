package commands

import (
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/training"
)

// NewLogger returns a logfmt logger tagged with the node name
func NewLogger(w io.Writer, logLevel string) (log.Logger, error) {
	var option level.Option
	switch strings.ToLower(logLevel) {
	case "debug":
		option = level.AllowDebug()
	case "", "info":
		option = level.AllowInfo()
	case "warn":
		option = level.AllowWarn()
	case "error":
		option = level.AllowError()
	default:
		return nil, errors.Errorf("unknown log level %q", logLevel)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, option)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "node", training.NodeName), nil
}
