// logging.go - Logger construction shared by the CLI commands.
package lab

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the zap logger used across podlab. JSON output in
// production, a human console encoder otherwise; verbose lowers the
// level to debug. Every entry carries a run ID so interleaved external
// process output stays attributable to one invocation.
func NewLogger(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if os.Getenv("PODLAB_LOG_FORMAT") == "json" || os.Getenv("PODLAB_ENV") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("run_id", uuid.NewString())), nil
}
