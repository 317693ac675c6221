package potato

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a json logger writing to stderr at the given level
func NewLogger(level string) (*zap.SugaredLogger, error) {

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, configurationError(fmt.Sprintf("invalid log level %q", level))
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stderr), lvl)

	return zap.New(core, zap.AddCaller()).Sugar(), nil
}
