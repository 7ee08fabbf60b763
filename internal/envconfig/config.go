// Package envconfig reads process-wide settings from the environment.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/imperative/internal/logutil"
	"github.com/born-ml/imperative/internal/tensor"
)

var (
	// Set via BORN_DEBUG in the environment. 1 enables debug, 2 enables trace.
	Debug int
	// Set via BORN_DTYPE in the environment
	DType tensor.DataType
	// Set via BORN_USE_CUDNN in the environment
	UseCUDNN bool
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"BORN_DEBUG":     {"BORN_DEBUG", Debug, "Show additional debug information (1 = debug, 2 = trace every appended operator)"},
		"BORN_DTYPE":     {"BORN_DTYPE", DType, "Default data type of layers built from model files (default float32)"},
		"BORN_USE_CUDNN": {"BORN_USE_CUDNN", UseCUDNN, "Default use_cudnn for conv2d and pool2d layers (default true)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// LogLevel maps Debug to a slog level.
func LogLevel() slog.Level {
	switch {
	case Debug >= 2:
		return logutil.LevelTrace
	case Debug == 1:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	// default values
	Debug = 0
	DType = tensor.Float32
	UseCUDNN = true

	if debug := clean("BORN_DEBUG"); debug != "" {
		if d, err := strconv.Atoi(debug); err == nil {
			Debug = d
		} else if b, err := strconv.ParseBool(debug); err == nil {
			if b {
				Debug = 1
			}
		} else {
			Debug = 1
		}
	}

	if dtype := clean("BORN_DTYPE"); dtype != "" {
		dt, err := tensor.ParseDataType(dtype)
		if err != nil {
			slog.Error("invalid setting, ignoring", "BORN_DTYPE", dtype, "error", err)
		} else {
			DType = dt
		}
	}

	if cudnn := clean("BORN_USE_CUDNN"); cudnn != "" {
		b, err := strconv.ParseBool(cudnn)
		if err != nil {
			slog.Error("invalid setting, ignoring", "BORN_USE_CUDNN", cudnn, "error", err)
		} else {
			UseCUDNN = b
		}
	}
}
