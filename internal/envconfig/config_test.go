package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/imperative/internal/logutil"
	"github.com/born-ml/imperative/internal/tensor"
)

func TestDefaults(t *testing.T) {
	t.Setenv("BORN_DEBUG", "")
	t.Setenv("BORN_DTYPE", "")
	t.Setenv("BORN_USE_CUDNN", "")
	LoadConfig()

	assert.Equal(t, 0, Debug)
	assert.Equal(t, tensor.Float32, DType)
	assert.True(t, UseCUDNN)
	assert.Equal(t, slog.LevelInfo, LogLevel())
}

func TestConfig(t *testing.T) {
	t.Setenv("BORN_DEBUG", "2")
	t.Setenv("BORN_DTYPE", "'fp16'")
	t.Setenv("BORN_USE_CUDNN", "false")
	LoadConfig()

	assert.Equal(t, 2, Debug)
	assert.Equal(t, logutil.LevelTrace, LogLevel())
	assert.Equal(t, tensor.Float16, DType)
	assert.False(t, UseCUDNN)
}

func TestInvalidValuesIgnored(t *testing.T) {
	t.Setenv("BORN_DEBUG", "true")
	t.Setenv("BORN_DTYPE", "float128")
	t.Setenv("BORN_USE_CUDNN", "sometimes")
	LoadConfig()

	assert.Equal(t, 1, Debug)
	assert.Equal(t, tensor.Float32, DType)
	assert.True(t, UseCUDNN)
}
