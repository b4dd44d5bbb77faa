package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewHonoursLevel(t *testing.T) {
	log, err := New(false, "warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))

	log, err = New(true, "debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(false, "chatty")
	assert.Error(t, err)
}

func TestGormLoggerIsUsable(t *testing.T) {
	assert.NotNil(t, Gorm(zap.NewNop()))
}

func TestGormLeavesGlobalDefaultAlone(t *testing.T) {
	before := gormlogger.Default

	gl := Gorm(zap.NewNop())
	assert.NotNil(t, gl)

	assert.Equal(t, before, gormlogger.Default, "building a connection logger must not replace GORM's default")
}
