package logger

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	o := NewOptions()
	assert.Equal(t, "INFO", o.Level)
	assert.Equal(t, "json", o.Format)
	assert.Empty(t, o.Validate())
}

func TestAddFlagsWithPrefix(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "docbase")

	require.NoError(t, fs.Parse([]string{
		"--docbase.log.level=DEBUG",
		"--docbase.log.format=console",
		"--docbase.log.rotation.max-age=3",
	}))
	assert.Equal(t, "DEBUG", o.Level)
	assert.Equal(t, "console", o.Format)
	assert.Equal(t, 3, o.Rotation.MaxAge)
	assert.NotNil(t, fs.Lookup("docbase.log.otlp.protocol"))
}

func TestValidateRejectsUnknownLevel(t *testing.T) {
	o := NewOptions()
	o.Level = "LOUD"
	assert.Len(t, o.Validate(), 1)
}

func TestCreateLogger(t *testing.T) {
	o := NewOptions()
	o.OutputPaths = []string{"stdout"}

	log, err := o.CreateLogger()
	require.NoError(t, err)
	assert.NotNil(t, log)
}
