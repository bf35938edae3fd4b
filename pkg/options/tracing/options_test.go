package tracing

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewOptions()
	assert.False(t, o.Enabled)
	assert.Empty(t, o.Validate())

	o.Enabled = true
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		errs   int
	}{
		{"disabled ignores everything", func(o *Options) { o.Enabled = false; o.ExporterType = "bogus" }, 0},
		{"missing service name", func(o *Options) { o.ServiceName = "" }, 1},
		{"grpc needs endpoint", func(o *Options) { o.Endpoint = "" }, 1},
		{"stdout needs no endpoint", func(o *Options) { o.ExporterType = ExporterStdout; o.Endpoint = "" }, 0},
		{"unknown exporter", func(o *Options) { o.ExporterType = "kafka" }, 1},
		{"ratio out of range", func(o *Options) { o.SamplerType = SamplerRatio; o.SamplerRatio = 1.5 }, 1},
		{"unknown sampler", func(o *Options) { o.SamplerType = "sometimes" }, 1},
		{"batch settings", func(o *Options) { o.BatchTimeout = 0; o.BatchMaxSize = 0; o.ExportTimeout = 0; o.MaxQueueSize = 0 }, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			o.Enabled = true
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.errs)
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--tracing.enabled", "--tracing.exporter-type=stdout", "--tracing.sampler-ratio=0.25"}))
	assert.True(t, o.Enabled)
	assert.Equal(t, ExporterStdout, o.ExporterType)
	assert.InDelta(t, 0.25, o.SamplerRatio, 1e-9)
}

func TestCompleteFillsMaps(t *testing.T) {
	o := &Options{}
	require.NoError(t, o.Complete())
	assert.NotNil(t, o.Headers)
	assert.NotNil(t, o.ResourceAttributes)
}
