package profiling

import (
	"context"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync-api/config"
)

func TestParseProfileTypes(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []pyroscope.ProfileType
	}{
		{"default", "", []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileAllocSpace, pyroscope.ProfileGoroutines}},
		{"only separators", " , ,", []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileAllocSpace, pyroscope.ProfileGoroutines}},
		{"mutex expands", "mutex", []pyroscope.ProfileType{pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration}},
		{"duplicates collapse", "CPU, cpu,inuse_space", []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProfileTypes(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProfileTypes_Invalid(t *testing.T) {
	_, err := parseProfileTypes("cpu,heap_dump")
	assert.ErrorContains(t, err, "unsupported O11Y_PROFILING_SAMPLE_TYPES")
}

func TestBuildTags_SkipsEmpty(t *testing.T) {
	tags := buildTags(config.ObservabilityConfig{ServiceNamespace: "flowsync", ServiceVersion: " "}, "production")
	assert.Equal(t, map[string]string{"env": "production", "namespace": "flowsync"}, tags)
}

func TestInitProfiler_Disabled(t *testing.T) {
	stop, err := InitProfiler(config.ProfilingConfig{}, config.ObservabilityConfig{}, "test")
	require.NoError(t, err)
	assert.NotPanics(t, stop)
}

func TestInitProfiler_RequiresEndpoint(t *testing.T) {
	_, err := InitProfiler(config.ProfilingConfig{Enabled: true}, config.ObservabilityConfig{}, "test")
	assert.Error(t, err)
}

func TestPhase_RunsCallback(t *testing.T) {
	ran := false
	Phase(context.Background(), "pages", func(context.Context) { ran = true })
	assert.True(t, ran)
}
