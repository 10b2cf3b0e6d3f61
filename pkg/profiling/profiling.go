package profiling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowsync/flowsync-api/config"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

var profileTypeMap = map[string][]pyroscope.ProfileType{
	"cpu":           {pyroscope.ProfileCPU},
	"alloc_space":   {pyroscope.ProfileAllocSpace},
	"alloc_objects": {pyroscope.ProfileAllocObjects},
	"inuse_space":   {pyroscope.ProfileInuseSpace},
	"goroutines":    {pyroscope.ProfileGoroutines},
	"mutex":         {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":         {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// defaultSampleTypes favours allocation profiles: sync runs spend most of
// their time waiting on the APIs, not on CPU.
const defaultSampleTypes = "cpu,alloc_space,goroutines"

// InitProfiler starts pyroscope when enabled and returns its stop func.
func InitProfiler(cfg config.ProfilingConfig, obs config.ObservabilityConfig, environment string) (func(), error) {
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return func() {}, nil
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("profiling endpoint is required when profiling is enabled")
	}
	interval := time.Duration(cfg.UploadIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	profileTypes, err := parseProfileTypes(cfg.SampleTypes)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.AppName)
	if appName == "" {
		appName = obs.ServiceName
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   endpoint,
		UploadRate:      interval,
		ProfileTypes:    profileTypes,
		Tags:            buildTags(obs, environment),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start profiler: %w", err)
	}

	logger.Info("Continuous profiling initialized",
		zap.String("application_name", appName),
		zap.String("endpoint", endpoint),
		zap.Int("profile_types", len(profileTypes)),
		zap.Duration("upload_interval", interval),
	)

	return func() {
		if stopErr := profiler.Stop(); stopErr != nil {
			logger.Error("Failed to stop profiler", zap.Error(stopErr))
		}
	}, nil
}

// Phase runs fn with the sync phase attached as a profile label, so
// profiles can be split by pipeline phase. Labels are free when profiling
// is off.
func Phase(ctx context.Context, phase string, fn func(ctx context.Context)) {
	pyroscope.TagWrapper(ctx, pyroscope.Labels("sync_phase", phase), fn)
}

func parseProfileTypes(value string) ([]pyroscope.ProfileType, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = defaultSampleTypes
	}

	var types []pyroscope.ProfileType
	seen := map[pyroscope.ProfileType]bool{}
	for _, raw := range strings.Split(value, ",") {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		mapped, ok := profileTypeMap[key]
		if !ok {
			return nil, fmt.Errorf("unsupported O11Y_PROFILING_SAMPLE_TYPES value: %q", key)
		}
		for _, t := range mapped {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	if len(types) == 0 {
		return parseProfileTypes(defaultSampleTypes)
	}
	return types, nil
}

// buildTags skips empty values; pyroscope rejects empty tag values.
func buildTags(obs config.ObservabilityConfig, environment string) map[string]string {
	tags := map[string]string{}
	for k, v := range map[string]string{
		"env":             environment,
		"namespace":       obs.ServiceNamespace,
		"service_version": obs.ServiceVersion,
		"instance":        obs.ServiceInstanceID,
	} {
		if v = strings.TrimSpace(v); v != "" {
			tags[k] = v
		}
	}
	return tags
}
