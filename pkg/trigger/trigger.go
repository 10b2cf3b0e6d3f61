package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/flowsync/flowsync-api/pkg/httpclient"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
	"go.uber.org/zap"
)

const notifyTimeout = 10 * time.Second

// SyncCompleted is posted to the configured trigger URL after a sync run.
type SyncCompleted struct {
	RunID         string `json:"runId"`
	IntegrationID string `json:"integrationId"`
	Status        string `json:"status"`
}

// NotifyAsync posts the event to triggerURL in the background.
// Failures are logged and never affect the sync run.
func NotifyAsync(triggerURL string, event SyncCompleted, httpClient httpclient.Client) {
	if triggerURL == "" || httpClient == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := Notify(ctx, triggerURL, event, httpClient); err != nil {
			logger.Error("Failed to call trigger URL",
				zap.Error(err),
				zap.String("url", triggerURL),
				zap.String("run_id", event.RunID))
		}
	}()
}

// Notify posts the event synchronously. Non-2xx answers are errors.
func Notify(ctx context.Context, triggerURL string, event SyncCompleted, httpClient httpclient.Client) error {
	start := time.Now()
	status, err := httpclient.PostJSON(ctx, httpClient, triggerURL, event)
	outcome := "success"
	if err != nil || status < 200 || status >= 300 {
		outcome = "error"
	}
	metrics.ObserveAPICall("trigger", "sync_completed", outcome, metrics.MeasureDuration(start))
	if err != nil {
		return err
	}
	if outcome == "error" {
		return fmt.Errorf("trigger URL returned status %d", status)
	}

	logger.Info("Trigger URL called",
		zap.String("run_id", event.RunID),
		zap.String("status", event.Status),
		zap.Int("status_code", status))
	return nil
}
