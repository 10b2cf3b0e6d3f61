package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jomei/notionapi"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/config"
	"github.com/flowsync/flowsync-api/internal/cache"
	"github.com/flowsync/flowsync-api/internal/mapping"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/repository"
	"github.com/flowsync/flowsync-api/internal/resolver"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/httpclient"
	"github.com/flowsync/flowsync-api/pkg/limiter"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
	"github.com/flowsync/flowsync-api/pkg/profiling"
	"github.com/flowsync/flowsync-api/pkg/tracing"
	"github.com/flowsync/flowsync-api/pkg/trigger"
)

// Phase names used in metrics, spans and skipped-phase reports
const (
	PhaseFetch          = "fetch"
	PhaseDatabases      = "databases"
	PhaseRelationSchema = "relation_schema"
	PhasePages          = "pages"
	PhaseRelationValues = "relation_values"
	PhaseOptionValues   = "option_values"
)

// SyncService orchestrates full collection syncs.
type SyncService struct {
	integrations repository.IntegrationRepositoryInterface
	mappings     repository.MappingRepositoryInterface
	runs         repository.SyncRunRepositoryInterface
	factory      ClientFactory
	schemaCache  *cache.SchemaCache
	config       *config.Config
	httpClient   httpclient.Client

	// wg tracks background runs so shutdown can wait for them
	wg sync.WaitGroup

	mu     sync.Mutex
	active map[string]string // integration ID -> run ID
}

// NewSyncService creates a new sync service
func NewSyncService(
	integrations repository.IntegrationRepositoryInterface,
	mappings repository.MappingRepositoryInterface,
	runs repository.SyncRunRepositoryInterface,
	factory ClientFactory,
	schemaCache *cache.SchemaCache,
	cfg *config.Config,
	httpClient httpclient.Client,
) *SyncService {
	return &SyncService{
		integrations: integrations,
		mappings:     mappings,
		runs:         runs,
		factory:      factory,
		schemaCache:  schemaCache,
		config:       cfg,
		httpClient:   httpClient,
		active:       map[string]string{},
	}
}

// StartSync records a run and executes it in the background. The returned
// run is in the running state; poll GetRun for the result.
func (s *SyncService) StartSync(ctx context.Context, userID, integrationID string, collectionIDs []string, triggerName string) (*models.SyncRun, error) {
	integration, err := s.integrations.GetForUser(ctx, userID, integrationID)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, integration, collectionIDs, triggerName)
}

// ResyncMapped re-runs the pipeline for every collection the integration has
// already synced. Existing pages are updated in place.
func (s *SyncService) ResyncMapped(ctx context.Context, integration *models.Integration) (*models.SyncRun, error) {
	mappings, err := s.mappings.ListCollectionMappings(ctx, integration.ID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.CollectionID)
	}
	return s.start(ctx, integration, ids, models.TriggerSchedule)
}

// start records and launches a run. Only one run per integration may be in
// flight at a time.
func (s *SyncService) start(ctx context.Context, integration *models.Integration, collectionIDs []string, triggerName string) (*models.SyncRun, error) {
	s.mu.Lock()
	if runID, busy := s.active[integration.ID]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("sync %s already running for integration %s: %w", runID, integration.ID, apperrors.ErrConflict)
	}
	run := &models.SyncRun{
		ID:            uuid.NewString(),
		IntegrationID: integration.ID,
		Trigger:       triggerName,
		Status:        models.RunStatusRunning,
		CollectionIDs: collectionIDs,
		StartedAt:     time.Now().UTC(),
	}
	s.active[integration.ID] = run.ID
	s.mu.Unlock()

	if err := s.runs.Create(ctx, run); err != nil {
		s.release(integration.ID)
		return nil, err
	}

	logger.ForRun(run.ID, integration.ID).Info("Sync run started",
		zap.String("trigger", triggerName),
		zap.Strings("collection_ids", collectionIDs))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(integration.ID)
		s.execute(run, integration)
	}()
	return run, nil
}

func (s *SyncService) release(integrationID string) {
	s.mu.Lock()
	delete(s.active, integrationID)
	s.mu.Unlock()
}

// execute runs detached from the request that started it.
func (s *SyncService) execute(run *models.SyncRun, integration *models.Integration) {
	timeout := s.config.Sync.RunTimeout
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	result, err := s.runForIntegration(ctx, integration, run.CollectionIDs)
	if result == nil {
		result = failure("sync could not start", err)
	}
	status := result.Status()
	metrics.SyncRunDuration.WithLabelValues(run.Trigger, status).Observe(metrics.MeasureDuration(start))

	log := logger.ForRun(run.ID, run.IntegrationID)
	if err := s.runs.Finish(ctx, run.ID, result); err != nil {
		log.Error("Failed to store sync result", zap.Error(err))
	}
	log.Info("Sync run finished",
		zap.String("status", status),
		zap.Int("databases_created", result.DatabasesCreated),
		zap.Int("pages_created", result.PageSyncStats.Created),
		zap.Int("pages_updated", result.PageSyncStats.Updated),
		zap.Int("pages_failed", result.PageSyncStats.Failed),
		zap.Duration("duration", time.Since(start)))

	trigger.NotifyAsync(s.config.Sync.CompletionTrigger, trigger.SyncCompleted{
		RunID:         run.ID,
		IntegrationID: run.IntegrationID,
		Status:        status,
	}, s.httpClient)
}

// Wait blocks until background runs finish or ctx is done.
func (s *SyncService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetRun returns a run of an integration the user owns.
func (s *SyncService) GetRun(ctx context.Context, userID, integrationID, runID string) (*models.SyncRun, error) {
	if _, err := s.integrations.GetForUser(ctx, userID, integrationID); err != nil {
		return nil, err
	}
	return s.runs.GetByID(ctx, integrationID, runID)
}

// RunSelectedCollectionsSync runs the whole pipeline for the selected
// collections and returns its result. Errors are only returned when the run
// could not start at all: unknown integration or missing credentials.
func (s *SyncService) RunSelectedCollectionsSync(ctx context.Context, userID, integrationID string, collectionIDs []string) (*models.SyncResult, error) {
	integration, err := s.integrations.GetForUser(ctx, userID, integrationID)
	if err != nil {
		return nil, err
	}
	return s.runForIntegration(ctx, integration, collectionIDs)
}

func (s *SyncService) runForIntegration(ctx context.Context, integration *models.Integration, collectionIDs []string) (*models.SyncResult, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.run",
		attribute.String("integration.id", integration.ID),
		attribute.Int("collections.selected", len(collectionIDs)))

	if len(collectionIDs) == 0 {
		tracing.EndSpan(span, nil)
		return &models.SyncResult{Success: true, Message: "no collections selected"}, nil
	}

	sess, err := s.factory.NewSession(ctx, integration)
	if err != nil {
		tracing.EndSpan(span, err)
		logger.Error("Failed to build sync session", zap.String("integration_id", integration.ID), zap.Error(err))
		return failure("failed to initialize clients", err), err
	}

	result := s.runPipeline(ctx, sess, collectionIDs)
	if !result.Success {
		span.SetAttributes(attribute.String("sync.error", result.Error))
	}
	tracing.EndSpan(span, nil)
	return result, nil
}

func failure(message string, err error) *models.SyncResult {
	r := &models.SyncResult{Success: false, Message: message}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// phase runs fn inside a span and records its duration.
func phase(ctx context.Context, name string, fn func(ctx context.Context)) {
	ctx, span := tracing.StartSpan(ctx, "sync.phase."+name)
	start := time.Now()
	profiling.Phase(ctx, name, fn)
	metrics.SyncPhaseDuration.WithLabelValues(name).Observe(metrics.MeasureDuration(start))
	tracing.EndSpan(span, nil)
}

func countItems(phaseName string, ok, failed int) {
	metrics.SyncItemsTotal.WithLabelValues(phaseName, "success").Add(float64(ok))
	metrics.SyncItemsTotal.WithLabelValues(phaseName, "failure").Add(float64(failed))
}

// runPipeline drives the phases. Each phase waits for all of its work to
// settle before the next one starts.
func (s *SyncService) runPipeline(ctx context.Context, sess *Session, collectionIDs []string) *models.SyncResult {
	result := &models.SyncResult{Success: true}
	var warnings []mapping.Warning

	// fetch
	var plans []*resolver.CollectionPlan
	var fetchErr error
	phase(ctx, PhaseFetch, func(ctx context.Context) {
		plans, warnings, fetchErr = s.fetchPlans(ctx, sess, collectionIDs)
	})
	if len(plans) == 0 {
		result = failure("failed to fetch selected collections", fetchErr)
		result.Warnings = warningStrings(warnings)
		return result
	}

	// databases
	var databaseErr error
	phase(ctx, PhaseDatabases, func(ctx context.Context) {
		databaseErr = s.createDatabases(ctx, sess, plans, result)
	})
	ready := make([]*resolver.CollectionPlan, 0, len(plans))
	for _, p := range plans {
		if p.State() == resolver.DatabaseCreated {
			ready = append(ready, p)
		}
	}
	if len(ready) == 0 {
		failed := failure("no databases were created", databaseErr)
		failed.Warnings = warningStrings(warnings)
		return failed
	}

	// relation schema
	phase(ctx, PhaseRelationSchema, func(ctx context.Context) {
		stats := sess.Resolver.LinkRelationSchemas(ctx, ready, s.databaseIndex(ctx, sess, ready))
		result.RelationSyncStats.SchemaConverted = stats.Converted
		result.RelationSyncStats.SchemaFailed = stats.Failed
		warnings = append(warnings, stats.Warnings...)
	})

	// pages
	ids := resolver.NewIDMap()
	phase(ctx, PhasePages, func(ctx context.Context) {
		warnings = append(warnings, s.syncPages(ctx, sess, ready, ids, &result.PageSyncStats)...)
	})
	for _, p := range ready {
		if p.State() == resolver.RelationsLinked {
			if err := p.Advance(resolver.ItemsSynced); err != nil {
				logger.Error("Unexpected plan state", zap.String("collection_id", p.Collection.ID), zap.Error(err))
			}
		}
	}
	stats := result.PageSyncStats
	if stats.Total > 0 && stats.Failed == stats.Total {
		failed := failure("all pages failed to sync", apperrors.ErrUpstream)
		failed.DatabasesCreated = result.DatabasesCreated
		failed.DatabasesReused = result.DatabasesReused
		failed.PageSyncStats = result.PageSyncStats
		failed.RelationSyncStats = result.RelationSyncStats
		failed.Warnings = warningStrings(warnings)
		return failed
	}

	// values
	if ids.Len() == 0 {
		if stats.Total == 0 {
			result.Message = "no items to sync"
		} else {
			result.SkippedPhases = []string{PhaseRelationValues, PhaseOptionValues}
			result.Message = "value resolution skipped: no pages were synced"
		}
		result.Warnings = warningStrings(warnings)
		return result
	}

	phase(ctx, PhaseRelationValues, func(ctx context.Context) {
		rel := sess.Resolver.ResolveRelationValues(ctx, ready, ids, storedPages(ctx, s.mappings, sess.Integration.ID))
		result.RelationSyncStats.ItemsUpdated = rel.Updated
		result.RelationSyncStats.ItemsFailed = rel.Failed
		result.RelationSyncStats.MissingTargets = rel.Missing
		warnings = append(warnings, rel.Warnings...)
		countItems(PhaseRelationValues, rel.Updated, rel.Failed)
	})
	phase(ctx, PhaseOptionValues, func(ctx context.Context) {
		opt := sess.Resolver.ResolveOptionValues(ctx, ready, ids)
		result.OptionSyncStats.ItemsUpdated = opt.Updated
		result.OptionSyncStats.ItemsFailed = opt.Failed
		result.OptionSyncStats.UnmatchedOptions = opt.Missing
		warnings = append(warnings, opt.Warnings...)
		countItems(PhaseOptionValues, opt.Updated, opt.Failed)
	})
	for _, p := range ready {
		if err := p.Advance(resolver.ValuesResolved); err != nil {
			logger.Error("Unexpected plan state", zap.String("collection_id", p.Collection.ID), zap.Error(err))
		}
	}

	recordWarnings(warnings, zap.String("integration_id", sess.Integration.ID))
	result.Warnings = warningStrings(warnings)
	return result
}

// fetchPlans loads the schema and items of every selected collection. A
// collection that fails to load is left out with a warning.
func (s *SyncService) fetchPlans(ctx context.Context, sess *Session, collectionIDs []string) ([]*resolver.CollectionPlan, []mapping.Warning, error) {
	summaries, err := sess.Webflow.ListCollections(ctx, sess.Integration.WebflowSiteID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list collections: %w", err)
	}
	inSite := make(map[string]bool, len(summaries))
	for _, c := range summaries {
		inSite[c.ID] = true
	}

	var warnings []mapping.Warning
	var selected []string
	seen := map[string]bool{}
	for _, id := range collectionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !inSite[id] {
			warnings = append(warnings, mapping.Warning{Field: id, Reason: "collection_not_found"})
			continue
		}
		selected = append(selected, id)
	}
	if len(selected) == 0 {
		return nil, warnings, apperrors.NotFoundError("selected collections")
	}

	plans := make([]*resolver.CollectionPlan, len(selected))
	indexes := make([]int, len(selected))
	for i := range indexes {
		indexes[i] = i
	}
	errs := limiter.Settle(ctx, sess.Concurrency, indexes, func(ctx context.Context, i int) error {
		collection, err := sess.Webflow.GetCollection(ctx, selected[i])
		if err != nil {
			return err
		}
		items, err := sess.Webflow.ListItems(ctx, selected[i])
		if err != nil {
			return err
		}
		plans[i] = resolver.NewPlan(collection, items)
		return nil
	})

	var out []*resolver.CollectionPlan
	var firstErr error
	for i, err := range errs {
		if err != nil {
			logger.Error("Failed to fetch collection", zap.String("collection_id", selected[i]), zap.Error(err))
			warnings = append(warnings, mapping.Warning{Field: selected[i], Reason: "collection_fetch_failed", Detail: err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, plans[i])
		warnings = append(warnings, plans[i].Schema.Warnings...)
	}
	return out, warnings, firstErr
}

// createDatabases creates a database per plan, or reuses the mapped one and
// adds any properties it lacks.
func (s *SyncService) createDatabases(ctx context.Context, sess *Session, plans []*resolver.CollectionPlan, result *models.SyncResult) error {
	var mu sync.Mutex
	errs := limiter.Settle(ctx, sess.Concurrency, plans, func(ctx context.Context, plan *resolver.CollectionPlan) error {
		reused, err := s.ensureDatabase(ctx, sess, plan)
		if err != nil {
			logger.Error("Failed to prepare database",
				zap.String("collection_id", plan.Collection.ID), zap.Error(err))
			return err
		}
		mu.Lock()
		if reused {
			result.DatabasesReused++
		} else {
			result.DatabasesCreated++
		}
		mu.Unlock()
		return plan.Advance(resolver.DatabaseCreated)
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) ensureDatabase(ctx context.Context, sess *Session, plan *resolver.CollectionPlan) (bool, error) {
	integration := sess.Integration
	collection := plan.Collection

	reused := false
	existing, err := s.mappings.GetCollectionMapping(ctx, integration.ID, collection.ID)
	switch {
	case err == nil:
		db, err := sess.Notion.GetDatabase(ctx, existing.DatabaseID)
		switch {
		case err == nil:
			plan.DatabaseID = existing.DatabaseID
			plan.Properties = db.Properties
			reused = true
		case apperrors.Is(err, apperrors.ErrNotFound):
			logger.Warn("Mapped database no longer exists, creating a new one",
				zap.String("collection_id", collection.ID), zap.String("database_id", existing.DatabaseID))
		default:
			return false, fmt.Errorf("failed to load database %s: %w", existing.DatabaseID, err)
		}
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return false, err
	}

	if reused {
		missing := notionapi.PropertyConfigs{}
		for name, cfg := range plan.Schema.Properties {
			if _, ok := plan.Properties[name]; !ok {
				missing[name] = cfg
			}
		}
		if len(missing) > 0 {
			db, err := sess.Notion.UpdateDatabaseProperties(ctx, plan.DatabaseID, missing)
			if err != nil {
				return false, fmt.Errorf("failed to add properties to database %s: %w", plan.DatabaseID, err)
			}
			plan.Properties = db.Properties
		}
		if err := sess.Linker.EnsureDestinationField(ctx, plan.DatabaseID); err != nil {
			logger.Warn("Failed to ensure item ID property on database",
				zap.String("database_id", plan.DatabaseID), zap.Error(err))
		}
	} else {
		db, err := sess.Notion.CreateDatabase(ctx, integration.NotionParentPageID, collection.DisplayName, plan.Schema.Properties)
		if err != nil {
			return false, fmt.Errorf("failed to create database: %w", err)
		}
		plan.DatabaseID = string(db.ID)
		plan.Properties = db.Properties
		logger.Info("Database created",
			zap.String("collection_id", collection.ID),
			zap.String("database_id", plan.DatabaseID),
			zap.Int("properties", len(plan.Properties)))
	}

	if _, err := sess.Linker.EnsureSourceField(ctx, collection.ID); err != nil {
		logger.Warn("Failed to ensure back-reference field on collection",
			zap.String("collection_id", collection.ID), zap.Error(err))
	}

	if err := s.mappings.SaveCollectionMapping(ctx, &models.CollectionMapping{
		IntegrationID:  integration.ID,
		CollectionID:   collection.ID,
		CollectionName: collection.DisplayName,
		DatabaseID:     plan.DatabaseID,
	}); err != nil {
		return false, err
	}
	s.schemaCache.Invalidate(integration.ID, collection.ID, plan.DatabaseID)
	return reused, nil
}

// databaseIndex maps collection IDs to database IDs for every collection the
// integration has synced, so references to collections outside this run's
// selection still resolve.
func (s *SyncService) databaseIndex(ctx context.Context, sess *Session, plans []*resolver.CollectionPlan) map[string]string {
	index := map[string]string{}
	mappings, err := s.mappings.ListCollectionMappings(ctx, sess.Integration.ID)
	if err != nil {
		logger.Warn("Failed to list collection mappings, resolving within this run only", zap.Error(err))
	}
	for _, m := range mappings {
		index[m.CollectionID] = m.DatabaseID
	}
	for _, p := range plans {
		index[p.Collection.ID] = p.DatabaseID
	}
	return index
}

type pageJob struct {
	plan *resolver.CollectionPlan
	item *models.Item
}

// syncPages creates or updates one page per item and fills ids.
func (s *SyncService) syncPages(ctx context.Context, sess *Session, plans []*resolver.CollectionPlan, ids *resolver.IDMap, stats *models.PageSyncStats) []mapping.Warning {
	var jobs []pageJob
	for _, p := range plans {
		if p.State() != resolver.RelationsLinked {
			continue
		}
		for i := range p.Items {
			if p.Items[i].IsArchived {
				continue
			}
			jobs = append(jobs, pageJob{plan: p, item: &p.Items[i]})
		}
	}
	stats.Total = len(jobs)

	var mu sync.Mutex
	var warnings []mapping.Warning
	errs := limiter.Settle(ctx, sess.Concurrency, jobs, func(ctx context.Context, job pageJob) error {
		target := pageTarget{
			collection: job.plan.Collection,
			databaseID: job.plan.DatabaseID,
			properties: job.plan.Properties,
		}
		props, w := mapping.MapItemProperties(job.item, job.plan.Collection.Fields, job.plan.Properties)
		blocks := itemBlocks(job.plan.Collection.Fields, job.item)

		out, err := upsertPage(ctx, sess, s.mappings, target, job.item, props, blocks)
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w...)
		if err != nil {
			logger.Error("Failed to sync item",
				zap.String("collection_id", job.plan.Collection.ID),
				zap.String("item_id", job.item.ID),
				zap.Error(err))
			return err
		}
		ids.Set(job.item.ID, out.pageID)
		if out.created {
			stats.Created++
		} else {
			stats.Updated++
		}
		if out.linkFailed {
			stats.FailedLinkUpdate++
		}
		return nil
	})
	stats.Failed = limiter.CountFailed(errs)
	countItems(PhasePages, stats.Total-stats.Failed, stats.Failed)
	return warnings
}
