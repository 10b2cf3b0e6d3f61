package services

import (
	"context"
	"fmt"

	"github.com/flowsync/flowsync-api/internal/linker"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/repository"
	"github.com/flowsync/flowsync-api/internal/resolver"
	"github.com/flowsync/flowsync-api/pkg/notion"
	"github.com/flowsync/flowsync-api/pkg/webflow"
)

// Session bundles the per-user clients for one sync run or webhook event.
// Sessions are built per invocation and never shared between users.
type Session struct {
	Integration *models.Integration
	Notion      NotionAPI
	Webflow     WebflowAPI
	Linker      *linker.Linker
	Resolver    *resolver.Resolver
	// Concurrency bounds the item work of one phase
	Concurrency int
}

// NewSession wires a session around already-built clients.
func NewSession(integration *models.Integration, notionAPI NotionAPI, webflowAPI WebflowAPI, concurrency int) *Session {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Session{
		Integration: integration,
		Notion:      notionAPI,
		Webflow:     webflowAPI,
		Linker:      linker.New(notionAPI, webflowAPI),
		Resolver:    resolver.New(notionAPI, concurrency),
		Concurrency: concurrency,
	}
}

// ClientFactory builds sessions for an integration's owner.
type ClientFactory interface {
	NewSession(ctx context.Context, integration *models.Integration) (*Session, error)
}

// TokenClientFactory builds clients from the owner's stored OAuth tokens.
// Pools and breakers in the options are process-wide and shared by every
// session it builds.
type TokenClientFactory struct {
	tokens      repository.TokenRepositoryInterface
	notionOpts  notion.Options
	webflowOpts webflow.Options
}

// NewTokenClientFactory creates a factory with shared client options.
func NewTokenClientFactory(tokens repository.TokenRepositoryInterface, notionOpts notion.Options, webflowOpts webflow.Options) *TokenClientFactory {
	return &TokenClientFactory{
		tokens:      tokens,
		notionOpts:  notionOpts,
		webflowOpts: webflowOpts,
	}
}

func (f *TokenClientFactory) NewSession(ctx context.Context, integration *models.Integration) (*Session, error) {
	webflowToken, err := f.tokens.GetToken(ctx, integration.UserID, models.ProviderWebflow)
	if err != nil {
		return nil, err
	}
	notionToken, err := f.tokens.GetToken(ctx, integration.UserID, models.ProviderNotion)
	if err != nil {
		return nil, err
	}

	notionClient, err := notion.NewClient(notionToken, f.notionOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create notion client: %w", err)
	}
	webflowClient, err := webflow.NewClient(webflowToken, f.webflowOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create webflow client: %w", err)
	}

	concurrency := 2
	if f.notionOpts.Pool != nil {
		concurrency = f.notionOpts.Pool.Size()
	}
	return NewSession(integration, notionClient, webflowClient, concurrency), nil
}
