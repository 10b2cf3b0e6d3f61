package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync-api/internal/models"
)

func TestSchemaCache_CollectionLoadsOnce(t *testing.T) {
	c := NewSchemaCache(time.Minute)
	loads := 0
	load := func(context.Context) (*models.Collection, error) {
		loads++
		return &models.Collection{ID: "col-1"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Collection(context.Background(), "int-1", "col-1", load)
		require.NoError(t, err)
		assert.Equal(t, "col-1", got.ID)
	}
	assert.Equal(t, 1, loads)

	c.Invalidate("int-1", "col-1", "")
	_, err := c.Collection(context.Background(), "int-1", "col-1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestSchemaCache_KeysAreScopedByIntegration(t *testing.T) {
	c := NewSchemaCache(time.Minute)
	loads := 0
	load := func(context.Context) (*models.Collection, error) {
		loads++
		return &models.Collection{ID: "col-1"}, nil
	}

	_, _ = c.Collection(context.Background(), "int-1", "col-1", load)
	_, _ = c.Collection(context.Background(), "int-2", "col-1", load)
	assert.Equal(t, 2, loads)
}

func TestSchemaCache_DatabaseErrorNotCached(t *testing.T) {
	c := NewSchemaCache(time.Minute)
	calls := 0
	load := func(context.Context) (notionapi.PropertyConfigs, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return notionapi.PropertyConfigs{"Name": &notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle}}, nil
	}

	_, err := c.Database(context.Background(), "db-1", load)
	require.Error(t, err)

	props, err := c.Database(context.Background(), "db-1", load)
	require.NoError(t, err)
	assert.Contains(t, props, "Name")

	_, err = c.Database(context.Background(), "db-1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	c.Invalidate("int-1", "col-1", "db-1")
	_, _ = c.Database(context.Background(), "db-1", load)
	assert.Equal(t, 3, calls)
}
