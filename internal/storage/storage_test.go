package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	tenantID := uuid.New()
	url, err := store.Save(context.Background(), tenantID, "Accreditation Certificate.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.Contains(t, url, tenantID.String())
	assert.Contains(t, url, "accreditation-certificate")
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	data, err := os.ReadFile(filepath.FromSlash(url))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	require.NoError(t, store.Remove(context.Background(), url))
	_, err = os.ReadFile(filepath.FromSlash(url))
	assert.True(t, os.IsNotExist(err))

	// Removing twice is harmless.
	assert.NoError(t, store.Remove(context.Background(), url))
}

func TestLocalStoreResubmissionsDoNotCollide(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tenantID := uuid.New()
	first, err := store.Save(context.Background(), tenantID, "enrollment.csv", strings.NewReader("v1"))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), tenantID, "enrollment.csv", strings.NewReader("v2"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
