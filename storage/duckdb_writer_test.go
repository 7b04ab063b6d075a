package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDuckDBWriterRejectsBadTableName(t *testing.T) {
	_, err := NewDuckDBWriter(context.Background(), "", "listings; DROP TABLE x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestDuckDBWriterReplacesTable(t *testing.T) {
	ctx := context.Background()
	w, err := NewDuckDBWriter(ctx, "", "listings")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(ctx, mockRows(3)))
	n, err := w.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, w.Write(ctx, mockRows(2)))
	n, err = w.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
