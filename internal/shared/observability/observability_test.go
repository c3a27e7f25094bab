package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "  ", "pymeta-test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestRecordsExtracted_Labels(t *testing.T) {
	before := testutil.ToFloat64(RecordsExtracted.WithLabelValues("call"))
	RecordsExtracted.WithLabelValues("call").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RecordsExtracted.WithLabelValues("call")))
}

func TestIndexWritesTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(IndexWritesTotal.WithLabelValues("delete"))
	IndexWritesTotal.WithLabelValues("delete").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(IndexWritesTotal.WithLabelValues("delete")))
}
