package flow

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// natsURL returns the server used by the NATS tests, which run only when
// FLOWSENTRY_NATS_URL is set
func natsURL(t *testing.T) string {
	if testing.Short() {
		t.Skip()
	}
	url := os.Getenv("FLOWSENTRY_NATS_URL")
	if url == "" {
		t.Skip("FLOWSENTRY_NATS_URL is required to run the NATS source tests")
	}
	return url
}

func TestNATSSourceClosedConnectionEndsStream(t *testing.T) {
	src, err := NewNATSSource(natsURL(t), "flowsentry.test.closed", 4)
	require.NoError(t, err)

	// closing the connection underneath the source is what the client
	// does once it stops reconnecting
	src.nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := src.Next(ctx)
	assert.Nil(t, rec)
	assert.Equal(t, io.EOF, err)

	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
}

func TestNATSSourceClose(t *testing.T) {
	src, err := NewNATSSource(natsURL(t), "flowsentry.test.close", 4)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	rec, err := src.Next(context.Background())
	assert.Nil(t, rec)
	assert.Equal(t, io.EOF, err)
}
