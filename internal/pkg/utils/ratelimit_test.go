package utils

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledWriterPassthrough(t *testing.T) {
	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), &buf, 0)
	assert.Same(t, &buf, w)
}

func TestThrottledWriterSplitsLargeWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), &buf, 1024)

	payload := bytes.Repeat([]byte("a"), 1500)
	start := time.Now()
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, 1500, n)
	assert.Equal(t, payload, buf.Bytes())
	// 首个桶是满的，剩余 476 字节需要等待约 0.46 秒
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestThrottledWriterHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	w := NewThrottledWriter(ctx, &buf, 10)
	cancel()

	_, err := w.Write(bytes.Repeat([]byte("a"), 100))
	assert.Error(t, err)
}
