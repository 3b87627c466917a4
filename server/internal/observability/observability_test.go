package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reqCtx := NewRequestContextWithID(logger, "req-1", "chat", 7)
	reqCtx.Error("chat turn failed", errors.New("boom"), slog.Int(LogFieldPersonaID, 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.EqualValues(t, 7, entry[LogFieldUserID])
	assert.Equal(t, "chat", entry[LogFieldFlow])
	assert.EqualValues(t, 2, entry[LogFieldPersonaID])
	assert.Equal(t, "boom", entry["error"])
}

func TestForFlow(t *testing.T) {
	base := NewRequestContextWithID(slog.New(slog.NewTextHandler(io.Discard, nil)), "req-2", "", 0)
	ctx := WithRequestContext(context.Background(), base)

	tagged := ForFlow(ctx, "quiz", 9)
	assert.Equal(t, "req-2", tagged.RequestID)
	assert.Equal(t, "quiz", tagged.Flow)
	assert.Equal(t, int32(9), tagged.UserID)
	assert.Equal(t, "", base.Flow)

	fresh := ForFlow(context.Background(), "chat", 1)
	assert.NotEmpty(t, fresh.RequestID)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ExtractionDegraded.WithLabelValues("chat").Inc()
	m.ExtractionDegraded.WithLabelValues("chat").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `tutormind_extraction_degraded_total{flow="chat"} 2`)

	// A second instance does not collide with the first.
	assert.NotPanics(t, func() { NewMetrics() })
}
