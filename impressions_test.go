package abtest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test_key"

func TestImpressionProcessorFlushesOnTick(t *testing.T) {
	actualRequestBody := struct {
		mu   sync.Mutex
		body string
	}{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		raw, err := io.ReadAll(req.Body)
		assert.NoError(t, err)
		actualRequestBody.mu.Lock()
		actualRequestBody.body = string(raw)
		actualRequestBody.mu.Unlock()
		assert.Equal(t, "/api/v1/abtest-logs/", req.URL.Path)
		assert.Equal(t, testAPIKey, req.Header.Get(APIKeyHeader))
	}))
	defer server.Close()

	client := resty.New().SetHeader(APIKeyHeader, testAPIKey)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := NewImpressionProcessor(ctx, client, server.URL+"/api/v1/", 10*time.Millisecond, slog.Default())

	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	processor.Track(Impression{ID: "imp-1", ProjectID: "p", ExperimentID: "e", CreativeName: "A", Timestamp: ts})

	assert.Eventually(t, func() bool {
		return processor.Pending() == 0
	}, time.Second, 5*time.Millisecond)

	actualRequestBody.mu.Lock()
	defer actualRequestBody.mu.Unlock()
	assert.JSONEq(t, `[{
		"id": "imp-1",
		"projectId": "p",
		"abtestId": "e",
		"creativeIndex": 0,
		"creativeName": "A",
		"isOriginal": false,
		"url": "",
		"device": "",
		"browser": "",
		"os": "",
		"language": "",
		"timestamp": "2024-06-15T12:00:00Z"
	}]`, actualRequestBody.body)
}

func TestImpressionProcessorKeepsBatchOnFailure(t *testing.T) {
	status := http.StatusServiceUnavailable
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		rw.WriteHeader(status)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := NewImpressionProcessor(ctx, resty.New(), server.URL+"/", time.Hour, slog.Default())

	processor.Track(Impression{})
	processor.Track(Impression{})

	resp, err := processor.Flush(context.Background())
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 2, processor.Pending())

	mu.Lock()
	status = http.StatusCreated
	mu.Unlock()

	_, err = processor.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processor.Pending())
}

func TestImpressionProcessorFlushWithNothingPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := NewImpressionProcessor(ctx, resty.New(), "http://127.0.0.1:0/", time.Hour, slog.Default())

	resp, err := processor.Flush(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, resp)
}

func TestImpressionProcessorAssignsIDsAndBounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := NewImpressionProcessor(ctx, resty.New(), "http://127.0.0.1:0/", time.Hour, slog.Default())

	for i := 0; i < MaxBufferedImpressions; i++ {
		require.True(t, processor.Track(Impression{}))
	}
	assert.False(t, processor.Track(Impression{}))
	assert.Equal(t, MaxBufferedImpressions, processor.Pending())

	processor.store.mu.Lock()
	defer processor.store.mu.Unlock()
	assert.NotEmpty(t, processor.store.data[0].ID)
	assert.NotEqual(t, processor.store.data[0].ID, processor.store.data[1].ID)
}

func TestImpressionProcessorFlushesOnShutdown(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		received <- struct{}{}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	processor := NewImpressionProcessor(ctx, resty.New(), server.URL+"/", time.Hour, slog.Default())
	processor.Track(Impression{})
	cancel()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("impressions were not flushed on shutdown")
	}
}

func TestImpressionProcessorTrackDoesNotWaitForFlush(t *testing.T) {
	requested := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		close(requested)
		<-release
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := NewImpressionProcessor(ctx, resty.New(), server.URL+"/", time.Hour, slog.Default())
	processor.Track(Impression{ID: "old-1"})
	processor.Track(Impression{ID: "old-2"})

	flushed := make(chan error, 1)
	go func() {
		_, err := processor.Flush(context.Background())
		flushed <- err
	}()
	<-requested

	tracked := make(chan bool, 1)
	go func() { tracked <- processor.Track(Impression{ID: "new-1"}) }()
	select {
	case ok := <-tracked:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Track waited for the flush in progress")
	}
	assert.Equal(t, 3, processor.Pending())

	close(release)
	require.Error(t, <-flushed)

	processor.store.mu.Lock()
	defer processor.store.mu.Unlock()
	ids := make([]string, 0, len(processor.store.data))
	for _, imp := range processor.store.data {
		ids = append(ids, imp.ID)
	}
	assert.Equal(t, []string{"old-1", "old-2", "new-1"}, ids)
	assert.Zero(t, processor.store.inFlight)
}

func TestImpressionStoreSettleBounded(t *testing.T) {
	store := &impressionStore{}
	for i := 0; i < MaxBufferedImpressions; i++ {
		store.data = append(store.data, Impression{})
	}
	batch := store.take()
	assert.Equal(t, MaxBufferedImpressions, store.inFlight)

	store.data = []Impression{{ID: "newer"}}
	dropped := store.settle(batch, false)

	assert.Equal(t, 1, dropped)
	assert.Len(t, store.data, MaxBufferedImpressions)
	assert.Zero(t, store.inFlight)
	assert.NotEqual(t, "newer", store.data[len(store.data)-1].ID)
}
