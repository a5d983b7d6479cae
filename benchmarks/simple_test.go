package benchmarks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/http2"
)

const (
	retryqURL = "http://localhost:8080"
	authToken = "test-secret"
	testKind  = "webhook"
)

// High-performance HTTP client configured for sustained concurrent load
var benchmarkClient *http.Client

func init() {
	transport := &http.Transport{
		MaxIdleConns:        200,              // Total idle connections across all hosts
		MaxIdleConnsPerHost: 100,              // Max idle connections per host (vs default 2!)
		MaxConnsPerHost:     200,              // Max total connections per host
		IdleConnTimeout:     90 * time.Second, // Keep connections alive
		DisableCompression:  true,             // Reduce CPU overhead
		ForceAttemptHTTP2:   true,             // Use HTTP/2 if available
	}

	// Enable HTTP/2 support
	http2.ConfigureTransport(transport)

	benchmarkClient = &http.Client{
		Transport: transport,
		Timeout:   35 * time.Second,
	}
}

type EnqueueRequest struct {
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"maxRetries,omitempty"`
}

type EnqueueResponse struct {
	Id string `json:"id"`
}

type QueueStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	DeadLetter int `json:"deadLetter"`
}

// Helper functions for HTTP calls
func enqueueMessage(kind string, payload string) (string, error) {
	req := EnqueueRequest{Kind: kind, Payload: json.RawMessage(payload), MaxRetries: 3}
	body, _ := json.Marshal(req)

	httpReq, _ := http.NewRequest("POST", retryqURL+"/api/v1/queue/messages", bytes.NewBuffer(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", authToken)

	resp, err := benchmarkClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		return "", fmt.Errorf("enqueue failed with status: %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var enqueueResp EnqueueResponse
	err = json.Unmarshal(respBody, &enqueueResp)
	return enqueueResp.Id, err
}

func fetchStats() (*QueueStats, error) {
	httpReq, _ := http.NewRequest("GET", retryqURL+"/api/v1/queue/stats", nil)
	httpReq.Header.Set("X-API-Key", authToken)

	resp, err := benchmarkClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("stats failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var stats QueueStats
	err = json.Unmarshal(body, &stats)
	return &stats, err
}

// BenchmarkSingleProducer measures sequential enqueue throughput
func BenchmarkSingleProducer(b *testing.B) {
	testPayload := `{"url": "http://localhost:9999/hook", "body": {"id": 123, "name": "test"}}`

	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		if _, err := enqueueMessage(testKind, testPayload); err != nil {
			b.Fatal("Failed to enqueue:", err)
		}
	}

	duration := time.Since(start)
	throughput := float64(b.N) / duration.Seconds()
	avgLatency := duration / time.Duration(b.N)

	fmt.Printf("\n=== Single Producer ===\n")
	fmt.Printf("Messages: %d\n", b.N)
	fmt.Printf("Duration: %v\n", duration)
	fmt.Printf("Throughput: %.2f messages/sec\n", throughput)
	fmt.Printf("Avg Latency: %v\n", avgLatency)
}

// BenchmarkConcurrentProducers measures enqueue throughput under concurrent load
func BenchmarkConcurrentProducers(b *testing.B) {
	numProducers := 5
	messagesPerProducer := b.N / numProducers
	if messagesPerProducer < 1 {
		messagesPerProducer = 1
	}
	totalMessages := messagesPerProducer * numProducers

	testPayload := `{"url": "http://localhost:9999/hook", "body": {"id": 123, "name": "test"}}`

	b.ResetTimer()
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < numProducers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < messagesPerProducer; j++ {
				if _, err := enqueueMessage(testKind, testPayload); err != nil {
					b.Error(err)
					return
				}
			}
		}()
	}

	wg.Wait()
	duration := time.Since(start)
	throughput := float64(totalMessages) / duration.Seconds()
	avgLatency := duration / time.Duration(totalMessages)

	fmt.Printf("\n=== Concurrent Producers (%d producers) ===\n", numProducers)
	fmt.Printf("Messages: %d\n", totalMessages)
	fmt.Printf("Duration: %v\n", duration)
	fmt.Printf("Throughput: %.2f messages/sec\n", throughput)
	fmt.Printf("Avg Latency: %v\n", avgLatency)
}

// BenchmarkStatsUnderLoad measures stats reads while producers keep enqueueing
func BenchmarkStatsUnderLoad(b *testing.B) {
	testPayload := `{"url": "http://localhost:9999/hook", "body": {"id": 123, "name": "test"}}`

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				enqueueMessage(testKind, testPayload)
			}
		}
	}()

	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		if _, err := fetchStats(); err != nil {
			close(stop)
			wg.Wait()
			b.Fatal("Failed to fetch stats:", err)
		}
	}

	duration := time.Since(start)
	close(stop)
	wg.Wait()

	throughput := float64(b.N) / duration.Seconds()

	fmt.Printf("\n=== Stats Under Load ===\n")
	fmt.Printf("Reads: %d\n", b.N)
	fmt.Printf("Duration: %v\n", duration)
	fmt.Printf("Throughput: %.2f reads/sec\n", throughput)
}
