package main

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/config"
	"localchat/internal/pkg/logger"
)

func TestDrainTimeoutCoversInference(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.TimeoutSeconds = 120
	assert.Equal(t, 130*time.Second, drainTimeout(cfg))
}

func TestShutdownWaitsForInflightRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})}
	go func() { _ = server.Serve(ln) }()

	result := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			result <- 0
			return
		}
		_ = resp.Body.Close()
		result <- resp.StatusCode
	}()

	<-started
	shutdown(logger.Discard(), server, 5*time.Second)
	assert.Equal(t, http.StatusOK, <-result)
}
