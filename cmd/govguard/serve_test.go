package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type shutdownRecorder struct {
	calls *[]string
	err   error
}

func (r shutdownRecorder) Shutdown(ctx context.Context) error {
	*r.calls = append(*r.calls, "server")
	return r.err
}

func (r shutdownRecorder) Stop() error {
	*r.calls = append(*r.calls, "worker")
	return r.err
}

func TestShutdownDrainsServerBeforeWorker(t *testing.T) {
	var calls []string
	rec := shutdownRecorder{calls: &calls}

	shutdown(rec, rec, time.Second)

	assert.Equal(t, []string{"server", "worker"}, calls)
}

func TestShutdownStopsWorkerWhenServerFails(t *testing.T) {
	var calls []string
	rec := shutdownRecorder{calls: &calls, err: errors.New("deadline exceeded")}

	shutdown(rec, rec, time.Second)

	assert.Equal(t, []string{"server", "worker"}, calls)
}
