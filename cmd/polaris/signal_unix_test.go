//go:build !windows

package main

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSignalContext_SIGTERM(t *testing.T) {
	ctx, cancel := signalContext(t.Context())
	defer cancel()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("signal context not cancelled on SIGTERM")
	}
}
