package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"nightscribe/internal/ipc"
)

func TestRunRefusesSecondInstanceWithoutTouchingSocket(t *testing.T) {
	env := setupCLITestEnv(t)

	socketFlag := env.socketPath
	configFlag := env.configPath
	cmdCtx := newCommandContext(&socketFlag, &configFlag)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := runDaemonProcess(context.Background(), cmdCtx, cmd, true)
	if err == nil {
		t.Fatal("expected second daemon instance to refuse startup")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected startup error: %v", err)
	}

	// The refused instance must not have unlinked or rebound the socket of
	// the daemon that holds the lock.
	client, err := ipc.Dial(env.socketPath)
	if err != nil {
		t.Fatalf("surviving daemon unreachable: %v", err)
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		t.Fatalf("status over surviving socket: %v", err)
	}
	if !status.Running {
		t.Fatal("surviving daemon should still report running")
	}
}
