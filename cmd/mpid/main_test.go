package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/grpc"

	"xdao.co/mpid/manager"
	"xdao.co/mpid/transport/grpcmgr"
)

var (
	aliceSeed = strings.Repeat("01", 32)
	bobSeed   = strings.Repeat("02", 32)
)

func runCmd(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, code := runCmd(t, args...)
	if code != 0 {
		t.Fatalf("mpid %s: exit %d: %s", strings.Join(args, " "), code, errOut)
	}
	return out
}

func writeOutput(t *testing.T, name string, args ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(mustRun(t, args...)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestUsage(t *testing.T) {
	if _, _, code := runCmd(t); code != 2 {
		t.Fatalf("no args: exit %d want 2", code)
	}
	if _, _, code := runCmd(t, "bogus"); code != 2 {
		t.Fatalf("unknown command: exit %d want 2", code)
	}
	if out := mustRun(t, "help"); !strings.Contains(out, "mpid send") {
		t.Fatalf("usage missing send")
	}
}

func TestKeyAndName(t *testing.T) {
	t.Setenv("MPID_KEYS_DIR", t.TempDir())

	out := mustRun(t, "key", "init", "--name", "alice", "--seed-hex", aliceSeed)
	if !strings.Contains(out, "Created key: ed25519:") {
		t.Fatalf("unexpected init output: %s", out)
	}
	mustRun(t, "key", "derive", "--from", "alice", "--role", "phone")
	if out := mustRun(t, "key", "list"); out != "alice\n  - phone\n" {
		t.Fatalf("unexpected list output: %q", out)
	}

	pub := strings.TrimSpace(mustRun(t, "key", "export", "--name", "alice"))
	byKey := mustRun(t, "name", "--pubkey", pub)
	bySigner := mustRun(t, "name", "--signer", "alice")
	bySeed := mustRun(t, "name", "--seed-hex", aliceSeed)
	if byKey != bySigner || byKey != bySeed || len(strings.TrimSpace(byKey)) != 128 {
		t.Fatalf("name mismatch: %q %q %q", byKey, bySigner, bySeed)
	}
	if _, _, code := runCmd(t, "key", "init", "--name", "bad/name"); code != 2 {
		t.Fatalf("invalid key name: exit %d want 2", code)
	}
}

func TestHeaderMessageInspect(t *testing.T) {
	t.Setenv("MPID_KEYS_DIR", t.TempDir())
	alicePub := strings.TrimSpace(mustRun(t, "key", "init", "--name", "alice", "--seed-hex", aliceSeed))
	alicePub = strings.TrimPrefix(strings.SplitN(alicePub, "\n", 2)[0], "Created key: ")
	bobName := strings.TrimSpace(mustRun(t, "name", "--seed-hex", bobSeed))

	header := writeOutput(t, "h.mpid", "header", "--signer", "alice", "--metadata", "greetings")
	out := mustRun(t, "inspect", "--pubkey", alicePub, header)
	for _, want := range []string{"op: PutHeader", `metadata: "greetings"`, "signature: valid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out)
		}
	}

	msg := writeOutput(t, "m.mpid", "message", "--seed-hex", aliceSeed, "--to", bobName, "--body", "hello bob")
	out = mustRun(t, "inspect", "--pubkey", alicePub, msg)
	if !strings.Contains(out, "recipient: "+bobName) || !strings.Contains(out, "body: 9 bytes") {
		t.Fatalf("unexpected inspect output:\n%s", out)
	}

	bobPub := strings.TrimSpace(mustRun(t, "key", "init", "--name", "bob", "--seed-hex", bobSeed))
	bobPub = strings.TrimPrefix(strings.SplitN(bobPub, "\n", 2)[0], "Created key: ")
	out, _, code := runCmd(t, "inspect", "--pubkey", bobPub, msg)
	if code != 1 || !strings.Contains(out, "signature: INVALID") {
		t.Fatalf("wrong key: exit %d\n%s", code, out)
	}

	big := strings.Repeat("x", 129)
	if _, errOut, code := runCmd(t, "header", "--seed-hex", aliceSeed, "--metadata", big); code != 1 || !strings.Contains(errOut, "metadata") {
		t.Fatalf("oversized metadata: exit %d: %s", code, errOut)
	}

	garbage := filepath.Join(t.TempDir(), "junk")
	if err := os.WriteFile(garbage, []byte{0xff}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, errOut, code := runCmd(t, "inspect", garbage); code != 1 || !strings.Contains(errOut, "MPID-WIRE-001") {
		t.Fatalf("garbage: exit %d: %s", code, errOut)
	}
}

func startManager(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := grpc.NewServer()
	grpcmgr.RegisterManagerServer(srv, &grpcmgr.Server{Manager: manager.New(manager.Options{})})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestSendFlow(t *testing.T) {
	t.Setenv("MPID_KEYS_DIR", t.TempDir())
	target := startManager(t)
	bobName := strings.TrimSpace(mustRun(t, "name", "--seed-hex", bobSeed))

	// Register bob first so the header lands in his inbox.
	if out := mustRun(t, "send", "--manager", target, "--seed-hex", bobSeed, "--op", "online"); out != "ok\n" {
		t.Fatalf("online: %q", out)
	}

	msg := writeOutput(t, "m.mpid", "message", "--seed-hex", aliceSeed, "--to", bobName, "--body", "over the wire")
	if out := mustRun(t, "send", "--manager", target, "--seed-hex", aliceSeed, msg); out != "ok\n" {
		t.Fatalf("put message: %q", out)
	}

	replyPath := filepath.Join(t.TempDir(), "reply.mpid")
	out := mustRun(t, "send", "--manager", target, "--seed-hex", bobSeed, "--op", "get-message", "--out", replyPath, msg)
	if !strings.Contains(out, "op: PutMessage") || !strings.Contains(out, "body: 13 bytes") {
		t.Fatalf("get-message output:\n%s", out)
	}
	if _, err := os.Stat(replyPath); err != nil {
		t.Fatalf("reply not written: %v", err)
	}

	out = mustRun(t, "send", "--manager", target, "--seed-hex", aliceSeed, "--op", "outbox-headers")
	var name string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "name: ") {
			name = strings.TrimPrefix(line, "name: ")
		}
	}
	if name == "" {
		t.Fatalf("outbox-headers listed nothing:\n%s", out)
	}

	mustRun(t, "send", "--manager", target, "--seed-hex", aliceSeed, "--op", "remove", "--name", name)
	out = mustRun(t, "send", "--manager", target, "--seed-hex", aliceSeed, "--op", "outbox-has", "--name", name)
	if !strings.Contains(out, "op: OutboxHasResponse") || strings.Contains(out, "name: ") {
		t.Fatalf("outbox-has after remove:\n%s", out)
	}

	if _, errOut, code := runCmd(t, "send", "--manager", target, "--seed-hex", bobSeed, "--op", "remove", "--name", name); code != 1 || !strings.Contains(errOut, "not found") {
		t.Fatalf("remove from wrong outbox: exit %d: %s", code, errOut)
	}
}
