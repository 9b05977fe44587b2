package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"xdao.co/mpid/cidutil"
	"xdao.co/mpid/mpid"
	"xdao.co/mpid/transport/grpcmgr"
	"xdao.co/mpid/xorname"
)

func cmdSend(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var target string
	var timeout time.Duration
	var op string
	var names stringList
	var outPath string
	var signer signerFlags
	fs.StringVar(&target, "manager", "", "Manager gRPC target host:port")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "Per-RPC timeout")
	fs.StringVar(&op, "op", "", "Request to build: online, outbox-headers, outbox-has, get-message, remove")
	fs.Var(&names, "name", "Envelope name for outbox-has/remove (repeatable, hex or CID)")
	fs.StringVar(&outPath, "out", "", "Write the encoded reply to this file")
	signer.register(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if target == "" {
		fmt.Fprintln(errOut, "missing --manager")
		return 2
	}
	parsed := make([]xorname.Name, 0, len(names))
	for _, s := range names {
		n, err := cidutil.ParseName(s)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --name %q: %v\n", s, err)
			return 2
		}
		parsed = append(parsed, n)
	}

	var request mpid.Wrapper
	switch op {
	case "online":
		request = mpid.Online{}
	case "outbox-headers":
		request = mpid.GetOutboxHeaders{}
	case "outbox-has":
		if len(parsed) == 0 {
			fmt.Fprintln(errOut, "outbox-has needs at least one --name")
			return 2
		}
		request = mpid.NewOutboxHas(parsed)
	case "remove":
		if len(parsed) == 0 {
			fmt.Fprintln(errOut, "remove needs at least one --name")
			return 2
		}
	case "", "get-message":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: mpid send --manager <host:port> <signer> [--op get-message] <file>")
			return 2
		}
		w, code := readWrapper(fs.Arg(0), errOut)
		if code != 0 {
			return code
		}
		request = w
		if op == "get-message" {
			h := headerOf(w)
			if h == nil {
				fmt.Fprintf(errOut, "get-message: %s carries no header\n", w.Op())
				return 2
			}
			request = mpid.NewGetMessage(h)
		}
	default:
		fmt.Fprintf(errOut, "unknown --op %q\n", op)
		return 2
	}

	sk, err := signer.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	client, err := grpcmgr.Dial(target, grpcmgr.DialOptions{Timeout: timeout})
	if err != nil {
		fmt.Fprintf(errOut, "dial %s: %v\n", target, err)
		return 1
	}
	defer client.Close()
	client.Timeout = timeout

	ctx := context.Background()
	if _, err := client.Register(ctx, sk.Public()); err != nil {
		fmt.Fprintf(errOut, "register: %v\n", err)
		return 1
	}

	if op == "remove" {
		for _, n := range parsed {
			if err := client.Remove(ctx, sk, n); err != nil {
				fmt.Fprintf(errOut, "remove %s: %v\n", n, err)
				return 1
			}
			fmt.Fprintf(out, "removed: %s\n", n.Hex())
		}
		return 0
	}

	reply, err := client.Exchange(ctx, sk, request)
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", request.Op(), err)
		return 1
	}
	if reply == nil {
		fmt.Fprintln(out, "ok")
		return 0
	}
	if outPath != "" {
		b, err := mpid.Encode(reply)
		if err != nil {
			fmt.Fprintf(errOut, "encode reply: %v\n", err)
			return 1
		}
		if err := os.WriteFile(outPath, b, 0o644); err != nil {
			fmt.Fprintf(errOut, "write %s: %v\n", filepath.Base(outPath), err)
			return 1
		}
	}
	return describe(reply, nil, out, errOut)
}

func readWrapper(path string, errOut io.Writer) (mpid.Wrapper, int) {
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return nil, 1
	}
	w, err := mpid.Decode(b)
	if err != nil {
		fmt.Fprintf(errOut, "decode %s: %v\n", filepath.Base(path), err)
		return nil, 1
	}
	return w, 0
}

func headerOf(w mpid.Wrapper) *mpid.Header {
	switch v := w.(type) {
	case mpid.PutHeader:
		return v.Header()
	case mpid.PutMessage:
		return v.Message().Header()
	case mpid.GetMessage:
		return v.Header()
	default:
		return nil
	}
}
