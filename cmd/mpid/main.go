package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"xdao.co/mpid/keys"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "header":
		return cmdHeader(args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "message":
		return cmdMessage(args[1:], out, errOut)
	case "name":
		return cmdName(args[1:], out, errOut)
	case "send":
		return cmdSend(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "mpid: MPID message tooling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mpid key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  mpid key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  mpid key list")
	fmt.Fprintln(w, "  mpid key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  mpid name (--pubkey <alg:base64> | <signer>)")
	fmt.Fprintln(w, "  mpid header <signer> [--metadata <text> | --metadata-hex <hex>]")
	fmt.Fprintln(w, "  mpid message <signer> --to <name> [--metadata <text>] (--body <text> | --body-file <path>)")
	fmt.Fprintln(w, "  mpid inspect [--pubkey <alg:base64>] <file>")
	fmt.Fprintln(w, "  mpid send --manager <host:port> <signer> (--op online|outbox-headers|outbox-has|get-message|remove [--name <name> ...] | <file>)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signer:")
	fmt.Fprintln(w, "  --seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - keys are stored under ~/.mpid/keys/<name> (override with MPID_KEYS_DIR)")
	fmt.Fprintln(w, "  - header/message write an encoded wrapper to stdout (no trailing newline)")
	fmt.Fprintln(w, "  - names are accepted as full hex or as a CID")
}

func openKeyStore() (*keys.KeyStore, error) {
	return keys.OpenKeyStore(strings.TrimSpace(os.Getenv("MPID_KEYS_DIR")))
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
