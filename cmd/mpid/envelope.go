package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"xdao.co/mpid/cidutil"
	"xdao.co/mpid/keys"
	"xdao.co/mpid/mpid"
)

type signerFlags struct {
	seedHex string
	name    string
	role    string
	keyFile string
}

func (s *signerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.seedHex, "seed-hex", "", "Signer ed25519 seed as 64 hex chars")
	fs.StringVar(&s.name, "signer", "", "Signer key name in the key store")
	fs.StringVar(&s.role, "signer-role", "", "Optional role of --signer")
	fs.StringVar(&s.keyFile, "key-file", "", "Path to a seed file")
}

func (s *signerFlags) load() (keys.SecretKey, error) {
	ks, err := openKeyStore()
	if err != nil {
		return nil, err
	}
	return ks.LoadSecretKey(s.seedHex, s.name, s.role, s.keyFile)
}

func metadataBytes(text, hexText string) ([]byte, error) {
	if text != "" && hexText != "" {
		return nil, fmt.Errorf("use either --metadata or --metadata-hex")
	}
	if hexText != "" {
		return hex.DecodeString(hexText)
	}
	return []byte(text), nil
}

func cmdName(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("name", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var pubText string
	var signer signerFlags
	var asCID bool
	fs.StringVar(&pubText, "pubkey", "", "Public key as <alg>:<base64>")
	fs.BoolVar(&asCID, "cid", false, "Print the name as a CID instead of hex")
	signer.register(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var pub keys.PublicKey
	if pubText != "" {
		p, err := keys.ParsePublicKey(pubText)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --pubkey: %v\n", err)
			return 2
		}
		pub = p
	} else {
		sk, err := signer.load()
		if err != nil {
			fmt.Fprintf(errOut, "signer: %v\n", err)
			return 2
		}
		pub = sk.Public()
	}

	name := keys.AccountName(pub)
	if asCID {
		_, _ = fmt.Fprintln(out, cidutil.NameCID(name))
		return 0
	}
	_, _ = fmt.Fprintln(out, name.Hex())
	return 0
}

func cmdHeader(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("header", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var signer signerFlags
	var metadata string
	var metadataHex string
	signer.register(fs)
	fs.StringVar(&metadata, "metadata", "", "Metadata as text")
	fs.StringVar(&metadataHex, "metadata-hex", "", "Metadata as hex")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	md, err := metadataBytes(metadata, metadataHex)
	if err != nil {
		fmt.Fprintf(errOut, "metadata: %v\n", err)
		return 2
	}
	sk, err := signer.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	h, err := mpid.NewHeader(keys.AccountName(sk.Public()), md, sk)
	if err != nil {
		fmt.Fprintf(errOut, "header: %v\n", err)
		return 1
	}
	b, err := mpid.Encode(mpid.NewPutHeader(h))
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}

func cmdMessage(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("message", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var signer signerFlags
	var to string
	var metadata string
	var metadataHex string
	var body string
	var bodyFile string
	signer.register(fs)
	fs.StringVar(&to, "to", "", "Recipient name (hex or CID)")
	fs.StringVar(&metadata, "metadata", "", "Header metadata as text")
	fs.StringVar(&metadataHex, "metadata-hex", "", "Header metadata as hex")
	fs.StringVar(&body, "body", "", "Body as text")
	fs.StringVar(&bodyFile, "body-file", "", "Read body from file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if to == "" {
		fmt.Fprintln(errOut, "missing --to")
		return 2
	}
	recipient, err := cidutil.ParseName(to)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --to: %v\n", err)
		return 2
	}
	md, err := metadataBytes(metadata, metadataHex)
	if err != nil {
		fmt.Fprintf(errOut, "metadata: %v\n", err)
		return 2
	}
	if body != "" && bodyFile != "" {
		fmt.Fprintln(errOut, "use either --body or --body-file")
		return 2
	}
	bodyBytes := []byte(body)
	if bodyFile != "" {
		bodyBytes, err = os.ReadFile(bodyFile)
		if err != nil {
			fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(bodyFile), err)
			return 1
		}
	}
	sk, err := signer.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	msg, err := mpid.ComposeMessage(keys.AccountName(sk.Public()), md, recipient, bodyBytes, sk)
	if err != nil {
		fmt.Fprintf(errOut, "message: %v\n", err)
		return 1
	}
	b, err := mpid.Encode(mpid.NewPutMessage(msg))
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var pubText string
	fs.StringVar(&pubText, "pubkey", "", "Verify signatures under this public key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: mpid inspect [--pubkey <alg:base64>] <file>")
		return 2
	}
	var pub keys.PublicKey
	if pubText != "" {
		p, err := keys.ParsePublicKey(pubText)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --pubkey: %v\n", err)
			return 2
		}
		pub = p
	}

	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}
	w, err := mpid.Decode(b)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v (rule %s)\n", err, mpid.RuleID(err))
		return 1
	}
	return describe(w, pub, out, errOut)
}

// describe prints w. With pub set it also checks every signature and fails
// when one does not verify.
func describe(w mpid.Wrapper, pub keys.PublicKey, out io.Writer, errOut io.Writer) int {
	fmt.Fprintf(out, "op: %s\n", w.Op())

	var headers []*mpid.Header
	valid := true
	switch v := w.(type) {
	case mpid.PutMessage:
		m := v.Message()
		fmt.Fprintf(out, "recipient: %s\n", m.Recipient().Hex())
		fmt.Fprintf(out, "body: %d bytes\n", len(m.Body()))
		if pub != nil {
			valid = m.Verify(pub)
		}
		headers = append(headers, m.Header())
	case mpid.PutHeader:
		headers = append(headers, v.Header())
	case mpid.GetMessage:
		headers = append(headers, v.Header())
	case mpid.OutboxHasResponse:
		headers = v.Headers()
	case mpid.GetOutboxHeadersResponse:
		headers = v.Headers()
	case mpid.OutboxHas:
		for _, n := range v.Names() {
			fmt.Fprintf(out, "query: %s\n", n.Hex())
		}
	}

	for _, h := range headers {
		name, err := h.Name()
		if err != nil {
			fmt.Fprintf(errOut, "name: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "name: %s\n", name.Hex())
		fmt.Fprintf(out, "cid: %s\n", cidutil.NameCID(name))
		fmt.Fprintf(out, "sender: %s\n", h.Sender().Hex())
		fmt.Fprintf(out, "metadata: %q\n", h.Metadata())
		if pub != nil && !h.Verify(pub) {
			valid = false
		}
	}

	if pub == nil {
		return 0
	}
	if !valid {
		fmt.Fprintln(out, "signature: INVALID")
		return 1
	}
	fmt.Fprintln(out, "signature: valid")
	return 0
}
