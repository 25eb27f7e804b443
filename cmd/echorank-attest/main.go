package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"echorank.dev/attest/attest"
	"echorank.dev/attest/bls"
	"echorank.dev/attest/canon"
	"echorank.dev/attest/config"
	"echorank.dev/attest/keys"
	"echorank.dev/attest/message"
	"echorank.dev/attest/model"
)

const defaultPassphraseEnv = "ECHORANK_KEY_PASSPHRASE"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env is swapped by tests.
var env = os.Getenv

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "attest":
		return cmdAttest(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "aggregate":
		return cmdAggregate(args[1:], out, errOut)
	case "verify-aggregate":
		return cmdVerifyAggregate(args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "hash-result":
		return cmdHashResult(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
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
	fmt.Fprintln(w, "echorank-attest: BLS12-381 attestation tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  echorank-attest hash <file>")
	fmt.Fprintln(w, "  echorank-attest hash-result <result.json>")
	fmt.Fprintln(w, "  echorank-attest attest --audio <file> --result <result.json> [signer flags] [--algo-version <v>]")
	fmt.Fprintln(w, "  echorank-attest verify <attestation.json>")
	fmt.Fprintln(w, "  echorank-attest aggregate --sig <hex> --sig <hex> [...]")
	fmt.Fprintln(w, "  echorank-attest verify-aggregate --request <req.json> --key <pk>:<pop> [--key ...]")
	fmt.Fprintln(w, "  echorank-attest key init --name <name> [--ikm-hex <hex>] [--force]")
	fmt.Fprintln(w, "  echorank-attest key import --name <name> --secret-key <dec|0xhex> [--force]")
	fmt.Fprintln(w, "  echorank-attest key list")
	fmt.Fprintln(w, "  echorank-attest key show [signer flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signer flags:")
	fmt.Fprintln(w, "  --secret-key <dec|0xhex> | --secret-key-file <path> | --key <name> [--keystore <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - without signer flags the key is read from "+config.EnvSecretKey)
	fmt.Fprintln(w, "  - keystore passphrases are read from "+defaultPassphraseEnv)
	fmt.Fprintln(w, "  - keystore files live under ~/.echorank/keys/<name>.key.json (0600)")
	fmt.Fprintln(w, "  - verify exits 0 only when the signature is valid")
}

type signerFlags struct {
	secretKey     string
	secretKeyFile string
	name          string
	keystore      string
}

func (s *signerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.secretKey, "secret-key", "", "Secret scalar as decimal or 0x-prefixed hex")
	fs.StringVar(&s.secretKeyFile, "secret-key-file", "", "File holding the secret scalar")
	fs.StringVar(&s.name, "key", "", "Keystore key name")
	fs.StringVar(&s.keystore, "keystore", "", "Keystore directory (default ~/.echorank/keys)")
}

func (s *signerFlags) load() (*bls.SecretKey, error) {
	cfg := config.Signer{
		SecretKey:     s.secretKey,
		SecretKeyFile: s.secretKeyFile,
		Keystore: config.Keystore{
			Path:          s.keystore,
			Name:          s.name,
			PassphraseEnv: defaultPassphraseEnv,
		},
	}
	if !cfg.Configured() {
		cfg.SecretKey = strings.TrimSpace(env(config.EnvSecretKey))
	}
	return keys.LoadSigner(cfg, env)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readResult(path string) (model.AnalysisResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	var r model.AnalysisResult
	if err := json.Unmarshal(b, &r); err != nil {
		return model.AnalysisResult{}, err
	}
	return r, nil
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: echorank-attest hash <file>")
		return 2
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer f.Close()
	h, err := canon.SumReader(f)
	if err != nil {
		fmt.Fprintf(errOut, "hash: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, h)
	return 0
}

func cmdHashResult(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash-result", flag.ContinueOnError)
	fs.SetOutput(errOut)
	showCanonical := fs.Bool("canonical", false, "Also print the canonical JSON bytes")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: echorank-attest hash-result [--canonical] <result.json>")
		return 2
	}
	r, err := readResult(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid result: %v\n", err)
		return 1
	}
	b, err := canon.EncodeResult(r)
	if err != nil {
		fmt.Fprintf(errOut, "canonicalize: %v\n", err)
		return 1
	}
	if *showCanonical {
		fmt.Fprintln(out, string(b))
	}
	fmt.Fprintln(out, canon.Sum(b))
	return 0
}

func cmdAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf signerFlags
	sf.register(fs)
	audioPath := fs.String("audio", "", "Audio file")
	resultPath := fs.String("result", "", "Analysis result JSON file")
	algoVersion := fs.String("algo-version", "", "Analyzer version (default "+message.DefaultAlgoVersion+")")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *audioPath == "" || *resultPath == "" {
		fmt.Fprintln(errOut, "missing --audio or --result")
		return 2
	}
	sk, err := sf.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 1
	}
	content, err := os.ReadFile(*audioPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --audio: %v\n", err)
		return 1
	}
	result, err := readResult(*resultPath)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --result: %v\n", err)
		return 1
	}
	a, err := attest.New(sk, attest.Options{AlgoVersion: *algoVersion})
	if err != nil {
		fmt.Fprintf(errOut, "attestor: %v\n", err)
		return 1
	}
	att, err := a.Attest(context.Background(), content, result)
	if err != nil {
		fmt.Fprintf(errOut, "attest [%s]: %v\n", attest.Code(err), err)
		return 1
	}
	if err := writeJSON(out, struct {
		Result      model.AnalysisResult `json:"result"`
		Attestation model.Attestation    `json:"attestation"`
	}{result, att}); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

// verifyDigest rebuilds the signed digest from hex fields.
func verifyDigest(audioHex, resultHex, algoVersion string, ts uint64, nonceHex string) (message.Digest, error) {
	audio, err := canon.ParseContentHash(audioHex)
	if err != nil {
		return message.Digest{}, fmt.Errorf("audio_hash: %w", err)
	}
	result, err := canon.ParseContentHash(resultHex)
	if err != nil {
		return message.Digest{}, fmt.Errorf("result_hash: %w", err)
	}
	nonce, err := message.ParseNonce(nonceHex)
	if err != nil {
		return message.Digest{}, fmt.Errorf("nonce: %w", err)
	}
	if algoVersion == "" {
		algoVersion = message.DefaultAlgoVersion
	}
	return message.New(audio, result, algoVersion, ts, nonce).Digest()
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: echorank-attest verify <attestation.json>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	att, err := decodeAttestation(b)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	digest, err := verifyDigest(att.AudioHash, att.ResultHash, att.AlgoVersion, att.Timestamp, att.Nonce)
	if err != nil {
		fmt.Fprintf(errOut, "malformed attestation: %v\n", err)
		return 1
	}
	if att.MessageHash != "" && att.MessageHash != digest.String() {
		fmt.Fprintln(out, "INVALID (message_hash mismatch)")
		return 1
	}
	ok, err := bls.VerifyHex(att.PublicKey, digest, att.Signature)
	if err != nil {
		fmt.Fprintf(errOut, "malformed attestation: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(out, "INVALID")
		return 1
	}
	fmt.Fprintln(out, "VALID")
	return 0
}

// decodeAttestation accepts a bare attestation or the {result, attestation}
// envelope written by attest.
func decodeAttestation(b []byte) (model.Attestation, error) {
	var envelope struct {
		Attestation *model.Attestation `json:"attestation"`
	}
	if err := json.Unmarshal(b, &envelope); err == nil && envelope.Attestation != nil {
		return *envelope.Attestation, nil
	}
	var att model.Attestation
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&att); err != nil {
		return model.Attestation{}, err
	}
	return att, nil
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdAggregate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sigs stringList
	fs.Var(&sigs, "sig", "Signature hex (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(sigs) == 0 {
		fmt.Fprintln(errOut, "missing --sig")
		return 2
	}
	parsed := make([]bls.Signature, 0, len(sigs))
	for i, s := range sigs {
		sig, err := bls.ParseSignatureHex(s)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --sig #%d: %v\n", i+1, err)
			return 2
		}
		parsed = append(parsed, sig)
	}
	agg, err := bls.AggregateSignatures(parsed)
	if err != nil {
		fmt.Fprintf(errOut, "aggregate: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, agg.Hex())
	return 0
}

func cmdVerifyAggregate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify-aggregate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	reqPath := fs.String("request", "", "Aggregate verification request JSON")
	var keyArgs stringList
	fs.Var(&keyArgs, "key", "Co-signer as <public-key-hex>:<pop-hex> (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *reqPath == "" {
		fmt.Fprintln(errOut, "missing --request")
		return 2
	}
	b, err := os.ReadFile(*reqPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --request: %v\n", err)
		return 1
	}
	var req model.AggregateVerifyRequest
	if err := json.Unmarshal(b, &req); err != nil {
		fmt.Fprintf(errOut, "decode --request: %v\n", err)
		return 1
	}

	registry := bls.NewPossessionRegistry()
	for _, kv := range keyArgs {
		pkHex, popHex, ok := strings.Cut(kv, ":")
		if !ok {
			fmt.Fprintf(errOut, "invalid --key %q: want <pk>:<pop>\n", kv)
			return 2
		}
		pk, err := bls.ParsePublicKeyHex(pkHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --key public key: %v\n", err)
			return 2
		}
		pop, err := bls.ParseSignatureHex(popHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --key proof: %v\n", err)
			return 2
		}
		if _, err := registry.Register(pk, pop); err != nil {
			fmt.Fprintf(errOut, "rejected --key %s: %v\n", pk.Hex()[:16], err)
			return 1
		}
	}

	digest, err := verifyDigest(req.AudioHash, req.ResultHash, req.AlgoVersion, req.Timestamp, req.Nonce)
	if err != nil {
		fmt.Fprintf(errOut, "malformed request: %v\n", err)
		return 1
	}
	sig, err := bls.ParseSignatureHex(req.Signature)
	if err != nil {
		fmt.Fprintf(errOut, "malformed signature: %v\n", err)
		return 1
	}
	pks := make([]bls.PublicKey, 0, len(req.PublicKeys))
	for _, s := range req.PublicKeys {
		pk, err := bls.ParsePublicKeyHex(s)
		if err != nil {
			fmt.Fprintf(errOut, "malformed public key: %v\n", err)
			return 1
		}
		pks = append(pks, pk)
	}
	vks, err := registry.Resolve(pks)
	if err != nil {
		fmt.Fprintf(errOut, "unregistered key: %v\n", err)
		return 1
	}
	if !bls.VerifyAggregate(vks, digest, sig) {
		fmt.Fprintln(out, "INVALID")
		return 1
	}
	fmt.Fprintln(out, "VALID")
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "import":
		return cmdKeyImport(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "show":
		return cmdKeyShow(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: echorank-attest key <subcommand> ...")
	fmt.Fprintln(w, "subcommands: init, import, list, show")
}

func passphrase() ([]byte, error) {
	p := env(defaultPassphraseEnv)
	if p == "" {
		return nil, fmt.Errorf("%w: %s is not set", keys.ErrEmptyPassphrase, defaultPassphraseEnv)
	}
	return []byte(p), nil
}

func saveKey(dir, name string, sk *bls.SecretKey, force bool, out, errOut io.Writer) int {
	ks, err := keys.OpenStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	pass, err := passphrase()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	path, err := ks.Save(name, sk, pass, force)
	if err != nil {
		if errors.Is(err, keys.ErrExists) {
			fmt.Fprintf(errOut, "key %s already exists (use --force)\n", name)
			return 1
		}
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Public key: %s\n", sk.PublicKey().Hex())
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, ikmHex, dir string
	var force bool
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&ikmHex, "ikm-hex", "", "Optional keying material as hex (at least 32 bytes, for reproducible keys)")
	fs.StringVar(&dir, "keystore", "", "Keystore directory (default ~/.echorank/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}

	var sk *bls.SecretKey
	var err error
	if ikmHex != "" {
		ikm, derr := hex.DecodeString(ikmHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --ikm-hex: %v\n", derr)
			return 2
		}
		sk, err = keys.Generate(ikm)
	} else {
		sk, err = keys.GenerateRandom(rand.Reader)
	}
	if err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return 1
	}
	return saveKey(dir, name, sk, force, out, errOut)
}

func cmdKeyImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, secret, dir string
	var force bool
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&secret, "secret-key", "", "Secret scalar as decimal or 0x-prefixed hex")
	fs.StringVar(&dir, "keystore", "", "Keystore directory (default ~/.echorank/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	sk, err := bls.ParseSecretKey(secret)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --secret-key: %v\n", err)
		return 2
	}
	return saveKey(dir, name, sk, force, out, errOut)
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := fs.String("keystore", "", "Keystore directory (default ~/.echorank/keys)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.OpenStore(*dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\n", e.Name, e.PublicKey.Hex())
	}
	return 0
}

func cmdKeyShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf signerFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	sk, err := sf.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 1
	}
	pop, err := sk.ProvePossession()
	if err != nil {
		fmt.Fprintf(errOut, "proof of possession: %v\n", err)
		return 1
	}
	_ = writeJSON(out, model.PublicKeyInfo{
		PublicKey:         sk.PublicKey().Hex(),
		ProofOfPossession: pop.Hex(),
		Algorithm:         bls.Algorithm,
		DomainSeparator:   message.DomainSeparator,
		AlgoVersion:       message.DefaultAlgoVersion,
	})
	return 0
}
