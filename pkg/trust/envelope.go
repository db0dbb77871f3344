package trust

import (
	"bufio"
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium"

	"rookpkg/pkg/helper/errors"
)

// Envelope carries a detached signature over some signed bytes: the signing
// key's fingerprint, the signature bytes, and an algorithm tag. For
// AlgoHybrid, Signature is the concatenation of the Ed25519 signature
// (ed25519.SignatureSize bytes) followed by the Dilithium3 signature.
type Envelope struct {
	Fingerprint string
	Algorithm   Algorithm
	Signature   []byte
}

// verifyRaw checks signed bytes against a raw public key blob using the
// envelope's algorithm. It does not consult the trust store — callers use
// Store.Verify for the policy-aware path.
func verifyRaw(algo Algorithm, pubKeyBytes []byte, data []byte, sig []byte) error {
	switch algo {
	case AlgoEd25519:
		if len(pubKeyBytes) != ed25519.PublicKeySize {
			return errors.Newf("ed25519 public key has wrong length: %d", len(pubKeyBytes))
		}
		if !ed25519.Verify(ed25519.PublicKey(pubKeyBytes), data, sig) {
			return errors.New("signature invalid")
		}
		return nil

	case AlgoHybrid:
		edPub, dilPub, err := splitHybridPublicKey(pubKeyBytes)
		if err != nil {
			return err
		}
		if len(sig) <= ed25519.SignatureSize {
			return errors.Newf("hybrid signature too short")
		}
		edSig := sig[:ed25519.SignatureSize]
		dilSig := sig[ed25519.SignatureSize:]
		if !ed25519.Verify(edPub, data, edSig) {
			return errors.New("ed25519 half of hybrid signature invalid")
		}
		if !dilithiumMode.Verify(dilPub, data, dilSig) {
			return errors.New("dilithium half of hybrid signature invalid")
		}
		return nil

	default:
		return errors.Newf("unknown algorithm %q", algo)
	}
}

// SignHybrid signs data with an Ed25519 private key and a Dilithium3 private
// key, producing the concatenated hybrid signature bytes. It exists mainly
// to support tests and tooling outside the build pipeline; the build
// pipeline itself is out of scope.
func SignHybrid(edPriv ed25519.PrivateKey, dilPriv dilithium.PrivateKey, data []byte) []byte {
	edSig := ed25519.Sign(edPriv, data)
	dilSig := dilithiumMode.Sign(dilPriv, data)
	out := make([]byte, 0, len(edSig)+len(dilSig))
	out = append(out, edSig...)
	out = append(out, dilSig...)
	return out
}

// ParseEnvelopeText parses the key=value text format used for detached
// signature files such as packages.json.sig: "fingerprint", "algorithm",
// and "signature" (base64) fields, one per line.
func ParseEnvelopeText(data []byte) (Envelope, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return Envelope{}, errors.InvalidInputf("malformed signature envelope line %q", line)
		}
		fields[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return Envelope{}, errors.Wrap(err, "reading signature envelope")
	}

	sig, err := base64.StdEncoding.DecodeString(fields["signature"])
	if err != nil {
		return Envelope{}, errors.Wrap(err, "decoding signature bytes")
	}

	algo := Algorithm(fields["algorithm"])
	if !algo.Valid() {
		return Envelope{}, errors.InvalidInputf("signature envelope names unknown algorithm %q", algo)
	}

	if _, _, _, err := ParseFingerprint(fields["fingerprint"]); err != nil {
		return Envelope{}, errors.Wrap(err, "signature envelope fingerprint")
	}

	return Envelope{
		Fingerprint: fields["fingerprint"],
		Algorithm:   algo,
		Signature:   sig,
	}, nil
}
