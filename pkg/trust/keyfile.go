package trust

import (
	"bufio"
	"encoding/base64"
	"os"
	"strconv"
	"strings"
	"time"

	"rookpkg/pkg/helper/errors"
)

// KeyFile is the parsed form of a text key=value key file: format version,
// type, purpose, fingerprint, base64 key bytes, identity, creation
// timestamp.
type KeyFile struct {
	FormatVersion string
	Type          string // "public" or "secret"
	Purpose       string // "master" or "packager"
	Fingerprint   string
	Algorithm     Algorithm
	KeyBytes      []byte
	Identity      Identity
	CreatedAt     time.Time
}

// ParseKeyFile parses the key=value text format described in the external
// interfaces: one "key: value" pair per line, blank lines and lines starting
// with "#" ignored.
func ParseKeyFile(data []byte) (*KeyFile, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, errors.InvalidInputf("malformed key file line %q", line)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading key file")
	}

	kb, err := base64.StdEncoding.DecodeString(fields["key"])
	if err != nil {
		return nil, errors.Wrap(err, "decoding key bytes")
	}

	kf := &KeyFile{
		FormatVersion: fields["format_version"],
		Type:          fields["type"],
		Purpose:       fields["purpose"],
		Fingerprint:   fields["fingerprint"],
		Algorithm:     Algorithm(fields["algorithm"]),
		KeyBytes:      kb,
		Identity: Identity{
			Name:  fields["identity_name"],
			Email: fields["identity_email"],
		},
	}

	if ts := fields["created"]; ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, errors.Wrap(err, "parsing created timestamp")
		}
		kf.CreatedAt = t
	}

	if !kf.Algorithm.Valid() {
		return nil, errors.InvalidInputf("key file names unknown algorithm %q", kf.Algorithm)
	}

	return kf, nil
}

// LoadPublicKeyFile reads and parses a public key file from path.
func LoadPublicKeyFile(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading key file %s", path)
	}
	kf, err := ParseKeyFile(data)
	if err != nil {
		return nil, err
	}
	if kf.Type != "public" {
		return nil, errors.InvalidInputf("%s is not a public key file (type=%s)", path, kf.Type)
	}
	return kf, nil
}

// LoadSecretKeyFile reads and parses a secret key file from path, refusing
// to load one whose file mode is looser than 0600 on POSIX systems.
func LoadSecretKeyFile(path string) (*KeyFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat key file %s", path)
	}
	if mode := info.Mode().Perm(); mode&^0o600 != 0 {
		return nil, errors.NewInsecureKeyPermissions(uint32(mode))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading key file %s", path)
	}
	kf, err := ParseKeyFile(data)
	if err != nil {
		return nil, err
	}
	if kf.Type != "secret" {
		return nil, errors.InvalidInputf("%s is not a secret key file (type=%s)", path, kf.Type)
	}
	return kf, nil
}

// AsTrustedKey converts a parsed public key file into a TrustedKey with the
// given trust level; tier is derived from the file's purpose field.
func (kf *KeyFile) AsTrustedKey(level Level) (*TrustedKey, error) {
	var tier Tier
	switch kf.Purpose {
	case "master":
		tier = TierMaster
	case "packager":
		tier = TierPackager
	default:
		return nil, errors.InvalidInputf("key file names unknown purpose %q", kf.Purpose)
	}

	fp := Fingerprint(kf.Algorithm, kf.KeyBytes)
	if kf.Fingerprint != "" && kf.Fingerprint != fp {
		return nil, errors.InvalidInputf("key file fingerprint %s does not match computed %s", kf.Fingerprint, fp)
	}

	return &TrustedKey{
		Fingerprint: fp,
		Algorithm:   kf.Algorithm,
		PublicKey:   kf.KeyBytes,
		Identity:    kf.Identity,
		Level:       level,
		Tier:        tier,
		CreatedAt:   kf.CreatedAt,
	}, nil
}

// parseFileMode is used by tests to construct an os.FileMode from an octal
// string without importing strconv at call sites.
func parseFileMode(s string) (os.FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return os.FileMode(n), nil
}
