package tor

import (
	"encoding/base32"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionSuffix ends every onion address.
	OnionSuffix = ".onion"

	// onionV3Version is the version byte of v3 addresses.
	onionV3Version = 0x03
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is hashed in front of the key when computing the
// checksum of a v3 address.
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address reports whether address (with the .onion suffix) is a
// v3 onion address with a correct checksum and version byte.
//
// Design decision: We verify the checksum instead of only matching the
// pattern so that a mistyped seed fails immediately rather than after a
// long SOCKS timeout.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	// 32 byte ed25519 key, 2 byte checksum, 1 byte version.
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum is the first two bytes of SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}

// IsV2Address reports whether address has the deprecated v2 format.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// IsOnionURL reports whether rawURL points at a .onion host.
func IsOnionURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), OnionSuffix)
}

// NormalizeAddress turns user input such as "HTTP://ABC...XYZ/path" or a
// bare key without suffix into a lower-case "<key>.onion" address.
func NormalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	address = strings.TrimPrefix(address, "https://")
	address = strings.TrimPrefix(address, "http://")
	if i := strings.IndexAny(address, "/?#"); i != -1 {
		address = address[:i]
	}
	if !strings.HasSuffix(address, OnionSuffix) {
		address += OnionSuffix
	}

	if IsValidV3Address(address) {
		return address, nil
	}
	if IsV2Address(address) {
		return "", ErrV2AddressDeprecated
	}
	return "", ErrInvalidOnionAddress
}

// ComputeV3AddressFromPublicKey derives the v3 address of a 32 byte
// ed25519 public key.
func ComputeV3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}
	data := make([]byte, 0, 35)
	data = append(data, pubkey...)
	data = append(data, v3Checksum(pubkey, onionV3Version)...)
	data = append(data, onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}
