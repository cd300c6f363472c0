package crypto

// Protocol identifies which wire cipher a BC session is using.
//
// The login exchange always starts on Unencrypted or BCEncrypt; Aes/FullAes
// may only be selected once the login nonce is known (spec invariant: AES
// never appears before the nonce exists).
type Protocol int

const (
	// Unencrypted passes bytes through unchanged.
	Unencrypted Protocol = iota
	// BCEncrypt is the XOR stream cipher keyed by a fixed 8-byte vector and
	// the message offset.
	BCEncrypt
	// Aes is AES-128-CFB with a key derived from the password and login
	// nonce; only the control channel is encrypted.
	Aes
	// FullAes is Aes plus the associated media stream.
	FullAes
)

// String renders the protocol name for logging.
func (p Protocol) String() string {
	switch p {
	case Unencrypted:
		return "unencrypted"
	case BCEncrypt:
		return "bcencrypt"
	case Aes:
		return "aes"
	case FullAes:
		return "full-aes"
	default:
		return "unknown"
	}
}

// EncryptsMedia reports whether the media stream is expected to be
// encrypted under this protocol.
func (p Protocol) EncryptsMedia() bool {
	return p == FullAes
}
