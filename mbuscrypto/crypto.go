// Package mbuscrypto implements the wM-Bus AES-128 constructions: Mode 5
// (CTR), Mode 7 (CBC), Mode 9 (GCM), and ELL (plain ECB). It decrypts the
// application-layer payload that package wmbus has already identified as
// encrypted, given a key resolved through a pluggable KeyProvider.
package mbuscrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"mbusgo/mbuserr"
	"mbusgo/wmbus"
)

// KeyLen is the fixed AES-128 key size used by every wM-Bus mode.
const KeyLen = 16

// DeviceInfo identifies the device whose frame is being (de)crypted, and
// supplies the fields the IV/nonce construction needs. Grounded on
// original_source/benches/aes_hardware_benchmark.rs's DeviceInfo shape.
type DeviceInfo struct {
	Manufacturer uint16
	DeviceID     uint32
	Version      byte
	DeviceType   byte
	AccessNumber byte
	// Counter is Mode 9's 4-byte GCM nonce counter (spec.md §4.5), distinct
	// from AccessNumber. Callers that don't track it yet may leave it zero;
	// see DESIGN.md for the ambiguity this resolves.
	Counter uint32
}

// KeyProvider resolves the AES-128 key for a device. Implementations may
// be backed by memory, a config file, or a database (see package keys).
type KeyProvider interface {
	Key(manufacturer uint16, deviceID uint32) ([]byte, bool)
}

// computeIV builds the 16-byte Mode 5 (CTR) initialization vector: the M
// field, A field (device ID + version + type), and the access number
// repeated to fill the remaining eight bytes. This is the standard wM-Bus
// Mode 5 IV construction; the retrieved pack only pins the surrounding API
// shape, not this exact byte layout, so it is recorded as a judgment call
// in DESIGN.md.
func computeIV(d DeviceInfo) [16]byte {
	var iv [16]byte
	iv[0] = byte(d.Manufacturer)
	iv[1] = byte(d.Manufacturer >> 8)
	iv[2] = byte(d.DeviceID)
	iv[3] = byte(d.DeviceID >> 8)
	iv[4] = byte(d.DeviceID >> 16)
	iv[5] = byte(d.DeviceID >> 24)
	iv[6] = d.Version
	iv[7] = d.DeviceType
	for i := 8; i < 16; i++ {
		iv[i] = d.AccessNumber
	}
	return iv
}

// computeNonceGCM builds the 12-byte Mode 9 (GCM) nonce per spec.md §4.5's
// table: manufacturer(2) || device_id(4) || counter(4) || access_number(1)
// || pad(1).
func computeNonceGCM(d DeviceInfo) [12]byte {
	var nonce [12]byte
	nonce[0] = byte(d.Manufacturer)
	nonce[1] = byte(d.Manufacturer >> 8)
	nonce[2] = byte(d.DeviceID)
	nonce[3] = byte(d.DeviceID >> 8)
	nonce[4] = byte(d.DeviceID >> 16)
	nonce[5] = byte(d.DeviceID >> 24)
	nonce[6] = byte(d.Counter)
	nonce[7] = byte(d.Counter >> 8)
	nonce[8] = byte(d.Counter >> 16)
	nonce[9] = byte(d.Counter >> 24)
	nonce[10] = d.AccessNumber
	nonce[11] = 0 // pad
	return nonce
}

// DecryptFrame decrypts payload according to mode using key, which must
// be exactly KeyLen bytes. payload must be a whole number of 16-byte
// blocks for Mode7; Mode5 (CTR) takes any length; Mode9 (GCM) expects
// payload to end with a 16-byte authentication tag appended by the sender.
// ELL payloads are not handled here (any other mode is rejected); they go
// through DecryptELL.
func DecryptFrame(payload []byte, key []byte, d DeviceInfo, mode wmbus.EncryptionMode) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.DecryptFrame", fmt.Sprintf("key must be %d bytes, got %d", KeyLen, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.DecryptFrame", "aes.NewCipher", err)
	}

	switch mode {
	case wmbus.Mode5:
		iv := computeIV(d)
		out := make([]byte, len(payload))
		cipher.NewCTR(block, iv[:]).XORKeyStream(out, payload)
		return out, nil

	case wmbus.Mode7:
		if len(payload)%aes.BlockSize != 0 {
			return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.DecryptFrame", "Mode7 payload not a multiple of the AES block size")
		}
		var zeroIV [aes.BlockSize]byte
		out := make([]byte, len(payload))
		cipher.NewCBCDecrypter(block, zeroIV[:]).CryptBlocks(out, payload)
		return out, nil

	case wmbus.Mode9:
		gcm, err := cipher.NewGCMWithNonceSize(block, 12)
		if err != nil {
			return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.DecryptFrame", "cipher.NewGCM", err)
		}
		nonce := computeNonceGCM(d)
		out, err := gcm.Open(nil, nonce[:], payload, nil)
		if err != nil {
			return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.DecryptFrame", "GCM authentication failed", err)
		}
		return out, nil

	default:
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.DecryptFrame", fmt.Sprintf("unsupported mode %v", mode))
	}
}

// DecryptELL decrypts a link-layer (ELL) payload: plain ECB, block by
// block, no chaining and no IV.
func DecryptELL(payload []byte, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.DecryptELL", fmt.Sprintf("key must be %d bytes, got %d", KeyLen, len(key)))
	}
	if len(payload)%aes.BlockSize != 0 {
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.DecryptELL", "payload not a multiple of the AES block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.DecryptELL", "aes.NewCipher", err)
	}
	out := make([]byte, len(payload))
	for off := 0; off < len(payload); off += aes.BlockSize {
		block.Decrypt(out[off:off+aes.BlockSize], payload[off:off+aes.BlockSize])
	}
	return out, nil
}

// EncryptFrame is the inverse of DecryptFrame, used by tests and by
// simulators that need to produce valid encrypted telegrams.
func EncryptFrame(plaintext []byte, key []byte, d DeviceInfo, mode wmbus.EncryptionMode) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.EncryptFrame", fmt.Sprintf("key must be %d bytes, got %d", KeyLen, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.EncryptFrame", "aes.NewCipher", err)
	}

	switch mode {
	case wmbus.Mode5:
		iv := computeIV(d)
		out := make([]byte, len(plaintext))
		cipher.NewCTR(block, iv[:]).XORKeyStream(out, plaintext)
		return out, nil

	case wmbus.Mode7:
		if len(plaintext)%aes.BlockSize != 0 {
			return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.EncryptFrame", "Mode7 payload not a multiple of the AES block size")
		}
		var zeroIV [aes.BlockSize]byte
		out := make([]byte, len(plaintext))
		cipher.NewCBCEncrypter(block, zeroIV[:]).CryptBlocks(out, plaintext)
		return out, nil

	case wmbus.Mode9:
		gcm, err := cipher.NewGCMWithNonceSize(block, 12)
		if err != nil {
			return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.EncryptFrame", "cipher.NewGCM", err)
		}
		nonce := computeNonceGCM(d)
		return gcm.Seal(nil, nonce[:], plaintext, nil), nil

	default:
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.EncryptFrame", fmt.Sprintf("unsupported mode %v", mode))
	}
}

// EncryptELL is the inverse of DecryptELL.
func EncryptELL(plaintext []byte, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.EncryptELL", fmt.Sprintf("key must be %d bytes, got %d", KeyLen, len(key)))
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, mbuserr.New(mbuserr.KindCrypto, "mbuscrypto.EncryptELL", "payload not a multiple of the AES block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindCrypto, "mbuscrypto.EncryptELL", "aes.NewCipher", err)
	}
	out := make([]byte, len(plaintext))
	for off := 0; off < len(plaintext); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], plaintext[off:off+aes.BlockSize])
	}
	return out, nil
}
