// Package crypto implements the vendor's symmetric wire codecs and the small
// hashing/encoding primitives the rewrite engine needs: AES-128-ECB with PKCS7
// padding for the eapi and linux-forward envelopes, md5 hex digests, URL-safe
// base64 and the cover-image id derivation.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	eapiKey         = "e82ckenh8dichen8"
	linuxForwardKey = "rFgB&h#%2?^eDg:Q"

	coverIDKey       = "3go8&$8*3*3h0k(2)2"
	coverURLTemplate = "https://p3.music.126.net/%s/%s.jpg"
)

var trailingDigitsRe = regexp.MustCompile(`/\d+$`)

// StripTrailingDigits removes a trailing numeric path segment, which some
// clients append to otherwise fixed API paths.
func StripTrailingDigits(path string) string {
	return trailingDigitsRe.ReplaceAllString(path, "")
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}

func ecbEncrypt(key string, plain []byte) []byte {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		// Keys are compile-time constants of the right size.
		panic(err)
	}
	padded := pkcs7Pad(plain, block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:], padded[i:])
	}
	return out
}

func ecbDecrypt(key string, data []byte) ([]byte, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		panic(err)
	}
	if len(data) == 0 || len(data)%block.BlockSize() != 0 {
		return nil, errors.New("ciphertext is not block aligned")
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += block.BlockSize() {
		block.Decrypt(out[i:], data[i:])
	}
	return pkcs7Unpad(out, block.BlockSize())
}

// EAPIEncryptBytes encrypts a raw payload with the eapi key. Used for response
// bodies when the client asked for an encrypted response.
func EAPIEncryptBytes(plain []byte) []byte {
	return ecbEncrypt(eapiKey, plain)
}

// EAPIDecryptBytes decrypts a raw eapi payload.
func EAPIDecryptBytes(data []byte) ([]byte, error) {
	return ecbDecrypt(eapiKey, data)
}

// LinuxEncryptBytes encrypts a raw payload with the linux-forward key.
func LinuxEncryptBytes(plain []byte) []byte {
	return ecbEncrypt(linuxForwardKey, plain)
}

// LinuxDecryptBytes decrypts a raw linux-forward payload.
func LinuxDecryptBytes(data []byte) ([]byte, error) {
	return ecbDecrypt(linuxForwardKey, data)
}

// MD5Hex returns the lowercase hex md5 digest of s.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HexUpper encodes data as uppercase hex, the form both cipher envelopes use
// on the wire.
func HexUpper(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// HexDecode decodes a hex string of either case.
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.ToLower(s))
}

// Base64URL encodes data as standard base64 with '+' and '/' replaced by '-'
// and '_'. Padding is kept.
func Base64URL(data []byte) string {
	s := base64.StdEncoding.EncodeToString(data)
	s = strings.ReplaceAll(s, "+", "-")
	return strings.ReplaceAll(s, "/", "_")
}

// Base64URLDecode reverses Base64URL.
func Base64URLDecode(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	return base64.StdEncoding.DecodeString(s)
}

// CoverURL derives the vendor's cover-image URL for a resource id: the id is
// XORed against a fixed repeating key, md5-hashed and base64url-encoded into a
// fixed image-host template.
func CoverURL(id string) string {
	mixed := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		mixed[i] = id[i] ^ coverIDKey[i%len(coverIDKey)]
	}
	sum := md5.Sum(mixed)
	return fmt.Sprintf(coverURLTemplate, Base64URL(sum[:]), id)
}
