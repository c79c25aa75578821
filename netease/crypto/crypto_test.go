package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestEAPIBytesRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("exactly sixteen!"),
		[]byte(`{"ids":"[347230]","br":"320000"}`),
		bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 100),
	}
	for _, p := range payloads {
		enc := EAPIEncryptBytes(p)
		if len(enc)%16 != 0 {
			t.Fatalf("ciphertext not block aligned: %d", len(enc))
		}
		dec, err := EAPIDecryptBytes(enc)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if !bytes.Equal(dec, p) {
			t.Fatalf("round trip mismatch for %q", p)
		}
	}
}

func TestLinuxBytesRoundTrip(t *testing.T) {
	p := []byte(`{"method":"POST","url":"https://music.163.com/api/v3/song/detail"}`)
	dec, err := LinuxDecryptBytes(LinuxEncryptBytes(p))
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(dec, p) {
		t.Fatal("round trip mismatch")
	}
}

func TestDecryptRejectsUnaligned(t *testing.T) {
	if _, err := EAPIDecryptBytes([]byte("short")); err == nil {
		t.Fatal("expected error for unaligned ciphertext")
	}
	if _, err := LinuxDecryptBytes(nil); err == nil {
		t.Fatal("expected error for empty ciphertext")
	}
}

func TestEncodeDecodeEAPI(t *testing.T) {
	path := "/api/song/enhance/player/url"
	params := map[string]any{"ids": "[347230]", "br": "999000"}

	body, err := EncodeEAPI(path, params)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if body != strings.ToUpper(body) {
		t.Fatal("eapi body must be uppercase hex")
	}

	gotPath, gotParams, raw, err := DecodeEAPI(body)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if gotPath != path {
		t.Fatalf("path mismatch: got %q want %q", gotPath, path)
	}
	if gotParams["ids"] != "[347230]" || gotParams["br"] != "999000" {
		t.Fatalf("params mismatch: %v", gotParams)
	}
	if raw == "" {
		t.Fatal("raw params JSON missing")
	}
}

func TestDecodeEAPIStripsTrailingDigits(t *testing.T) {
	body, err := EncodeEAPI("/api/v3/song/detail/1234567", map[string]any{"c": "[]"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	path, _, _, err := DecodeEAPI(body)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if path != "/api/v3/song/detail" {
		t.Fatalf("trailing digits not stripped: %q", path)
	}
}

func TestDecodeEAPIMalformed(t *testing.T) {
	if _, _, _, err := DecodeEAPI("not hex at all"); err == nil {
		t.Fatal("expected error for malformed hex")
	}
	// Valid hex, garbage cipher.
	if _, _, _, err := DecodeEAPI("DEADBEEF"); err == nil {
		t.Fatal("expected error for bad block size")
	}
}

func TestEncodeDecodeLinuxForward(t *testing.T) {
	path := "/api/song/enhance/player/url"
	params := map[string]any{"ids": "[12345]", "br": "320000"}

	body, err := EncodeLinuxForward(path, params)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	gotPath, gotParams, err := DecodeLinuxForward(body)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if gotPath != path {
		t.Fatalf("path mismatch: got %q want %q", gotPath, path)
	}
	if gotParams["br"] != "320000" {
		t.Fatalf("params mismatch: %v", gotParams)
	}
}

func TestStripTrailingDigits(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/v3/song/detail", "/api/v3/song/detail"},
		{"/api/v3/song/detail/123", "/api/v3/song/detail"},
		{"/api/linux/forward", "/api/linux/forward"},
		{"/api/v1/thing/42abc", "/api/v1/thing/42abc"},
	}
	for _, tt := range tests {
		if got := StripTrailingDigits(tt.in); got != tt.want {
			t.Errorf("StripTrailingDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMD5Hex(t *testing.T) {
	if got := MD5Hex(""); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("md5 of empty string wrong: %s", got)
	}
}

func TestBase64URLRoundTrip(t *testing.T) {
	in := []byte{0xfb, 0xff, 0xfe, 0x01, 0x02}
	enc := Base64URL(in)
	if strings.ContainsAny(enc, "+/") {
		t.Fatalf("encoding not URL safe: %s", enc)
	}
	out, err := Base64URLDecode(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatal("round trip mismatch")
	}
}

func TestCoverURL(t *testing.T) {
	u := CoverURL("109951163076107115")
	if !strings.HasPrefix(u, "https://p3.music.126.net/") {
		t.Fatalf("unexpected host: %s", u)
	}
	if !strings.HasSuffix(u, "/109951163076107115.jpg") {
		t.Fatalf("id missing from url: %s", u)
	}
	// Derivation is deterministic.
	if u != CoverURL("109951163076107115") {
		t.Fatal("cover url not deterministic")
	}
}
