package crypto

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/tunelift/tunelift/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	eapiDelimiter = "-36cd479b6b5-"
	eapiDigestFmt = "nobody%suse%smd5forencrypt"

	// LinuxForwardPath is the fixed request path carrying linux-forward envelopes.
	LinuxForwardPath = "/api/linux/forward"

	linuxForwardHost = "https://music.163.com"
)

// EncodeEAPI builds the uppercase-hex eapi form value for a logical path and
// parameter document.
func EncodeEAPI(path string, params any) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal eapi params: %v", err)
	}
	digest := MD5Hex(fmt.Sprintf(eapiDigestFmt, path, body))
	plain := path + eapiDelimiter + string(body) + eapiDelimiter + digest
	return HexUpper(EAPIEncryptBytes([]byte(plain))), nil
}

// DecodeEAPI reverses EncodeEAPI: hex decode, decrypt, split on the literal
// delimiter. It returns the logical path (trailing digits stripped), the
// parsed parameter document and the raw parameter JSON.
func DecodeEAPI(hexBody string) (string, map[string]any, string, error) {
	raw, err := HexDecode(hexBody)
	if err != nil {
		return "", nil, "", errs.NewDecodeError("", fmt.Errorf("eapi hex: %v", err))
	}
	plain, err := EAPIDecryptBytes(raw)
	if err != nil {
		return "", nil, "", errs.NewDecodeError("", fmt.Errorf("eapi cipher: %v", err))
	}
	parts := strings.Split(string(plain), eapiDelimiter)
	if len(parts) < 2 {
		return "", nil, "", errs.NewDecodeError("", errors.New("eapi frame: missing delimiter"))
	}
	path := StripTrailingDigits(parts[0])
	params := make(map[string]any)
	if err := json.Unmarshal([]byte(parts[1]), &params); err != nil {
		return "", nil, "", errs.NewDecodeError(path, fmt.Errorf("eapi params: %v", err))
	}
	return path, params, parts[1], nil
}

type linuxEnvelope struct {
	Method string         `json:"method"`
	URL    string         `json:"url"`
	Params map[string]any `json:"params"`
}

// EncodeLinuxForward wraps a logical path and parameters in the linux-forward
// JSON envelope and returns its uppercase-hex ciphertext.
func EncodeLinuxForward(path string, params map[string]any) (string, error) {
	env := linuxEnvelope{Method: "POST", URL: linuxForwardHost + path, Params: params}
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal linux envelope: %v", err)
	}
	return HexUpper(LinuxEncryptBytes(body)), nil
}

// DecodeLinuxForward reverses EncodeLinuxForward, returning the embedded
// logical path (trailing digits stripped) and parameters.
func DecodeLinuxForward(hexBody string) (string, map[string]any, error) {
	raw, err := HexDecode(hexBody)
	if err != nil {
		return "", nil, errs.NewDecodeError(LinuxForwardPath, fmt.Errorf("linux hex: %v", err))
	}
	plain, err := LinuxDecryptBytes(raw)
	if err != nil {
		return "", nil, errs.NewDecodeError(LinuxForwardPath, fmt.Errorf("linux cipher: %v", err))
	}
	var env linuxEnvelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return "", nil, errs.NewDecodeError(LinuxForwardPath, fmt.Errorf("linux envelope: %v", err))
	}
	u, err := url.Parse(env.URL)
	if err != nil {
		return "", nil, errs.NewDecodeError(LinuxForwardPath, fmt.Errorf("linux url: %v", err))
	}
	if env.Params == nil {
		env.Params = make(map[string]any)
	}
	return StripTrailingDigits(u.Path), env.Params, nil
}
