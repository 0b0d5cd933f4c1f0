package bytecode

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// vm_host.go: the few points where the value model touches the host
// process — buffer string encodings (§6) and the process namespace's
// environment surface.

// encodeBufferString renders bytes in one of the §6 buffer encodings.
func encodeBufferString(b []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "utf8", "utf-8":
		return string(b), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(b), nil
	case "hex":
		return hex.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unknown buffer encoding %q", encoding)
	}
}

// decodeBufferString is encodeBufferString's inverse, backing Buffer.from.
func decodeBufferString(s, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "utf8", "utf-8":
		return []byte(s), nil
	case "base64":
		return base64.StdEncoding.DecodeString(s)
	case "hex":
		return hex.DecodeString(s)
	default:
		return nil, fmt.Errorf("unknown buffer encoding %q", encoding)
	}
}

func hostWorkingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func hostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "darwin"
	case "windows":
		return "win32"
	default:
		return runtime.GOOS
	}
}

func hostEnv() *PlainObject {
	obj := NewPlainObject()
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			obj.Set(k, StringValue(v))
		}
	}
	return obj
}
