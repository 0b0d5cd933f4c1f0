package builtinmods

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

// cryptoModule implements the crypto call shapes the emitter targets:
// createHash(algo) -> {update(data), digest(encoding)}, createHmac, and
// randomBytes. Digest streaming is real — update(a); update(b) and
// update(a+b) produce identical digests.
func cryptoModule(vm *bytecode.VM) bytecode.Value {
	ns := bytecode.NewPlainObject()
	ns.Set("createHash", native("createHash", func(_ *bytecode.VM, t *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		algo := bytecode.ToDisplayString(arg(args, 0))
		h, err := newHash(algo)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return hashObject(h), nil
	}))
	ns.Set("createHmac", native("createHmac", func(_ *bytecode.VM, t *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		algo := bytecode.ToDisplayString(arg(args, 0))
		key := valueBytes(arg(args, 1))
		base, err := hashConstructor(algo)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return hashObject(hmac.New(base, key)), nil
	}))
	ns.Set("randomBytes", native("randomBytes", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		n := int(bytecode.ToNumber(arg(args, 0)))
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return bytecode.Undefined(), hostError("EIO", "randomBytes: %s", err.Error())
		}
		return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: buf}), nil
	}))
	return bytecode.ObjectValue(ns)
}

func newHash(algo string) (hash.Hash, error) {
	ctor, err := hashConstructor(algo)
	if err != nil {
		return nil, err
	}
	return ctor(), nil
}

func hashConstructor(algo string) (func() hash.Hash, error) {
	switch algo {
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha384":
		return sha512.New384, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, hostError("ERR_CRYPTO_INVALID_DIGEST", "unsupported hash algorithm %q", algo)
	}
}

// hashObject wraps a streaming hash as the {update, digest} shape. update
// returns the receiver for chaining; digest finalizes.
func hashObject(h hash.Hash) bytecode.Value {
	obj := bytecode.NewPlainObject()
	self := bytecode.ObjectValue(obj)
	obj.Set("update", native("update", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		h.Write(valueBytes(arg(args, 0)))
		return self, nil
	}))
	obj.Set("digest", native("digest", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		sum := h.Sum(nil)
		encoding := "hex"
		if len(args) > 0 && !args[0].IsNullish() {
			encoding = bytecode.ToDisplayString(args[0])
		}
		switch encoding {
		case "hex":
			return bytecode.StringValue(hex.EncodeToString(sum)), nil
		case "base64":
			return bytecode.StringValue(base64.StdEncoding.EncodeToString(sum)), nil
		case "buffer":
			return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: sum}), nil
		default:
			return bytecode.Undefined(), hostError("ERR_UNKNOWN_ENCODING", "unknown digest encoding %q", encoding)
		}
	}))
	return self
}

func valueBytes(v bytecode.Value) []byte {
	if buf, ok := v.Data.(*bytecode.BufferInstance); ok && v.Type == bytecode.ValueBuffer {
		return buf.Bytes
	}
	return []byte(bytecode.ToDisplayString(v))
}
