package builtinmods

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

// zlibModule implements the synchronous deflate/inflate and gzip/gunzip
// call shapes over buffers.
func zlibModule(vm *bytecode.VM) bytecode.Value {
	ns := bytecode.NewPlainObject()
	ns.Set("deflateSync", native("deflateSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		var out bytes.Buffer
		w := zlib.NewWriter(&out)
		if _, err := w.Write(valueBytes(arg(args, 0))); err != nil {
			return bytecode.Undefined(), hostError("EIO", "deflateSync: %s", err.Error())
		}
		if err := w.Close(); err != nil {
			return bytecode.Undefined(), hostError("EIO", "deflateSync: %s", err.Error())
		}
		return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: out.Bytes()}), nil
	}))
	ns.Set("inflateSync", native("inflateSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		r, err := zlib.NewReader(bytes.NewReader(valueBytes(arg(args, 0))))
		if err != nil {
			return bytecode.Undefined(), hostError("Z_DATA_ERROR", "inflateSync: %s", err.Error())
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return bytecode.Undefined(), hostError("Z_DATA_ERROR", "inflateSync: %s", err.Error())
		}
		return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: out}), nil
	}))
	ns.Set("gzipSync", native("gzipSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		var out bytes.Buffer
		w := gzip.NewWriter(&out)
		if _, err := w.Write(valueBytes(arg(args, 0))); err != nil {
			return bytecode.Undefined(), hostError("EIO", "gzipSync: %s", err.Error())
		}
		if err := w.Close(); err != nil {
			return bytecode.Undefined(), hostError("EIO", "gzipSync: %s", err.Error())
		}
		return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: out.Bytes()}), nil
	}))
	ns.Set("gunzipSync", native("gunzipSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		r, err := gzip.NewReader(bytes.NewReader(valueBytes(arg(args, 0))))
		if err != nil {
			return bytecode.Undefined(), hostError("Z_DATA_ERROR", "gunzipSync: %s", err.Error())
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return bytecode.Undefined(), hostError("Z_DATA_ERROR", "gunzipSync: %s", err.Error())
		}
		return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: out}), nil
	}))
	return bytecode.ObjectValue(ns)
}
