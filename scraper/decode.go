package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var (
	errUnsupportedEncoding = errors.New("unsupported content encoding")
	errBodyTooLarge        = errors.New("decompressed body exceeds limit")
	errUndecodable         = errors.New("body could not be decoded under any text encoding")
)

type decompressFunc func(body []byte, limit int64) ([]byte, error)

// decompressors is keyed by lower-cased Content-Encoding. The HTTP client
// never decompresses on its own, so every advertised scheme is handled here.
var decompressors = map[string]decompressFunc{
	"":         identity,
	"identity": identity,
	"zstd":     decompressZstd,
	"gzip":     decompressGzip,
	"x-gzip":   decompressGzip,
	"deflate":  decompressDeflate,
	"br":       decompressBrotli,
}

func decompress(contentEncoding string, body []byte, limit int64) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	fn, ok := decompressors[enc]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnsupportedEncoding, enc)
	}
	out, err := fn(body, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", enc, err)
	}
	return out, nil
}

func identity(body []byte, _ int64) ([]byte, error) {
	return body, nil
}

func decompressZstd(body []byte, limit int64) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(body, nil)
}

func decompressGzip(body []byte, limit int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r, limit)
}

// decompressDeflate accepts both zlib-wrapped (what servers normally send for
// "deflate") and raw DEFLATE streams.
func decompressDeflate(body []byte, limit int64) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer r.Close()
		if out, err := readLimited(r, limit); err == nil {
			return out, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	return readLimited(r, limit)
}

func decompressBrotli(body []byte, limit int64) ([]byte, error) {
	return readLimited(brotli.NewReader(bytes.NewReader(body)), limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, errBodyTooLarge
	}
	return out, nil
}

// textStrategy turns raw bytes into text under one character encoding.
type textStrategy struct {
	name   string
	decode func([]byte) (string, bool)
}

// textStrategies are tried in order; the first that succeeds wins.
var textStrategies = []textStrategy{
	{name: "utf-8", decode: decodeUTF8},
	{name: "latin-1", decode: charmapDecoder(charmap.ISO8859_1)},
	{name: "cp1252", decode: charmapDecoder(charmap.Windows1252)},
	{name: "iso-8859-15", decode: charmapDecoder(charmap.ISO8859_15)},
}

func decodeUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func charmapDecoder(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(b []byte) (string, bool) {
		out, err := decodeWith(cm, b)
		if err != nil {
			return "", false
		}
		return out, true
	}
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeText returns the body as text under the first strategy that accepts
// it, along with that strategy's name.
func decodeText(b []byte) (string, string, error) {
	for _, s := range textStrategies {
		if text, ok := s.decode(b); ok {
			return text, s.name, nil
		}
	}
	return "", "", errUndecodable
}

// decodeJSON runs the text strategies in order and stops at the first one
// whose output is valid JSON.
func decodeJSON(b []byte) (json.RawMessage, string, error) {
	for _, s := range textStrategies {
		text, ok := s.decode(b)
		if !ok || !json.Valid([]byte(text)) {
			continue
		}
		return json.RawMessage(text), s.name, nil
	}
	return nil, "", errUndecodable
}
