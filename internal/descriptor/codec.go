package descriptor

import (
	"encoding/base64"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Query string keys. The operation kind doubles as the key prefix so the
// wire format stays compact: r[w]=100&r[h]=80&r[q]=75&src=a.png.
const (
	keySource    = "src"
	keyResizeW   = "r[w]"
	keyResizeH   = "r[h]"
	keyResizeQ   = "r[q]"
	keyBlurW     = "b[w]"
	keyBlurH     = "b[h]"
	keyBlurSVGW  = "b[sw]"
	keyBlurSVGH  = "b[sh]"
	keyBlurSigma = "b[s]"
)

// CacheDir is the fixed prefix of every cache file path. The blur
// cache preload walks this same subtree, so it lives here with the codec.
var CacheDir = path.Join("cache", "image")

// EncodeQuery serializes d to its canonical query string. The encoding is
// deterministic (url.Values sorts keys), so the same descriptor always
// yields byte-identical output and the string can double as a cache key.
func (d Descriptor) EncodeQuery() string {
	v := url.Values{}
	v.Set(keySource, d.Source)
	switch d.Op.Kind {
	case KindResize:
		r := d.Op.Resize
		v.Set(keyResizeW, strconv.Itoa(r.Width))
		v.Set(keyResizeH, strconv.Itoa(r.Height))
		v.Set(keyResizeQ, strconv.Itoa(r.Quality))
	case KindBlur:
		b := d.Op.Blur
		v.Set(keyBlurW, strconv.Itoa(b.Width))
		v.Set(keyBlurH, strconv.Itoa(b.Height))
		v.Set(keyBlurSVGW, strconv.Itoa(b.SVGWidth))
		v.Set(keyBlurSVGH, strconv.Itoa(b.SVGHeight))
		v.Set(keyBlurSigma, strconv.Itoa(b.Sigma))
	}
	return v.Encode()
}

// DecodeQuery parses a query string back into a descriptor. Returns
// ErrNoMatch for anything that does not encode one.
func DecodeQuery(qs string) (Descriptor, error) {
	v, err := url.ParseQuery(qs)
	if err != nil {
		return Descriptor{}, ErrNoMatch
	}

	src := v.Get(keySource)
	if src == "" {
		return Descriptor{}, ErrNoMatch
	}

	if v.Has(keyResizeW) {
		fields, err := intFields(v, keyResizeW, keyResizeH, keyResizeQ)
		if err != nil {
			return Descriptor{}, ErrNoMatch
		}
		return NewResize(src, fields[0], fields[1], fields[2]), nil
	}

	if v.Has(keyBlurW) {
		fields, err := intFields(v, keyBlurW, keyBlurH, keyBlurSVGW, keyBlurSVGH, keyBlurSigma)
		if err != nil {
			return Descriptor{}, ErrNoMatch
		}
		return NewBlur(src, fields[0], fields[1], fields[2], fields[3], fields[4]), nil
	}

	return Descriptor{}, ErrNoMatch
}

// FromURL extracts a descriptor from a request URI such as
// "/cache/image?r%5Bw%5D=100&...". Input before the first '?' is ignored;
// a URI without '?' is treated as a bare query string.
func FromURL(uri string) (Descriptor, error) {
	if _, qs, found := strings.Cut(uri, "?"); found {
		return DecodeQuery(qs)
	}
	return DecodeQuery(uri)
}

// URL returns the request URL for d under the given handler path.
func (d Descriptor) URL(handlerPath string) string {
	return handlerPath + "?" + d.EncodeQuery()
}

// FilePath returns the cache-relative output path:
// cache/image/<base64url(query)>/<source>.<ext>. The base64 segment is
// URL-safe so it never introduces a path separator; the output extension
// is appended rather than substituted, so "a.png" and "a.jpg" can never
// collide inside the same directory.
func (d Descriptor) FilePath() string {
	encoded := base64.URLEncoding.EncodeToString([]byte(d.EncodeQuery()))
	return path.Join(CacheDir, encoded, d.Source) + "." + d.Ext()
}

// FromFilePath recovers a descriptor from a cache file path by scanning
// its segments for one that base64-decodes to a valid query encoding.
// Arbitrary paths are fine: anything unparseable yields ErrNoMatch.
func FromFilePath(p string) (Descriptor, error) {
	for _, segment := range strings.Split(filepathToSlash(p), "/") {
		raw, err := base64.URLEncoding.DecodeString(segment)
		if err != nil {
			// Tolerate paths produced with the standard alphabet.
			raw, err = base64.StdEncoding.DecodeString(segment)
			if err != nil {
				continue
			}
		}
		if d, err := DecodeQuery(string(raw)); err == nil {
			return d, nil
		}
	}
	return Descriptor{}, ErrNoMatch
}

func intFields(v url.Values, keys ...string) ([]int, error) {
	out := make([]int, len(keys))
	for i, k := range keys {
		n, err := strconv.Atoi(v.Get(k))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
