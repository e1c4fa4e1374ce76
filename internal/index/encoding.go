package index

import (
	"encoding/binary"
	"sort"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
)

// encodeMapping serializes a file's contribution for the forward row:
// a uvarint entry count, then per entry a length-prefixed key and a
// length-prefixed value. Entries are written in key order so equal
// mappings encode to equal bytes.
func encodeMapping(m extension.Mapping) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := binary.AppendUvarint(nil, uint64(len(m)))
	for _, k := range keys {
		buf = binary.AppendUvarint(buf, uint64(len(k)))
		buf = append(buf, k...)
		v := m[k]
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

func decodeMapping(raw []byte) (extension.Mapping, error) {
	corrupt := func() error {
		return facerrors.CorruptionError("malformed forward row", nil)
	}

	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, corrupt()
	}
	raw = raw[n:]

	m := make(extension.Mapping, count)
	for i := uint64(0); i < count; i++ {
		klen, n := binary.Uvarint(raw)
		if n <= 0 || uint64(len(raw[n:])) < klen {
			return nil, corrupt()
		}
		key := string(raw[n : n+int(klen)])
		raw = raw[n+int(klen):]

		vlen, n := binary.Uvarint(raw)
		if n <= 0 || uint64(len(raw[n:])) < vlen {
			return nil, corrupt()
		}
		var value []byte
		if vlen > 0 {
			value = append([]byte(nil), raw[n:n+int(vlen)]...)
		}
		m[key] = value
		raw = raw[n+int(vlen):]
	}
	if len(raw) != 0 {
		return nil, corrupt()
	}
	return m, nil
}
