package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_EncodeThreshold(t *testing.T) {
	l, err := NewAuditLog(nil, 64)
	require.NoError(t, err)

	small := []byte(`{"po_no":"PO24010001"}`)
	plain, compressed, algo := l.encode(small)
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.JSONEq(t, string(small), string(plain))

	large := []byte(`{"note":"` + string(bytes.Repeat([]byte("x"), 4096)) + `"}`)
	plain, compressed, algo = l.encode(large)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, plain)
	assert.Less(t, len(compressed), len(large))

	decoded, err := l.decode(AuditRecord{ChangesCompressed: compressed, CompressionAlgo: algo})
	require.NoError(t, err)
	assert.Equal(t, large, []byte(decoded))
}

func TestNewAuditLog_DefaultThreshold(t *testing.T) {
	l, err := NewAuditLog(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompressThreshold, l.threshold)
}
