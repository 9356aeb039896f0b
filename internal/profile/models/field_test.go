package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "profilereg/pkg/domain-errors"
)

func TestParseFieldName(t *testing.T) {
	for _, ok := range []string{"bio", "Avatar", "hiring_2", strings.Repeat("x", 32)} {
		name, err := ParseFieldName(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, ok, name.String())
	}
	for _, bad := range []string{"", strings.Repeat("x", 33), "has space", "dash-ed", "emoji✓"} {
		_, err := ParseFieldName(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField), bad)
	}
}

func TestFieldValue_CrossVariantReadsAreAbsent(t *testing.T) {
	v := StringValue("hi")

	s, ok := v.AsString()
	assert.True(t, ok)
	assert.Equal(t, "hi", s)

	_, ok = v.AsInt()
	assert.False(t, ok)
	_, ok = v.AsBool()
	assert.False(t, ok)
	_, ok = v.AsAddress()
	assert.False(t, ok)
	_, ok = v.AsBytes()
	assert.False(t, ok)

	flag := BoolValue(false)
	_, ok = flag.AsString()
	assert.False(t, ok)
	b, ok := flag.AsBool()
	assert.True(t, ok)
	assert.False(t, b)
}

func TestFieldValue_JSON(t *testing.T) {
	big, err := ParseInt128("-170141183460469231731687303715884105728")
	require.NoError(t, err)

	values := []FieldValue{
		StringValue("hello"),
		IntValue(big),
		BoolValue(true),
		AddressValue("GREFERRER"),
		BytesValue([]byte{0x00, 0xff, 0x10}),
	}
	for _, v := range values {
		raw, err := json.Marshal(v)
		require.NoError(t, err)

		var back FieldValue
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.True(t, v.Equal(back), "round trip of %s: %s", v.Kind(), raw)
	}

	t.Run("int encodes as decimal string", func(t *testing.T) {
		raw, err := json.Marshal(IntValue(Int128FromInt64(42)))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"int","value":"42"}`, string(raw))
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		var v FieldValue
		err := json.Unmarshal([]byte(`{"type":"float","value":1.5}`), &v)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("mismatched payload is rejected", func(t *testing.T) {
		_, err := DecodeFieldValue(KindBool, json.RawMessage(`"yes"`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("zero value cannot be encoded", func(t *testing.T) {
		_, err := json.Marshal(FieldValue{})
		require.Error(t, err)
	})
}

func TestBytesValue_Copies(t *testing.T) {
	src := []byte("abc")
	v := BytesValue(src)
	src[0] = 'z'
	got, ok := v.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
}
