package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMangle_ASCIIPassthrough(t *testing.T) {
	assert.Equal(t, "max", MangleFunctionName("max"))
	assert.Equal(t, "snake_case_99", MangleFunctionName("snake_case_99"))
}

func TestMangle_EntryNameMapsToMain(t *testing.T) {
	assert.Equal(t, "main", MangleFunctionName("入口"))
}

func TestMangle_NonASCIIHexEncodes(t *testing.T) {
	m := MangleFunctionName("最大值")
	assert.True(t, len(m) > 3 && m[:3] == "_Z_", "expected _Z_ prefix, got %s", m)
	for _, c := range m[3:] {
		assert.Contains(t, "0123456789ABCDEF", string(c), "hex must be uppercase")
	}
}

func TestMangle_RoundTrip(t *testing.T) {
	names := []string{"最大值", "计算总和", "入口", "plain_ascii", "混合mixed名字"}
	for _, n := range names {
		assert.Equal(t, n, DemangleFunctionName(MangleFunctionName(n)), "round trip for %s", n)
	}
}

func TestMangleTypeName_StructSpelling(t *testing.T) {
	m := MangleTypeName("点.type")
	assert.True(t, len(m) > 0 && m[0] == '%', "definition spelling must be %%-prefixed: %s", m)
	assert.Contains(t, m, "%struct.ZT_")

	assert.Equal(t, "%struct.Point", MangleTypeName("Point.type"))
	assert.Equal(t, "Point", MangleTypeName("Point"))
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, "hello", escapeString("hello"))
	assert.Equal(t, "a\\0Ab", escapeString("a\nb"))
	assert.Equal(t, "\\22\\5C", escapeString("\"\\"))
	// Multibyte characters escape every UTF-8 byte.
	assert.Equal(t, "\\E5\\80\\BC", escapeString("值"))
}
