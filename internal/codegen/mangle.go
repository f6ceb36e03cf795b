package codegen

import (
	"encoding/hex"
	"strings"
)

// entryName is the source-level entry function; it always lowers to main.
const entryName = "入口"

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// MangleFunctionName rewrites an identifier into a linker-legal symbol.
// ASCII names pass through unchanged; anything else becomes _Z_ followed by
// the uppercase hex of its UTF-8 bytes. The entry name maps to main.
func MangleFunctionName(name string) string {
	if name == entryName {
		return "main"
	}
	if isASCII(name) {
		return name
	}
	return "_Z_" + strings.ToUpper(hex.EncodeToString([]byte(name)))
}

// DemangleFunctionName inverts MangleFunctionName for diagnostics. Names
// without the mangling prefix are returned unchanged.
func DemangleFunctionName(sym string) string {
	if sym == "main" {
		return entryName
	}
	h, ok := strings.CutPrefix(sym, "_Z_")
	if !ok {
		return sym
	}
	b, err := hex.DecodeString(strings.ToLower(h))
	if err != nil {
		return sym
	}
	return string(b)
}

// MangleTypeName rewrites a struct/enum type name. A trailing ".type" suffix
// selects the %struct.-prefixed spelling used at definition and reference
// sites inside the IR.
func MangleTypeName(name string) string {
	base, hadSuffix := strings.CutSuffix(name, ".type")
	if isASCII(base) {
		if hadSuffix {
			return "%struct." + base
		}
		return name
	}
	h := strings.ToUpper(hex.EncodeToString([]byte(base)))
	if hadSuffix {
		return "%struct.ZT_" + h
	}
	return "struct.ZT_" + h
}

// escapeString renders a source string as an IR c"..." payload. Every byte
// outside printable ASCII, plus the characters that would break the quoting,
// is written as a \XX hex escape.
func escapeString(s string) string {
	var sb strings.Builder
	const hexDigits = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '\n':
			sb.WriteString("\\0A")
		case b == '\r':
			sb.WriteString("\\0D")
		case b == '\t':
			sb.WriteString("\\09")
		case b == '"':
			sb.WriteString("\\22")
		case b == '\\':
			sb.WriteString("\\5C")
		case b < 0x20 || b > 0x7E:
			sb.WriteByte('\\')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0xF])
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}
