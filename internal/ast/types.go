package ast

// TypeKind discriminates the closed sum of source types.
type TypeKind int

const (
	KindInt TypeKind = iota // 整数
	KindLong                // 长整数
	KindShort               // 短整数
	KindByte                // 字节
	KindFloat               // 浮点数
	KindBool                // 布尔
	KindChar                // 字符
	KindString              // 字符串
	KindVoid                // 空
	KindArray               // 数组<T>
	KindDict                // 字典
	KindList                // 列表
	KindSet                 // 集合
	KindPointer             // 指针<T>
	KindSharedRef           // 共享引用
	KindMutRef              // 可变引用
	KindChannel             // 通道<T>
	KindFunction            // 函数类型
	KindFuture              // 未来<T>
	KindNamed               // user struct or enum, by name
)

// TypeNode describes a source-level type. Equality is structural for
// channels, arrays, futures, and function types; nominal (by Name) for
// structs and enums.
type TypeNode struct {
	Kind   TypeKind
	Elem   *TypeNode   // Array, Pointer, SharedRef, MutRef, Channel, Future
	Params []*TypeNode // Function
	Return *TypeNode   // Function
	Name   string      // Named
	Length int         // Array, 0 for dynamic
}

// Basic constructs a type node with no structure.
func Basic(k TypeKind) *TypeNode { return &TypeNode{Kind: k} }

// Named constructs a nominal struct/enum reference.
func Named(name string) *TypeNode { return &TypeNode{Kind: KindNamed, Name: name} }

// FutureOf constructs 未来<inner>.
func FutureOf(inner *TypeNode) *TypeNode { return &TypeNode{Kind: KindFuture, Elem: inner} }

// ChannelOf constructs 通道<elem>.
func ChannelOf(elem *TypeNode) *TypeNode { return &TypeNode{Kind: KindChannel, Elem: elem} }

// ArrayOf constructs 数组<elem> with a fixed length when n > 0.
func ArrayOf(elem *TypeNode, n int) *TypeNode {
	return &TypeNode{Kind: KindArray, Elem: elem, Length: n}
}

// PointerTo constructs 指针<elem>.
func PointerTo(elem *TypeNode) *TypeNode { return &TypeNode{Kind: KindPointer, Elem: elem} }

// Equal reports structural equality, falling back to nominal comparison for
// named types.
func (t *TypeNode) Equal(o *TypeNode) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindNamed:
		return t.Name == o.Name
	case KindArray:
		return t.Length == o.Length && t.Elem.Equal(o.Elem)
	case KindPointer, KindSharedRef, KindMutRef, KindChannel, KindFuture:
		return t.Elem.Equal(o.Elem)
	case KindFunction:
		if len(t.Params) != len(o.Params) || !t.Return.Equal(o.Return) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// IsNumeric reports whether the type participates in arithmetic.
func (t *TypeNode) IsNumeric() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindInt, KindLong, KindShort, KindByte, KindFloat:
		return true
	}
	return false
}

var typeNames = map[TypeKind]string{
	KindInt: "整数", KindLong: "长整数", KindShort: "短整数", KindByte: "字节",
	KindFloat: "浮点数", KindBool: "布尔", KindChar: "字符", KindString: "字符串",
	KindVoid: "空", KindArray: "数组", KindDict: "字典", KindList: "列表",
	KindSet: "集合", KindPointer: "指针", KindSharedRef: "共享引用",
	KindMutRef: "可变引用", KindChannel: "通道", KindFunction: "函数",
	KindFuture: "未来",
}

// String renders the type the way it appears in source.
func (t *TypeNode) String() string {
	if t == nil {
		return "空"
	}
	switch t.Kind {
	case KindNamed:
		return t.Name
	case KindArray, KindPointer, KindChannel, KindFuture, KindSharedRef, KindMutRef:
		return typeNames[t.Kind] + "<" + t.Elem.String() + ">"
	default:
		return typeNames[t.Kind]
	}
}
