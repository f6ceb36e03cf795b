package codegen

import "strings"

// builtinFunctions maps user-facing names (Chinese, with ASCII aliases) to
// runtime symbols. Unknown names fall through as user-defined functions.
var builtinFunctions = map[string]string{
	// String operations
	"字符串长度": "runtime_string_length",
	"长度":    "runtime_string_length",
	"len":   "runtime_string_length",
	"字符串连接":   "runtime_string_concat",
	"连接":      "runtime_string_concat",
	"concat":  "runtime_string_concat",
	"字符串切片":  "runtime_string_slice",
	"切片":     "runtime_string_slice",
	"slice":  "runtime_string_slice",
	"字符串比较":    "runtime_string_compare",
	"比较":       "runtime_string_compare",
	"compare":  "runtime_string_compare",

	// Math operations
	"平方根":  "runtime_math_sqrt",
	"根号":   "runtime_math_sqrt",
	"求平方根": "runtime_math_sqrt",
	"sqrt": "runtime_math_sqrt",
	"幂":    "runtime_math_pow",
	"次方":   "runtime_math_pow",
	"pow":  "runtime_math_pow",
	"正弦":   "runtime_math_sin",
	"sin":  "runtime_math_sin",
	"余弦":   "runtime_math_cos",
	"cos":  "runtime_math_cos",
	"正切":   "runtime_math_tan",
	"tan":  "runtime_math_tan",
	"绝对值":   "runtime_math_abs_int",
	"求绝对值":  "runtime_math_abs_int",
	"abs":   "runtime_math_abs_int",
	"向下取整":  "runtime_math_floor",
	"floor": "runtime_math_floor",
	"向上取整":  "runtime_math_ceil",
	"ceil":  "runtime_math_ceil",
	"四舍五入":  "runtime_math_round",
	"round": "runtime_math_round",

	// File I/O
	"打开文件": "runtime_file_open",
	"打开":   "runtime_file_open",
	"open": "runtime_file_open",
	"读取文件": "runtime_file_read_string",
	"读取":   "runtime_file_read_string",
	"read": "runtime_file_read_string",
	"读取文本": "runtime_file_read_string",
	"写入文件":  "runtime_file_write_string",
	"写入":    "runtime_file_write_string",
	"write": "runtime_file_write_string",
	"写入文本":  "runtime_file_write_string",
	"关闭文件":  "runtime_file_close",
	"关闭":    "runtime_file_close",
	"close": "runtime_file_close",

	// Array operations
	"创建数组":         "runtime_array_create",
	"create_array": "runtime_array_create",
	"数组长度":         "runtime_array_length",
	"array_len":    "runtime_array_length",

	// Type conversions
	"整数转字符串":          "runtime_int_to_string",
	"int_to_string":   "runtime_int_to_string",
	"浮点数转字符串":         "runtime_float_to_string",
	"float_to_string": "runtime_float_to_string",
	"字符串转整数":          "runtime_string_to_int",
	"string_to_int":   "runtime_string_to_int",
	"字符串转浮点数":         "runtime_string_to_float",
	"string_to_float": "runtime_string_to_float",
	"整数转浮点数":          "runtime_int_to_float",
	"int_to_float":    "runtime_int_to_float",
	"浮点数转整数":          "runtime_float_to_int",
	"float_to_int":    "runtime_float_to_int",

	// Memory
	"分配内存":    "runtime_alloc",
	"alloc":   "runtime_alloc",
	"释放内存":    "runtime_dealloc",
	"dealloc": "runtime_dealloc",

	// Print
	"打印":      "runtime_print",
	"print":   "runtime_print",
	"打印行":     "runtime_println",
	"println": "runtime_println",

	// Synchronization — waitgroup
	"创建等待组":          "runtime_waitgroup_create",
	"新建等待组":          "runtime_waitgroup_create",
	"new_waitgroup":  "runtime_waitgroup_create",
	"等待组增加":          "runtime_waitgroup_add",
	"等待组添加":          "runtime_waitgroup_add",
	"添加等待":           "runtime_waitgroup_add",
	"waitgroup_add":  "runtime_waitgroup_add",
	"等待组完成":          "runtime_waitgroup_done",
	"完成":             "runtime_waitgroup_done",
	"waitgroup_done": "runtime_waitgroup_done",
	"等待组等待":          "runtime_waitgroup_wait",
	"等待":             "runtime_waitgroup_wait",
	"waitgroup_wait": "runtime_waitgroup_wait",

	// Synchronization — mutex
	"创建互斥锁":        "runtime_mutex_create",
	"新建互斥锁":        "runtime_mutex_create",
	"new_mutex":    "runtime_mutex_create",
	"互斥锁加锁":        "runtime_mutex_lock",
	"互斥锁锁定":        "runtime_mutex_lock",
	"加锁":           "runtime_mutex_lock",
	"mutex_lock":   "runtime_mutex_lock",
	"互斥锁解锁":        "runtime_mutex_unlock",
	"解锁":           "runtime_mutex_unlock",
	"mutex_unlock": "runtime_mutex_unlock",
	"尝试加锁":         "runtime_mutex_trylock",
	"try_lock":     "runtime_mutex_trylock",

	// Channels
	"创建通道":          "runtime_create_channel",
	"发送":            "runtime_channel_send",
	"send":          "runtime_channel_send",
	"接收":            "runtime_channel_receive",
	"receive":       "runtime_channel_receive",
	"关闭通道":          "runtime_channel_close",
	"close_channel": "runtime_channel_close",

	// Timers and timeouts
	"获取时间":          "runtime_get_time_ms",
	"get_time":      "runtime_get_time_ms",
	"设置超时":          "runtime_set_timeout",
	"set_timeout":   "runtime_set_timeout",
	"timeout":       "runtime_set_timeout",
	"检查超时":          "runtime_check_timeout",
	"check_timeout": "runtime_check_timeout",
	"创建定时器":         "runtime_timer_create",
	"new_timer":     "runtime_timer_create",
	"定时器过期":         "runtime_timer_expired",
	"timer_expired": "runtime_timer_expired",
	"停止定时器":         "runtime_timer_stop",
	"stop_timer":    "runtime_timer_stop",

	// Crypto
	"MD5哈希":         "crypto_md5",
	"md5":           "crypto_md5",
	"SHA256哈希":      "crypto_sha256",
	"sha256":        "crypto_sha256",
	"SHA512哈希":      "crypto_sha512",
	"sha512":        "crypto_sha512",
	"Base64编码":      "crypto_base64_encode",
	"base64_encode": "crypto_base64_encode",
	"Base64解码":      "crypto_base64_decode",
	"base64_decode": "crypto_base64_decode",
	"HMAC_SHA256":   "crypto_hmac_sha256",
	"hmac_sha256":   "crypto_hmac_sha256",
}

// staticBuiltins maps Type::method spellings to runtime symbols.
var staticBuiltins = map[[2]string]string{
	{"未来", "就绪"}: "future_ready_i64",
	{"未来", "失败"}: "future_failed",
}

// runtimeReturnTypes fixes the result type of runtime calls whose name alone
// does not make it obvious. Everything else defaults by family in
// runtimeCallResultType.
var runtimeReturnTypes = map[string]string{
	"runtime_string_length":   "i64",
	"runtime_string_concat":   "ptr",
	"runtime_string_slice":    "ptr",
	"runtime_string_compare":  "i32",
	"runtime_int_to_string":   "ptr",
	"runtime_float_to_string": "ptr",
	"runtime_string_to_int":   "i64",
	"runtime_string_to_float": "double",
	"runtime_int_to_float":    "double",
	"runtime_float_to_int":    "i64",
	"runtime_file_read_string": "ptr",
	"runtime_file_open":        "i64",
	"runtime_array_create":     "ptr",
	"runtime_array_length":     "i64",
	"runtime_alloc":            "ptr",
	"runtime_create_channel":   "ptr",
	"runtime_waitgroup_create": "ptr",
	"runtime_mutex_create":     "ptr",
	"runtime_timer_create":     "ptr",
	"runtime_get_time_ms":      "i64",
	"runtime_set_timeout":      "i64",
	"runtime_timer_expired":    "i64",
	"runtime_timer_stop":       "i64",
	"runtime_math_abs_int":     "i64",
	"crypto_md5":               "ptr",
	"crypto_sha256":            "ptr",
	"crypto_sha512":            "ptr",
	"crypto_base64_encode":     "ptr",
	"crypto_base64_decode":     "ptr",
	"crypto_hmac_sha256":       "ptr",
}

// runtimeCallResultType resolves the IR result type of a call to a runtime
// symbol.
func runtimeCallResultType(sym string) string {
	if t, ok := runtimeReturnTypes[sym]; ok {
		return t
	}
	switch {
	case strings.HasPrefix(sym, "runtime_math_"):
		return "double"
	case strings.HasPrefix(sym, "future_ready_"), sym == "future_failed":
		return "ptr"
	case sym == "future_await_f64":
		return "double"
	case sym == "future_await_string", sym == "future_await_ptr":
		return "ptr"
	case strings.HasPrefix(sym, "future_await_"):
		return "i64"
	}
	return "i32"
}
