package codegen

import "strings"

// Module header defaults. The compiler driver overrides these from qi.toml.
const (
	defaultDataLayout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
	defaultTriple     = "x86_64-unknown-linux-gnu"
)

// preludeDeclares is the canonical declaration set prepended to every module.
// Each entry is a (symbol, param types, return type) triple; external
// functions discovered during lowering are declared after this fixed set.
type declare struct {
	name   string
	params []string
	ret    string
}

var preludeDeclares = []declare{
	// Core runtime
	{"runtime_initialize", nil, "i32"},
	{"runtime_shutdown", nil, "i32"},
	{"runtime_execute", []string{"ptr", "i64"}, "i32"},

	// Tasks
	{"runtime_create_task", []string{"ptr", "i64"}, "ptr"},
	{"runtime_await", []string{"ptr"}, "ptr"},
	{"runtime_spawn_task", []string{"ptr"}, "i32"},
	{"runtime_spawn_goroutine", []string{"ptr"}, "void"},
	{"runtime_spawn_goroutine_with_args", []string{"ptr", "ptr"}, "void"},
	{"runtime_select", []string{"ptr", "i64"}, "i64"},

	// Futures, one constructor/await pair per payload type
	{"future_ready_i64", []string{"i64"}, "ptr"},
	{"future_await_i64", []string{"ptr"}, "i64"},
	{"future_ready_f64", []string{"double"}, "ptr"},
	{"future_await_f64", []string{"ptr"}, "double"},
	{"future_ready_bool", []string{"i32"}, "ptr"},
	{"future_await_bool", []string{"ptr"}, "i32"},
	{"future_ready_string", []string{"ptr", "i64"}, "ptr"},
	{"future_await_string", []string{"ptr"}, "ptr"},
	{"future_ready_ptr", []string{"ptr"}, "ptr"},
	{"future_await_ptr", []string{"ptr"}, "ptr"},
	{"future_failed", []string{"ptr", "i64"}, "ptr"},
	{"future_is_completed", []string{"ptr"}, "i32"},
	{"future_free", []string{"ptr"}, "void"},
	{"string_free", []string{"ptr"}, "void"},

	// Channels
	{"runtime_create_channel", []string{"i64"}, "ptr"},
	{"runtime_channel_send", []string{"ptr", "i64"}, "i32"},
	{"runtime_channel_receive", []string{"ptr", "ptr"}, "i32"},
	{"runtime_channel_close", []string{"ptr"}, "i32"},

	// WaitGroups
	{"runtime_waitgroup_create", nil, "ptr"},
	{"runtime_waitgroup_add", []string{"ptr", "i32"}, "i32"},
	{"runtime_waitgroup_wait", []string{"ptr"}, "i32"},
	{"runtime_waitgroup_done", []string{"ptr"}, "i32"},

	// Mutexes
	{"runtime_mutex_create", nil, "ptr"},
	{"runtime_mutex_lock", []string{"ptr"}, "i32"},
	{"runtime_mutex_unlock", []string{"ptr"}, "i32"},
	{"runtime_mutex_trylock", []string{"ptr"}, "i32"},

	// Timers and timeouts
	{"runtime_get_time_ms", nil, "i64"},
	{"runtime_set_timeout", []string{"i64"}, "i64"},
	{"runtime_check_timeout", []string{"i64"}, "i32"},
	{"runtime_timer_create", []string{"i64"}, "ptr"},
	{"runtime_timer_expired", []string{"ptr"}, "i64"},
	{"runtime_timer_stop", []string{"ptr"}, "i64"},
	{"runtime_timer_cancel", []string{"ptr"}, "void"},

	// Print helpers
	{"runtime_print", []string{"ptr"}, "i32"},
	{"runtime_println", []string{"ptr"}, "i32"},
	{"runtime_print_int", []string{"i64"}, "i32"},
	{"runtime_println_int", []string{"i64"}, "i32"},
	{"runtime_print_float", []string{"double"}, "i32"},
	{"runtime_println_float", []string{"double"}, "i32"},
	{"runtime_print_bool", []string{"i32"}, "i32"},
	{"runtime_println_bool", []string{"i32"}, "i32"},
	{"printf", []string{"ptr", "..."}, "i32"},

	// Allocation
	{"runtime_alloc", []string{"i64"}, "ptr"},
	{"runtime_dealloc", []string{"ptr", "i64"}, "i32"},
	{"runtime_gc_should_collect", nil, "i64"},
	{"runtime_gc_collect", nil, "void"},
	{"malloc", []string{"i64"}, "ptr"},
	{"free", []string{"ptr"}, "void"},

	// String helpers
	{"strlen", []string{"ptr"}, "i64"},
	{"runtime_string_length", []string{"ptr"}, "i64"},
	{"runtime_string_concat", []string{"ptr", "ptr"}, "ptr"},
	{"runtime_string_slice", []string{"ptr", "i64", "i64"}, "ptr"},
	{"runtime_string_compare", []string{"ptr", "ptr"}, "i32"},
	{"runtime_int_to_string", []string{"i64"}, "ptr"},
	{"runtime_float_to_string", []string{"double"}, "ptr"},
	{"runtime_string_to_int", []string{"ptr"}, "i64"},
	{"runtime_string_to_float", []string{"ptr"}, "double"},
	{"runtime_int_to_float", []string{"i64"}, "double"},
	{"runtime_float_to_int", []string{"double"}, "i64"},

	// Math
	{"runtime_math_sqrt", []string{"double"}, "double"},
	{"runtime_math_pow", []string{"double", "double"}, "double"},
	{"runtime_math_sin", []string{"double"}, "double"},
	{"runtime_math_cos", []string{"double"}, "double"},
	{"runtime_math_tan", []string{"double"}, "double"},
	{"runtime_math_abs_int", []string{"i64"}, "i64"},
	{"runtime_math_abs_float", []string{"double"}, "double"},
	{"runtime_math_floor", []string{"double"}, "double"},
	{"runtime_math_ceil", []string{"double"}, "double"},
	{"runtime_math_round", []string{"double"}, "double"},

	// Arrays
	{"runtime_array_create", []string{"i64"}, "ptr"},
	{"runtime_array_length", []string{"ptr"}, "i64"},

	// File I/O
	{"runtime_file_open", []string{"ptr", "ptr"}, "i64"},
	{"runtime_file_read", []string{"i64", "ptr", "i64"}, "i64"},
	{"runtime_file_write", []string{"i64", "ptr", "i64"}, "i64"},
	{"runtime_file_close", []string{"i64"}, "i32"},
	{"runtime_file_read_string", []string{"ptr"}, "ptr"},
	{"runtime_file_write_string", []string{"ptr", "ptr"}, "i32"},

	// IO module
	{"io_read_file", []string{"ptr"}, "ptr"},
	{"io_write_file", []string{"ptr", "ptr"}, "i64"},
	{"io_append_file", []string{"ptr", "ptr"}, "i64"},
	{"io_delete_file", []string{"ptr"}, "i64"},
	{"io_create_file", []string{"ptr"}, "i64"},
	{"io_file_exists", []string{"ptr"}, "i64"},
	{"io_file_size", []string{"ptr"}, "i64"},
	{"io_create_dir", []string{"ptr"}, "i64"},
	{"io_delete_dir", []string{"ptr"}, "i64"},
	{"io_free_string", []string{"ptr"}, "void"},

	// Network
	{"network_tcp_connect", []string{"ptr", "i16", "i64"}, "i64"},
	{"network_tcp_read", []string{"i64", "ptr", "i64"}, "i64"},
	{"network_tcp_write", []string{"i64", "ptr", "i64"}, "i64"},
	{"network_tcp_close", []string{"i64"}, "i64"},
	{"network_tcp_flush", []string{"i64"}, "i64"},
	{"network_resolve_host", []string{"ptr"}, "ptr"},
	{"network_port_available", []string{"i16"}, "i64"},
	{"network_get_local_ip", nil, "ptr"},
	{"network_free_string", []string{"ptr"}, "void"},

	// HTTP
	{"http_init", nil, "i64"},
	{"http_get", []string{"ptr"}, "ptr"},
	{"http_post", []string{"ptr", "ptr"}, "ptr"},
	{"http_put", []string{"ptr", "ptr"}, "ptr"},
	{"http_delete", []string{"ptr"}, "ptr"},
	{"http_request_create", []string{"ptr", "ptr"}, "i64"},
	{"http_request_set_header", []string{"i64", "ptr", "ptr"}, "i64"},
	{"http_request_set_body", []string{"i64", "ptr"}, "i64"},
	{"http_request_set_timeout", []string{"i64", "i64"}, "i64"},
	{"http_request_execute", []string{"i64"}, "ptr"},
	{"http_get_status", []string{"ptr"}, "i64"},
	{"http_free_string", []string{"ptr"}, "void"},

	// Crypto
	{"crypto_md5", []string{"ptr"}, "ptr"},
	{"crypto_sha256", []string{"ptr"}, "ptr"},
	{"crypto_sha512", []string{"ptr"}, "ptr"},
	{"crypto_base64_encode", []string{"ptr"}, "ptr"},
	{"crypto_base64_decode", []string{"ptr"}, "ptr"},
	{"crypto_hmac_sha256", []string{"ptr", "ptr"}, "ptr"},
	{"crypto_free_string", []string{"ptr"}, "void"},
}

// preludeSymbols indexes the fixed declaration set so lowering can tell a
// known runtime symbol from a user-level external.
var preludeSymbols = func() map[string]declare {
	m := make(map[string]declare, len(preludeDeclares))
	for _, d := range preludeDeclares {
		m[d.name] = d
	}
	return m
}()

func (d declare) render(sb *strings.Builder) {
	sb.WriteString("declare ")
	sb.WriteString(d.ret)
	sb.WriteString(" @")
	sb.WriteString(d.name)
	sb.WriteString("(")
	sb.WriteString(strings.Join(d.params, ", "))
	sb.WriteString(")\n")
}

// writePrelude emits the module header and the fixed declaration block.
func (b *Builder) writePrelude(sb *strings.Builder) {
	sb.WriteString("; module: " + b.moduleName + "\n")
	sb.WriteString("; generated by the qi compiler\n")
	sb.WriteString("target datalayout = \"" + b.dataLayout + "\"\n")
	sb.WriteString("target triple = \"" + b.triple + "\"\n\n")

	if len(b.structOrder) > 0 {
		sb.WriteString("; struct type definitions\n")
		for _, name := range b.structOrder {
			mangled := MangleTypeName(name + ".type")
			sb.WriteString(mangled + " = type { " + strings.Join(b.structDefs[name], ", ") + " }\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("; runtime declarations\n")
	for _, d := range preludeDeclares {
		d.render(sb)
	}
	sb.WriteString("\n")
}
