// Package logx is the structured logger used across this module.
//
// It wraps zerolog in a value type (logx.Logger) so library code can accept a
// logger without forcing setup on callers:
//   - The zero Logger discards everything.
//   - Console output is human readable (short timestamp + short caller).
//   - File output is JSON lines.
package logx
