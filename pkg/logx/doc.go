// Package logx is cronwork's structured logging layer on top of zerolog.
//
// Console output is human-readable (short timestamp, file:line caller); the
// optional file sink is JSON lines. A Service can be re-applied at runtime
// when the config file changes.
package logx
