// Package smpst provides tooling for multiparty protocol choreographies.
//
// A protocol is written in a small choreography language, parsed into an
// AST (package 'parser'), compiled to a control-flow graph (package 'cfg'),
// and then either stepped one interaction at a time (package 'sim') or
// checked for well-formedness (package 'verify').  Command-line tools are
// in 'cmd'.
package smpst
