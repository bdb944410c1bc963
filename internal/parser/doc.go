// Package parser splits a flattened plain-text email thread into the
// messages it quotes. It recognizes header blocks, quote banners such as
// "On Tue, Jan 3, 2012 at 10:00 AM, Bob wrote:" and dashed separators, and
// resolves the sender and sent date of every message it finds.
//
// The parser is a pure function of its input: it performs no I/O, keeps no
// state between calls and is safe for concurrent use.
package parser
