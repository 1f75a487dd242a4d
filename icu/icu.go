// Package icu validates ICU MessageFormat syntax in translation values.
//
// The checker is structural: it catches unbalanced braces, malformed or
// unknown arguments, unterminated apostrophe quoting, and plural/select
// bodies without an "other" branch. It never interprets or mutates a
// message, it only reports.
package icu

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/loksync/loksync/localefile"
)

const eof = -1

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	digits    = "0123456789"
	spaces    = " \t\r\n"
	nameChars = lowercase + "ABCDEFGHIJKLMNOPQRSTUVWXYZ" + digits + "_"
)

// SyntaxError describes one message syntax problem.
type SyntaxError struct {
	Pos int // byte offset in the message
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

// Validate checks message for structural ICU MessageFormat errors.
// A nil return means the message is syntactically sound.
func Validate(message string) error {
	c := &checker{input: message}
	if err := c.message(false); err != nil {
		return err
	}
	return nil
}

// KeyError pairs a translation key with its syntax error.
type KeyError struct {
	Key string
	Err error
}

// Lint validates every value of m and returns one entry per failing key,
// in map key order. An empty result means the whole map is valid.
func Lint(m *localefile.Map) []KeyError {
	var errs []KeyError
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if err := Validate(v); err != nil {
			errs = append(errs, KeyError{Key: k, Err: err})
		}
	}
	return errs
}

type checker struct {
	input string // the message being scanned
	pos   int    // current position in the input
	width int    // width of last rune read from input
}

// message scans literal text and arguments until end of input (top level)
// or a closing brace (inside a branch body). The closing brace is left for
// the caller to consume.
func (c *checker) message(nested bool) *SyntaxError {
	for {
		switch r := c.next(); r {
		case eof:
			if nested {
				return c.errorf(c.pos, "unexpected end of message, missing '}'")
			}
			return nil
		case '{':
			if err := c.argument(); err != nil {
				return err
			}
		case '}':
			if !nested {
				return c.errorf(c.pos-c.width, "unmatched '}'")
			}
			c.backup()
			return nil
		case '\'':
			if err := c.quoted(); err != nil {
				return err
			}
		}
	}
}

// quoted handles apostrophe quoting. The opening apostrophe has already
// been consumed: '' is a literal apostrophe, and an apostrophe directly
// before a syntax character quotes everything up to the next apostrophe.
// Any other apostrophe is plain text.
func (c *checker) quoted() *SyntaxError {
	start := c.pos - c.width

	switch c.peek() {
	case '\'':
		c.next()
		return nil
	case '{', '}', '#':
		for {
			switch c.next() {
			case eof:
				return c.errorf(start, "unterminated quoted text")
			case '\'':
				if c.peek() == '\'' {
					c.next() // escaped apostrophe inside quoted text
					continue
				}
				return nil
			}
		}
	default:
		return nil
	}
}

// argument validates one {…} argument. The opening brace has been consumed.
func (c *checker) argument() *SyntaxError {
	open := c.pos - c.width

	c.acceptRun(spaces)
	start := c.pos
	c.acceptRun(nameChars)
	name := c.input[start:c.pos]
	if name == "" {
		if c.peek() == eof {
			return c.errorf(open, "unclosed argument")
		}
		if c.peek() == '}' {
			return c.errorf(open, "empty argument")
		}
		return c.errorf(c.pos, "bad argument name")
	}
	c.acceptRun(spaces)

	switch r := c.next(); r {
	case '}':
		return nil
	case ',':
	case eof:
		return c.errorf(open, "unclosed argument")
	default:
		return c.errorf(c.pos-c.width, "unexpected %q in argument", r)
	}

	c.acceptRun(spaces)
	start = c.pos
	c.acceptRun(nameChars)
	argType := c.input[start:c.pos]
	c.acceptRun(spaces)

	switch argType {
	case "":
		return c.errorf(start, "missing argument type")
	case "number", "date", "time", "spellout", "ordinal", "duration":
		return c.style(open)
	case "plural", "selectordinal":
		return c.branches(open, true)
	case "select":
		return c.branches(open, false)
	default:
		return c.errorf(start, "unknown argument type %q", argType)
	}
}

// style validates the tail of a simple argument: either the closing brace
// or a comma followed by free-form style text.
func (c *checker) style(open int) *SyntaxError {
	switch r := c.next(); r {
	case '}':
		return nil
	case ',':
		for {
			switch c.next() {
			case '}':
				return nil
			case eof:
				return c.errorf(open, "unclosed argument")
			}
		}
	case eof:
		return c.errorf(open, "unclosed argument")
	default:
		return c.errorf(c.pos-c.width, "unexpected %q after argument type", r)
	}
}

// branches validates a plural, selectordinal, or select body: a comma, then
// selector {message} pairs up to the closing brace. plural selects whether
// numeric =N selectors and an offset: prefix are allowed. Every body must
// carry an "other" branch.
func (c *checker) branches(open int, plural bool) *SyntaxError {
	switch r := c.next(); r {
	case ',':
	case eof:
		return c.errorf(open, "unclosed argument")
	default:
		return c.errorf(c.pos-c.width, "expected ',' before branches")
	}

	sawOther := false

	for {
		c.acceptRun(spaces)

		switch c.peek() {
		case '}':
			c.next()
			if !sawOther {
				return c.errorf(open, "missing 'other' branch")
			}
			return nil
		case eof:
			return c.errorf(open, "unclosed argument")
		}

		if plural && strings.HasPrefix(c.input[c.pos:], "offset:") {
			c.pos += len("offset:")
			c.acceptRun(spaces)
			start := c.pos
			c.acceptRun(digits)
			if c.pos == start {
				return c.errorf(c.pos, "expected number after 'offset:'")
			}
			continue
		}

		var selector string
		if c.peek() == '=' {
			if !plural {
				return c.errorf(c.pos, "numeric selector is only valid in plural")
			}
			c.next()
			start := c.pos
			c.acceptRun(digits)
			if c.pos == start {
				return c.errorf(c.pos, "expected number after '='")
			}
			selector = "=" + c.input[start:c.pos]
		} else {
			start := c.pos
			c.acceptRun(nameChars)
			selector = c.input[start:c.pos]
			if selector == "" {
				return c.errorf(c.pos, "expected selector")
			}
		}

		c.acceptRun(spaces)
		if r := c.next(); r != '{' {
			if r == eof {
				return c.errorf(open, "unclosed argument")
			}
			return c.errorf(c.pos-c.width, "expected '{' after selector %q", selector)
		}

		if selector == "other" {
			sawOther = true
		}

		if err := c.message(true); err != nil {
			return err
		}
		c.next() // the branch's closing brace
	}
}

func (c *checker) errorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (c *checker) next() rune {
	if c.pos >= len(c.input) {
		c.width = 0
		return eof
	}

	r, w := utf8.DecodeRuneInString(c.input[c.pos:])
	c.width = w
	c.pos += c.width
	return r
}

func (c *checker) peek() rune {
	r := c.next()
	c.backup()
	return r
}

func (c *checker) backup() {
	c.pos -= c.width
}

// acceptRun consumes a run of runes from the valid set.
func (c *checker) acceptRun(valid string) {
	for strings.ContainsRune(valid, c.next()) {
	}
	c.backup()
}
