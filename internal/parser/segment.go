package parser

import "strings"

// Fragment is one message cut out of a thread, before its sender and date
// are resolved.
type Fragment struct {
	Body     string
	Headers  map[string]string
	Splitter string
}

type state int

const (
	// awaitingContent holds at the start of input and right after a
	// message boundary, until the first body line is seen.
	awaitingContent state = iota
	inBody
)

type fragmentBuilder struct {
	body     strings.Builder
	headers  map[string]string
	splitter string
}

func newFragmentBuilder() *fragmentBuilder {
	return &fragmentBuilder{headers: map[string]string{}}
}

func (b *fragmentBuilder) addLine(line string) {
	b.body.WriteString(line)
	b.body.WriteByte('\n')
}

func (b *fragmentBuilder) setHeader(field, value string) {
	b.headers[field] = value
}

// build returns the finished fragment, or false when it has no body text.
func (b *fragmentBuilder) build() (Fragment, bool) {
	body := strings.TrimSpace(b.body.String())
	if body == "" {
		return Fragment{}, false
	}
	return Fragment{Body: body, Headers: b.headers, Splitter: b.splitter}, true
}

type segmenter struct {
	headers   *HeaderMatcher
	state     state
	current   *fragmentBuilder
	fragments []Fragment
}

func (s *segmenter) closeFragment() {
	if fragment, ok := s.current.build(); ok {
		s.fragments = append(s.fragments, fragment)
	}
	s.current = newFragmentBuilder()
	s.state = awaitingContent
}

func (s *segmenter) run(lines []string) []Fragment {
	s.state = awaitingContent
	s.current = newFragmentBuilder()
	c := &cursor{lines: lines}

	for {
		line, ok := c.next()
		if !ok {
			break
		}
		next, hasNext := c.peek()

		if line == "" && (s.state == awaitingContent || !hasNext || next == "") {
			continue
		}

		isHeader := s.headers.IsHeader(line)
		isSplitter := IsSplitter(line)
		joined := ""
		joinedSplitter := false
		if hasNext {
			joined = line + " " + next
			joinedSplitter = IsSplitter(joined)
		}

		if s.state == inBody && (isSplitter || joinedSplitter || isHeader) {
			s.closeFragment()
		}

		switch {
		case isHeader:
			for {
				next, hasNext = c.peek()
				if !hasNext || next == "" || s.headers.IsHeader(next) {
					break
				}
				line += " " + next
				c.skip()
			}
			field, value, _ := s.headers.Match(line)
			s.current.setHeader(field, value)
		case isSplitter:
			s.current.splitter = line
		case joinedSplitter:
			s.current.splitter = joined
			c.skip()
		default:
			s.state = inBody
			s.current.addLine(line)
		}
	}

	s.closeFragment()
	return s.fragments
}
