package parser

// Parser segments threads using a header vocabulary.
type Parser struct {
	headers *HeaderMatcher
}

// Option configures a Parser.
type Option func(*Parser)

// WithHeaderFields replaces the default header vocabulary.
func WithHeaderFields(fields ...string) Option {
	return func(p *Parser) {
		if len(fields) > 0 {
			p.headers = NewHeaderMatcher(fields)
		}
	}
}

// Conversation is the result of parsing a whole thread.
type Conversation struct {
	Subject  string    `json:"subject"`
	Messages []Message `json:"messages"`
}

var defaultParser = New()

// New returns a Parser using DefaultHeaderFields unless overridden.
func New(opts ...Option) *Parser {
	p := &Parser{headers: NewHeaderMatcher(DefaultHeaderFields)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Headers returns the matcher used to recognize header lines.
func (p *Parser) Headers() *HeaderMatcher {
	return p.headers
}

// Segment cuts text into fragments in the order they appear, newest first
// for a top-posted thread. Fragments without body text are dropped.
func (p *Parser) Segment(text string) []Fragment {
	s := &segmenter{headers: p.headers}
	return s.run(splitLines(text))
}

// ParseThread returns the messages of text in chronological order, oldest
// first.
func (p *Parser) ParseThread(text string) []Message {
	fragments := p.Segment(text)
	messages := make([]Message, 0, len(fragments))
	for i := len(fragments) - 1; i >= 0; i-- {
		messages = append(messages, Resolve(fragments[i]))
	}
	return messages
}

// ParseConversation normalizes subject and parses text.
func (p *Parser) ParseConversation(subject, text string) Conversation {
	return Conversation{
		Subject:  NormalizeSubject(subject),
		Messages: p.ParseThread(text),
	}
}

// Segment uses the default parser.
func Segment(text string) []Fragment {
	return defaultParser.Segment(text)
}

// ParseThread uses the default parser.
func ParseThread(text string) []Message {
	return defaultParser.ParseThread(text)
}

// ParseConversation uses the default parser.
func ParseConversation(subject, text string) Conversation {
	return defaultParser.ParseConversation(subject, text)
}

// IsHeader reports whether line opens a header of the default vocabulary.
func IsHeader(line string) bool {
	return defaultParser.headers.IsHeader(line)
}

// MatchHeader matches line against the default vocabulary.
func MatchHeader(line string) (field, value string, ok bool) {
	return defaultParser.headers.Match(line)
}
