package parser

// Message is a fragment with its sender and sent date resolved. Sent is
// free-form text taken from the thread and may not be a parseable date.
type Message struct {
	Body     string            `json:"body"`
	Sent     string            `json:"sent"`
	Sender   string            `json:"sender"`
	Headers  map[string]string `json:"headers"`
	Splitter string            `json:"splitter,omitempty"`
}

// Resolve derives the sent date and sender of a fragment from its headers,
// falling back to its quote banner.
func Resolve(f Fragment) Message {
	bannerDate, bannerSender, _ := ParseSplitter(f.Splitter)

	return Message{
		Body:     f.Body,
		Sent:     firstNonEmpty(f.Headers["date"], f.Headers["sent"], bannerDate),
		Sender:   firstNonEmpty(f.Headers["from"], bannerSender, f.Headers["reply-to"]),
		Headers:  f.Headers,
		Splitter: f.Splitter,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
