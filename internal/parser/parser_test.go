package parser

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThread_PlainText(t *testing.T) {
	text := "\n\n  Hello there,\n\nHow are you?\n\n\n"

	messages := ParseThread(text)

	require.Len(t, messages, 1)
	assert.Equal(t, strings.TrimSpace(text), messages[0].Body)
	assert.Empty(t, messages[0].Sent)
	assert.Empty(t, messages[0].Sender)
	assert.Empty(t, messages[0].Headers)
}

func TestParseThread_Empty(t *testing.T) {
	assert.Empty(t, ParseThread(""))
	assert.Empty(t, ParseThread("\n> \n>>\n"))
}

func TestParseThread_HeaderIsNotBody(t *testing.T) {
	messages := ParseThread("FROM: alice@x.com\n\nRandom: value\nmore text")

	require.Len(t, messages, 1)
	assert.Equal(t, "alice@x.com", messages[0].Headers["from"])
	assert.Equal(t, "alice@x.com", messages[0].Sender)
	assert.Equal(t, "Random: value\nmore text", messages[0].Body)
}

func TestParseThread_HeaderFolding(t *testing.T) {
	text := "Subject: Hello\nWorld\n\nBody text"

	messages := ParseThread(text)

	require.Len(t, messages, 1)
	assert.Equal(t, "Hello World", messages[0].Headers["subject"])
	assert.Equal(t, "Body text", messages[0].Body)
}

func TestParseThread_FoldingStopsAtNextHeader(t *testing.T) {
	text := "To: a@x.com,\n b@x.com\nDate: Mon, 2 Jan 2012 09:00:00 +0000\n\nbody"

	fragments := Segment(text)

	require.Len(t, fragments, 1)
	assert.Equal(t, "a@x.com, b@x.com", fragments[0].Headers["to"])
	assert.Equal(t, "Mon, 2 Jan 2012 09:00:00 +0000", fragments[0].Headers["date"])
	assert.Equal(t, "body", fragments[0].Body)
}

func TestSegment_FoldingSwallowsFollowingText(t *testing.T) {
	fragments := Segment("intro\nDate: today\nbody")

	require.Len(t, fragments, 1)
	assert.Equal(t, "intro", fragments[0].Body)
}

func TestParseThread_TwoLineBanner(t *testing.T) {
	text := strings.Join([]string{
		"Thanks, see you then.",
		"",
		"On Tuesday,",
		"Jan 3, 2012, 10:00 AM, Bob <bob@x.com> wrote:",
		"> Are we still on for lunch?",
	}, "\n")

	messages := ParseThread(text)

	require.Len(t, messages, 2)
	assert.Equal(t, "Are we still on for lunch?", messages[0].Body)
	assert.Equal(t, "Tuesday, Jan 3, 2012, 10:00 AM", messages[0].Sent)
	assert.Equal(t, "Bob <bob@x.com>", messages[0].Sender)
	assert.Equal(t, "On Tuesday, Jan 3, 2012, 10:00 AM, Bob <bob@x.com> wrote:", messages[0].Splitter)
	assert.Equal(t, "Thanks, see you then.", messages[1].Body)
	for _, m := range messages {
		assert.NotContains(t, m.Body, "wrote:")
	}
}

func TestParseThread_BannerResolution(t *testing.T) {
	text := "Sure.\nOn Jan 3, 2012, 10:00 AM, Bob <bob@x.com> wrote:\n> Lunch?"

	messages := ParseThread(text)

	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Sent, "Jan 3, 2012")
	assert.Contains(t, messages[0].Sender, "Bob <bob@x.com>")
	assert.Equal(t, "Lunch?", messages[0].Body)
}

func TestParseThread_HeadersWinOverBanner(t *testing.T) {
	text := strings.Join([]string{
		"Top reply",
		"On Jan 3, 2012, 10:00 AM, Bob <bob@x.com> wrote:",
		"From: Robert <robert@x.com>",
		"Date: Tue, 3 Jan 2012 10:00:00 +0000",
		"",
		"Quoted body",
	}, "\n")

	messages := ParseThread(text)

	require.Len(t, messages, 2)
	assert.Equal(t, "Robert <robert@x.com>", messages[0].Sender)
	assert.Equal(t, "Tue, 3 Jan 2012 10:00:00 +0000", messages[0].Sent)
}

func TestParseThread_SentAndReplyToFallbacks(t *testing.T) {
	text := strings.Join([]string{
		"Newest",
		"-----Original Message-----",
		"Reply-To: list@x.com",
		"Sent: Tuesday, January 3, 2012 10:00 AM",
		"",
		"Older",
	}, "\n")

	messages := ParseThread(text)

	require.Len(t, messages, 2)
	assert.Equal(t, "Older", messages[0].Body)
	assert.Equal(t, "list@x.com", messages[0].Sender)
	assert.Equal(t, "Tuesday, January 3, 2012 10:00 AM", messages[0].Sent)
	assert.Equal(t, "-----Original Message-----", messages[0].Splitter)
}

func TestParseThread_OutlookHeaderBlock(t *testing.T) {
	text := strings.Join([]string{
		"Sounds good.",
		"",
		"From: Bob <bob@x.com>",
		"Sent: Tuesday, January 3, 2012 10:00 AM",
		"To: Alice",
		"Subject: RE: lunch",
		"",
		"Lunch at noon?",
	}, "\n")

	messages := ParseThread(text)

	require.Len(t, messages, 2)
	assert.Equal(t, "Lunch at noon?", messages[0].Body)
	assert.Equal(t, "Bob <bob@x.com>", messages[0].Sender)
	assert.Equal(t, "Tuesday, January 3, 2012 10:00 AM", messages[0].Sent)
	assert.Equal(t, map[string]string{
		"from":    "Bob <bob@x.com>",
		"sent":    "Tuesday, January 3, 2012 10:00 AM",
		"to":      "Alice",
		"subject": "RE: lunch",
	}, messages[0].Headers)
	assert.Equal(t, "Sounds good.", messages[1].Body)
	assert.Empty(t, messages[1].Headers)
}

func TestParseThread_ChronologicalOrder(t *testing.T) {
	text := strings.Join([]string{
		"msg1",
		"",
		"On Mon, Jan 2, 2012 at 9:00 AM, Carol <carol@x.com> wrote:",
		"> msg2",
		">",
		"> On Sun, Jan 1, 2012 at 8:00 AM, Bob <bob@x.com> wrote:",
		">> msg3",
	}, "\n")

	messages := ParseThread(text)

	require.Len(t, messages, 3)
	assert.Equal(t, "msg3", messages[0].Body)
	assert.Equal(t, "Bob <bob@x.com>", messages[0].Sender)
	assert.Equal(t, "Sun, Jan 1, 2012 at 8:00 AM", messages[0].Sent)
	assert.Equal(t, "msg2", messages[1].Body)
	assert.Equal(t, "Carol <carol@x.com>", messages[1].Sender)
	assert.Equal(t, "msg1", messages[2].Body)
	assert.Empty(t, messages[2].Sender)
}

func TestParseThread_EmptyFragmentSuppressed(t *testing.T) {
	text := strings.Join([]string{
		"Reply text",
		"-----Original Message-----",
		"From: bob@x.com",
		"Sent: Monday",
	}, "\n")

	messages := ParseThread(text)

	require.Len(t, messages, 1)
	assert.Equal(t, "Reply text", messages[0].Body)
}

func TestParseThread_IntraParagraphBlankLines(t *testing.T) {
	messages := ParseThread("para one\n\npara two\n\n\n\npara three")

	require.Len(t, messages, 1)
	assert.Equal(t, "para one\n\npara two\n\npara three", messages[0].Body)
}

func TestParseThread_Deterministic(t *testing.T) {
	text := strings.Join([]string{
		"msg1",
		"On Mon, Jan 2, 2012 at 9:00 AM, Carol wrote:",
		"> msg2",
		"> From: dave@x.com",
		"> Date: Sun, 1 Jan 2012 08:00:00 +0000",
		">",
		"> msg3",
	}, "\n")

	first := ParseThread(text)

	var wg sync.WaitGroup
	results := make([][]Message, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ParseThread(text)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, first, got)
	}
}

func TestParseConversation(t *testing.T) {
	c := ParseConversation("Re: Lunch", "See you there")

	assert.Equal(t, "Lunch", c.Subject)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, "See you there", c.Messages[0].Body)
}

func TestParser_WithHeaderFields(t *testing.T) {
	p := New(WithHeaderFields("ticket"))

	messages := p.ParseThread("From: bob@x.com\n\nTicket: 42\n\nbody")

	require.Len(t, messages, 2)
	assert.Equal(t, "body", messages[0].Body)
	assert.Equal(t, "42", messages[0].Headers["ticket"])
	assert.Equal(t, "From: bob@x.com", messages[1].Body)
	assert.True(t, p.Headers().IsHeader("TICKET: 7"))
}
