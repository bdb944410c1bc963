// Command sendthread exercises a running threadparse service: it posts a
// thread over HTTP, waits for it to be parsed, prints the messages and then
// forwards the same thread over SMTP.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const thread = `Works for me, see you there.

On Mon, Jan 2, 2012 at 9:00 AM, Carol <carol@example.com> wrote:
> How about noon at the usual place?
>
> On Sun, Jan 1, 2012 at 8:00 PM, Bob <bob@example.com> wrote:
>> Anyone free for lunch tomorrow?
`

type createResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type conversationResponse struct {
	Subject  string `json:"subject"`
	Parsed   bool   `json:"parsed"`
	Messages []struct {
		Sender     string `json:"sender"`
		PrettySent string `json:"prettySent"`
		Body       string `json:"body"`
	} `json:"messages"`
}

func main() {
	baseURL := getenvDefault("THREADPARSE_URL", "http://localhost:3025")
	smtpAddr := getenvDefault("THREADPARSE_SMTP", "localhost:2025")
	smtpUser := getenvDefault("SMTP_USERNAME", "threadparse")
	smtpPass := getenvDefault("SMTP_PASSWORD", "threadparse")

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println("Posting thread over HTTP")
	payload, _ := json.Marshal(map[string]string{
		"subject": "Re: lunch",
		"sender":  "alice@example.com",
		"text":    thread,
	})
	resp := mustDo(client, http.MethodPost, baseURL+"/api/conversations", bytes.NewReader(payload))
	var created createResponse
	mustDecode(resp.Body, &created)
	_ = resp.Body.Close()

	conversation := waitParsed(client, baseURL, created)
	fmt.Printf("Subject: %s\n", conversation.Subject)
	for i, m := range conversation.Messages {
		fmt.Printf("%d. %s (%s)\n   %s\n", i+1, m.Sender, m.PrettySent, strings.ReplaceAll(m.Body, "\n", "\n   "))
	}

	fmt.Println("Forwarding thread over SMTP")
	var auth sasl.Client
	if smtpUser != "" || smtpPass != "" {
		auth = sasl.NewPlainClient("", smtpUser, smtpPass)
	}
	msg := buildForward("alice@example.com", "threads@localhost", "Fwd: lunch", thread)
	if err := smtp.SendMail(smtpAddr, auth, "alice@example.com", []string{"threads@localhost"}, bytes.NewReader(msg)); err != nil {
		fmt.Fprintln(os.Stderr, "smtp error:", err)
		os.Exit(1)
	}
	fmt.Println("Sent; the sender is notified when parsing finishes")
}

func waitParsed(client *http.Client, baseURL string, created createResponse) conversationResponse {
	url := fmt.Sprintf("%s/api/conversations/%s?token=%s", baseURL, created.ID, created.Token)
	for i := 0; i < 50; i++ {
		resp := mustDo(client, http.MethodGet, url, nil)
		var out conversationResponse
		mustDecode(resp.Body, &out)
		_ = resp.Body.Close()
		if out.Parsed {
			return out
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "conversation was not parsed in time")
	os.Exit(1)
	return conversationResponse{}
}

func buildForward(from, to, subject, body string) []byte {
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		strings.ReplaceAll(body, "\n", "\r\n"),
	}
	return []byte(strings.Join(headers, "\r\n"))
}

func mustDo(client *http.Client, method, url string, body io.Reader) *http.Response {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		panic(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		panic(fmt.Sprintf("request failed: %s %s: %s", method, url, string(b)))
	}
	return resp
}

func mustDecode(r io.Reader, v any) {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		panic(err)
	}
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
