package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.io/infrasutra/threadparse/internal/parser"
	"github.io/infrasutra/threadparse/internal/present"
)

type parsedMessage struct {
	parser.Message
	PrettySent string `json:"prettySent"`
}

type parseOutput struct {
	Subject  string          `json:"subject"`
	Messages []parsedMessage `json:"messages"`
}

func newParseCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Split a thread into messages and print them as JSON",
		Long: `Split a plain-text email thread into its messages, oldest first, and
print the result as JSON. Reads stdin when the file is "-" or omitted.

Examples:
  threadctl parse thread.txt --subject "Re: lunch"
  pbpaste | threadctl parse -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return writeParsed(cmd.OutOrStdout(), parser.ParseConversation(subject, text))
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject line of the thread")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func writeParsed(w io.Writer, conversation parser.Conversation) error {
	out := parseOutput{Subject: conversation.Subject, Messages: make([]parsedMessage, 0, len(conversation.Messages))}
	for _, m := range conversation.Messages {
		out.Messages = append(out.Messages, parsedMessage{Message: m, PrettySent: present.PrettyDate(m.Sent)})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
