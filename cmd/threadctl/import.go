package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.io/infrasutra/threadparse/internal/ingest"
	"github.io/infrasutra/threadparse/internal/metrics"
	"github.io/infrasutra/threadparse/internal/store"
	"github.io/infrasutra/threadparse/internal/worker"
)

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <mbox>",
		Short: "Store and parse every message of an mbox file",
		Long: `Read an mbox file, store each message as a conversation and parse it
right away. Messages without a plain text body are skipped.

Examples:
  threadctl import --db threads.db forwarded.mbox`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cfg, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open mbox: %w", err)
			}
			defer f.Close()

			logger := opts.logger(cmd)
			pool := worker.New(worker.Config{Expiry: cfg.Expiry}, db, nil, metrics.New(), logger)
			imported, skipped, err := importMbox(ctx, f, db, pool, logger, time.Now)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d conversations, skipped %d\n", imported, skipped)
			return nil
		},
	}
}

type conversationCreator interface {
	CreateConversation(ctx context.Context, c store.Conversation) error
}

type processor interface {
	Process(ctx context.Context, job worker.Job) error
}

func importMbox(ctx context.Context, r io.Reader, db conversationCreator, p processor, logger *slog.Logger, now func() time.Time) (imported, skipped int, err error) {
	reader := mbox.NewReader(r)
	for {
		msg, err := reader.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("read mbox: %w", err)
		}

		thread, err := ingest.ReadThread(msg)
		if err != nil {
			if !errors.Is(err, ingest.ErrNoText) {
				logger.Warn("skip unreadable mbox message", "error", err)
			}
			skipped++
			continue
		}

		conversation := store.Conversation{
			ID:        uuid.NewString(),
			Subject:   thread.Subject,
			Sender:    thread.Sender,
			Plain:     thread.Plain,
			Raw:       thread.Raw,
			Source:    store.SourceMbox,
			CreatedAt: now(),
		}
		if err := db.CreateConversation(ctx, conversation); err != nil {
			return imported, skipped, err
		}
		if err := p.Process(ctx, worker.Job{ConversationID: conversation.ID}); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}
