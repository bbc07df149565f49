package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stratagem-ai/internal/app"
	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/render"
	"stratagem-ai/internal/workspace"
)

func newAskCmd(newModel ModelFactory) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question, optionally with attached files",
		Example: `  stratagemctl ask "Should we expand into the DACH market?"
  stratagemctl ask "Evaluate vendor contract risk" -f contract.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && len(files) == 0 {
				return fmt.Errorf("nothing to ask: give a question or --file")
			}

			client, cfg, err := newModel(cmd.Context())
			if err != nil {
				return err
			}

			encoder := attachment.NewEncoder(cfg.Chat.MaxAttachmentBytes)
			attachments := encoder.EncodeAll(cmd.Context(), localFiles(files))
			if len(attachments) < len(files) {
				return fmt.Errorf("could not read %d of %d files", len(files)-len(attachments), len(files))
			}

			sessions := workspace.NewRegistry("", time.Hour)
			sess := sessions.Create()
			chat := app.NewChatService(sessions, client, nil, encoder)
			result, err := chat.SendMessage(cmd.Context(), app.SendMessageInput{
				SessionID:   sess.ID(),
				Content:     question,
				Attachments: attachments,
			})
			if err != nil {
				return err
			}
			return printReply(cmd, result.Messages[len(result.Messages)-1].Content)
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	return cmd
}

func printReply(cmd *cobra.Command, raw string) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		_, err := fmt.Fprintln(out, raw)
		return err
	}
	width, _ := cmd.Flags().GetInt("width")
	_, err := fmt.Fprint(out, render.NewTerminal(width).Reply(raw))
	return err
}

func localFiles(paths []string) []attachment.File {
	files := make([]attachment.File, 0, len(paths))
	for _, p := range paths {
		path := p
		files = append(files, attachment.File{
			Name: filepath.Base(path),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return files
}
