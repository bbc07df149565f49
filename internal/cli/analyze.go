package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stratagem-ai/internal/app"
	"stratagem-ai/internal/attachment"
)

func newAnalyzeCmd(newModel ModelFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "analyze FILE",
		Short:   "Run the document analyzer on one file",
		Example: "  stratagemctl analyze board-deck.pdf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newModel(cmd.Context())
			if err != nil {
				return err
			}

			encoded := attachment.NewEncoder(cfg.Chat.MaxAttachmentBytes).EncodeAll(cmd.Context(), localFiles(args))
			if len(encoded) == 0 {
				return fmt.Errorf("could not read %s", args[0])
			}
			doc := encoded[0]
			if !attachment.IsDocument(doc) {
				return fmt.Errorf("%s (%s): %w", doc.Name, doc.Type, app.ErrNotDocument)
			}

			resp, err := app.NewAnalysisService(client).Analyze(cmd.Context(), doc.Name, doc.Data, doc.Type)
			if err != nil {
				return err
			}
			return printReply(cmd, resp.JSON())
		},
	}
}
