package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every link to stdout as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()
			return exportLinks(cmd.Context(), repo, cmd.OutOrStdout())
		},
	}
}

func importCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore links from an export, skipping codes or URLs already present",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return errors.Wrap(err, "open import file")
			}
			defer f.Close()

			repo, log, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			imported, skipped, err := importLinks(cmd.Context(), repo, f, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d links, skipped %d\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func exportLinks(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return errors.Wrap(err, "export failed")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

// importLinks inserts every link whose code and URL are both unused.
// Stored visit counts are kept as exported.
func importLinks(ctx context.Context, repo ports.LinkRepository, r io.Reader, log *zap.Logger) (int, int, error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, 0, errors.Wrap(err, "decode failed")
	}

	imported, skipped := 0, 0
	for i := range links {
		l := links[i]
		l.ID = 0

		taken, err := repo.CodeExists(ctx, l.Code)
		if err != nil {
			return imported, skipped, err
		}
		if taken {
			log.Info("skipping existing code", zap.String("code", l.Code))
			skipped++
			continue
		}
		if _, err := repo.GetByURL(ctx, l.URL); err == nil {
			log.Info("skipping existing url", zap.String("url", l.URL))
			skipped++
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, err
		}

		if err := repo.Create(ctx, &l); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				skipped++
				continue
			}
			return imported, skipped, errors.Wrapf(err, "import %s", l.Code)
		}
		imported++
	}
	return imported, skipped, nil
}
