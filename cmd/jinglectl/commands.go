package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jingle-gift/internal/app"
	"jingle-gift/internal/catalog"
	"jingle-gift/internal/postcard"
	"jingle-gift/internal/scene"
)

func generateCmd(g *globals) *cobra.Command {
	var (
		req     postcard.Request
		out     string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a postcard and write the image to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.GeminiAPIKey == "" {
				return errors.New("GEMINI_API_KEY is required")
			}
			components, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel func()
				ctx, cancel = contextWithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := components.Postcards.Generate(ctx, req)
			if err != nil {
				return err
			}

			if res.Image != nil && out != "" {
				data, err := base64.StdEncoding.DecodeString(*res.Image)
				if err != nil {
					return fmt.Errorf("decode image: %w", err)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write image: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				res.Image = nil
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintf(w, "scene:    %s\n", res.Scene)
			fmt.Fprintf(w, "type:     %s (%s)\n", res.SceneType, res.SceneDescription)
			fmt.Fprintf(w, "greeting: %s\n", res.Greeting)
			switch {
			case res.Image != nil && out != "":
				fmt.Fprintf(w, "image:    %s (%s via %s)\n", out, res.ImageMimeType, res.ImageProvider)
			case res.Image != nil:
				fmt.Fprintf(w, "image:    generated via %s, not written\n", res.ImageProvider)
			default:
				fmt.Fprintln(w, "image:    none")
			}
			if res.ImageError != nil {
				fmt.Fprintf(w, "error:    %s\n", *res.ImageError)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.SenderName, "sender", "", "Sender name")
	f.StringVar(&req.SenderAvatar, "sender-avatar", "", "Sender photo URL")
	f.StringVar(&req.RecipientName, "recipient", "", "Recipient name")
	f.StringVar(&req.RecipientAvatar, "recipient-avatar", "", "Recipient photo URL")
	f.StringVarP(&req.Message, "message", "m", "", "Personal message")
	f.StringVarP(&out, "out", "o", "postcard.png", "Image output path (empty to skip)")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON without image data")
	f.DurationVar(&timeout, "timeout", 3*time.Minute, "Overall deadline")
	return cmd
}

func scenesCmd(g *globals) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "Inspect the scene catalog",
	}
	cmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Catalog file (defaults to SCENE_CATALOG_PATH or the built-in one)")

	loadCatalog := func() (*catalog.Catalog, error) {
		path := catalogPath
		if path == "" {
			path = os.Getenv("SCENE_CATALOG_PATH")
		}
		return catalog.Load(path)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every scene by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, c := range cat.Categories {
				fmt.Fprintf(w, "[%s] %s\n", c.Key, c.Name)
				for _, s := range c.Scenes {
					fmt.Fprintf(w, "  - %s\n", s)
				}
			}
			fmt.Fprintf(w, "%d scenes\n", len(cat.Scenes()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pick",
		Short: "Print one random scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			sel, err := scene.NewSelector(cat.Scenes(), scene.Options{})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sel.Pick())
			return nil
		},
	})

	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify a greeting into a scene type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := scene.Classify(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.SceneType, c.SceneDescription)
			return nil
		},
	}
}

func mailboxCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailbox",
		Short: "Read and edit mailboxes in Redis",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "send <recipient-fid> <ipfs-hash>",
		Short: "Deliver a postcard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMailbox(cmd, g, func(m mailboxSession) error {
				rec, err := m.store.Send(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "delivered %s to %s at %s\n",
					rec.IPFSHash, args[0], time.UnixMilli(rec.SentAt).UTC().Format(time.RFC3339))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <fid>",
		Short: "List a mailbox, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMailbox(cmd, g, func(m mailboxSession) error {
				records, err := m.store.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "IPFS HASH\tSENT\tREAD")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%t\n", r.IPFSHash, time.UnixMilli(r.SentAt).UTC().Format(time.RFC3339), r.Read)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "read <fid> <ipfs-hash>...",
		Short: "Mark postcards as read",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMailbox(cmd, g, func(m mailboxSession) error {
				n, err := m.store.MarkRead(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %d postcards as read\n", n)
				return nil
			})
		},
	})

	return cmd
}
