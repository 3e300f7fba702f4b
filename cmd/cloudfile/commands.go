package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cloudfile/internal/app"
	"cloudfile/internal/gateway"
	"cloudfile/internal/storage/object"
	"cloudfile/pkg/config"
	"cloudfile/pkg/metrics"
)

type cliOptions struct {
	configPath string
	adapter    string
}

// NewRootCommand 构造 cloudfile 命令树
func NewRootCommand() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "cloudfile",
		Short:         "Storage gateway and temporary-credential broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Config file")
	root.PersistentFlags().StringVarP(&opts.adapter, "adapter", "a", "", "Adapter name from config (default: gateway.default)")

	root.AddCommand(newUploadCommand(opts))
	root.AddCommand(newLinkCommand(opts))
	root.AddCommand(newCredentialCommand(opts))
	root.AddCommand(newMetaCommand(opts))
	root.AddCommand(newDownloadCommand(opts))
	root.AddCommand(newMetricsCommand())
	return root
}

// withGateway 加载配置、构造应用并在结束时关闭
func withGateway(ctx context.Context, opts *cliOptions, fn func(g *gateway.Gateway) error) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()
	g, err := a.Gateway(opts.adapter)
	if err != nil {
		return err
	}
	return fn(g)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newUploadCommand(opts *cliOptions) *cobra.Command {
	var (
		viaCredential bool
		dir           string
		partSize      int64
	)
	cmd := &cobra.Command{
		Use:   "upload <local-file> <key>",
		Short: "Upload a local file (key ending in / keeps the file name)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd.Context(), opts, func(g *gateway.Gateway) error {
				ctx := cmd.Context()
				switch {
				case partSize > 0:
					file := object.NewChunkUploadFile(args[0], args[1], object.ChunkConfig{PartSize: partSize})
					if err := g.UploadByChunks(ctx, file, g.NewPolicy(dir), nil); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), file.Key())
				case viaCredential:
					file := object.NewUploadFile(args[0], args[1])
					if err := g.UploadByCredential(ctx, file, g.NewPolicy(dir), nil); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), file.Key())
				default:
					key, err := g.Upload(ctx, object.NewUploadFile(args[0], args[1]), nil)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&viaCredential, "credential", false, "Upload through a temporary credential")
	cmd.Flags().StringVar(&dir, "dir", "", "Credential directory scope")
	cmd.Flags().Int64Var(&partSize, "part-size", 0, "Chunked upload part size in bytes (enables chunked mode)")
	return cmd
}

func newLinkCommand(opts *cliOptions) *cobra.Command {
	var (
		expires int64
		names   map[string]string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "link <path>...",
		Short: "Issue download links",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd.Context(), opts, func(g *gateway.Gateway) error {
				var o object.Options
				if noCache {
					o = object.Options{"cache": false}
				}
				links, err := g.GetLinks(cmd.Context(), args, names, expires, o)
				if len(links) > 0 {
					if perr := printJSON(cmd.OutOrStdout(), links); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&expires, "expires", 0, "Link lifetime in seconds (default: gateway.link_expires)")
	cmd.Flags().StringToStringVar(&names, "name", nil, "Download name per path, path=name")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the link cache")
	return cmd
}

func newCredentialCommand(opts *cliOptions) *cobra.Command {
	var (
		scoped  bool
		subOp   string
		ttl     int64
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "credential <dir>",
		Short: "Issue a temporary upload credential for a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd.Context(), opts, func(g *gateway.Gateway) error {
				policy := g.NewPolicy(args[0]).WithScoped(scoped).WithSubOperation(subOp)
				if ttl > 0 {
					policy.TTL = ttl
				}
				var o object.Options
				if noCache {
					o = object.Options{"cache": false}
				}
				cred, err := g.GetUploadTemporaryCredential(cmd.Context(), policy, o)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cred)
			})
		},
	}
	cmd.Flags().BoolVar(&scoped, "scoped", false, "Issue an STS scoped credential")
	cmd.Flags().StringVar(&subOp, "sub-op", "", "Sub-operation tag (list_objects, del_object, ...)")
	cmd.Flags().Int64Var(&ttl, "ttl", 0, "Credential lifetime in seconds (default: gateway.credential_ttl)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the credential cache")
	return cmd
}

func newMetaCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <path>...",
		Short: "Show object metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd.Context(), opts, func(g *gateway.Gateway) error {
				metas, err := g.GetMetas(cmd.Context(), args, nil)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), metas)
			})
		},
	}
}

func newDownloadCommand(opts *cliOptions) *cobra.Command {
	cfg := object.DefaultChunkDownloadConfig()
	cmd := &cobra.Command{
		Use:   "download <remote-path> <local-path>",
		Short: "Download an object in parallel chunks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd.Context(), opts, func(g *gateway.Gateway) error {
				if err := g.DownloadByChunks(cmd.Context(), args[0], args[1], cfg, nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), args[1])
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&cfg.PartSize, "part-size", cfg.PartSize, "Part size in bytes")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Parallel part downloads")
	cmd.Flags().IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "Retries per part")
	return cmd
}

func newMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print process metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return metrics.WritePrometheus(cmd.OutOrStdout())
		},
	}
}
