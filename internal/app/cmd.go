package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hitoshi/imgtag/internal/config"
	"github.com/hitoshi/imgtag/internal/logger"
	"github.com/hitoshi/imgtag/internal/render"
	"github.com/hitoshi/imgtag/internal/wikitext"
)

const appName = "imgtag"

// Version はビルド時に -ldflags で上書きされる。
var Version = "dev"

// ErrRejected はcheckコマンドで拒否されたURLがあったことを示す。
var ErrRejected = errors.New("one or more image sources were rejected")

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。サブコマンドがない場合はserveとして扱う。
func Run(w io.Writer, args []string) error {
	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// NewRootCommand はimgtagのコマンドツリーを構築する。
// wはserveのログ出力先とコマンドの標準出力になる。
func NewRootCommand(w io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Image source admission control for wiki markup",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.serve(cmd, w)
		},
	}
	root.SetOut(w)
	root.SetErr(w)
	root.PersistentFlags().StringVar(&opts.policyFile, "policy", "", "Policy file path (YAML); overrides IMGTAG_POLICY_FILE")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.serve(cmd, w)
			},
		},
		newCheckCommand(opts),
		newFixSelfClosingCommand(),
		&cobra.Command{
			Use:   "healthcheck",
			Short: "Check /health of a running server",
			Args:  cobra.NoArgs,
			// フル初期化をスキップする軽量サブコマンド
			RunE: func(cmd *cobra.Command, args []string) error {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				return runHealthcheck(port)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return root
}

// rootOptions は全サブコマンド共通のフラグ。
type rootOptions struct {
	policyFile string
}

// apply はフラグで指定された値を環境変数由来の設定より優先させる。
func (o *rootOptions) apply(cfg *config.Config) {
	if o.policyFile != "" {
		cfg.SetPolicyFile(o.policyFile)
	}
}

func (o *rootOptions) serve(cmd *cobra.Command, w io.Writer) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	o.apply(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg)
}

// newCheckCommand はURLを現在のポリシーで判定するcheckコマンドを返す。
// 出力は1行1URLで "OK <src>" または "NG <reason> <src>"。
func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check URL...",
		Short: "Validate image URLs against the configured policy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.apply(cfg)
			settings, err := cfg.LoadSettings()
			if err != nil {
				return fmt.Errorf("failed to load policy: %w", err)
			}

			// 判定結果は標準出力に書くため、ログは警告以上をエラー出力へ流す
			log := logger.New(cmd.ErrOrStderr(), slog.LevelWarn)
			renderer := render.NewRenderer(render.StaticPolicy{P: settings.Policy}, nil, nil, nil, log)

			return checkSources(cmd.OutOrStdout(), renderer, args)
		},
	}
}

// checkSources は各URLの判定結果を書き出す。
// 1件でも拒否があればErrRejectedと、各URLの理由に対応するimgsrcのエラーを包んで返す。
func checkSources(w io.Writer, renderer *render.Renderer, sources []string) error {
	var errs []error
	for _, src := range sources {
		v := renderer.Validate(src)
		if v.OK() {
			fmt.Fprintf(w, "OK %s\n", v.Src)
			continue
		}
		errs = append(errs, v.Err())
		fmt.Fprintf(w, "NG %s %s\n", v.Reason, v.Src)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %d of %d: %w", ErrRejected, len(errs), len(sources), errors.Join(errs...))
	}
	return nil
}

// newFixSelfClosingCommand はwikitextのimgタグを自己終了形式に修正するコマンドを返す。
// ポリシーの fix_self_closing に関わらず常に修正する。
func newFixSelfClosingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-self-closing [FILE]",
		Short: "Rewrite unclosed <img> tags in wikitext as self-closing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			text, _ := wikitext.FixSelfClosing(string(data))
			if _, err := io.WriteString(cmd.OutOrStdout(), text); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		},
	}
}

// Execute はcmd/imgtagから呼ばれ、エラー時の終了コードを返す。
func Execute(ctx context.Context, stdout, stderr io.Writer, args []string) int {
	cmd := NewRootCommand(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
