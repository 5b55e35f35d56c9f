package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/els_batch/app/els_batch/internal/server"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name = "els-batch"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "els_batch",
		Short:   "新发行 ELS 产品表格解析批处理",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&flagconf, "conf", "app/els_batch/configs/config.yaml", "config path, eg: --conf config.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(showCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动健康检查服务与定时任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := newBatch(flagconf)
			if err != nil {
				return err
			}
			defer cleanup()

			js, err := server.NewJobServer(b.jobs()...)
			if err != nil {
				return err
			}
			hs := server.NewHTTPServer(b.cfg.Server)

			logger := log.With(log.NewStdLogger(os.Stdout),
				"ts", log.DefaultTimestamp,
				"caller", log.DefaultCaller,
				"service.id", id,
				"service.name", Name,
				"service.version", Version,
			)
			app := kratos.New(
				kratos.ID(id),
				kratos.Name(Name),
				kratos.Version(Version),
				kratos.Metadata(map[string]string{}),
				kratos.Logger(logger),
				kratos.Server(hs, js),
			)
			return app.Run()
		},
	}
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "解析一次表格并写入数据库",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := newBatch(flagconf)
			if err != nil {
				return err
			}
			defer cleanup()
			return b.parse(cmd.Context())
		},
	}
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "下载一次表格与公示索引",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := newBatch(flagconf)
			if err != nil {
				return err
			}
			defer cleanup()
			return b.downloader.Run(cmd.Context())
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "查看已提交产品的摘要",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := newBatch(flagconf)
			if err != nil {
				return err
			}
			defer cleanup()
			return b.show(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}
