package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"docqa-go/internal/handler"
	"docqa-go/pkg/log"
)

func serveCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			a, err := newApp(ctx, cfg, true)
			cancel()
			if err != nil {
				log.Error("初始化依赖失败", err)
				return err
			}
			defer a.close()
			return a.serve()
		},
	}
}

// serve 启动 HTTP 服务器并实现优雅停机。
func (a *app) serve() error {
	gin.SetMode(a.cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterDeps{
		UserService:      a.userService,
		IngestService:    a.ingestService,
		QueryService:     a.queryService,
		Metrics:          a.metrics,
		ProtectDocuments: a.cfg.Server.ProtectDocuments,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Error("HTTP 服务监听失败", err)
		return err
	case <-quit:
	}
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
		return err
	}
	log.Info("服务已优雅关闭")
	return nil
}
