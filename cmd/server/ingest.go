package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"
)

func ingestCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf|dir>...",
		Short: "Ingest PDF files without starting the HTTP server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			failed := 0
			for _, arg := range args {
				failed += ingestPath(cmd.Context(), arg, a.ingestService, cmd)
			}
			if failed > 0 {
				return fmt.Errorf("%d 个文件入库失败", failed)
			}
			return nil
		},
	}
}

// ingestPath 将单个 PDF 或目录下的所有 PDF 走标准上传流程入库，返回失败数量。
func ingestPath(ctx context.Context, root string, ingestSvc service.IngestService, cmd *cobra.Command) int {
	failed := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("ingest: 无法访问 %s: %v", path, err)
			failed++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// 目录中只处理 PDF；显式传入的文件交给 service 校验
		if path != root && !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if err := ingestFile(ctx, path, ingestSvc, cmd); err != nil {
			log.Warnf("ingest: %s 入库失败: %v", path, err)
			failed++
		}
		return nil
	})
	if walkErr != nil {
		log.Warnf("ingest: 遍历 %s 发生错误: %v", root, walkErr)
		failed++
	}
	return failed
}

func ingestFile(ctx context.Context, path string, ingestSvc service.IngestService, cmd *cobra.Command) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := ingestSvc.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> collection %q, %d chunks (%s)\n",
		summary.OriginalFilename, summary.CollectionName, summary.TotalChunks, summary.VectorStoreStatus)
	return nil
}
