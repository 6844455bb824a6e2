package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/clause-rag/config"
	"github.com/fyerfyer/clause-rag/internal/app"
	"github.com/fyerfyer/clause-rag/internal/services"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "askdoc",
	Short: "Answer questions about policy documents",
	Long: `Answers natural-language questions against one or more documents.
Documents are split into clauses, the most relevant clauses are retrieved
with TF-IDF (sparse) or embeddings (dense), and a language model answers
from those clauses only.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug/info/warn/error)")
}

// buildQA 按配置创建问答流程，测试中可替换
var buildQA = func() (*services.QAService, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Log.Level = logLevel
	cfg.Log.File = ""

	a, err := app.NewQA(cfg, app.SetupLogger(cfg.Log))
	if err != nil {
		return nil, err
	}
	return a.QA, nil
}

// documentSources 文档来源：本地文件与URL
type documentSources struct {
	files []string
	urls  []string
}

func (d *documentSources) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&d.files, "file", "f", nil, "local document path (repeatable)")
	cmd.Flags().StringSliceVarP(&d.urls, "url", "u", nil, "document URL (repeatable)")
}

func (d *documentSources) empty() bool {
	return len(d.files) == 0 && len(d.urls) == 0
}

// load 读取全部文档并拼接正文，本地文件在前
func (d *documentSources) load(cmd *cobra.Command, qa *services.QAService) (string, error) {
	if d.empty() {
		return "", errors.New("at least one --file or --url is required")
	}
	loader := qa.Loader()
	if loader == nil {
		return "", errors.New("document loader is not configured")
	}

	fromFiles, err := loader.LoadFiles(cmd.Context(), d.files)
	if err != nil {
		return "", err
	}
	fromURLs, err := loader.Load(cmd.Context(), d.urls)
	if err != nil {
		return "", err
	}
	return fromFiles + fromURLs, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
