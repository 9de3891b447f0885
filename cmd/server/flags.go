package main

import (
	"github.com/CageChen/filedesk/internal/config"
	"github.com/urfave/cli/v2"
)

// serverFlags lists the command line flags. Flags only override the
// configuration when set, so file values survive unset flags.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to a YAML config file",
			EnvVars: []string{"FILEDESK_CONFIG"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "port to listen on",
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:    "mode",
			Usage:   "deployment mode; anything other than production runs as development",
			EnvVars: []string{"FILEDESK_MODE", "NODE_ENV"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "storage backend (filesystem, memory, object)",
			EnvVars: []string{"FILEDESK_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "uploads-dir",
			Usage:   "directory for the filesystem backend",
			EnvVars: []string{"UPLOADS_DIR"},
		},
		&cli.BoolFlag{
			Name:    "watch",
			Usage:   "push changes to the uploads directory to browsers",
			EnvVars: []string{"FILEDESK_WATCH"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level (debug, info, warn, error)",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log format (text, json)",
			EnvVars: []string{"LOG_FORMAT"},
		},

		// Uploads

		&cli.IntFlag{
			Name:  "max-files",
			Usage: "maximum number of files per upload",
		},
		&cli.Int64Flag{
			Name:  "max-file-size",
			Usage: "maximum size of one uploaded file in bytes",
		},

		// Language model

		&cli.StringFlag{
			Name:    "llm-provider",
			Usage:   "language model provider (openai, deepseek, claude, ollama)",
			EnvVars: []string{"LLM_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "llm-api-key",
			Usage:   "language model API key",
			EnvVars: []string{"LLM_API_KEY", "OPENAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "llm-model",
			Usage:   "language model name",
			EnvVars: []string{"LLM_MODEL", "OPENAI_MODEL"},
		},
		&cli.StringFlag{
			Name:    "llm-base-url",
			Usage:   "language model API base URL",
			EnvVars: []string{"LLM_BASE_URL"},
		},
		&cli.DurationFlag{
			Name:    "llm-timeout",
			Usage:   "timeout for one language model call",
			EnvVars: []string{"LLM_TIMEOUT"},
		},

		// Object store

		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "s3 endpoint",
			EnvVars: []string{"S3_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "s3 bucket",
			EnvVars: []string{"S3_BUCKET"},
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Usage:   "s3 access key",
			EnvVars: []string{"AWS_ACCESS_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Usage:   "s3 secret key",
			EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Usage:   "s3 region",
			EnvVars: []string{"S3_REGION"},
		},
		&cli.BoolFlag{
			Name:    "s3-use-ssl",
			Usage:   "use https for the s3 endpoint",
			EnvVars: []string{"S3_USE_SSL"},
		},
	}
}

// applyFlags overlays the flags that were set onto cfg.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("mode") {
		cfg.Mode = c.String("mode")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("uploads-dir") {
		cfg.UploadsDir = c.String("uploads-dir")
	}
	if c.IsSet("watch") {
		cfg.Watch = c.Bool("watch")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("max-files") {
		cfg.Upload.MaxFiles = c.Int("max-files")
	}
	if c.IsSet("max-file-size") {
		cfg.Upload.MaxFileSize = c.Int64("max-file-size")
	}
	if c.IsSet("llm-provider") {
		cfg.LLM.Provider = c.String("llm-provider")
	}
	if c.IsSet("llm-api-key") {
		cfg.LLM.APIKey = c.String("llm-api-key")
	}
	if c.IsSet("llm-model") {
		cfg.LLM.Model = c.String("llm-model")
	}
	if c.IsSet("llm-base-url") {
		cfg.LLM.BaseURL = c.String("llm-base-url")
	}
	if c.IsSet("llm-timeout") {
		cfg.LLM.Timeout = c.Duration("llm-timeout")
	}
	if c.IsSet("s3-endpoint") {
		cfg.ObjectStore.Endpoint = c.String("s3-endpoint")
	}
	if c.IsSet("s3-bucket") {
		cfg.ObjectStore.Bucket = c.String("s3-bucket")
	}
	if c.IsSet("s3-access-key") {
		cfg.ObjectStore.AccessKey = c.String("s3-access-key")
	}
	if c.IsSet("s3-secret-key") {
		cfg.ObjectStore.SecretKey = c.String("s3-secret-key")
	}
	if c.IsSet("s3-region") {
		cfg.ObjectStore.Region = c.String("s3-region")
	}
	if c.IsSet("s3-use-ssl") {
		cfg.ObjectStore.UseSSL = c.Bool("s3-use-ssl")
	}
}
