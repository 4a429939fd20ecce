package common

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Laisky/zap"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
)

var (
	Port         = flag.Int("port", 8000, "the listening port")
	PrintVersion = flag.Bool("version", false, "print version and exit")
	PrintHelp    = flag.Bool("help", false, "print help and exit")
	LogDir       = flag.String("log-dir", "", "specify the log directory")
)

func printHelp() {
	fmt.Println("bedrock-gateway " + Version + " - Anthropic/OpenAI translation gateway for AWS Bedrock.")
	fmt.Println("Usage: bedrock-gateway [--port <port>] [--log-dir <log directory>] [--version] [--help]")
}

func Init() {
	flag.Parse()

	if *PrintVersion {
		fmt.Println(Version)
		os.Exit(0)
	}

	if *PrintHelp {
		printHelp()
		os.Exit(0)
	}

	if *LogDir != "" {
		lg := logger.Logger.With(zap.String("log_dir", *LogDir))

		expanded, err := filepath.Abs(*LogDir)
		if err != nil {
			lg.Fatal("failed to get absolute log dir", zap.Error(err))
		}

		if err = os.MkdirAll(expanded, 0o777); err != nil {
			lg.Fatal("failed to create log dir", zap.Error(err))
		}

		logger.LogDir = expanded
		*LogDir = expanded
	}

	if !config.RequireAPIKey {
		logger.Logger.Warn("REQUIRE_API_KEY=false: every request runs unauthenticated; do not use in production")
	}
	if config.MasterAPIKey == "" {
		logger.Logger.Info("MASTER_API_KEY not set, master credential disabled")
	}
	if config.Environment == "development" {
		logger.Logger.Debug("ephemeral credential minted", zap.String("api_key", config.EphemeralAPIKey))
	}
}
