package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/akozyrev/hh-scout/internal/logger"
	"github.com/akozyrev/hh-scout/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultListenAddr = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hh-scout http api",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to serve the http api on (default is "+defaultListenAddr+")")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hh-scout api", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	s, err := newStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("connecting to the resume store", zap.Error(err))
	}

	ingestor, err := newIngestor(config, s, logger)
	if err != nil {
		logger.Fatal(
			"building the ingestor",
			zap.Error(err),
			zap.String("hint", "set HH_CLIENT_ID and HH_CLIENT_SECRET or the hh section in the configuration file"),
		)
	}

	ranker, err := newRanker(ctx, config, logger)
	if err != nil {
		logger.Fatal(
			"building the ranker",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or the ai.gemini section in the configuration file"),
		)
	}
	// A typed nil pointer would slip past the interface nil check in the
	// search handler, so only a built ranker is handed over.
	var srvRanker server.Ranker
	if ranker != nil {
		srvRanker = ranker
	} else {
		logger.Warn("ranking is disabled, the search endpoint will refuse requests")
	}

	srv := server.New(s, ingestor, srvRanker, logger)

	if config.Server != nil && config.Server.SearchLimit > 0 {
		srv.SearchLimit = config.Server.SearchLimit
	}

	listen := defaultListenAddr
	if config.Server != nil && config.Server.Listen != "" {
		listen = config.Server.Listen
	}

	if err := srv.Run(listen); err != nil {
		logger.Fatal("http api failed", zap.Error(err))
	}
}
