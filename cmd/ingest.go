package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/akozyrev/hh-scout/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch resumes from hh.ru once and store them",
	Run: func(cmd *cobra.Command, _ []string) {
		runIngest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("position", "p", "", "position to search resumes for")
	ingestCmd.Flags().StringP("city", "c", "", "city to search resumes in")
	ingestCmd.Flags().IntP("limit", "n", 100, "maximum number of resumes to ingest")
	ingestCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before writing to the store")

	ingestCmd.MarkFlagRequired("position")
	ingestCmd.MarkFlagRequired("city")
}

func runIngest(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	position, _ := cmd.Flags().GetString("position")
	city, _ := cmd.Flags().GetString("city")
	limit, _ := cmd.Flags().GetInt("limit")

	if cmd.Flag("auto-approve").Value.String() == "false" {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Ingest up to %d resumes for %q in %q?", limit, position, city),
			Items: []string{PromptYes, PromptNo},
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

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

	summary, err := ingestor.Run(ctx, position, city, limit)
	if err != nil {
		logger.Fatal("ingestion failed", zap.Error(err))
	}

	logger.Info("done",
		zap.Int("fetched", summary.Fetched),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicate_links", summary.Links),
	)
}
