package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pet-persona/internal/config"
	"pet-persona/internal/conversation"
	"pet-persona/internal/retrieval"
	"pet-persona/internal/service"
	"pet-persona/internal/traits"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "cli_chat",
	Short:         "Local tools for pet personas",
	Long:          `Scores text, classifies intents, checks safety and chats with an in-memory pet persona.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service events to stderr")
	rootCmd.AddCommand(scoreCmd, classifyCmd, checkCmd, chatCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if verbose {
		return zap.NewExample()
	}
	return zap.NewNop()
}

// newPersona arma el servicio completo sobre almacenes en memoria.
func newPersona(cfg *config.Config, logger *zap.Logger) (*service.PersonaService, error) {
	catalog, lexicon, err := traits.Load(cfg.TraitsCatalogPath, cfg.TraitsLexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load trait data: %w", err)
	}
	scorer, err := traits.NewScorer(catalog, lexicon)
	if err != nil {
		return nil, fmt.Errorf("build scorer: %w", err)
	}
	voice, err := conversation.DefaultVoice()
	if err != nil {
		return nil, fmt.Errorf("load voice data: %w", err)
	}
	stack := service.MemoryStack(retrieval.MemoryFactory(retrieval.NewHashEmbedder(cfg.EmbeddingDimensions)))
	opts := service.DefaultAssembleOptions()
	opts.EvidenceK = cfg.RetrievalTopK
	opts.MemoryMaxTurns = cfg.MemoryMaxTurns
	opts.MemorySummarizeAfter = cfg.MemorySummarizeAfter
	return service.Assemble(stack, scorer, voice, opts, logger)
}

func loadPersona() (*service.PersonaService, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return newPersona(cfg, newLogger())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinArgs(args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	return text, nil
}

var scoreCmd = &cobra.Command{
	Use:   "score [text...]",
	Short: "Score personality traits in a text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := joinArgs(args)
		if err != nil {
			return err
		}
		persona, err := loadPersona()
		if err != nil {
			return err
		}
		return printJSON(persona.ScoreText(text))
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Classify the intent of a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := joinArgs(args)
		if err != nil {
			return err
		}
		persona, err := loadPersona()
		if err != nil {
			return err
		}
		return printJSON(persona.ClassifyIntent(text))
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [text...]",
	Short: "Run the safety checks over a text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := joinArgs(args)
		if err != nil {
			return err
		}
		persona, err := loadPersona()
		if err != nil {
			return err
		}
		return printJSON(persona.CheckSafety(text))
	},
}

var tokenClient string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token pair signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		tokens := service.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), nil)
		pair, err := tokens.GeneratePair(cmd.Context(), tokenClient)
		if err != nil {
			return err
		}
		return printJSON(pair)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenClient, "client", "cli", "client id embedded in the token")
}
