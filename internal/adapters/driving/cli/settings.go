package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the classification model, embeddings, person
detection, pipeline tuning and storage.

Settings live in config.toml under the config directory. MENTIONS_* environment
variables override them for a single run without being saved.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the LLM, search mode and embeddings.`,
	RunE:  runSettingsWizard,
}

var settingsModeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Set search mode",
	Long: `Set the default search mode.

Available modes:
  text     - Keyword match over block text (no setup required)
  semantic - Embedding similarity (requires an embedding provider and 'mentions index')`,
	RunE: runSettingsMode,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider for semantic search.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long: `Configure the LLM provider used for boundary, block and opinion
classification. The strong model is used for block segmentation.`,
	RunE: runSettingsLLM,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set one setting by its dot-notation key, for example:

  mentions settings set pipeline.batch_size 16
  mentions settings set storage.backend redis

Run 'mentions settings keys' for the full list.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, k := range services.SettingKeys() {
			cmd.Println(k)
		}
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsModeCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(headerStyle.Render("Current Settings"))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	cmd.Printf("  Strong model: %s\n", settings.LLM.ModelFor(domain.StrengthStrong))
	printProviderAccess(cmd, settings.LLM.Provider, settings.LLM.BaseURL, settings.LLM.APIKey)
	printStatus(cmd, settings.LLM.IsConfigured())
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	printProviderAccess(cmd, settings.Embedding.Provider, settings.Embedding.BaseURL, settings.Embedding.APIKey)
	printStatus(cmd, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[NER]")
	cmd.Printf("  Provider: %s\n", settings.NER.Provider)
	if settings.NER.Provider == domain.NERProviderHTTP {
		cmd.Printf("  Base URL: %s\n", settings.NER.BaseURL)
	}
	cmd.Printf("  Batch size: %d\n", settings.NER.BatchSize)
	cmd.Println()

	p := settings.Pipeline
	cmd.Println("[Pipeline]")
	cmd.Printf("  Window: %d chars, at least %d utterances\n", p.WindowChars, p.MinWindowUtterances)
	cmd.Printf("  QA confidence floor: %.2f\n", p.QAConfidenceFloor)
	cmd.Printf("  Block window: %d chars\n", p.BlockWindowChars)
	cmd.Printf("  Opinion batches: %d blocks, %d in flight, %d chars max\n", p.BatchSize, p.Concurrency, p.MaxTextLength)
	cmd.Printf("  Rate limit: %.1f req/s\n", p.RequestsPerSecond)
	cmd.Printf("  Retries: %d attempts, %s to %s backoff, timeout %s\n", p.MaxAttempts, p.BaseDelay, p.MaxDelay, p.CallTimeout)
	if p.VocabularyFile != "" {
		cmd.Printf("  Vocabulary: %s\n", p.VocabularyFile)
	}
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Opinion ledger: %s\n", settings.Storage.Backend)
	cmd.Printf("  Redis: %s\n", settings.Storage.RedisAddr)
	cmd.Printf("  Exports: %s\n", settings.Storage.ExportDir)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Mode: %s\n", settings.Search.Mode.Description())
	cmd.Printf("  Limit: %d\n", settings.Search.Limit)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(warnStyle.Render(fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'mentions settings wizard' to fix configuration issues.")
	} else {
		cmd.Println(okStyle.Render("Configuration is valid."))
	}

	return nil
}

func printProviderAccess(cmd *cobra.Command, provider domain.AIProvider, baseURL, apiKey string) {
	if provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
}

func printStatus(cmd *cobra.Command, configured bool) {
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("Mentions Settings Wizard")
	cmd.Println("========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: LLM Provider
	cmd.Println("Step 1: Configure LLM Provider")
	cmd.Println("------------------------------")
	cmd.Println("The pipeline classifies boundaries, blocks and opinions with an LLM.")
	cmd.Println()
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	// Step 2: Search Mode
	cmd.Println("Step 2: Select Search Mode")
	cmd.Println("--------------------------")
	modes := domain.AllSearchModes()
	for i, mode := range modes {
		cmd.Printf("  %d. %s\n", i+1, mode.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	modeIdx := parseChoice(input, len(modes), 1)
	selectedMode := modes[modeIdx-1]

	if err := settingsService.SetSearchMode(selectedMode); err != nil {
		return fmt.Errorf("failed to set search mode: %w", err)
	}
	cmd.Printf("Set search mode to: %s\n\n", selectedMode.Description())

	// Step 3: Embedding Provider (if needed)
	if selectedMode.RequiresEmbedding() {
		cmd.Println("Step 3: Configure Embedding Provider")
		cmd.Println("------------------------------------")
		cmd.Println("Semantic search needs an embedding provider.")
		cmd.Println()

		if err := configureEmbeddingProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Step 3: Embedding Provider (skipped)")
		cmd.Println("------------------------------------")
		cmd.Println("Not required for text search.")
		cmd.Println()
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Println(warnStyle.Render(fmt.Sprintf("Warning: %v", err)))
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsMode(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Select Search Mode")
	cmd.Println("------------------")
	modes := domain.AllSearchModes()
	for i, mode := range modes {
		cmd.Printf("  %d. %s\n", i+1, mode.Description())
	}
	cmd.Print("\nEnter choice: ")
	input := readLine(reader)
	idx := parseChoice(input, len(modes), 0)
	if idx == 0 {
		return errors.New("invalid selection")
	}

	selectedMode := modes[idx-1]
	if err := settingsService.SetSearchMode(selectedMode); err != nil {
		return fmt.Errorf("failed to set search mode: %w", err)
	}

	cmd.Printf("Search mode set to: %s\n", selectedMode.Description())

	if selectedMode.RequiresEmbedding() {
		settings, _ := settingsService.Get() //nolint:errcheck // Best-effort check
		if settings != nil && !settings.Embedding.IsConfigured() {
			cmd.Println("\nNote: This mode requires an embedding provider.")
			cmd.Println("Run 'mentions settings embedding' to configure.")
		}
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	shown := value
	if strings.HasSuffix(key, "api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	selectedProvider, model := selectProviderModel(cmd, reader, providers, domain.DefaultEmbeddingModels())

	apiKey, err := promptAPIKey(cmd, reader, selectedProvider)
	if err != nil {
		return err
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	selectedProvider, model := selectProviderModel(cmd, reader, providers, domain.DefaultLLMModels())

	defaultStrong := domain.DefaultStrongModels()[selectedProvider]
	if defaultStrong == "" {
		defaultStrong = model
	}
	cmd.Printf("Enter strong model for block segmentation [%s]: ", defaultStrong)
	strongModel := readLine(reader)
	if strongModel == "" {
		strongModel = defaultStrong
	}

	apiKey, err := promptAPIKey(cmd, reader, selectedProvider)
	if err != nil {
		return err
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, strongModel, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s, strong %s)\n\n", selectedProvider.Description(), model, strongModel)
	return nil
}

// Helper functions.

func selectProviderModel(
	cmd *cobra.Command,
	reader *bufio.Reader,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) (domain.AIProvider, string) {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	provider := providers[idx-1]

	defaultModel := defaults[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}
	return provider, model
}

func promptAPIKey(cmd *cobra.Command, reader *bufio.Reader, provider domain.AIProvider) (string, error) {
	if !provider.RequiresAPIKey() {
		return "", nil
	}
	cmd.Print("Enter API key: ")
	apiKey := readPassword(cmd.InOrStdin(), reader)
	cmd.Println()
	if apiKey == "" {
		return "", errors.New("API key is required for this provider")
	}
	return apiKey, nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal, falling back to
// a plain line read.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
