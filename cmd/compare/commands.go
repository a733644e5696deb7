package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"llm_compare/internal/models"
)

func askCmd() *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt to every configured provider",
		Long:  "Send a prompt to every configured provider. Without an argument the prompt is read from stdin. An empty prompt is sent as is.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(svc.Client.ConfiguredProviders()) == 0 {
				return errors.New("no providers configured, use 'llm-compare keys set'")
			}

			round := svc.Client.Dispatch(cmd.Context(), prompt, system)
			newPrinter(cmd.OutOrStdout()).Round(round)
			return nil
		},
	}

	cmd.Flags().StringVarP(&system, "system", "s", "", "System instructions sent with the prompt")
	return cmd
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func modelsCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models each configured provider offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := svc.Client.Models(cmd.Context(), refresh)
			if len(args) == 1 {
				provider, err := models.ParseProviderType(args[0])
				if err != nil {
					return err
				}
				catalog = map[models.ProviderType][]string{provider: catalog[provider]}
			}
			newPrinter(cmd.OutOrStdout()).Catalog(catalog, svc.Client.CurrentModels())
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch the lists again instead of using the cache")
	return cmd
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select PROVIDER MODEL",
		Short: "Choose the model used for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := models.ParseProviderType(args[0])
			if err != nil {
				return err
			}
			if err := svc.Client.SetCurrentModel(cmd.Context(), provider, args[1]); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).Success("%s now uses %s", provider, args[1])
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider credentials",
	}

	setCmd := &cobra.Command{
		Use:   "set PROVIDER VALUE",
		Short: "Store credentials for a provider (empty VALUE removes it)",
		Long: `Store credentials for a provider. Composite credentials use % between segments:

  AZURE_OPENAI  resourceName%apiKey
  YANDEX        folderId%apiKey
  BEDROCK       accessKeyId%secretAccessKey%sessionToken%region

Pass "" as VALUE to remove a provider.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := models.ParseProviderType(args[0])
			if err != nil {
				return err
			}
			results, persistErr := svc.Client.SetKeys(cmd.Context(), map[models.ProviderType]string{provider: args[1]})
			if err := results[provider]; err != nil {
				return err
			}
			if persistErr != nil {
				return persistErr
			}

			p := newPrinter(cmd.OutOrStdout())
			if args[1] == "" {
				p.Success("%s removed", provider)
			} else {
				p.Success("%s configured", provider)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show configured providers with masked credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			newPrinter(cmd.OutOrStdout()).Keys(svc.Client.MaskedKeys())
			return nil
		},
	}

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List every supported provider with its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			newPrinter(cmd.OutOrStdout()).Providers(svc.Client.Providers())
			return nil
		},
	}
}
