package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/achievement-registry-api/internal/search"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	"github.com/noah-isme/achievement-registry-api/pkg/config"
)

// parseReport is the printable form of an extraction.
type parseReport struct {
	Prompt        string          `json:"prompt" yaml:"prompt"`
	Clarification bool            `json:"clarification" yaml:"clarification"`
	Message       string          `json:"message,omitempty" yaml:"message,omitempty"`
	Strategy      search.Strategy `json:"strategy" yaml:"strategy"`
	Filters       *search.Filters `json:"filters,omitempty" yaml:"filters,omitempty"`
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "registryctl",
		Short:         "Operator tools for the achievement registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(newParseCmd(), newTokenCmd())
	return root
}

func newParseCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "parse <prompt>",
		Short: "Show the filters and search strategy the assistant derives from a prompt",
		Long: `Run the assistant's filter extractor without touching the store.

Examples:
  registryctl parse "show research papers for STU12345"
  registryctl parse "hackathon wins in 2024" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			result := search.Extract(prompt)
			report := parseReport{Prompt: prompt, Strategy: search.StrategyNone}
			if result.NeedsClarification() {
				report.Clarification = true
				report.Message = result.Message
			} else {
				filters := result.Filters
				report.Filters = &filters
				report.Strategy = search.ChooseStrategy(filters)
			}
			return render(cmd.OutOrStdout(), output, report)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret string
		issuer string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <principal>",
		Short: "Mint a development access token for a principal",
		Long: `Sign an HS256 access token accepted by the API.

Secret and issuer default to JWT_SECRET and JWT_ISSUER from the environment or .env file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" || issuer == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if secret == "" {
					secret = cfg.JWT.Secret
				}
				if issuer == "" {
					issuer = cfg.JWT.Issuer
				}
			}
			auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{
				AccessTokenSecret: secret,
				AccessTokenExpiry: ttl,
				Issuer:            issuer,
			})
			token, expiresAt, err := auth.IssueToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "token issuer (default JWT_ISSUER)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func render(out io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
