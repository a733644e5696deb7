package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"llm_compare/internal/models"
	"llm_compare/internal/multiclient"
)

// printer writes human readable output, colored unless --no-color is set
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	if noColor {
		color.NoColor = true
	}
	return &printer{w: w}
}

func sortedProviders[V any](m map[models.ProviderType]V) []models.ProviderType {
	out := make([]models.ProviderType, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Round prints every provider answer under a header naming the model used
func (p *printer) Round(round *models.Round) {
	fmt.Fprintf(p.w, "%s %s  %s\n\n",
		color.HiBlackString("round"), round.ID, color.HiBlackString("%dms", round.Duration.Milliseconds()))

	for _, provider := range sortedProviders(round.Responses) {
		resp := round.Responses[provider]
		header := fmt.Sprintf("%s (%s)", provider, round.Models[provider])

		if resp.IsError() {
			fmt.Fprintf(p.w, "%s %s\n", color.RedString("✗"), color.CyanString("%s", header))
			fmt.Fprintf(p.w, "  %s\n\n", color.RedString("%s", resp.ErrorMessage))
			continue
		}

		fmt.Fprintf(p.w, "%s %s %s\n", color.GreenString("✓"), color.CyanString("%s", header),
			color.HiBlackString("%d tokens, %dms", resp.TokenCount, resp.LatencyMS))
		fmt.Fprintln(p.w, indent(strings.TrimSpace(resp.Response), "  "))
		fmt.Fprintln(p.w)
	}
}

// Catalog prints the model list per provider, marking the current selection
func (p *printer) Catalog(catalog map[models.ProviderType][]string, current map[models.ProviderType]string) {
	for _, provider := range sortedProviders(catalog) {
		fmt.Fprintln(p.w, color.CyanString("%s", provider))
		list := catalog[provider]
		if len(list) == 0 {
			fmt.Fprintf(p.w, "  %s\n", color.HiBlackString("(no models)"))
			continue
		}
		for _, model := range list {
			if model == current[provider] {
				fmt.Fprintf(p.w, "  %s %s\n", color.GreenString("*"), model)
			} else {
				fmt.Fprintf(p.w, "    %s\n", model)
			}
		}
	}
}

func (p *printer) Keys(masked map[models.ProviderType]string) {
	if len(masked) == 0 {
		fmt.Fprintln(p.w, color.HiBlackString("no providers configured"))
		return
	}
	for _, provider := range sortedProviders(masked) {
		fmt.Fprintf(p.w, "%-13s %s\n", color.CyanString("%s", provider), masked[provider])
	}
}

func (p *printer) Providers(statuses []multiclient.ProviderStatus) {
	for _, s := range statuses {
		mark := color.HiBlackString("-")
		if s.Configured {
			mark = color.GreenString("✓")
		}
		fmt.Fprintf(p.w, "%s %-13s %-40s %s\n", mark, s.Type, s.CurrentModel, color.HiBlackString("%s", s.CredentialFormat))
	}
}

func (p *printer) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
