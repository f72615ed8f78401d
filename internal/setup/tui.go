// Package setup provides the terminal wizard that writes the initial yaml
// config and .env for a new paper-trading install.
package setup

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	doneStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)
)

type yamlLedger struct {
	StartingCash string `yaml:"starting_cash"`
	MaxResets    int    `yaml:"max_resets"`
	StateDir     string `yaml:"state_dir"`
}

type yamlConfig struct {
	Ledger  yamlLedger `yaml:"ledger"`
	WebAddr string     `yaml:"web_addr"`
}

// RunTUI launches the configuration wizard and writes config.yaml plus .env.
func RunTUI() error {
	var (
		startingCash    = "10000"
		maxResets       = "3"
		stateDir        = "./state"
		webAddr         = ":8080"
		finnhubKey      string
		alphavantageKey string
		confirm         bool
	)

	fmt.Println(headerStyle.Render("papertrader setup"))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting cash").
				Description("Paper money each fresh account begins with").
				Value(&startingCash).
				Validate(func(v string) error {
					d, err := decimal.NewFromString(v)
					if err != nil || d.LessThanOrEqual(decimal.Zero) {
						return errors.New("enter a positive number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Portfolio resets allowed").
				Value(&maxResets),
			huh.NewInput().
				Title("State directory").
				Description("Where the ledger blob and trade journal live").
				Value(&stateDir),
			huh.NewInput().
				Title("API listen address").
				Value(&webAddr),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Finnhub API key").
				Description("Primary quote source, free tier at finnhub.io").
				Value(&finnhubKey),
			huh.NewInput().
				Title("Alpha Vantage API key").
				Description("Fallback source, free tier at alphavantage.co").
				Value(&alphavantageKey),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config.yaml and .env?").
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		return errors.Wrap(err, "run setup form")
	}
	if !confirm {
		fmt.Println("setup aborted, nothing written")
		return nil
	}

	resets := 3
	if _, err := fmt.Sscanf(maxResets, "%d", &resets); err != nil || resets < 0 {
		return errors.Errorf("invalid resets value: %s", maxResets)
	}

	cfg := yamlConfig{
		Ledger: yamlLedger{
			StartingCash: startingCash,
			MaxResets:    resets,
			StateDir:     stateDir,
		},
		WebAddr: webAddr,
	}

	payload, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile("config.yaml", payload, 0o644); err != nil {
		return errors.Wrap(err, "write config.yaml")
	}

	env := fmt.Sprintf("FINNHUB_API_KEY=%s\nALPHAVANTAGE_API_KEY=%s\n", finnhubKey, alphavantageKey)
	if err := os.WriteFile(".env", []byte(env), 0o600); err != nil {
		return errors.Wrap(err, "write .env")
	}

	fmt.Println(doneStyle.Render("wrote config.yaml and .env — start with: papertrader --config config.yaml"))
	return nil
}
