package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"newsrec/internal/client"
	"newsrec/internal/config"
	"newsrec/internal/logging"
	"newsrec/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, baseURL, user string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&baseURL, "url", "", "API base URL (overrides config)")
	flag.StringVar(&user, "user", "", "User id sent with feedback (overrides config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// the terminal belongs to the UI
	logging.Init(logging.Config{Level: "error", Output: io.Discard})

	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	if user != "" {
		cfg.Client.User = user
	}

	c := client.New(client.Config{
		BaseURL: cfg.Client.BaseURL,
		Timeout: time.Duration(cfg.Client.TimeoutSecs) * time.Second,
	})
	m := tui.New(c, cfg.Client.User, time.Duration(cfg.Client.TimeoutSecs)*time.Second)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
