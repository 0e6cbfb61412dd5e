package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"bbsgate/internal/assets"
)

var initCmd = &cobra.Command{
	Use:   "init [config_name]",
	Short: "Initialize a new bbsgate configuration",
	Long:  "Creates a new configuration file and directory structure for a bbsgate board, prompting for details.",
	Args:  cobra.MaximumNArgs(1),
	Run:   runInit,
}

type ConfigTemplateData struct {
	BoardName       string
	PrettyBoardName string
	Description     string
	Hostname        string
	Website         string
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9_-]`)

func runInit(cmd *cobra.Command, args []string) {
	configName := "config"
	if len(args) > 0 {
		configName = args[0]
	}
	safeName := sanitizeFilename(configName)

	var data ConfigTemplateData
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Board Name").
				Value(&data.BoardName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("board name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Pretty Board Name").
				Description("Displayed in banners").
				Value(&data.PrettyBoardName),
			huh.NewInput().
				Title("Description").
				Value(&data.Description),
			huh.NewInput().
				Title("Hostname").
				Value(&data.Hostname),
			huh.NewInput().
				Title("Website").
				Value(&data.Website),
		),
	)

	if err := form.Run(); err != nil {
		log.Fatal(err)
	}

	configFile := safeName + ".yml"
	fmt.Printf("Initializing '%s' (config: %s)...\n", data.BoardName, configFile)

	for _, dir := range []string{"/data", "/keys", "/logs"} {
		path := safeName + dir
		if err := os.MkdirAll(path, 0o755); err != nil {
			fmt.Printf("Error creating directory %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Created directory: %s\n", path)
	}

	content, err := renderConfig(safeName, data)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(configFile, content, 0o644); err != nil {
		fmt.Printf("Error writing config file %s: %v\n", configFile, err)
		os.Exit(1)
	}

	fmt.Printf("Configuration file created: %s\n", configFile)
	fmt.Println("Initialization complete.")
}

// renderConfig fills the embedded template and points its paths at the
// directories created for safeName.
func renderConfig(safeName string, data ConfigTemplateData) ([]byte, error) {
	raw, err := assets.FS.ReadFile("config.yml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config template: %w", err)
	}

	text := strings.ReplaceAll(string(raw), "config/", safeName+"/")
	tmpl, err := template.New("config").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing config template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing config template: %w", err)
	}
	return buf.Bytes(), nil
}

func sanitizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	return unsafeFilename.ReplaceAllString(name, "")
}
