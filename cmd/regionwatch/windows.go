package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eveapm/regionwatch/internal/config"
	"github.com/eveapm/regionwatch/internal/diagnostics"
	"github.com/eveapm/regionwatch/internal/logging"
	"github.com/eveapm/regionwatch/internal/winapi"
)

func newWindowsCommand() *cobra.Command {
	var screenshotDir string

	cmd := &cobra.Command{
		Use:           "windows",
		Short:         "List detected client windows",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configPath)
			if err != nil {
				return err
			}
			registry := winapi.NewRegistry(settings.Capture.ProcessNames, logging.Nop())

			windows := registry.Refresh()
			if len(windows) == 0 {
				fmt.Println("No client windows found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHARACTER\tTITLE\tPID\tLAUNCHED")
			for _, win := range windows {
				character := win.Character
				if character == "" {
					character = "-"
				}
				launched := "-"
				if !win.Launched.IsZero() {
					launched = win.Launched.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", character, win.Title, win.PID, launched)
			}
			w.Flush()

			if screenshotDir != "" {
				return saveWindowScreenshots(screenshotDir, registry, windows)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&screenshotDir, "screenshot", "", "Save a capture of each listed window into this directory")
	return cmd
}

func saveWindowScreenshots(dir string, registry *winapi.Registry, windows []winapi.CharacterWindow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}
	for _, win := range windows {
		img, err := registry.CaptureWindowRect(win.Handle)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %q: %v\n", win.Title, err)
			continue
		}
		name := fmt.Sprintf("%s_%d.png", diagnostics.SanitizeRuleKey(win.Title), win.PID)
		path := filepath.Join(dir, name)
		if err := writePNG(path, img); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", path)
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
