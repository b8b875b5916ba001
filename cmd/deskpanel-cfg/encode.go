package main

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deskpanel/deskpanel/internal/deploy"
	"github.com/deskpanel/deskpanel/internal/imagecodec"
	"github.com/deskpanel/deskpanel/internal/ui"
)

var encodeOutput string

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode images the way deploy does, without a device",
}

var encodeIconCmd = &cobra.Command{
	Use:   "icon <source>",
	Short: "Encode an icon as a device PNG",
	Example: `  deskpanel-cfg encode icon clock.svg -o clock.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(cmd, args[0], ".png", func(src string) (*imagecodec.Artifact, error) {
			p, err := loadProfile()
			if err != nil {
				return nil, err
			}
			return imagecodec.EncodeIcon(src, p.Display.IconWidth, p.Display.IconHeight)
		})
	},
}

var encodeBackgroundCmd = &cobra.Command{
	Use:   "background <source>",
	Short: "Encode a background as a device SJPG",
	Example: `  deskpanel-cfg encode background desk.jpg -o desk.sjpg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(cmd, args[0], ".sjpg", func(src string) (*imagecodec.Artifact, error) {
			p, err := loadProfile()
			if err != nil {
				return nil, err
			}
			return imagecodec.EncodeSplitStream(src, p.Display.Width, p.Display.Height)
		})
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the header of an encoded PNG or SJPG file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	encodeCmd.PersistentFlags().StringVarP(&encodeOutput, "output", "o", "", "Output file (default: sanitized source name in the current directory)")
	encodeCmd.AddCommand(encodeIconCmd, encodeBackgroundCmd)

	rootCmd.AddCommand(encodeCmd, inspectCmd)
}

func runEncode(cmd *cobra.Command, src, ext string, encode func(string) (*imagecodec.Artifact, error)) error {
	art, err := encode(src)
	if err != nil {
		return err
	}

	out := encodeOutput
	if out == "" {
		out = deploy.SanitizeFilename(src) + ext
	}
	if err := os.WriteFile(out, art.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"output": out,
			"format": art.Format,
			"width":  art.Width,
			"height": art.Height,
			"bytes":  len(art.Data),
		})
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Image encoded", map[string]string{
		"Output": out,
		"Format": string(art.Format),
		"Size":   fmt.Sprintf("%dx%d", art.Width, art.Height),
		"Bytes":  fmt.Sprintf("%d", len(art.Data)),
	})
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(args[0])) {
	case ".png":
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("not a PNG: %w", err)
		}
		rows = [][]string{
			{"Format", "PNG"},
			{"Size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)},
			{"Bytes", fmt.Sprintf("%d", len(data))},
		}
	default:
		s, err := imagecodec.ParseSJPG(data)
		if err != nil {
			return err
		}
		verr := s.Validate()
		if jsonOutput() {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"width":         s.Width,
				"height":        s.Height,
				"split_height":  s.SplitHeight,
				"frames":        s.TotalFrames,
				"frame_lengths": s.FrameLengths,
				"valid":         verr == nil,
			})
		}
		rows = [][]string{
			{"Format", "SJPG"},
			{"Size", fmt.Sprintf("%dx%d", s.Width, s.Height)},
			{"Split height", fmt.Sprintf("%d", s.SplitHeight)},
			{"Frames", fmt.Sprintf("%d", s.TotalFrames)},
		}
		for i, n := range s.FrameLengths {
			rows = append(rows, []string{fmt.Sprintf("  frame %d", i), fmt.Sprintf("%d bytes", n)})
		}
		if verr != nil {
			rows = append(rows, []string{"Problem", verr.Error()})
		}
	}

	if jsonOutput() {
		obj := make(map[string]string, len(rows))
		for _, r := range rows {
			obj[strings.ToLower(r[0])] = r[1]
		}
		return writeJSON(cmd.OutOrStdout(), obj)
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintPanel(filepath.Base(args[0]), ui.Table(rows))
	return nil
}
