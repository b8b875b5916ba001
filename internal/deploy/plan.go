package deploy

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/deskpanel/deskpanel/internal/imagecodec"
)

const (
	kindIcon       = "icon"
	kindBackground = "background"
)

// Plan is everything one run pushes to the display. It is built once by
// BuildPlan and must not be modified while a run is using it.
type Plan struct {
	ConfigJSON  string
	Icons       map[string][]byte // sanitized filename → PNG
	Backgrounds map[string][]byte // sanitized filename → SJPG

	// Warnings lists sources that could not be encoded. They are reported
	// alongside upload warnings at the end of a run.
	Warnings []Warning
}

// PlanInput describes the sources a plan is built from.
type PlanInput struct {
	ConfigJSON  string
	Icons       []string // source paths
	Backgrounds []string // source paths

	IconWidth, IconHeight int
	Width, Height         int
}

// BuildPlan validates the layout and encodes every source image. Images
// that fail to encode are left out and recorded as plan warnings; an
// invalid layout fails the whole plan.
func BuildPlan(in PlanInput) (*Plan, error) {
	if !json.Valid([]byte(in.ConfigJSON)) {
		return nil, ErrInvalidConfig
	}

	p := &Plan{
		ConfigJSON:  in.ConfigJSON,
		Icons:       make(map[string][]byte),
		Backgrounds: make(map[string][]byte),
	}

	used := make(map[string]bool)

	for _, src := range in.Icons {
		name := uniqueName(SanitizeFilename(src), ".png", used)
		art, err := imagecodec.EncodeIcon(src, in.IconWidth, in.IconHeight)
		if err != nil {
			p.Warnings = append(p.Warnings, Warning{Filename: name, Kind: kindIcon, Err: err})
			continue
		}
		p.Icons[name] = art.Data
	}

	for _, src := range in.Backgrounds {
		name := uniqueName(SanitizeFilename(src), ".sjpg", used)
		art, err := imagecodec.EncodeSplitStream(src, in.Width, in.Height)
		if err != nil {
			p.Warnings = append(p.Warnings, Warning{Filename: name, Kind: kindBackground, Err: err})
			continue
		}
		p.Backgrounds[name] = art.Data
	}

	return p, nil
}

// SanitizeFilename reduces a source path to its basename stem, keeping
// only ASCII letters, digits, '-' and '_'.
func SanitizeFilename(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}

// uniqueName appends _2, _3, ... to stem until stem+ext is unused.
func uniqueName(stem, ext string, used map[string]bool) string {
	name := stem + ext
	for n := 2; used[name]; n++ {
		name = stem + "_" + strconv.Itoa(n) + ext
	}
	used[name] = true
	return name
}

// IconNames returns the icon filenames in upload order.
func (p *Plan) IconNames() []string {
	return sortedKeys(p.Icons)
}

// BackgroundNames returns the background filenames in upload order.
func (p *Plan) BackgroundNames() []string {
	return sortedKeys(p.Backgrounds)
}

// Size returns the total payload size in bytes.
func (p *Plan) Size() int {
	n := len(p.ConfigJSON)
	for _, d := range p.Icons {
		n += len(d)
	}
	for _, d := range p.Backgrounds {
		n += len(d)
	}
	return n
}

func (p *Plan) String() string {
	return fmt.Sprintf("plan: %d icons, %d backgrounds, %d bytes", len(p.Icons), len(p.Backgrounds), p.Size())
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
