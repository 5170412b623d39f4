package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"
)

//go:embed builtin
var builtin embed.FS

// LoadFromDirectory loads prompts from baseDir/prompts into the global registry,
// replacing embedded defaults that share an ID.
// Expected structure:
//
//	baseDir/
//	  prompts/
//	    extraction/
//	      balance_sheet.json
//	    analysis/
//	      analyst.json
func LoadFromDirectory(baseDir string) error {
	registry := Get()

	promptDir := filepath.Join(baseDir, "prompts")
	if _, err := os.Stat(promptDir); os.IsNotExist(err) {
		return fmt.Errorf("prompts directory not found: %s", promptDir)
	}

	before := registry.Count()
	if err := loadFS(registry, os.DirFS(promptDir)); err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	zap.L().Info("prompt library loaded",
		zap.String("dir", promptDir),
		zap.Int("prompts", registry.Count()),
		zap.Int("added", registry.Count()-before),
	)
	return nil
}

func loadEmbedded(r *Registry) error {
	sub, err := fs.Sub(builtin, "builtin")
	if err != nil {
		return err
	}
	return loadFS(r, sub)
}

// loadFS walks every .json file; the ID defaults to "<folder>.<file>".
func loadFS(r *Registry, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}

		if pt.ID == "" {
			pt.ID = strings.ReplaceAll(strings.TrimSuffix(p, ".json"), "/", ".")
		}
		if pt.Category == "" {
			pt.Category = detectCategory(p)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		return nil
	})
}

func detectCategory(p string) string {
	if dir := path.Dir(p); dir != "." {
		return strings.Split(dir, "/")[0]
	}
	return "default"
}

// RenderUserPrompt executes the user prompt template with the given variables.
func RenderUserPrompt(pt *PromptTemplate, vars map[string]interface{}) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}

	for _, v := range pt.Variables {
		if _, ok := vars[v.Name]; v.Required && !ok {
			return "", fmt.Errorf("prompt %s: missing required variable %s", pt.ID, v.Name)
		}
	}

	tmpl, err := template.New(pt.ID).
		Funcs(template.FuncMap{"join": strings.Join}).
		Option("missingkey=error").
		Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
