package provision

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"text/template"

	"github.com/oshokin/modsync/internal/domain/modpack"
	"github.com/oshokin/modsync/internal/logger"
)

const (
	// configMode is used for the launcher configuration.
	configMode os.FileMode = 0o644
	// scriptMode is used for the launch script.
	scriptMode os.FileMode = 0o755
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateData is what the embedded templates are rendered with.
type templateData struct {
	// Instance is the launcher instance to start.
	Instance string
	// Binary is the launcher executable name.
	Binary string
}

// writeCompanions writes the launcher configuration and the launch script
// if they do not exist yet. Existing files are left untouched.
func (p *Provisioner) writeCompanions(ctx context.Context) error {
	data := templateData{
		Instance: p.layout.Instance,
		Binary:   p.launcher.Binary,
	}

	files := []struct {
		template string
		path     string
		mode     os.FileMode
	}{
		{modpack.LauncherConfigFilename, p.layout.LauncherConfigPath(), configMode},
		{p.layout.LaunchScript, p.layout.LaunchScriptPath(), scriptMode},
	}

	for _, file := range files {
		written, err := writeIfAbsent(file.template, file.path, file.mode, data)
		if err != nil {
			return err
		}

		if written {
			logger.InfoKV(ctx, "Created from template", "path", file.path)
		}
	}

	return nil
}

// writeIfAbsent renders the named template into path unless path exists.
func writeIfAbsent(name, path string, mode os.FileMode, data templateData) (bool, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name+".tmpl")
	if err != nil {
		return false, fmt.Errorf("parse template %s: %w", name, err)
	}

	var rendered bytes.Buffer
	if err = tmpl.Execute(&rendered, data); err != nil {
		return false, fmt.Errorf("render template %s: %w", name, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err = file.Write(rendered.Bytes()); err != nil {
		_ = file.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	if err = file.Close(); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	return true, nil
}
