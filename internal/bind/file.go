package bind

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/TortugaLabs/ashlib/internal/check"
	"github.com/TortugaLabs/ashlib/internal/diag"
	"github.com/TortugaLabs/ashlib/internal/lang"
)

// FileOptions control how BindFile writes its result.
type FileOptions struct {
	Force  bool   // rewrite even when nothing changed
	DryRun bool   // report what would change without writing
	Backup string // when set, keep the previous content in path+Backup
}

// BindFile binds the file at path in place. It reports whether the file
// was (or, in a dry run, would have been) rewritten.
func (e *Engine) BindFile(path string, fo FileOptions) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return false, err
	}
	res, err := e.BindStream(f, path, filepath.Dir(path))
	_ = f.Close()
	if err != nil {
		return false, err
	}

	if e.opts.CheckSyntax {
		e.checkSyntax(path, res.Output)
	}

	if !res.Changed() && !fo.Force {
		return false, nil
	}
	e.log.Info("updating", "file", path)
	if fo.DryRun {
		return true, nil
	}

	if fo.Backup != "" {
		if err := backup(path, path+fo.Backup, info); err != nil {
			return false, fmt.Errorf("backup of %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(res.Output), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// backup replaces dst with a copy of src, keeping its mode and
// modification time.
func backup(src, dst string, info os.FileInfo) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (e *Engine) checkSyntax(path, output string) {
	l := lang.Detect(path, []byte(output))
	if l == nil {
		return
	}
	problems, err := check.Source(l, []byte(output))
	if err != nil {
		e.log.Warn("syntax check failed", "file", path, "err", err)
		return
	}
	for _, p := range problems {
		e.report.Report(diag.Diagnostic{
			File:    path,
			Line:    p.Line,
			Kind:    diag.Syntax,
			Message: p.String(),
		})
	}
}
