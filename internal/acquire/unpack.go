package acquire

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
)

// Unpack extracts the zip archive at archivePath into destDir, then
// recursively sets the owner-execute bit on every regular file under
// destDir, matching §4.4's "set u+x on all regular files" contract.
func Unpack(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return extensionerror.New(extensionerror.IoError, "open archive "+archivePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0700); err != nil {
		return extensionerror.New(extensionerror.IoError, "mkdir "+destDir, err)
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return extensionerror.Newf(extensionerror.IoError, "zip entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0700); err != nil {
				return extensionerror.New(extensionerror.IoError, "mkdir "+target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
			return extensionerror.New(extensionerror.IoError, "mkdir "+filepath.Dir(target), err)
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return chmodExecutableTree(destDir)
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return extensionerror.New(extensionerror.IoError, "open zip entry "+f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return extensionerror.New(extensionerror.IoError, "create "+target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return extensionerror.New(extensionerror.IoError, "extract "+target, err)
	}
	return nil
}

func chmodExecutableTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return extensionerror.New(extensionerror.IoError, "walk "+path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		mode := info.Mode() | 0100 // u+x
		if err := os.Chmod(path, mode); err != nil {
			return extensionerror.New(extensionerror.IoError, "chmod "+path, err)
		}
		return nil
	})
}
