package utils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sys/unix"
)

// FileExists returns if the given path exists.
func FileExists(filePath string) (bool, fs.FileInfo) {
	stat, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, stat
}

// IsDir returns if the given file is directory.
func IsDir(fileInfo fs.FileInfo) bool {
	return fileInfo.Mode()&fs.ModeDir != 0
}

// IsRegularFile returns if the given path exists and is a regular file.
func IsRegularFile(filePath string) bool {
	exists, fileInfo := FileExists(filePath)
	return exists && fileInfo != nil && fileInfo.Mode().IsRegular()
}

// IsDirPath returns if the given path exists and is a directory.
func IsDirPath(filePath string) bool {
	exists, fileInfo := FileExists(filePath)
	return exists && fileInfo != nil && IsDir(fileInfo)
}

// IsWritable checks if the directory at the given path is writable.
// Important: This function uses the unix package, which only works on unix systems.
func IsWritable(path string) (bool, error) {
	if err := unix.Access(path, unix.W_OK); err != nil {
		return false, err
	}
	return true, nil
}

// IsDirAndWritable checks if the file is a directory and is writable.
func IsDirAndWritable(filePath string, fileInfo fs.FileInfo) (bool, error) {
	if dir := IsDir(fileInfo); !dir {
		return false, fmt.Errorf("given file path is not a directory: %s", filePath)
	}
	_, err := IsWritable(filePath)
	if err != nil {
		return false, fmt.Errorf("given file path is not writable: %v", err)
	}
	return true, nil
}

// SecureJoin joins the archive entry name to the base directory and rejects names
// whose cleaned path escapes the base directory.
func SecureJoin(baseDir string, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%s: illegal file path", name)
	}
	cleanBase := filepath.Clean(baseDir)
	target := filepath.Join(cleanBase, name)
	if target != cleanBase && !strings.HasPrefix(target, cleanBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: illegal file path", name)
	}
	return target, nil
}

// Unzip extracts all entries of the zip archive to the destination path.
// No file is written if any entry would escape the destination path.
func Unzip(archive *zip.Reader, destPath string) error {
	targets := make([]string, len(archive.File))
	for i, f := range archive.File {
		target, err := SecureJoin(destPath, f.Name)
		if err != nil {
			return err
		}
		targets[i] = target
	}

	for i, f := range archive.File {
		filePath := targets[i]
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(filePath, os.ModePerm); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := extractFile(f, filePath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, filePath string) error {
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dstFile, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer dstFile.Close()

	fileInArchive, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open file in archive: %w", err)
	}
	defer fileInArchive.Close()

	if _, err := io.Copy(dstFile, fileInArchive); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}

// AddFileToZip adds the file at filePath to the zip writer under the given entry name using deflate compression.
func AddFileToZip(writer *zip.Writer, filePath string, entryName string) error {
	src, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header: %w", err)
	}
	header.Name = filepath.ToSlash(entryName)
	header.Method = zip.Deflate

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write zip entry: %w", err)
	}
	return nil
}
