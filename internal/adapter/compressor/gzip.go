package compressor

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

const Ext = ".gz"

type GzipCompressor struct {
	level int
}

func NewGzip() *GzipCompressor {
	return &GzipCompressor{level: gzip.BestCompression}
}

// Extension is appended to compressed file names.
func (g *GzipCompressor) Extension() string {
	return Ext
}

// Compress writes a gzip copy of sourcePath to destPath. destPath is removed
// if compression fails midway.
func (g *GzipCompressor) Compress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	return writeDest(destPath, func(w io.Writer) error {
		gzipWriter, err := gzip.NewWriterLevel(w, g.level)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		if _, err := io.Copy(gzipWriter, sourceFile); err != nil {
			gzipWriter.Close()
			return fmt.Errorf("failed to compress: %w", err)
		}
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to flush gzip stream: %w", err)
		}
		return nil
	})
}

func (g *GzipCompressor) Decompress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	return writeDest(destPath, func(w io.Writer) error {
		if _, err := io.Copy(w, gzipReader); err != nil {
			return fmt.Errorf("failed to decompress: %w", err)
		}
		return nil
	})
}

func writeDest(destPath string, fill func(w io.Writer) error) error {
	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}

	if err := fill(destFile); err != nil {
		destFile.Close()
		os.Remove(destPath)
		return err
	}
	if err := destFile.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to close dest file: %w", err)
	}
	return nil
}
