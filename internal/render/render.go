// Package render turns scan inputs into page images in scan order. Plain
// image files decode to one page each; PDFs contribute one page per
// embedded scan image, extracted via pdfcpu.
package render

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Page is one rasterized scanned page.
type Page struct {
	Image  image.Image
	Source string // originating file
	Index  int    // position in overall scan order, 1-based
}

// IsSupportedImage reports whether the path looks like a decodable scan image.
func IsSupportedImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// Pages expands the input files into rasterized pages, preserving order.
// The grading session tracker depends on this order: page n's meaning is
// decided relative to page n-1.
func Pages(paths []string) ([]Page, error) {
	var out []Page
	for _, p := range paths {
		switch {
		case strings.EqualFold(filepath.Ext(p), ".pdf"):
			imgs, err := extractPDFPages(p)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", p, err)
			}
			for _, img := range imgs {
				out = append(out, Page{Image: img, Source: p, Index: len(out) + 1})
			}
		case IsSupportedImage(p):
			img, err := imaging.Open(p)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", p, err)
			}
			out = append(out, Page{Image: img, Source: p, Index: len(out) + 1})
		default:
			return nil, fmt.Errorf("unsupported input %s", p)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no pages in input")
	}
	return out, nil
}

// extractPDFPages extracts the scan image of each PDF page using pdfcpu's
// extract functionality, returned in page order. Pages without an embedded
// image are skipped; scanned answer sheets carry exactly one per page.
func extractPDFPages(filename string) ([]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "scanmark-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(filename, tempDir, nil, nil); err != nil {
		return nil, fmt.Errorf("extract images from pdf: %w", err)
	}

	byPage := make(map[int]image.Image)
	err = filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		pageNum, perr := parsePageFromFilename(info.Name())
		if perr != nil {
			return nil // not a page image
		}
		if _, seen := byPage[pageNum]; seen {
			return nil // first image per page wins
		}
		img, lerr := loadImageFile(path)
		if lerr != nil {
			return nil // skip unreadable images
		}
		byPage[pageNum] = img
		return nil
	})
	if err != nil {
		return nil, err
	}

	pages := make([]int, 0, len(byPage))
	for n := range byPage {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	out := make([]image.Image, 0, len(pages))
	for _, n := range pages {
		out = append(out, byPage[n])
	}
	return out, nil
}

func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: reading files pdfcpu just wrote
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	img, _, err := image.Decode(file)
	return img, err
}

// parsePageFromFilename extracts the page number from pdfcpu's extracted
// filename format: page_<num>_image_<idx>.<ext> (older releases drop the
// "page_" prefix, hence the second form <name>_<num>_...).
func parsePageFromFilename(filename string) (int, error) {
	parts := strings.Split(filename, "_")
	for i, part := range parts {
		if part == "page" && i+1 < len(parts) {
			return strconv.Atoi(parts[i+1])
		}
	}
	if len(parts) >= 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("not a page image filename")
}
