package main

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DataFile is a yearly cutoff CSV and where to fetch it.
type DataFile struct {
	Year int
	Name string
	URL  string
}

// dataURLFor expands the configured data URL for one year. A URL with a
// {year} placeholder is used as a template, anything else is a base
// directory holding <year>.csv.
func dataURLFor(baseURL string, year int) string {
	if strings.Contains(baseURL, "{year}") {
		return strings.ReplaceAll(baseURL, "{year}", strconv.Itoa(year))
	}
	return strings.TrimRight(baseURL, "/") + fmt.Sprintf("/%d.csv", year)
}

// CheckDataFiles lists the yearly CSVs missing from the data directory.
func CheckDataFiles(dataDir, baseURL string) []DataFile {
	var missing []DataFile
	for _, year := range cutoffYears {
		name := fmt.Sprintf("%d.csv", year)
		if _, err := os.Stat(filepath.Join(TrendsDir(dataDir), name)); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, DataFile{Year: year, Name: name, URL: dataURLFor(baseURL, year)})
		}
	}
	return missing
}

// GetFileSize gets the size of a file from URL using HEAD request
func GetFileSize(ctx context.Context, client *http.Client, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status: %s", resp.Status)
	}
	return resp.ContentLength, nil
}

// PromptUserForDownload asks whether to download the missing files.
func PromptUserForDownload(in io.Reader, out io.Writer, missing []DataFile) bool {
	if len(missing) == 0 {
		return false
	}

	fmt.Fprintln(out, "\n⚠️  Missing cutoff files:")
	for _, file := range missing {
		fmt.Fprintf(out, "   - %s (%s)\n", file.Name, file.URL)
	}
	fmt.Fprint(out, "\nWould you like to download them now? (y/N): ")

	var response string
	fmt.Fscanln(in, &response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// DownloadFileWithProgress downloads url into path, printing progress to out.
func DownloadFileWithProgress(ctx context.Context, client *http.Client, out io.Writer, path, url string, fileIndex, totalFiles int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	counter := &ProgressCounter{
		Total:      resp.ContentLength,
		Name:       path,
		FileIndex:  fileIndex,
		TotalFiles: totalFiles,
		out:        out,
	}
	_, err = io.Copy(f, io.TeeReader(resp.Body, counter))
	fmt.Fprintln(out)
	return err
}

// ProgressCounter counts bytes as they're written and displays progress
type ProgressCounter struct {
	Total      int64
	Current    int64
	Name       string
	FileIndex  int
	TotalFiles int
	out        io.Writer
}

func (pc *ProgressCounter) Write(p []byte) (int, error) {
	n := len(p)
	pc.Current += int64(n)

	currentKB := pc.Current / 1024
	if pc.Total > 0 {
		fmt.Fprintf(pc.out, "\r   Downloading %s... %.1f%% (%d/%d KB) [%d/%d]",
			filepath.Base(pc.Name),
			float64(pc.Current)/float64(pc.Total)*100,
			currentKB,
			pc.Total/1024,
			pc.FileIndex,
			pc.TotalFiles)
	} else {
		fmt.Fprintf(pc.out, "\r   Downloading %s... %d KB [%d/%d]",
			filepath.Base(pc.Name),
			currentKB,
			pc.FileIndex,
			pc.TotalFiles)
	}
	return n, nil
}

// UnzipFile extracts the CSV named want from a zip archive into dest.
func UnzipFile(src, want, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Base(f.Name), want) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		outFile, err := os.Create(filepath.Join(dest, want))
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(outFile, rc)
		outFile.Close()
		rc.Close()
		return err
	}
	return fmt.Errorf("%s not found in %s", want, filepath.Base(src))
}

// DownloadDataFiles fetches every missing yearly CSV into cutoff_trends/.
// Zip URLs are unpacked.
func DownloadDataFiles(ctx context.Context, client *http.Client, out io.Writer, dataDir string, missing []DataFile) error {
	trendsDir := TrendsDir(dataDir)
	if err := os.MkdirAll(trendsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempDir, err := os.MkdirTemp(dataDir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	fmt.Fprintln(out, "\n📥 Downloading cutoff files...")
	for i, file := range missing {
		tmpPath := filepath.Join(tempDir, filepath.Base(file.URL))
		if err := DownloadFileWithProgress(ctx, client, out, tmpPath, file.URL, i+1, len(missing)); err != nil {
			if logger != nil {
				logger.Error("Cutoff download failed", zap.String("url", file.URL), zap.Error(err))
			}
			return fmt.Errorf("failed to download %s: %w", file.URL, err)
		}

		if strings.HasSuffix(strings.ToLower(file.URL), ".zip") {
			if err := UnzipFile(tmpPath, file.Name, trendsDir); err != nil {
				return fmt.Errorf("failed to extract %s: %w", file.Name, err)
			}
		} else if err := os.Rename(tmpPath, filepath.Join(trendsDir, file.Name)); err != nil {
			return fmt.Errorf("failed to move %s: %w", file.Name, err)
		}
		fmt.Fprintf(out, "   ✓ %s\n", file.Name)
		if logger != nil {
			logger.Info("Downloaded cutoff file", zap.Int("year", file.Year), zap.String("url", file.URL))
		}
	}

	fmt.Fprintln(out, "✅ Cutoff files ready")
	return nil
}
