package importer

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/distro"
	"stackerbuild.io/bomsync/pkg/fossy"
	"stackerbuild.io/bomsync/pkg/fs"
	"stackerbuild.io/bomsync/pkg/poll"
)

// DefaultPause separates consecutive uploads.
const DefaultPause = 10 * time.Second

type UploadOptions struct {
	FolderID int
	// Pause is slept between two uploads.
	Pause time.Duration
	// SkipExisting leaves out files whose checksum matches an upload of the
	// folder.
	SkipExisting bool
	// Wait polls the scan jobs of each upload until they complete.
	Wait        bool
	MaxAttempts int
	Interval    time.Duration
}

// Uploaded is one upload triggered by bomsync.
type Uploaded struct {
	Source   string
	UploadID int
	JobID    int
}

// UploadFiles uploads the package files of dir to a FOSSology folder and
// schedules their analysis.
func UploadFiles(ctx context.Context, fc *fossy.Client, dir string, opts UploadOptions) ([]Uploaded, error) {
	entries, err := fs.Inventory(dir)
	if err != nil {
		return nil, err
	}

	if opts.SkipExisting {
		known, err := folderChecksums(ctx, fc, opts.FolderID)
		if err != nil {
			return nil, err
		}

		missing := fs.Missing(entries, known)
		log.Info().Int("files", len(entries)).Int("new", len(missing)).Msg("skipping files already uploaded")

		entries = missing
	}

	uploaded := []Uploaded{}

	for i, entry := range entries {
		if i > 0 {
			if err := pause(ctx, opts.Pause); err != nil {
				return uploaded, err
			}
		}

		name := filepath.Base(entry.Path)
		description := distro.Describe(entry.Path, entry.MIME, name)

		id, err := fc.UploadFile(ctx, opts.FolderID, entry.Path, description)
		if err != nil {
			return uploaded, err
		}

		up, err := schedule(ctx, fc, opts, name, id)
		if err != nil {
			return uploaded, err
		}

		uploaded = append(uploaded, up)
	}

	return uploaded, nil
}

// UploadURLs asks FOSSology to fetch every URL listed in urlsFile, one per
// line, into a folder.
func UploadURLs(ctx context.Context, fc *fossy.Client, urlsFile string, opts UploadOptions) ([]Uploaded, error) {
	urls, err := readURLs(urlsFile)
	if err != nil {
		return nil, err
	}

	uploaded := []Uploaded{}

	for i, u := range urls {
		if i > 0 {
			if err := pause(ctx, opts.Pause); err != nil {
				return uploaded, err
			}
		}

		name, err := UploadName(u)
		if err != nil {
			return uploaded, err
		}

		log.Info().Int("index", i+1).Str("url", u).Str("name", name).Int("folder", opts.FolderID).Msg("triggering upload")

		id, err := fc.UploadURL(ctx, opts.FolderID, u, name)
		if err != nil {
			return uploaded, err
		}

		up, err := schedule(ctx, fc, opts, u, id)
		if err != nil {
			return uploaded, err
		}

		uploaded = append(uploaded, up)
	}

	return uploaded, nil
}

// UploadName is the last path segment of a download URL without its
// extension.
func UploadName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return "", fmt.Errorf("%w: %s has no file name", errors.ErrConfig, rawURL)
	}

	return strings.TrimSuffix(base, path.Ext(base)), nil
}

func readURLs(urlsFile string) ([]string, error) {
	f, err := os.Open(urlsFile)
	if err != nil {
		log.Error().Err(err).Str("path", urlsFile).Msg("unable to open urls file")

		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}
	defer f.Close()

	urls := []string{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}

	return urls, scanner.Err()
}

func schedule(ctx context.Context, fc *fossy.Client, opts UploadOptions, source string, uploadID int) (Uploaded, error) {
	up := Uploaded{Source: source, UploadID: uploadID}

	job, err := fc.Schedule(ctx, opts.FolderID, uploadID)
	if err != nil {
		return up, err
	}

	up.JobID = job

	log.Info().Str("source", source).Int("upload", uploadID).Int("job", job).Msg("analysis scheduled")

	if !opts.Wait {
		return up, nil
	}

	return up, WaitForJobs(ctx, fc, uploadID, opts.MaxAttempts, opts.Interval)
}

// WaitForJobs polls the jobs of an upload until all completed or one failed.
func WaitForJobs(ctx context.Context, fc *fossy.Client, uploadID, maxAttempts int, interval time.Duration) error {
	target := poll.Target{
		Name:        fmt.Sprintf("upload %d jobs", uploadID),
		Terminal:    []string{fossy.JobCompleted},
		Failure:     []string{fossy.JobFailed},
		MaxAttempts: maxAttempts,
		Interval:    interval,
	}

	_, err := poll.Until(ctx, target, func(ctx context.Context) (poll.Report[struct{}], error) {
		jobs, err := fc.Jobs(ctx, uploadID)
		if err != nil {
			return poll.Report[struct{}]{}, err
		}

		return poll.Report[struct{}]{State: fossy.JobState(jobs)}, nil
	})

	return err
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func folderChecksums(ctx context.Context, fc *fossy.Client, folderID int) ([]string, error) {
	uploads, err := fc.Uploads(ctx, fossy.UploadFilter{FolderID: folderID, Recursive: true})
	if err != nil {
		return nil, err
	}

	sums := make([]string, 0, len(uploads))
	for _, up := range uploads {
		if up.Hash.SHA256 != "" {
			sums = append(sums, up.Hash.SHA256)
		}
	}

	return sums, nil
}

// VerifyUploads checks that every package file of dir has an upload with
// the same checksum in the folder. Files without one are returned and
// written to missing as an SPDX document, if set.
func VerifyUploads(ctx context.Context, fc *fossy.Client, dir string, folderID int, missing string) ([]fs.Entry, error) {
	entries, err := fs.Inventory(dir)
	if err != nil {
		return nil, err
	}

	known, err := folderChecksums(ctx, fc, folderID)
	if err != nil {
		return nil, err
	}

	return fs.Verify(entries, known, missing)
}

// Findings are the scanner results of one upload.
type Findings struct {
	Upload   fossy.Upload
	Licenses []fossy.LicenseCount
	// Copyrights joins the copyright statements with ", ".
	Copyrights string
}

// FolderFindings lists the uploads of a folder with their licenses and
// copyrights. search narrows uploads by name when set.
func FolderFindings(ctx context.Context, fc *fossy.Client, folderID int, assignee, search string) ([]Findings, error) {
	uploads, err := fc.Uploads(ctx, fossy.UploadFilter{
		FolderID:  folderID,
		Recursive: true,
		Search:    search,
		Assignee:  assignee,
	})
	if err != nil {
		return nil, err
	}

	findings := make([]Findings, 0, len(uploads))

	for _, up := range uploads {
		f, err := uploadFindings(ctx, fc, up)
		if err != nil {
			return nil, err
		}

		findings = append(findings, f)
	}

	return findings, nil
}

func uploadFindings(ctx context.Context, fc *fossy.Client, up fossy.Upload) (Findings, error) {
	licenses, err := fc.Licenses(ctx, up.ID)
	if err != nil {
		return Findings{}, err
	}

	copyrights, err := fc.Copyrights(ctx, up.ID)
	if err != nil {
		return Findings{}, err
	}

	texts := make([]string, 0, len(copyrights))
	for _, c := range copyrights {
		texts = append(texts, c.Content)
	}

	return Findings{Upload: up, Licenses: licenses, Copyrights: strings.Join(texts, ", ")}, nil
}
