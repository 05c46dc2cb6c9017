// Package fossy talks to the FOSSology REST API: uploads, scan jobs,
// license and copyright findings.
package fossy

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultPageSize = 1000
)

// Job states.
const (
	JobCompleted = "Completed"
	JobFailed    = "Failed"
)

type Options struct {
	URL       string
	Token     string
	GroupName string
	Insecure  bool
	Timeout   time.Duration
}

type Client struct {
	rc *resty.Client
}

func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: fossology url is not set", errors.ErrConfig)
	}

	if opts.Token == "" {
		return nil, fmt.Errorf("%w: fossology token is not set", errors.ErrConfig)
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.Token)

	if opts.GroupName != "" {
		rc.SetHeader("groupName", opts.GroupName)
	}

	if opts.Insecure {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // --no-verify
	}

	return &Client{rc: rc}, nil
}

func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: %s: %s: %s", errors.ErrRemote, what, resp.Status(), strings.TrimSpace(resp.String()))
	}

	return nil
}

type Hash struct {
	SHA1   string `json:"sha1"`
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

type Upload struct {
	ID          int    `json:"id"`
	FolderID    int    `json:"folderid"`
	FolderName  string `json:"foldername"`
	Description string `json:"description"`
	UploadName  string `json:"uploadname"`
	UploadDate  string `json:"uploaddate"`
	Assignee    any    `json:"assignee"`
	Hash        Hash   `json:"hash"`
}

type LicenseCount struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	ScannerCount   int    `json:"scannerCount"`
	ConcludedCount int    `json:"concludedCount"`
}

type Copyright struct {
	Content  string   `json:"copyright"`
	FilePath []string `json:"filePath"`
}

type Job struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	UploadID int    `json:"uploadId"`
	Status   string `json:"status"`
}

type info struct {
	Code    int    `json:"code"`
	Message any    `json:"message"`
	Type    string `json:"type"`
}

// id reads the upload or job id FOSSology puts in the message field.
func (i info) id() (int, error) {
	switch m := i.Message.(type) {
	case float64:
		return int(m), nil
	case string:
		return strconv.Atoi(m)
	default:
		return 0, fmt.Errorf("%w: unexpected message %v", errors.ErrRemote, i.Message)
	}
}

// UploadFilter narrows an upload listing.
type UploadFilter struct {
	FolderID  int
	Recursive bool
	Search    string
	Assignee  string
}

// Uploads lists uploads matching the filter, reading every page.
func (c *Client) Uploads(ctx context.Context, filter UploadFilter) ([]Upload, error) {
	uploads := []Upload{}

	for page := 1; ; page++ {
		var batch []Upload

		req := c.rc.R().SetContext(ctx).
			SetHeader("limit", strconv.Itoa(DefaultPageSize)).
			SetHeader("page", strconv.Itoa(page)).
			SetQueryParam("folderId", strconv.Itoa(filter.FolderID)).
			SetQueryParam("recursive", strconv.FormatBool(filter.Recursive)).
			SetResult(&batch)

		if filter.Search != "" {
			req.SetQueryParam("name", filter.Search)
		}

		if filter.Assignee != "" {
			req.SetQueryParam("assignee", filter.Assignee)
		}

		resp, err := req.Get("/uploads")
		if err := check(resp, err, "list uploads"); err != nil {
			return nil, err
		}

		uploads = append(uploads, batch...)

		pages, _ := strconv.Atoi(resp.Header().Get("X-Total-Pages"))
		if page >= pages || len(batch) == 0 {
			return uploads, nil
		}
	}
}

// Licenses returns the license histogram of an upload.
func (c *Client) Licenses(ctx context.Context, uploadID int) ([]LicenseCount, error) {
	var licenses []LicenseCount

	resp, err := c.rc.R().SetContext(ctx).
		SetResult(&licenses).
		Get(fmt.Sprintf("/uploads/%d/licenses/histogram", uploadID))
	if err := check(resp, err, "list licenses"); err != nil {
		return nil, err
	}

	return licenses, nil
}

func (c *Client) Copyrights(ctx context.Context, uploadID int) ([]Copyright, error) {
	var copyrights []Copyright

	resp, err := c.rc.R().SetContext(ctx).
		SetResult(&copyrights).
		Get(fmt.Sprintf("/uploads/%d/copyrights", uploadID))
	if err := check(resp, err, "list copyrights"); err != nil {
		return nil, err
	}

	return copyrights, nil
}

// UploadFile uploads a local package into a folder and returns the upload id.
func (c *Client) UploadFile(ctx context.Context, folderID int, path, description string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to open package")

		return 0, err
	}
	defer f.Close()

	var res info

	resp, err := c.rc.R().SetContext(ctx).
		SetHeader("folderId", strconv.Itoa(folderID)).
		SetHeader("uploadDescription", description).
		SetHeader("uploadType", "file").
		SetHeader("public", "protected").
		SetFileReader("fileInput", filepath.Base(path), f).
		SetResult(&res).
		Post("/uploads")
	if err := check(resp, err, "upload file"); err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to upload package")

		return 0, err
	}

	return res.id()
}

type urlUpload struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// UploadURL asks FOSSology to download a package into a folder and returns
// the upload id.
func (c *Client) UploadURL(ctx context.Context, folderID int, url, name string) (int, error) {
	var res info

	resp, err := c.rc.R().SetContext(ctx).
		SetHeader("folderId", strconv.Itoa(folderID)).
		SetHeader("uploadDescription", url).
		SetHeader("uploadType", "url").
		SetHeader("public", "protected").
		SetBody(urlUpload{URL: url, Name: name}).
		SetResult(&res).
		Post("/uploads")
	if err := check(resp, err, "upload url"); err != nil {
		log.Error().Err(err).Str("url", url).Msg("unable to upload url")

		return 0, err
	}

	return res.id()
}

type analysis struct {
	Bucket    bool `json:"bucket"`
	Copyright bool `json:"copyright_email_author"`
	ECC       bool `json:"ecc"`
	Keyword   bool `json:"keyword"`
	Mime      bool `json:"mime"`
	Monk      bool `json:"monk"`
	Nomos     bool `json:"nomos"`
	Ojo       bool `json:"ojo"`
	Package   bool `json:"package"`
}

type decider struct {
	NomosMonk  bool `json:"nomos_monk"`
	BulkReused bool `json:"bulk_reused"`
	NewScanner bool `json:"new_scanner"`
}

type scanRequest struct {
	Analysis analysis `json:"analysis"`
	Decider  decider  `json:"decider"`
}

// Schedule starts the license and copyright scanners on an upload and
// returns the job id.
func (c *Client) Schedule(ctx context.Context, folderID, uploadID int) (int, error) {
	var res info

	resp, err := c.rc.R().SetContext(ctx).
		SetHeader("folderId", strconv.Itoa(folderID)).
		SetHeader("uploadId", strconv.Itoa(uploadID)).
		SetBody(scanRequest{
			Analysis: analysis{
				Bucket: true, Copyright: true, ECC: true, Keyword: true,
				Mime: true, Monk: true, Nomos: true, Ojo: true, Package: true,
			},
			Decider: decider{NomosMonk: true, BulkReused: true, NewScanner: true},
		}).
		SetResult(&res).
		Post("/jobs")
	if err := check(resp, err, "schedule analysis"); err != nil {
		return 0, err
	}

	return res.id()
}

// Jobs lists the jobs of an upload.
func (c *Client) Jobs(ctx context.Context, uploadID int) ([]Job, error) {
	var jobs []Job

	resp, err := c.rc.R().SetContext(ctx).
		SetQueryParam("upload", strconv.Itoa(uploadID)).
		SetResult(&jobs).
		Get("/jobs")
	if err := check(resp, err, "list jobs"); err != nil {
		return nil, err
	}

	return jobs, nil
}

// JobState folds the jobs of an upload into one state: Failed if any job
// failed, Completed once all completed, otherwise the first pending state.
func JobState(jobs []Job) string {
	state := JobCompleted

	for _, job := range jobs {
		switch job.Status {
		case JobFailed:
			return JobFailed
		case JobCompleted:
		default:
			if state == JobCompleted {
				state = job.Status
			}
		}
	}

	if len(jobs) == 0 {
		return "Queued"
	}

	return state
}
