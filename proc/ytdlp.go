package proc

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/sys"
)

var (
	jsOnce       sync.Once
	cachedJSArgs []string
)

func newYtdlp(proxy string) *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if proxy != "" {
		cmd.Proxy(proxy)
	}
	return cmd
}

// buildYtdlpArgs returns the flags shared by every yt-dlp call.
func buildYtdlpArgs() []string {
	jsOnce.Do(func() {
		for _, rt := range []string{"node", "deno", "quickjs"} {
			if path, err := exec.LookPath(rt); err == nil {
				cachedJSArgs = append(cachedJSArgs, "--js-runtimes", rt+":"+path)
				break
			}
		}
	})

	args := append([]string(nil), cachedJSArgs...)
	return append(args,
		"--no-playlist",
		"--no-check-certificates",
		"--no-warnings",
		"--extractor-args", "youtube:player_client=android,web",
		"--socket-timeout", "30",
		"--retries", "20",
	)
}

type ytdlpMetadata struct {
	Title    string
	Uploader string
	Duration time.Duration
	ID       string
}

func ytdlpResolve(ctx context.Context, proxy, u string) (ytdlpMetadata, error) {
	args := append(buildYtdlpArgs(), "--skip-download")
	res, err := newYtdlp(proxy).
		Print("%(title)s\t%(uploader)s\t%(duration_string)s\t%(id)s").
		NoSimulate().
		IgnoreConfig().
		Run(ctx, append(args, u)...)
	if err != nil {
		if res != nil && strings.Contains(strings.ToLower(res.Stderr), "drm") {
			return ytdlpMetadata{}, errors.Wrap(err, "DRM protected")
		}
		return ytdlpMetadata{}, err
	}
	return parseYtdlpPrint(res.Stdout)
}

// parseYtdlpPrint reads the first complete line of a
// title/uploader/duration/id print.
func parseYtdlpPrint(out string) (ytdlpMetadata, error) {
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		return ytdlpMetadata{Title: ps[0], Uploader: ps[1], Duration: ost.ParseDuration(ps[2]), ID: ps[3]}, nil
	}
	return ytdlpMetadata{}, errors.New("failed to resolve metadata")
}

// ytdlpStream writes the best audio of u to out until the download ends or
// ctx is canceled.
func ytdlpStream(ctx context.Context, proxy, u string, out io.Writer) error {
	u = strings.Replace(u, "music.youtube.com", "www.youtube.com", 1)

	args := append(buildYtdlpArgs(), "--ignore-config")
	execCmd := newYtdlp(proxy).
		Format("bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best").
		Output("-").
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoCheckCertificates().
		BuildCommand(ctx, append(args, u)...)

	execCmd.Stdout = out
	execCmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	if proxy != "" {
		execCmd.Env = append(execCmd.Env, "http_proxy="+proxy, "https_proxy="+proxy)
	}

	var stderr bytes.Buffer
	execCmd.Stderr = &stderr

	if err := execCmd.Start(); err != nil {
		return err
	}
	if err := execCmd.Wait(); err != nil {
		msg := strings.ToLower(err.Error() + stderr.String())
		if strings.Contains(msg, "broken pipe") || strings.Contains(msg, "signal: killed") {
			return nil
		}
		sys.LogResolver("yt-dlp stream failed: %v, stderr: %s", err, stderr.String())
		return err
	}
	return nil
}
